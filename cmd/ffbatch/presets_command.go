package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ffbatch/internal/config"
	"ffbatch/internal/preset"
)

func newPresetsCommand(ctx *commandContext) *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List the presets defined in the preset file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(filePath)
			if path == "" {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				path = cfg.Presets.File
			} else {
				expanded, err := config.ExpandPath(path)
				if err != nil {
					return err
				}
				path = expanded
			}
			file, err := preset.Load(path)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(file.All()))
			for _, p := range file.All() {
				rows = append(rows, []string{p.Name, p.OutputExtension, strings.Join(p.CommandArgs(), " ")})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]column{
				{title: "Name"},
				{title: "Extension"},
				{title: "Arguments"},
			}, rows))
			fmt.Fprintf(out, "%d presets in %s\n", len(rows), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "Preset file to read instead of the configured one")
	return cmd
}
