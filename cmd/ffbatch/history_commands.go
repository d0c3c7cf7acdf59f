package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ffbatch/internal/config"
	"ffbatch/internal/history"
	"ffbatch/internal/services"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent conversion batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := openHistory(cmd, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			summaries, err := store.ListBatches(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No batches recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(summaries))
			for _, summary := range summaries {
				rows = append(rows, []string{
					summary.ID,
					summary.Preset,
					summary.Status,
					humanize.Time(summary.StartedAt),
					strconv.Itoa(summary.CompletedCount),
					strconv.Itoa(summary.FailedCount),
					strconv.Itoa(summary.SkipCount),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
				{title: "ID"},
				{title: "Preset"},
				{title: "Status"},
				{title: "Started"},
				{title: "Done", align: alignRight},
				{title: "Failed", align: alignRight},
				{title: "Skipped", align: alignRight},
			}, rows))
			return nil
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of batches to list")

	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	return historyCmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show the per-file outcomes of one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := openHistory(cmd, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			targets, err := store.Targets(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				return services.Wrap(services.ErrNotFound, "history", "show batch", args[0], nil)
			}

			rows := make([][]string, 0, len(targets))
			for _, target := range targets {
				duration := ""
				if target.DurationSeconds > 0 {
					duration = formatDuration(target.DurationSeconds)
				}
				rows = append(rows, []string{
					strconv.Itoa(target.Index + 1),
					target.InputPath,
					target.Action,
					target.Outcome,
					duration,
					target.Message,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
				{title: "#", align: alignRight},
				{title: "Input"},
				{title: "Action"},
				{title: "Outcome"},
				{title: "Duration", align: alignRight},
				{title: "Note"},
			}, rows))
			return nil
		},
	}
}

func openHistory(cmd *cobra.Command, cfg *config.Config) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, services.Wrap(services.ErrConfiguration, "history", "open store",
			"history is disabled; enable [history] in the configuration file", nil)
	}
	return history.Open(cmd.Context(), cfg.History.Path, nil)
}
