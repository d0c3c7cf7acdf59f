package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ffbatch/internal/batch"
	"ffbatch/internal/config"
	"ffbatch/internal/ffmpeg"
	"ffbatch/internal/history"
	"ffbatch/internal/logging"
	"ffbatch/internal/media/ffprobe"
	"ffbatch/internal/plan"
	"ffbatch/internal/preflight"
	"ffbatch/internal/preset"
	"ffbatch/internal/resolve"
)

const logFileName = "ffbatch.log"

type convertOptions struct {
	presetName string
	inputs     []string
	outputDir  string
	recursive  bool
	force      bool
	assumeYes  bool
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert media files using a named ffmpeg preset",
		Long: `Convert resolves the given files and directories into a conversion plan,
shows which outputs will be created, overwritten, or skipped, and then runs
one ffmpeg process per file in order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runConvert(cmd, cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.presetName, "preset", "p", "", "Preset name from the preset file")
	cmd.Flags().StringArrayVarP(&opts.inputs, "input", "i", nil, "Input file or directory (repeatable)")
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "Output directory (must exist)")
	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", false, "Descend into subdirectories of directory inputs")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Overwrite outputs that already exist")
	cmd.Flags().BoolVarP(&opts.assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	_ = cmd.MarkFlagRequired("preset")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runConvert(cmd *cobra.Command, cfg *config.Config, opts convertOptions) error {
	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()

	presets, err := preset.Load(cfg.Presets.File)
	if err != nil {
		return err
	}
	selected, err := presets.Select(opts.presetName)
	if err != nil {
		return err
	}

	outputRoot, err := config.ExpandPath(opts.outputDir)
	if err != nil {
		return err
	}
	if err := preflight.Error(preflight.RunAll(cfg, outputRoot)); err != nil {
		return err
	}

	specs := make([]string, 0, len(opts.inputs))
	for _, input := range opts.inputs {
		expanded, err := config.ExpandPath(input)
		if err != nil {
			return err
		}
		specs = append(specs, expanded)
	}
	inputs, err := resolve.Resolve(specs, opts.recursive)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		fmt.Fprintln(out, "No media files matched the inputs.")
		return nil
	}

	logFile, err := logging.OpenLogFile(cfg.Logging.Dir, logFileName)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: logFile,
	})
	if err != nil {
		return err
	}

	prober := func(ctx context.Context, path string) (float64, error) {
		result, err := ffprobe.Inspect(ctx, cfg.FFprobeBinary(), path)
		if err != nil {
			return 0, err
		}
		return result.DurationSeconds()
	}

	p, err := plan.Build(runCtx, inputs, plan.Options{
		OutputRoot:      outputRoot,
		OutputExtension: selected.OutputExtension,
		Force:           opts.force,
		Probe:           prober,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, renderPlanTable(p))
	fmt.Fprintf(out, "%d to create, %d to overwrite, %d skipped\n",
		p.CreateCount, p.OverwriteCount, p.SkipCount)

	if !p.HasWork() {
		fmt.Fprintln(out, "Nothing to do.")
		return nil
	}

	if !opts.assumeYes {
		proceed, err := confirm(runCtx, cmd.InOrStdin(), out)
		if err != nil {
			return err
		}
		if !proceed {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	var execOpts []batch.Option
	var record *history.Batch
	if cfg.History.Enabled {
		store, err := history.Open(runCtx, cfg.History.Path, logger)
		if err != nil {
			logger.Warn("history unavailable", logging.Error(err))
		} else {
			defer store.Close()
			record, err = store.BeginBatch(runCtx, selected.Name, outputRoot, p)
			if err != nil {
				logger.Warn("history unavailable", logging.Error(err))
			} else {
				execOpts = append(execOpts, batch.WithRecorder(record))
			}
		}
	}

	client := ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpegBinary()))
	executor := batch.New(client, logger, execOpts...)

	events := make(chan batch.Event, 64)
	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		renderEvents(cmd.ErrOrStderr(), p, events, logger)
	}()

	result, runErr := executor.Run(runCtx, p, selected, events)
	<-renderDone

	if record != nil {
		// Use a fresh context so the final row is written even after SIGINT.
		cancelled := errors.Is(runErr, context.Canceled)
		if err := record.Finish(context.Background(), result, cancelled); err != nil {
			logger.Warn("record batch outcome", logging.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintf(out, "Converted %d of %d files in %s",
		result.Completed, result.Attempted, result.Elapsed.Round(time.Second))
	if result.Failed > 0 {
		fmt.Fprintf(out, " (%d failed)", result.Failed)
	}
	fmt.Fprintln(out)

	if result.AllFailed() {
		return fmt.Errorf("all %d conversions failed; see %s",
			result.Attempted, filepath.Join(cfg.Logging.Dir, logFileName))
	}
	return nil
}

// confirm reads the answer in a goroutine so an interrupt during the wait
// terminates the run instead of blocking until enter is pressed.
func confirm(ctx context.Context, in io.Reader, out io.Writer) (bool, error) {
	fmt.Fprint(out, "Proceed? [y/N]: ")

	type answer struct {
		line string
		err  error
	}
	read := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(in).ReadString('\n')
		read <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(out)
		return false, ctx.Err()
	case a := <-read:
		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return false, a.err
		}
		response := strings.ToLower(strings.TrimSpace(a.line))
		return response == "y" || response == "yes", nil
	}
}
