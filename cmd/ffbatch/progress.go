package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"ffbatch/internal/batch"
	"ffbatch/internal/logging"
	"ffbatch/internal/plan"
)

// Bars track permille rather than raw seconds so short and long files render
// with the same resolution.
const progressScale = 1000

// renderEvents consumes the executor's event stream until it is closed.
// Terminals get live progress bars; everything else gets sampled log lines.
func renderEvents(out io.Writer, p *plan.Plan, events <-chan batch.Event, logger *slog.Logger) {
	if isTerminal(out) {
		renderInteractive(out, p, events)
		return
	}
	renderSampled(p, events, logger)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func renderInteractive(out io.Writer, p *plan.Plan, events <-chan batch.Event) {
	totalJobs := p.CreateCount + p.OverwriteCount
	jobNumber := 0
	overallPercent := 0.0

	var bar *progressbar.ProgressBar
	// Target ticks are followed by their overall update; the bar redraws once
	// both halves have arrived so the overall figure is never a tick behind.
	var pending *batch.Event
	for ev := range events {
		switch ev.Kind {
		case batch.KindTargetStarted:
			jobNumber++
			pending = nil
			bar = progressbar.NewOptions64(progressScale,
				progressbar.OptionSetWriter(out),
				progressbar.OptionSetDescription(jobLabel(jobNumber, totalJobs, p.Targets[ev.TargetIndex].InputPath, overallPercent)),
				progressbar.OptionSetWidth(30),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
			)
		case batch.KindTargetProgress:
			if bar == nil {
				continue
			}
			tick := ev
			pending = &tick
		case batch.KindTargetCompleted:
			pending = nil
			if bar != nil {
				_ = bar.Finish()
				fmt.Fprintln(out)
				bar = nil
			}
		case batch.KindTargetFailed:
			pending = nil
			if bar != nil {
				_ = bar.Exit()
				bar = nil
			}
			fmt.Fprintf(out, "\nfailed: %s: %s\n", filepath.Base(p.Targets[ev.TargetIndex].InputPath), ev.Message)
		case batch.KindOverall:
			overallPercent = ev.Fraction * 100
			if bar != nil && pending != nil {
				bar.Describe(progressLabel(jobNumber, totalJobs, p.Targets[pending.TargetIndex].InputPath, overallPercent, *pending))
				_ = bar.Set64(int64(pending.Fraction * progressScale))
				pending = nil
			}
		}
	}
}

func jobLabel(jobNumber, totalJobs int, inputPath string, overallPercent float64) string {
	return fmt.Sprintf("[%d/%d %3.0f%%] %s", jobNumber, totalJobs, overallPercent, filepath.Base(inputPath))
}

func progressLabel(jobNumber, totalJobs int, inputPath string, overallPercent float64, ev batch.Event) string {
	label := jobLabel(jobNumber, totalJobs, inputPath, overallPercent)
	if ev.Speed > 0 {
		label += fmt.Sprintf(" %.2fx", ev.Speed)
	}
	if ev.Bytes > 0 {
		label += " " + humanize.IBytes(uint64(ev.Bytes))
	}
	return label
}

func renderSampled(p *plan.Plan, events <-chan batch.Event, logger *slog.Logger) {
	log := logging.NewComponentLogger(logger, "progress")
	sampler := logging.NewProgressSampler(0)
	for ev := range events {
		switch ev.Kind {
		case batch.KindTargetStarted:
			log.Info("starting conversion",
				logging.String("input", p.Targets[ev.TargetIndex].InputPath),
			)
		case batch.KindTargetProgress:
			percent := ev.Fraction * 100
			if !sampler.ShouldLog(ev.TargetIndex, percent) {
				continue
			}
			log.Info("conversion progress",
				logging.String("input", p.Targets[ev.TargetIndex].InputPath),
				logging.Int("percent", int(percent)),
				logging.Float64("speed", ev.Speed),
				logging.String("written", humanize.IBytes(uint64(max(ev.Bytes, 0)))),
			)
		case batch.KindTargetCompleted:
			log.Info("conversion complete",
				logging.String("input", p.Targets[ev.TargetIndex].InputPath),
			)
		}
	}
}
