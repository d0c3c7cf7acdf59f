package batch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ffbatch/internal/ffmpeg"
	"ffbatch/internal/logging"
	"ffbatch/internal/plan"
	"ffbatch/internal/preset"
	"ffbatch/internal/services"
)

// EventKind distinguishes the entries of the progress event stream.
type EventKind int

const (
	// KindTargetStarted marks the beginning of one target's conversion.
	KindTargetStarted EventKind = iota
	// KindTargetProgress carries one progress tick for the in-flight target.
	KindTargetProgress
	// KindTargetCompleted marks a successful conversion.
	KindTargetCompleted
	// KindTargetFailed marks a failed conversion; the batch continues.
	KindTargetFailed
	// KindOverall carries the aggregate batch completion fraction.
	KindOverall
)

// Event is one entry of the ordered progress stream consumed by a renderer.
// Events for target i always precede events for target i+1; overall fractions
// are monotonically non-decreasing and reach exactly 1.0 at batch completion.
type Event struct {
	Kind        EventKind
	TargetIndex int
	Fraction    float64
	FPS         float64
	Speed       float64
	Bytes       int64
	Message     string
}

// Result summarizes one executed batch.
type Result struct {
	Attempted int
	Completed int
	Failed    int
	Elapsed   time.Duration
}

// AllFailed reports whether every attempted target failed. The process exit
// code reflects failure only in that case.
func (r Result) AllFailed() bool {
	return r.Attempted > 0 && r.Failed == r.Attempted
}

// Recorder observes per-target outcomes, e.g. to persist batch history.
// Implementations must tolerate being called mid-batch.
type Recorder interface {
	RecordTarget(ctx context.Context, index int, target plan.Target, outcome string, message string)
}

// Executor drives conversions strictly one at a time, in plan order.
type Executor struct {
	client   ffmpeg.Client
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithRecorder attaches a per-target outcome recorder.
func WithRecorder(rec Recorder) Option {
	return func(e *Executor) { e.recorder = rec }
}

// New constructs an Executor.
func New(client ffmpeg.Client, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		client: client,
		logger: logging.NewComponentLogger(logger, "executor"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes every non-skip target of the plan in order, sending progress
// events to the channel. The channel is closed before Run returns. A
// conversion failure is recorded and the loop advances; only context
// cancellation aborts the batch early.
func (e *Executor) Run(ctx context.Context, p *plan.Plan, pr preset.Preset, events chan<- Event) (Result, error) {
	if events != nil {
		defer close(events)
	}

	start := e.now()
	totalDuration := p.TotalDurationSeconds()

	var result Result
	var accumulated float64
	lastOverall := 0.0

	emit := func(ev Event) {
		if events == nil {
			return
		}
		if ev.Kind == KindOverall {
			if ev.Fraction < lastOverall {
				ev.Fraction = lastOverall
			}
			lastOverall = ev.Fraction
		}
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	for index, target := range p.Targets {
		if target.Action == plan.ActionSkip {
			continue
		}
		if err := ctx.Err(); err != nil {
			result.Elapsed = e.now().Sub(start)
			return result, err
		}

		result.Attempted++
		emit(Event{Kind: KindTargetStarted, TargetIndex: index})
		e.logger.Info("converting file",
			logging.String("input", target.InputPath),
			logging.String("output", target.OutputPath),
			logging.String("action", target.Action.String()),
		)

		if err := e.convertOne(ctx, index, target, totalDuration, accumulated, emit, pr); err != nil {
			if ctx.Err() != nil {
				result.Elapsed = e.now().Sub(start)
				return result, ctx.Err()
			}
			result.Failed++
			accumulated += target.DurationSeconds
			emit(Event{Kind: KindTargetFailed, TargetIndex: index, Message: err.Error()})
			emit(Event{Kind: KindOverall, Fraction: overallFraction(accumulated, totalDuration)})
			e.record(ctx, index, target, "failed", err.Error())
			continue
		}

		result.Completed++
		accumulated += target.DurationSeconds
		emit(Event{Kind: KindTargetCompleted, TargetIndex: index, Fraction: 1})
		emit(Event{Kind: KindOverall, Fraction: overallFraction(accumulated, totalDuration)})
		e.record(ctx, index, target, "completed", "")
	}

	emit(Event{Kind: KindOverall, Fraction: 1})
	result.Elapsed = e.now().Sub(start)
	e.logger.Info("batch finished",
		logging.Int("attempted", result.Attempted),
		logging.Int("completed", result.Completed),
		logging.Int("failed", result.Failed),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func (e *Executor) convertOne(ctx context.Context, index int, target plan.Target, totalDuration, accumulated float64, emit func(Event), pr preset.Preset) error {
	if err := os.MkdirAll(filepath.Dir(target.OutputPath), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "executor", "ensure output directory", filepath.Dir(target.OutputPath), err)
	}

	req := ffmpeg.Request{
		Input:     target.InputPath,
		Output:    target.OutputPath,
		Overwrite: target.Action == plan.ActionOverwrite,
		Args:      pr.CommandArgs(),
	}

	err := e.client.Convert(ctx, req, func(update ffmpeg.ProgressUpdate) {
		elapsed := update.OutTime.Seconds()
		if elapsed > target.DurationSeconds && target.DurationSeconds > 0 {
			elapsed = target.DurationSeconds
		}
		emit(Event{
			Kind:        KindTargetProgress,
			TargetIndex: index,
			Fraction:    targetFraction(elapsed, target.DurationSeconds, update.Done),
			FPS:         update.FPS,
			Speed:       update.Speed,
			Bytes:       update.BytesWritten,
		})
		emit(Event{Kind: KindOverall, Fraction: overallFraction(accumulated+elapsed, totalDuration)})
	})
	if err != nil {
		wrapped := services.Wrap(services.ErrExternalTool, "executor", "run ffmpeg", "conversion failed", err)
		e.logger.Error("conversion failed",
			logging.String("input", target.InputPath),
			logging.String("arguments", strings.Join(req.Args, " ")),
			logging.Error(err),
		)
		return wrapped
	}
	return nil
}

func (e *Executor) record(ctx context.Context, index int, target plan.Target, outcome, message string) {
	if e.recorder == nil {
		return
	}
	e.recorder.RecordTarget(ctx, index, target, outcome, message)
}

func targetFraction(elapsed, duration float64, done bool) float64 {
	if done {
		return 1
	}
	if duration <= 0 {
		return 0
	}
	fraction := elapsed / duration
	if fraction > 1 {
		return 1
	}
	if fraction < 0 {
		return 0
	}
	return fraction
}

func overallFraction(consumed, total float64) float64 {
	if total <= 0 {
		return 1
	}
	fraction := consumed / total
	if fraction > 1 {
		return 1
	}
	if fraction < 0 {
		return 0
	}
	return fraction
}
