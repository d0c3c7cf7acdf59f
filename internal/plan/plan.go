package plan

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ffbatch/internal/logging"
	"ffbatch/internal/resolve"
	"ffbatch/internal/services"
)

// Action is the planned disposition of a target.
type Action int

const (
	ActionCreate Action = iota
	ActionOverwrite
	ActionSkip
)

// String returns the lowercase action label.
func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionOverwrite:
		return "overwrite"
	case ActionSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Target is one input-to-output conversion unit.
type Target struct {
	InputPath       string
	OutputPath      string
	OutputExists    bool
	DurationSeconds float64
	ErrorMessage    string
	Action          Action
}

// Plan is the fixed ordered set of targets for one batch, with the counters
// the confirmation step uses to decide whether to proceed.
type Plan struct {
	Targets        []Target
	CreateCount    int
	OverwriteCount int
	SkipCount      int
}

// HasWork reports whether any target will actually be converted.
func (p *Plan) HasWork() bool {
	return p.CreateCount+p.OverwriteCount > 0
}

// TotalDurationSeconds sums the probed durations of all non-skip targets. It
// is the denominator for overall batch progress and is computed from the
// planning probes, never re-probed.
func (p *Plan) TotalDurationSeconds() float64 {
	var total float64
	for _, t := range p.Targets {
		if t.Action != ActionSkip {
			total += t.DurationSeconds
		}
	}
	return total
}

// ProbeFunc obtains a media duration in seconds for one input file.
type ProbeFunc func(ctx context.Context, path string) (float64, error)

// Options configures plan construction.
type Options struct {
	OutputRoot      string
	OutputExtension string
	Force           bool
	Probe           ProbeFunc
	Logger          *slog.Logger
}

// Classify assigns an action from output existence, the force flag, and probe
// success. A failed probe forces skip regardless of the other inputs.
func Classify(outputExists, force, probeOK bool) Action {
	switch {
	case !probeOK:
		return ActionSkip
	case !outputExists:
		return ActionCreate
	case force:
		return ActionOverwrite
	default:
		return ActionSkip
	}
}

// Build maps every resolved input to a target, probes its duration, and
// classifies it. Probe failures are recorded per target and never abort
// planning; the only fatal outcome is an unusable output root.
func Build(ctx context.Context, inputs []resolve.Input, opts Options) (*Plan, error) {
	logger := logging.NewComponentLogger(opts.Logger, "plan")

	outputRoot, err := filepath.Abs(opts.OutputRoot)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "plan", "resolve output root", opts.OutputRoot, err)
	}

	result := &Plan{Targets: make([]Target, 0, len(inputs))}
	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target, err := planTarget(input, outputRoot, opts.OutputExtension)
		if err != nil {
			return nil, err
		}

		probeOK := true
		if opts.Probe != nil {
			seconds, err := opts.Probe(ctx, input.Path)
			if err != nil {
				probeOK = false
				target.ErrorMessage = err.Error()
				logger.Warn("probe failed; target will be skipped",
					logging.String("input", input.Path),
					logging.Error(err),
				)
			} else {
				target.DurationSeconds = seconds
			}
		}

		target.Action = Classify(target.OutputExists, opts.Force, probeOK)
		switch target.Action {
		case ActionCreate:
			result.CreateCount++
		case ActionOverwrite:
			result.OverwriteCount++
		case ActionSkip:
			result.SkipCount++
		}
		result.Targets = append(result.Targets, target)

		logger.Debug("planned target",
			logging.String("input", target.InputPath),
			logging.String("output", target.OutputPath),
			logging.String("action", target.Action.String()),
			logging.Float64("duration_seconds", target.DurationSeconds),
		)
	}
	return result, nil
}

// planTarget computes the deterministic output path for one input: the input's
// path relative to its discovery root, re-rooted under outputRoot, with the
// extension replaced. The only side effect is the plan-time existence check.
func planTarget(input resolve.Input, outputRoot, outputExtension string) (Target, error) {
	rel, err := filepath.Rel(input.Root, input.Path)
	if err != nil {
		return Target{}, services.Wrap(services.ErrValidation, "plan", "relativize input", input.Path, err)
	}

	ext := filepath.Ext(rel)
	rel = strings.TrimSuffix(rel, ext) + outputExtension
	outputPath := filepath.Join(outputRoot, rel)

	target := Target{InputPath: input.Path, OutputPath: outputPath}
	if info, err := os.Stat(outputPath); err == nil && !info.IsDir() {
		target.OutputExists = true
	}
	return target, nil
}
