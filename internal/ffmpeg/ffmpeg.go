package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// ProgressUpdate is one tick of conversion progress reported by ffmpeg.
type ProgressUpdate struct {
	// OutTime is the amount of media encoded so far.
	OutTime time.Duration
	// FPS is the current encode frame rate.
	FPS float64
	// Speed is the realtime multiplier (1.0 = realtime).
	Speed float64
	// BytesWritten is the output size so far.
	BytesWritten int64
	// Done marks the final progress block of a successful conversion.
	Done bool
}

// Request describes a single conversion.
type Request struct {
	Input  string
	Output string
	// Overwrite allows ffmpeg to replace an existing output file.
	Overwrite bool
	// Args are the preset's tool arguments, passed verbatim between input
	// and output.
	Args []string
}

// Client defines conversion behaviour.
type Client interface {
	Convert(ctx context.Context, req Request, progress func(ProgressUpdate)) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the ffmpeg command-line converter.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Arguments returns the full invocation argument list for a request, exposed
// so failures can be logged with the exact command.
func (c *CLI) Arguments(req Request) []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error"}
	if req.Overwrite {
		args = append(args, "-y")
	} else {
		args = append(args, "-n")
	}
	args = append(args, "-progress", "pipe:1", "-nostats", "-i", req.Input)
	args = append(args, req.Args...)
	args = append(args, req.Output)
	return args
}

// Convert runs one ffmpeg conversion, streaming progress ticks from stdout to
// the callback until the process exits. The callback is invoked from the
// calling goroutine; exactly one conversion runs per call.
func (c *CLI) Convert(ctx context.Context, req Request, progress func(ProgressUpdate)) error {
	if strings.TrimSpace(req.Input) == "" {
		return errors.New("input path required")
	}
	if strings.TrimSpace(req.Output) == "" {
		return errors.New("output path required")
	}

	cmd := commandContext(ctx, c.binary, c.Arguments(req)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := newTailBuffer(32)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	scanErr := parseProgress(stdout, progress)

	waitErr := cmd.Wait()
	if waitErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if tail := stderr.String(); tail != "" {
			return fmt.Errorf("ffmpeg: %w: %s", waitErr, tail)
		}
		return fmt.Errorf("ffmpeg: %w", waitErr)
	}
	if scanErr != nil {
		return fmt.Errorf("read ffmpeg progress: %w", scanErr)
	}
	return nil
}

// parseProgress reads the key=value blocks ffmpeg emits with -progress. Each
// block ends with a "progress=continue" or "progress=end" marker, at which
// point the accumulated update is flushed to the callback.
func parseProgress(r interface{ Read([]byte) (int, error) }, progress func(ProgressUpdate)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var update ProgressUpdate
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "progress=") {
			update.Done = strings.TrimPrefix(line, "progress=") == "end"
			if progress != nil {
				progress(update)
			}
			update = ProgressUpdate{}
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "out_time_us":
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
				update.OutTime = time.Duration(us) * time.Microsecond
			}
		case "out_time_ms":
			// Despite the name, ffmpeg reports microseconds here.
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 && update.OutTime == 0 {
				update.OutTime = time.Duration(us) * time.Microsecond
			}
		case "out_time":
			if d, ok := parseClock(value); ok && update.OutTime == 0 {
				update.OutTime = d
			}
		case "fps":
			if fps, err := strconv.ParseFloat(value, 64); err == nil && fps >= 0 {
				update.FPS = fps
			}
		case "speed":
			trimmed := strings.TrimSuffix(value, "x")
			if speed, err := strconv.ParseFloat(trimmed, 64); err == nil && speed >= 0 {
				update.Speed = speed
			}
		case "total_size":
			if size, err := strconv.ParseInt(value, 10, 64); err == nil && size >= 0 {
				update.BytesWritten = size
			}
		}
	}
	return scanner.Err()
}

// parseClock parses ffmpeg's HH:MM:SS.micros timestamps.
func parseClock(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" || value == "N/A" {
		return 0, false
	}
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err1 := strconv.ParseInt(parts[0], 10, 64)
	minutes, err2 := strconv.ParseInt(parts[1], 10, 64)
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil || seconds < 0 {
		return 0, false
	}
	total := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	total += time.Duration(seconds * float64(time.Second))
	return total, true
}

var _ Client = (*CLI)(nil)
