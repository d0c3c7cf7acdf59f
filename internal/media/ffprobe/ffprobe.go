package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON
// response. Any failure (missing binary, non-zero exit, malformed output) is
// returned as an error the caller records per target.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := commandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// DurationSeconds returns the duration of the first stream that reports one,
// falling back to the container duration (some containers omit per-stream
// durations). An unparseable or missing duration is an error.
func (r Result) DurationSeconds() (float64, error) {
	for _, stream := range r.Streams {
		if seconds, ok := parseSeconds(stream.Duration); ok {
			return seconds, nil
		}
	}
	if seconds, ok := parseSeconds(r.Format.Duration); ok {
		return seconds, nil
	}
	return 0, errors.New("ffprobe: no stream or container duration reported")
}

func parseSeconds(value string) (float64, bool) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || strings.EqualFold(cleaned, "N/A") {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return seconds, true
}
