// Package logging constructs slog loggers with console and JSON handlers and
// provides attribute helpers shared across the pipeline.
package logging
