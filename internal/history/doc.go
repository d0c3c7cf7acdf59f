// Package history records batch and per-target conversion outcomes to a
// local SQLite database for later inspection.
package history
