// Package preflight validates the runtime environment before a batch starts:
// tool availability, output directory access, and free disk space.
package preflight
