// Package resolve expands input file and directory specifications into the
// ordered list of source files a batch will convert.
package resolve
