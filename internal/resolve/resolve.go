package resolve

import (
	"fmt"
	"os"
	"path/filepath"

	"ffbatch/internal/services"
)

// Input pairs a discovered file with the root it was discovered under. The
// root determines how much of the file's directory structure is mirrored
// below the output root: a bare file argument roots at its parent directory,
// a directory argument roots at itself.
type Input struct {
	Root string
	Path string
}

// Resolve expands the ordered input specifications into a flat ordered list of
// files. Directory specs list direct children; with recursive set they are
// descended depth-first in listing order. Overlapping specs are passed through
// without deduplication. A spec that is neither a file nor a directory is an
// immediate fatal error.
func Resolve(specs []string, recursive bool) ([]Input, error) {
	var inputs []Input
	for _, spec := range specs {
		absolute, err := filepath.Abs(spec)
		if err != nil {
			return nil, services.Wrap(services.ErrNotFound, "resolve", "absolute path", spec, err)
		}

		info, err := os.Stat(absolute)
		if err != nil {
			return nil, services.Wrap(
				services.ErrNotFound,
				"resolve",
				"stat input",
				fmt.Sprintf("input path %q does not exist", spec),
				nil,
			)
		}

		switch {
		case info.Mode().IsRegular():
			inputs = append(inputs, Input{Root: filepath.Dir(absolute), Path: absolute})
		case info.IsDir():
			found, err := listFiles(absolute, recursive)
			if err != nil {
				return nil, err
			}
			for _, path := range found {
				inputs = append(inputs, Input{Root: absolute, Path: path})
			}
		default:
			return nil, services.Wrap(
				services.ErrNotFound,
				"resolve",
				"stat input",
				fmt.Sprintf("input path %q is neither a file nor a directory", spec),
				nil,
			)
		}
	}
	return inputs, nil
}

type frame struct {
	entries []os.DirEntry
	next    int
}

// listFiles walks dir with an explicit stack so deep trees cannot exhaust the
// call stack. Files are emitted in listing order; with recursive set,
// subdirectories are descended at the point they are encountered, preserving
// depth-first discovery order.
func listFiles(dir string, recursive bool) ([]string, error) {
	var files []string

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "resolve", "read directory", dir, err)
	}
	stack := []struct {
		dir string
		f   frame
	}{{dir: dir, f: frame{entries: entries}}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.f.next >= len(top.f.entries) {
			stack = stack[:len(stack)-1]
			continue
		}
		entry := top.f.entries[top.f.next]
		top.f.next++

		path := filepath.Join(top.dir, entry.Name())
		info, err := os.Stat(path)
		if err != nil {
			// Dangling symlinks and the like are neither files nor
			// directories; they fall outside the listing.
			continue
		}
		switch {
		case info.Mode().IsRegular():
			files = append(files, path)
		case info.IsDir() && recursive:
			children, err := os.ReadDir(path)
			if err != nil {
				return nil, services.Wrap(services.ErrNotFound, "resolve", "read directory", path, err)
			}
			stack = append(stack, struct {
				dir string
				f   frame
			}{dir: path, f: frame{entries: children}})
		}
	}
	return files, nil
}
