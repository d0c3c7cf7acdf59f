package resolve

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ffbatch/internal/services"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func paths(inputs []Input) []string {
	out := make([]string, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, in.Path)
	}
	return out
}

func TestResolveFileSpecRootsAtParent(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.mov")
	touch(t, file)

	inputs, err := Resolve([]string{file}, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(inputs) != 1 {
		t.Fatalf("expected 1 input, got %d", len(inputs))
	}
	if inputs[0].Root != dir || inputs[0].Path != file {
		t.Fatalf("unexpected input: %+v", inputs[0])
	}
}

func TestResolveDirectoryNonRecursiveIgnoresSubdirs(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.mov"))
	touch(t, filepath.Join(dir, "b.mov"))
	touch(t, filepath.Join(dir, "sub", "c.mov"))

	inputs, err := Resolve([]string{dir}, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{filepath.Join(dir, "a.mov"), filepath.Join(dir, "b.mov")}
	got := paths(inputs)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
		if inputs[i].Root != dir {
			t.Fatalf("directory spec should root at itself, got %q", inputs[i].Root)
		}
	}
}

func TestResolveDirectoryRecursiveDescendsDepthFirst(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.mov"))
	touch(t, filepath.Join(dir, "sub", "c.mov"))
	touch(t, filepath.Join(dir, "sub", "deep", "d.mov"))
	touch(t, filepath.Join(dir, "z.mov"))

	inputs, err := Resolve([]string{dir}, true)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.mov"),
		filepath.Join(dir, "sub", "c.mov"),
		filepath.Join(dir, "sub", "deep", "d.mov"),
		filepath.Join(dir, "z.mov"),
	}
	got := paths(inputs)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch: expected %v, got %v", want, got)
		}
	}
}

func TestResolveMissingSpecIsFatal(t *testing.T) {
	_, err := Resolve([]string{filepath.Join(t.TempDir(), "ghost.mov")}, false)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestResolveOverlappingSpecsAreNotDeduplicated(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.mov")
	touch(t, file)

	inputs, err := Resolve([]string{file, dir}, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(inputs) != 2 {
		t.Fatalf("expected duplicate discovery, got %d inputs", len(inputs))
	}
	if inputs[0].Root != dir || inputs[1].Root != dir {
		t.Fatalf("unexpected roots: %+v", inputs)
	}
}
