package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ffbatch/internal/config"
	"ffbatch/internal/services"
)

func TestCheckBinary_OK(t *testing.T) {
	result := CheckBinary("shell", "sh")
	if !result.Passed {
		t.Fatalf("expected sh to resolve, got: %s", result.Detail)
	}
	if result.Detail == "" {
		t.Fatal("expected resolved path in detail")
	}
}

func TestCheckBinary_Missing(t *testing.T) {
	result := CheckBinary("ffmpeg", "definitely-not-a-real-binary")
	if result.Passed {
		t.Fatal("expected failure for missing binary")
	}
}

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace_OK(t *testing.T) {
	result := CheckFreeSpace(t.TempDir(), 1)
	if !result.Passed {
		t.Fatalf("expected pass for 1 MiB floor, got: %s", result.Detail)
	}
}

func TestCheckFreeSpace_MissingPath(t *testing.T) {
	result := CheckFreeSpace(filepath.Join(t.TempDir(), "nope"), 1)
	if result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestRunAllAndError(t *testing.T) {
	dir := t.TempDir()
	defaults := config.Default()
	cfg := &defaults
	cfg.Tools.FFmpegBinary = "sh"
	cfg.Tools.FFprobeBinary = "sh"
	cfg.Preflight.MinFreeMiB = 1

	results := RunAll(cfg, dir)
	if len(results) != 4 {
		t.Fatalf("expected 4 checks, got %d", len(results))
	}
	if err := Error(results); err != nil {
		t.Fatalf("expected all checks to pass: %v", err)
	}

	cfg.Tools.FFmpegBinary = "definitely-not-a-real-binary"
	results = RunAll(cfg, dir)
	err := Error(results)
	if err == nil {
		t.Fatal("expected failure to surface as an error")
	}
	if !services.IsFatal(err) {
		t.Fatalf("preflight failures should be fatal: %v", err)
	}
	if !strings.Contains(err.Error(), "ffmpeg") {
		t.Fatalf("error should name the failed check: %v", err)
	}
}
