package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"ffbatch/internal/config"
	"ffbatch/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check a conversion run depends on: tool binaries,
// output root access, and free space under the output root.
func RunAll(cfg *config.Config, outputRoot string) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckBinary("ffmpeg", cfg.FFmpegBinary()),
		CheckBinary("ffprobe", cfg.FFprobeBinary()),
		CheckDirectoryAccess("Output directory", outputRoot),
	}
	if cfg.Preflight.MinFreeMiB > 0 {
		results = append(results, CheckFreeSpace(outputRoot, cfg.Preflight.MinFreeMiB))
	}
	return results
}

// Error collapses the failed checks into a single configuration error, or
// returns nil when everything passed.
func Error(results []Result) error {
	var failed []string
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "run checks", strings.Join(failed, "; "), nil)
}

// CheckBinary verifies that the tool resolves on PATH (or at its configured
// absolute path).
func CheckBinary(name, command string) Result {
	resolved, err := exec.LookPath(command)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s not found on PATH", command)}
	}
	return Result{Name: name, Passed: true, Detail: resolved}
}

// CheckDirectoryAccess verifies that the directory exists and is writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minFreeMiB mebibytes available.
func CheckFreeSpace(path string, minFreeMiB int64) Result {
	const name = "Free space"

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := uint64(stat.Bavail) * uint64(stat.Bsize)
	required := uint64(minFreeMiB) << 20
	if free < required {
		return Result{Name: name, Detail: fmt.Sprintf("%s free, need %s", humanize.IBytes(free), humanize.IBytes(required))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s free", humanize.IBytes(free))}
}
