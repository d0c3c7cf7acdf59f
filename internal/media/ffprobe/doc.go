// Package ffprobe shells out to ffprobe for read-only media inspection,
// primarily to obtain stream durations for progress accounting.
package ffprobe
