// Command ffbatch converts batches of media files with ffmpeg using named
// presets, mirroring directory structure into an output root and reporting
// per-file and overall progress.
package main
