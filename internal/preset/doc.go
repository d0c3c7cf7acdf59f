// Package preset loads named conversion presets from a presets.json file,
// preserving the on-disk order of presets and of their ffmpeg arguments.
package preset
