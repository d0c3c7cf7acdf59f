// Package batch executes a conversion plan sequentially, one ffmpeg process
// at a time, emitting an ordered stream of per-target and overall progress
// events.
package batch
