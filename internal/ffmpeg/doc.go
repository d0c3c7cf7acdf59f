// Package ffmpeg wraps the ffmpeg command-line converter, translating its
// -progress output stream into typed progress updates.
package ffmpeg
