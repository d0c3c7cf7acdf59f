package ffmpeg

import (
	"strings"
	"sync"
)

// tailBuffer keeps the last n lines written to it. ffmpeg error output can be
// long; only the tail is useful in an error message.
type tailBuffer struct {
	mu      sync.Mutex
	limit   int
	lines   []string
	partial strings.Builder
}

func newTailBuffer(limit int) *tailBuffer {
	if limit <= 0 {
		limit = 16
	}
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range p {
		if c == '\n' || c == '\r' {
			b.flushLocked()
			continue
		}
		b.partial.WriteByte(c)
	}
	return len(p), nil
}

func (b *tailBuffer) flushLocked() {
	line := strings.TrimSpace(b.partial.String())
	b.partial.Reset()
	if line == "" {
		return
	}
	b.lines = append(b.lines, line)
	if len(b.lines) > b.limit {
		b.lines = b.lines[len(b.lines)-b.limit:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
	return strings.Join(b.lines, "; ")
}
