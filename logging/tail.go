// Package logging holds the output capture helpers shared by the child
// process launchers and the event log writer.
package logging

import (
	"strings"
	"sync"

	"github.com/acarl005/stripansi"
)

// DefaultTailBytes is the amount of child output kept in memory per process
const DefaultTailBytes = 64 * 1024

// TailBuffer keeps only the last N bytes written to it so a representative
// snippet of a process's output can be attached to an error without retaining
// the entire log in memory. It is safe for concurrent use.
type TailBuffer struct {
	maxBytes int

	mu       sync.Mutex
	total    int64
	contents []byte
}

// NewTailBuffer creates a TailBuffer holding at most maxBytes
func NewTailBuffer(maxBytes int) *TailBuffer {
	if maxBytes <= 0 {
		maxBytes = DefaultTailBytes
	}
	return &TailBuffer{maxBytes: maxBytes}
}

func (b *TailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))
	b.contents = append(b.contents, p...)
	if len(b.contents) > b.maxBytes {
		b.contents = append(b.contents[:0], b.contents[len(b.contents)-b.maxBytes:]...)
	}
	return len(p), nil
}

// Bytes returns a copy of the retained bytes
func (b *TailBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := make([]byte, len(b.contents))
	copy(cp, b.contents)
	return cp
}

func (b *TailBuffer) TotalBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

func (b *TailBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.contents)) < b.total
}

// Text returns the retained output with ANSI escape codes removed and
// surrounding whitespace trimmed. Truncated output is marked.
func (b *TailBuffer) Text() string {
	text := strings.TrimSpace(stripansi.Strip(string(b.Bytes())))
	if text != "" && b.Truncated() {
		text = "...(truncated)...\n" + text
	}
	return text
}
