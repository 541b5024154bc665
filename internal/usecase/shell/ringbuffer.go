package shell

import (
	"strings"
	"sync"
)

// lineBuffer is a thread-safe, bounded accumulator for command output
// lines. When the byte capacity is exceeded the oldest lines are dropped,
// so a chatty command cannot grow a session's memory without bound.
type lineBuffer struct {
	mu    sync.Mutex
	lines []string
	size  int
	max   int
}

func newLineBuffer(maxBytes int) *lineBuffer {
	return &lineBuffer{max: maxBytes}
}

// Append adds one line, evicting from the front when over capacity.
func (b *lineBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines = append(b.lines, line)
	b.size += len(line) + 1
	for b.size > b.max && len(b.lines) > 1 {
		b.size -= len(b.lines[0]) + 1
		b.lines = b.lines[1:]
	}
}

// String joins the buffered lines with newlines.
func (b *lineBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}

// Len returns the number of buffered lines.
func (b *lineBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}
