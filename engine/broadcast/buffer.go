package broadcast

import (
	"context"
	"sync"
)

// Buffer is a Channel that keeps delivered text until drained.
type Buffer struct {
	mu    sync.Mutex
	lines []string
}

// Deliver appends the message text and always accepts.
func (b *Buffer) Deliver(_ context.Context, m Message) (bool, error) {
	b.mu.Lock()
	b.lines = append(b.lines, m.Text)
	b.mu.Unlock()
	return true, nil
}

// Drain returns and clears the buffered lines.
func (b *Buffer) Drain() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.lines
	b.lines = nil
	return out
}

// Len returns the number of buffered lines.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}
