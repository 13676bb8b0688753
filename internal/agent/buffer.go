package agent

import (
	"context"
	"strings"
	"sync"
)

// DefaultMaxInputChars bounds the text one drain hands to the backend.
const DefaultMaxInputChars = 1000

// TruncationMarker is appended to drained text that was cut short.
const TruncationMarker = "... (the rest is omitted, try to work with what you have and don't mention the omission in your response)"

// InputBuffer collects user fragments that arrive while the backend is busy.
// Append never blocks; Drain blocks until at least one fragment is pending.
type InputBuffer struct {
	mu        sync.Mutex
	fragments []string
	notify    chan struct{}
	maxChars  int
}

// NewInputBuffer creates a buffer that truncates drained text to maxChars
// runes. A non-positive maxChars uses DefaultMaxInputChars.
func NewInputBuffer(maxChars int) *InputBuffer {
	if maxChars <= 0 {
		maxChars = DefaultMaxInputChars
	}
	return &InputBuffer{
		notify:   make(chan struct{}, 1),
		maxChars: maxChars,
	}
}

// Append adds one fragment to the tail.
func (b *InputBuffer) Append(fragment string) {
	b.mu.Lock()
	b.fragments = append(b.fragments, fragment)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of pending fragments.
func (b *InputBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.fragments)
}

// Drain takes every pending fragment, joined by newlines, and empties the
// buffer. It waits for an Append when the buffer is empty. The only way to
// stop the wait is to cancel ctx.
func (b *InputBuffer) Drain(ctx context.Context) (string, error) {
	for {
		if text, ok := b.take(); ok {
			return b.truncate(text), nil
		}
		select {
		case <-b.notify:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (b *InputBuffer) take() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.fragments) == 0 {
		return "", false
	}
	text := strings.Join(b.fragments, "\n")
	b.fragments = nil
	return text, true
}

func (b *InputBuffer) truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= b.maxChars {
		return text
	}
	return string(runes[:b.maxChars]) + TruncationMarker
}
