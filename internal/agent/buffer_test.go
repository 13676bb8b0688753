package agent

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputBufferDrainJoinsInOrder(t *testing.T) {
	b := NewInputBuffer(0)
	b.Append("hello")
	b.Append("<silence>")
	assert.Equal(t, 2, b.Len())

	text, err := b.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello\n<silence>", text)
	assert.Zero(t, b.Len())
}

func TestInputBufferDrainWaitsForAppend(t *testing.T) {
	b := NewInputBuffer(0)
	done := make(chan string, 1)

	go func() {
		text, _ := b.Drain(context.Background())
		done <- text
	}()

	select {
	case <-done:
		t.Fatal("drain returned before any append")
	case <-time.After(50 * time.Millisecond):
	}

	b.Append("late")
	select {
	case text := <-done:
		assert.Equal(t, "late", text)
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not return after append")
	}
}

func TestInputBufferDrainCancelled(t *testing.T) {
	b := NewInputBuffer(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Drain(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInputBufferTruncation(t *testing.T) {
	b := NewInputBuffer(10)
	b.Append("0123456")
	b.Append("789abc")

	text, err := b.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0123456\n78"+TruncationMarker, text)
	assert.NotContains(t, text, "9abc")
}

func TestInputBufferTruncationCountsRunes(t *testing.T) {
	b := NewInputBuffer(3)
	b.Append("💘💘💘💘")

	text, err := b.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "💘💘💘"+TruncationMarker, text)
}

func TestInputBufferDefaultLimit(t *testing.T) {
	b := NewInputBuffer(0)
	b.Append(strings.Repeat("a", DefaultMaxInputChars))
	text, err := b.Drain(context.Background())
	require.NoError(t, err)
	assert.Len(t, text, DefaultMaxInputChars)

	b.Append(strings.Repeat("a", DefaultMaxInputChars+1))
	text, err = b.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", DefaultMaxInputChars)+TruncationMarker, text)
}

func TestInputBufferConcurrentAppends(t *testing.T) {
	b := NewInputBuffer(1 << 20)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Append("x")
		}()
	}

	var got []string
	deadline := time.After(2 * time.Second)
	for len(got) < 50 {
		text, err := b.Drain(context.Background())
		require.NoError(t, err)
		got = append(got, strings.Split(text, "\n")...)
		select {
		case <-deadline:
			t.Fatal("fragments lost")
		default:
		}
	}
	wg.Wait()
	assert.Len(t, got, 50)
	assert.Zero(t, b.Len())
}
