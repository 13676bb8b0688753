package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/soyeahso/cupid/internal/domain"
	"github.com/soyeahso/cupid/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

// mockChannel is a test double for domain.Channel. Start blocks until ctx is
// done unless startErr is set.
type mockChannel struct {
	id       string
	startErr error
	stopErr  error

	mu      sync.Mutex
	started bool
	stopped bool
	handler func(domain.InboundMessage)
}

func (m *mockChannel) ID() string { return m.id }
func (m *mockChannel) Capabilities() domain.ChannelCapabilities {
	return domain.ChannelCapabilities{
		ChatTypes: []domain.ChatType{domain.ChatTypeDM},
	}
}
func (m *mockChannel) Start(ctx context.Context) error {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	<-ctx.Done()
	return ctx.Err()
}
func (m *mockChannel) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return m.stopErr
}
func (m *mockChannel) Send(_ context.Context, _ domain.OutboundMessage) error { return nil }
func (m *mockChannel) OnMessage(handler func(domain.InboundMessage)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}
func (m *mockChannel) Status() domain.ChannelStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.ChannelStatus{
		ChannelID: m.id,
		Connected: m.started && !m.stopped,
		Running:   m.started && !m.stopped,
	}
}

func (m *mockChannel) isStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry(testLogger())
	ch := &mockChannel{id: "test"}
	reg.Register(ch)

	got, ok := reg.Get("test")
	require.True(t, ok)
	assert.Equal(t, "test", got.ID())

	_, ok = reg.Get("nonexistent")
	assert.False(t, ok)
}

func TestRegistry_List(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&mockChannel{id: "web"})
	reg.Register(&mockChannel{id: "telegram"})
	reg.Register(&mockChannel{id: "irc"})

	assert.Equal(t, []string{"irc", "telegram", "web"}, reg.List())
}

func TestRegistry_Count(t *testing.T) {
	reg := NewRegistry(testLogger())
	assert.Equal(t, 0, reg.Count())

	reg.Register(&mockChannel{id: "irc"})
	assert.Equal(t, 1, reg.Count())

	reg.Register(&mockChannel{id: "irc"})
	assert.Equal(t, 1, reg.Count(), "re-registering replaces")
}

func TestRegistry_Status(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&mockChannel{id: "telegram"})
	reg.Register(&mockChannel{id: "irc"})

	statuses := reg.Status()
	require.Len(t, statuses, 2)
	assert.Equal(t, "irc", statuses[0].ChannelID)
	assert.Equal(t, "telegram", statuses[1].ChannelID)
	assert.False(t, statuses[0].Running)
}

func TestRegistry_Run(t *testing.T) {
	reg := NewRegistry(testLogger())
	ch1 := &mockChannel{id: "irc"}
	ch2 := &mockChannel{id: "telegram"}
	reg.Register(ch1)
	reg.Register(ch2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx) }()

	assert.Eventually(t, ch1.isStarted, time.Second, 5*time.Millisecond)
	assert.Eventually(t, ch2.isStarted, time.Second, 5*time.Millisecond)

	select {
	case <-done:
		t.Fatal("Run returned before cancellation")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRegistry_Run_FailingChannelDoesNotStopOthers(t *testing.T) {
	reg := NewRegistry(testLogger())
	broken := &mockChannel{id: "broken", startErr: assert.AnError}
	healthy := &mockChannel{id: "web"}
	reg.Register(broken)
	reg.Register(healthy)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx) }()

	assert.Eventually(t, broken.isStarted, time.Second, 5*time.Millisecond)
	assert.Eventually(t, healthy.isStarted, time.Second, 5*time.Millisecond)
	assert.True(t, healthy.Status().Running)

	cancel()
	assert.NoError(t, <-done)
}

func TestRegistry_Run_Empty(t *testing.T) {
	reg := NewRegistry(testLogger())
	assert.NoError(t, reg.Run(context.Background()))
}

func TestRegistry_StopAll(t *testing.T) {
	reg := NewRegistry(testLogger())
	ch1 := &mockChannel{id: "irc"}
	ch2 := &mockChannel{id: "telegram", stopErr: assert.AnError}
	reg.Register(ch1)
	reg.Register(ch2)

	reg.StopAll(context.Background())
	assert.True(t, ch1.stopped)
	assert.True(t, ch2.stopped)
}
