package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/cupid/internal/config"
)

// DefaultCommandTimeout bounds a command hook without its own timeout.
const DefaultCommandTimeout = 10 * time.Second

// CommandHandler returns a Handler that runs entry.Command through the shell
// with the JSON payload on stdin and the event name in CUPID_EVENT.
func CommandHandler(entry config.HookEntry) Handler {
	timeout := DefaultCommandTimeout
	if entry.Timeout > 0 {
		timeout = time.Duration(entry.Timeout) * time.Millisecond
	}
	return func(ctx context.Context, p Payload) error {
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding hook payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", entry.Command)
		cmd.Stdin = bytes.NewReader(payload)
		cmd.Env = append(os.Environ(), "CUPID_EVENT="+p.Event)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("hook command %q: %w: %s", entry.Command, err, msg)
			}
			return fmt.Errorf("hook command %q: %w", entry.Command, err)
		}
		return nil
	}
}

// RegisterConfig registers every configured command hook. Commands run
// asynchronously when emitted with EmitAsync.
func (m *Manager) RegisterConfig(cfg config.HooksConfig) int {
	groups := []struct {
		event   string
		entries []config.HookEntry
	}{
		{EventSessionStart, cfg.SessionStart},
		{EventSessionEnd, cfg.SessionEnd},
		{EventMessageReceived, cfg.MessageReceived},
		{EventMessageSending, cfg.MessageSending},
		{EventIdeasDelivered, cfg.IdeasDelivered},
	}

	n := 0
	for _, g := range groups {
		for i, entry := range g.entries {
			if strings.TrimSpace(entry.Command) == "" {
				continue
			}
			m.On(g.event, fmt.Sprintf("config.%s[%d]", g.event, i), CommandHandler(entry))
			n++
		}
	}
	return n
}
