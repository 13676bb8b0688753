// Package routing connects messaging channels to cupid conversations. It owns
// the session table: one conversation per private chat.
package routing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/cupid/internal/agent"
	"github.com/soyeahso/cupid/internal/channel"
	"github.com/soyeahso/cupid/internal/domain"
	"github.com/soyeahso/cupid/internal/hooks"
	"github.com/soyeahso/cupid/internal/llm"
	"github.com/soyeahso/cupid/internal/logging"
)

// DefaultApology is sent once when a conversation fails.
const DefaultApology = "Sorry, I'm not available right now."

// ReasonDisconnected is the end reason for a chat its channel reported gone.
const ReasonDisconnected = "disconnected"

var errSessionEnded = errors.New("session ended")

// Ledger records session bookkeeping.
type Ledger interface {
	Start(s domain.SessionSummary) error
	Touch(id string, userMessages, botMessages int, at time.Time) error
	End(id, reason string) error
}

// NotesArchive stores delivered note ideas.
type NotesArchive interface {
	Save(notes []domain.Note) error
}

// Options configures the router.
type Options struct {
	Agent           agent.ConversationConfig // per-session fields are filled in by the router
	VisionMaxTokens int
	Apology         string
	Ledger          Ledger       // optional
	Notes           NotesArchive // optional
	Hooks           *hooks.Manager
}

// Router routes inbound messages to conversations and their output back to
// the originating channel.
type Router struct {
	channels *channel.Registry
	backend  llm.Client
	opts     Options
	log      *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	running  sync.WaitGroup
}

// NewRouter creates a message router.
func NewRouter(channels *channel.Registry, backend llm.Client, opts Options, log *logging.Logger) *Router {
	if opts.Apology == "" {
		opts.Apology = DefaultApology
	}
	return &Router{
		channels: channels,
		backend:  backend,
		opts:     opts,
		log:      log.Sub("routing"),
		sessions: make(map[string]*Session),
	}
}

// HandleInbound processes an inbound message from any channel. The first
// message from a private chat starts its conversation; later messages are
// queued on it. Messages for ended sessions are dropped.
func (r *Router) HandleInbound(ctx context.Context, msg domain.InboundMessage) {
	if msg.ChatType != domain.ChatTypeDM {
		r.log.Debug().
			Str("channel", msg.ChannelID).
			Str("chatId", msg.ChatID).
			Str("chatType", string(msg.ChatType)).
			Msg("ignoring non-private message")
		return
	}

	ch, ok := r.channels.Get(msg.ChannelID)
	if !ok {
		r.log.Error().Str("channel", msg.ChannelID).Msg("channel not found for inbound message")
		return
	}

	key := ResolveSessionKey(msg)
	now := time.Now()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}

	r.mu.Lock()
	sess, exists := r.sessions[key.String()]
	if !exists {
		sess = r.newSession(ctx, ch, key, msg)
		r.sessions[key.String()] = sess
	}
	r.mu.Unlock()

	r.typing(ctx, ch, sess.replyTo)

	if !exists {
		r.start(ctx, sess, msg)
	} else if sess.userMessage(msg.Timestamp) {
		sess.conv.Receive(sess.ctx, msg)
		r.touch(sess)
	}

	r.emit(ctx, hooks.EventMessageReceived, map[string]any{
		"sessionId": sess.ID,
		"channel":   msg.ChannelID,
		"chatId":    msg.ChatID,
		"body":      msg.Body,
		"media":     len(msg.Media),
	})

	s := sess.Summary()
	r.log.Info().
		Str("channel", msg.ChannelID).
		Str("chatId", msg.ChatID).
		Str("from", msg.FromName).
		Time("startedAt", s.StartedAt).
		Time("lastMessageAt", s.LastMessageAt).
		Int("userMessages", s.UserMessages).
		Int("botMessages", s.BotMessages).
		Bool("ended", s.Ended).
		Msg("inbound message")
}

func (r *Router) newSession(ctx context.Context, ch domain.Channel, key domain.SessionKey, msg domain.InboundMessage) *Session {
	sctx, cancel := context.WithCancel(ctx)
	sess := &Session{
		ctx:          sctx,
		cancel:       cancel,
		ID:           uuid.New().String(),
		Key:          key,
		DisplayName:  displayName(msg),
		replyTo:      replyTarget(msg),
		startedAt:    msg.Timestamp,
		lastAt:       msg.Timestamp,
		userMessages: 1,
	}

	source, _ := ch.(domain.MediaSource)
	cfg := r.opts.Agent
	cfg.UserName = sess.DisplayName
	cfg.ChannelID = key.ChannelID

	var typing agent.Typer
	if tn, ok := ch.(domain.TypingNotifier); ok {
		typing = func(ctx context.Context) error { return tn.SendTyping(ctx, sess.replyTo) }
	}

	sess.conv = agent.NewConversation(cfg, agent.Deps{
		Backend:    r.backend,
		Visionaire: agent.NewVisionaire(r.backend, source, r.opts.VisionMaxTokens, r.log),
		Send:       r.sender(ch, sess),
		Typing:     typing,
		OnIdeas:    r.archiver(sess),
		Log:        r.log.With("session", sess.ID),
	})
	return sess
}

// start records the session and runs its conversation in the background.
func (r *Router) start(ctx context.Context, sess *Session, initial domain.InboundMessage) {
	if r.opts.Ledger != nil {
		if err := r.opts.Ledger.Start(sess.Summary()); err != nil {
			r.log.Warn().Err(err).Str("session", sess.ID).Msg("ledger start failed")
		}
	}
	r.emit(ctx, hooks.EventSessionStart, map[string]any{
		"sessionId":   sess.ID,
		"key":         sess.Key.String(),
		"displayName": sess.DisplayName,
	})

	r.running.Add(1)
	go func() {
		defer r.running.Done()
		defer sess.conv.Wait()
		defer sess.cancel()
		_, err := sess.conv.Run(sess.ctx, initial)

		switch {
		case ctx.Err() != nil:
			r.finish(context.WithoutCancel(ctx), sess, "shutdown", nil)
			return
		case sess.ctx.Err() != nil:
			// Ended through End.
			return
		}
		r.log.Error().Err(err).
			Str("session", sess.ID).
			Str("key", sess.Key.String()).
			Msg("conversation ended")
		r.finish(ctx, sess, reasonFor(err), err)
	}()
}

// End stops the conversation for key without an apology. It reports
// whether a live session was ended.
func (r *Router) End(ctx context.Context, key domain.SessionKey, reason string) bool {
	sess, ok := r.Session(key)
	if !ok {
		return false
	}
	ended := r.finish(ctx, sess, reason, nil)
	sess.cancel()
	if ended {
		r.log.Info().Str("session", sess.ID).Str("key", key.String()).Str("reason", reason).Msg("session ended")
	}
	return ended
}

// finish ends the session once. A failure also sends the apology.
func (r *Router) finish(ctx context.Context, sess *Session, reason string, cause error) bool {
	if !sess.end(reason) {
		return false
	}

	if cause != nil {
		if ch, ok := r.channels.Get(sess.Key.ChannelID); ok {
			err := ch.Send(ctx, domain.OutboundMessage{
				ChannelID: sess.Key.ChannelID,
				AccountID: sess.Key.AccountID,
				To:        sess.replyTo,
				Body:      r.opts.Apology,
				Format:    domain.FormatPlain,
			})
			if err != nil {
				r.log.Error().Err(err).Str("session", sess.ID).Msg("failed to send apology")
			}
		}
	}

	if r.opts.Ledger != nil {
		r.touch(sess)
		if err := r.opts.Ledger.End(sess.ID, reason); err != nil {
			r.log.Warn().Err(err).Str("session", sess.ID).Msg("ledger end failed")
		}
	}
	data := map[string]any{"sessionId": sess.ID, "key": sess.Key.String(), "reason": reason}
	if cause != nil {
		data["error"] = cause.Error()
	}
	r.emit(ctx, hooks.EventSessionEnd, data)
	return true
}

// sender binds the outbound capability to one chat. Sends stop once the
// session has ended.
func (r *Router) sender(ch domain.Channel, sess *Session) agent.Sender {
	return func(ctx context.Context, text string) error {
		if sess.Ended() {
			return errSessionEnded
		}
		out := domain.OutboundMessage{
			ChannelID: sess.Key.ChannelID,
			AccountID: sess.Key.AccountID,
			To:        sess.replyTo,
			Body:      text,
			Format:    domain.FormatMarkdown,
		}
		r.emit(ctx, hooks.EventMessageSending, map[string]any{"sessionId": sess.ID, "body": text})
		if err := ch.Send(ctx, out); err != nil {
			return fmt.Errorf("sending to %s: %w", sess.Key, err)
		}
		sess.botMessage(time.Now())
		r.touch(sess)
		return nil
	}
}

// archiver stores delivered ideas and announces them.
func (r *Router) archiver(sess *Session) agent.IdeasFunc {
	return func(ctx context.Context, ideas agent.DeliverIdeas) {
		if r.opts.Notes != nil {
			now := time.Now()
			notes := make([]domain.Note, 0, len(ideas.Ideas))
			for i, idea := range ideas.Ideas {
				notes = append(notes, domain.Note{
					SessionID: sess.ID,
					ChatKey:   sess.Key.String(),
					Position:  i + 1,
					Text:      idea.Note,
					Signature: idea.Signature,
					CreatedAt: now,
				})
			}
			if err := r.opts.Notes.Save(notes); err != nil {
				r.log.Warn().Err(err).Str("session", sess.ID).Msg("archiving notes failed")
			}
		}
		r.emit(ctx, hooks.EventIdeasDelivered, map[string]any{
			"sessionId": sess.ID,
			"count":     len(ideas.Ideas),
			"prologue":  ideas.Prologue,
			"epilogue":  ideas.Epilogue,
		})
	}
}

func (r *Router) touch(sess *Session) {
	if r.opts.Ledger == nil {
		return
	}
	s := sess.Summary()
	if err := r.opts.Ledger.Touch(s.ID, s.UserMessages, s.BotMessages, s.LastMessageAt); err != nil {
		r.log.Warn().Err(err).Str("session", s.ID).Msg("ledger update failed")
	}
}

func (r *Router) typing(ctx context.Context, ch domain.Channel, to string) {
	tn, ok := ch.(domain.TypingNotifier)
	if !ok {
		return
	}
	if err := tn.SendTyping(ctx, to); err != nil {
		r.log.Debug().Err(err).Str("channel", ch.ID()).Msg("typing indicator failed")
	}
}

func (r *Router) emit(ctx context.Context, event string, data map[string]any) {
	if r.opts.Hooks != nil {
		r.opts.Hooks.EmitAsync(ctx, event, data)
	}
}

// Wire registers the router's HandleInbound as the message handler on all
// channels, and ends the session of any chat a channel reports gone. ctx
// bounds every conversation started through them.
func (r *Router) Wire(ctx context.Context) {
	for _, id := range r.channels.List() {
		ch, ok := r.channels.Get(id)
		if !ok {
			continue
		}
		ch.OnMessage(func(msg domain.InboundMessage) {
			r.HandleInbound(ctx, msg)
		})
		if dn, ok := ch.(domain.DisconnectNotifier); ok {
			chID := id
			dn.OnDisconnect(func(chatID string) {
				r.End(ctx, domain.SessionKey{ChannelID: chID, ChatID: chatID}, ReasonDisconnected)
			})
		}
		r.log.Debug().Str("channel", id).Msg("wired message handler")
	}
}

// Wait blocks until every conversation goroutine has returned.
func (r *Router) Wait() {
	r.running.Wait()
}

// Session returns the session for a key, if any.
func (r *Router) Session(key domain.SessionKey) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[key.String()]
	return s, ok
}

// Sessions returns a snapshot of every session, oldest first.
func (r *Router) Sessions() []domain.SessionSummary {
	r.mu.RLock()
	out := make([]domain.SessionSummary, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Summary())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Active returns the number of sessions that have not ended.
func (r *Router) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.sessions {
		if !s.Ended() {
			n++
		}
	}
	return n
}

func reasonFor(err error) string {
	switch {
	case agent.IsBackendError(err):
		return "backend error"
	case agent.IsSchemaError(err):
		return "invalid backend answer"
	default:
		return "error"
	}
}
