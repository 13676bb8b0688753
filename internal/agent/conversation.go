// Package agent runs the cupid conversation: it keeps the backend history,
// asks the backend to pick a response shape every turn, executes the shape
// and feeds buffered user input back as the shape's result.
package agent

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/cupid/internal/domain"
	"github.com/soyeahso/cupid/internal/llm"
	"github.com/soyeahso/cupid/internal/logging"
)

// DefaultTemperature is the sampling temperature for conversation turns.
const DefaultTemperature = 0.5

// Fixed context lines.
const (
	silenceToken        = "<silence>"
	videoFragment       = "User sent a video but you can't watch videos yet. Ask for a picture instead."
	voiceFragment       = "User sent a voice message but you can't listen to voice messages yet. Ask for a description instead."
	photoFailedFragment = "User sent a photo but it could not be processed. Ask them to send it again or describe it instead."
)

// Sender delivers one text to the conversation's user.
type Sender func(ctx context.Context, text string) error

// Typer shows a typing indicator to the conversation's user.
type Typer func(ctx context.Context) error

// IdeasFunc observes every delivered set of ideas.
type IdeasFunc func(ctx context.Context, ideas DeliverIdeas)

// ConversationConfig configures one conversation.
type ConversationConfig struct {
	UserName       string
	ChannelID      string
	AgentName      string
	ExtraPrompt    string
	Temperature    *float64
	MaxTokens      int
	MaxInputChars  int
	BackendTimeout time.Duration // zero waits forever
}

// Deps are the collaborators of a conversation.
type Deps struct {
	Backend    llm.Client
	Visionaire *Visionaire
	Send       Sender
	Typing     Typer     // optional
	OnIdeas    IdeasFunc // optional
	Log        *logging.Logger
}

// State is the per-turn session state. All real state lives in the history
// and the input buffer.
type State struct{}

// Result is what a finished conversation produces. Its value is the messages
// already sent.
type Result struct{}

// Conversation is one user's session with cupid.
type Conversation struct {
	cfg     ConversationConfig
	backend llm.Client
	vision  *Visionaire
	send    Sender
	typing  Typer
	onIdeas IdeasFunc
	log     *logging.Logger

	buffer  *InputBuffer
	system  string
	history []llm.Message // owned by the Run goroutine
	tasks   sync.WaitGroup
}

// NewConversation creates a conversation. Run must be called exactly once.
func NewConversation(cfg ConversationConfig, deps Deps) *Conversation {
	if cfg.Temperature == nil {
		t := DefaultTemperature
		cfg.Temperature = &t
	}
	return &Conversation{
		cfg:     cfg,
		backend: deps.Backend,
		vision:  deps.Visionaire,
		send:    deps.Send,
		typing:  deps.Typing,
		onIdeas: deps.OnIdeas,
		log:     deps.Log.Sub("conversation"),
		buffer:  NewInputBuffer(cfg.MaxInputChars),
		system: BuildSystemPrompt(PromptConfig{
			AgentName:   cfg.AgentName,
			ChannelID:   cfg.ChannelID,
			ExtraPrompt: cfg.ExtraPrompt,
		}),
	}
}

// Run consumes the initiating message and then loops over backend turns. It
// only returns on a backend or schema failure, or when ctx is cancelled.
func (c *Conversation) Run(ctx context.Context, initial domain.InboundMessage) (Result, error) {
	state, err := c.initialize(ctx, initial)
	if err != nil {
		return c.finalize(state), err
	}
	for {
		state, err = c.turn(ctx, state)
		if err != nil {
			return c.finalize(state), err
		}
	}
}

// Receive queues a later user message. It never blocks on the backend; photos
// are described in a background task whose result lands in the buffer.
func (c *Conversation) Receive(ctx context.Context, msg domain.InboundMessage) {
	appended := false

	if msg.Body != "" {
		c.buffer.Append(msg.Body)
		appended = true
	}
	if refs := msg.PhotoRefs(); len(refs) > 0 {
		c.describeAsync(ctx, refs, msg.Caption)
		appended = true
	}
	if msg.HasVideo() {
		c.buffer.Append(videoFragment)
		appended = true
	}
	if msg.HasVoice() {
		c.buffer.Append(voiceFragment)
		appended = true
	}
	if !appended {
		c.buffer.Append(silenceToken)
	}
}

// Wait blocks until every background photo task has finished.
func (c *Conversation) Wait() {
	c.tasks.Wait()
}

// Pending returns the number of buffered fragments.
func (c *Conversation) Pending() int {
	return c.buffer.Len()
}

func (c *Conversation) initialize(ctx context.Context, msg domain.InboundMessage) (State, error) {
	c.inject(fmt.Sprintf("User name is %q", c.cfg.UserName))
	if msg.Body != "" {
		c.inject("User says: " + msg.Body)
	}
	if refs := msg.PhotoRefs(); len(refs) > 0 {
		c.notifyTyping(ctx)
		desc, err := c.vision.Describe(ctx, refs)
		switch {
		case err == nil:
			c.inject(photoFragment(msg.Caption, desc))
		case ctx.Err() != nil:
			return State{}, ctx.Err()
		default:
			c.log.Error().Err(err).Int("refs", len(refs)).Msg("describing initial photo failed")
			c.inject(photoFailedFragment)
		}
	}
	if msg.HasVideo() {
		c.inject(videoFragment)
	}
	if msg.HasVoice() {
		c.inject(voiceFragment)
	}
	return State{}, nil
}

func (c *Conversation) turn(ctx context.Context, state State) (State, error) {
	start := time.Now()

	callCtx, cancel := c.backendContext(ctx)
	resp, err := c.backend.Complete(callCtx, llm.CompletionRequest{
		Purpose:     llm.PurposeChat,
		System:      c.system,
		Messages:    slices.Clone(c.history),
		Tools:       Definitions(),
		RequireTool: true,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return state, ctx.Err()
		}
		return state, &BackendInvocationError{Purpose: "turn", Err: err}
	}

	if len(resp.ToolCalls) == 0 {
		return state, &SchemaValidationError{Err: ErrNoShape}
	}
	if len(resp.ToolCalls) > 1 {
		c.log.Warn().Int("calls", len(resp.ToolCalls)).Msg("backend selected several shapes, executing the first")
	}
	call := resp.ToolCalls[0]

	intent, err := DecodeIntent(call)
	if err != nil {
		return state, err
	}

	c.history = append(c.history, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCall: &call})

	c.log.Debug().
		Str("shape", intent.Shape()).
		Str("model", resp.Model).
		Int("inputTokens", resp.Usage.InputTokens).
		Int("outputTokens", resp.Usage.OutputTokens).
		Dur("duration", time.Since(start)).
		Msg("turn")

	return c.execute(ctx, state, call, intent)
}

func (c *Conversation) execute(ctx context.Context, state State, call llm.ToolCall, intent Intent) (State, error) {
	switch v := intent.(type) {
	case AddressUser:
		c.deliver(ctx, v.Message)
	case DeliverIdeas:
		c.deliver(ctx, v.Prologue)
		for i, idea := range v.Ideas {
			c.deliver(ctx, FormatIdea(i, idea))
		}
		c.deliver(ctx, v.Epilogue)
		if c.onIdeas != nil {
			c.onIdeas(ctx, v)
		}
	}

	input, err := c.drain(ctx)
	if err != nil {
		return state, err
	}
	c.history = append(c.history, llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Content:    "User says:\n" + input,
	})
	return state, nil
}

func (c *Conversation) finalize(State) Result {
	return Result{}
}

// inject adds a user line straight to the history, bypassing the buffer.
func (c *Conversation) inject(text string) {
	c.history = append(c.history, llm.Message{Role: llm.RoleUser, Content: text})
}

// deliver sends text to the user. Delivery failures are logged only.
func (c *Conversation) deliver(ctx context.Context, text string) {
	if err := c.send(ctx, text); err != nil {
		c.log.Warn().Err(err).Msg("send failed")
	}
}

func (c *Conversation) drain(ctx context.Context) (string, error) {
	c.notifyTyping(ctx)
	return c.buffer.Drain(ctx)
}

func (c *Conversation) describeAsync(ctx context.Context, refs []string, caption string) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		c.notifyTyping(ctx)

		desc, err := c.vision.Describe(ctx, refs)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error().Err(err).Int("refs", len(refs)).Msg("describing photo failed")
			c.buffer.Append(photoFailedFragment)
			return
		}
		c.buffer.Append(photoFragment(caption, desc))
	}()
}

func (c *Conversation) notifyTyping(ctx context.Context) {
	if c.typing == nil {
		return
	}
	if err := c.typing(ctx); err != nil {
		c.log.Debug().Err(err).Msg("typing indicator failed")
	}
}

func (c *Conversation) backendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.BackendTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.BackendTimeout)
	}
	return context.WithCancel(ctx)
}

func photoFragment(caption, desc string) string {
	if caption != "" {
		return fmt.Sprintf("User sent a photos with a caption: %s, here's description of them done by the vision model: %s", caption, desc)
	}
	return "User sent a photos, here's description of them done by the vision model: " + desc
}
