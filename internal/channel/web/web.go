// Package web implements a browser chat channel over WebSocket. Every
// connection is one private chat; the gateway mounts the handler.
package web

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/cupid/internal/config"
	"github.com/soyeahso/cupid/internal/domain"
	"github.com/soyeahso/cupid/internal/logging"
)

// Frame types exchanged with the browser.
const (
	FrameHello   = "hello"   // server -> client, carries the chat id
	FrameMessage = "message" // both directions
	FrameTyping  = "typing"  // server -> client
	FrameError   = "error"   // server -> client
)

const (
	defaultMaxUpload = 5 << 20
	writeTimeout     = 10 * time.Second
)

var (
	ErrChatGone        = errors.New("web chat is not connected")
	ErrMediaNotFound   = errors.New("uploaded image not found")
	errUploadTooLarge  = errors.New("image exceeds the upload limit")
	errUnreadableImage = errors.New("image is not valid base64")
)

// Frame is the JSON envelope for every WebSocket message.
type Frame struct {
	Type    string `json:"type"`
	ChatID  string `json:"chatId,omitempty"`
	Text    string `json:"text,omitempty"`
	Caption string `json:"caption,omitempty"`
	Image   string `json:"image,omitempty"` // base64 or data URI, client -> server only
	Format  string `json:"format,omitempty"`
}

// Channel implements domain.Channel, domain.MediaSource,
// domain.TypingNotifier and domain.DisconnectNotifier for browser chats.
type Channel struct {
	cfg      config.WebConfig
	upgrader websocket.Upgrader
	log      *logging.Logger

	mu         sync.RWMutex
	handler    func(msg domain.InboundMessage)
	disconnect func(chatID string)
	chats      map[string]*chat
	uploads    map[string][]byte
	running    bool
}

// chat is one browser connection. Writes are serialized.
type chat struct {
	id   string
	name string
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func (c *chat) write(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChatGone
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(f)
}

func (c *chat) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
	c.conn.Close()
}

// New creates a web channel. allowedOrigins lists browser origins that may
// connect; requests without an Origin header are always accepted.
func New(cfg config.WebConfig, allowedOrigins []string, log *logging.Logger) *Channel {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	return &Channel{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		log:     log.Sub("web"),
		chats:   make(map[string]*chat),
		uploads: make(map[string][]byte),
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

func (c *Channel) ID() string { return "web" }

func (c *Channel) Capabilities() domain.ChannelCapabilities {
	return domain.ChannelCapabilities{
		ChatTypes: []domain.ChatType{domain.ChatTypeDM},
		Media:     true,
		Markdown:  true,
		Typing:    true,
	}
}

func (c *Channel) OnMessage(handler func(msg domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// OnDisconnect registers a handler called when a browser closes its chat.
// Chats closed by Stop or shutdown are not reported.
func (c *Channel) OnDisconnect(handler func(chatID string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnect = handler
}

// Status returns the current runtime status.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: "web",
		Connected: c.running,
		Running:   c.running,
	}
}

// Chats returns the number of open browser chats.
func (c *Channel) Chats() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chats)
}

// Start marks the channel running and blocks until ctx is cancelled.
// Connections arrive through ServeHTTP.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	<-ctx.Done()
	c.closeAll()
	return ctx.Err()
}

// Stop closes every open chat.
func (c *Channel) Stop(_ context.Context) error {
	c.closeAll()
	return nil
}

func (c *Channel) closeAll() {
	c.mu.Lock()
	chats := make([]*chat, 0, len(c.chats))
	for id, ch := range c.chats {
		chats = append(chats, ch)
		delete(c.chats, id)
	}
	c.uploads = make(map[string][]byte)
	c.running = false
	c.mu.Unlock()

	for _, ch := range chats {
		ch.close()
	}
}

// ServeHTTP upgrades the request and runs the chat until the browser leaves.
// The optional name query parameter is how cupid addresses the user.
func (c *Channel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	// base64 inflates uploads by a third.
	conn.SetReadLimit(c.cfg.MaxUploadBytes*4/3 + 64<<10)

	ch := &chat{
		id:   uuid.New().String(),
		name: strings.TrimSpace(r.URL.Query().Get("name")),
		conn: conn,
	}
	c.mu.Lock()
	c.chats[ch.id] = ch
	c.mu.Unlock()

	c.log.Info().Str("chatId", ch.id).Str("remote", r.RemoteAddr).Msg("web chat opened")
	defer func() {
		c.mu.Lock()
		_, open := c.chats[ch.id]
		delete(c.chats, ch.id)
		disconnect := c.disconnect
		c.mu.Unlock()
		ch.close()
		c.log.Info().Str("chatId", ch.id).Msg("web chat closed")
		if open && disconnect != nil {
			disconnect(ch.id)
		}
	}()

	if err := ch.write(Frame{Type: FrameHello, ChatID: ch.id}); err != nil {
		return
	}
	c.readLoop(ch)
}

func (c *Channel) readLoop(ch *chat) {
	for {
		var f Frame
		if err := ch.conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Err(err).Str("chatId", ch.id).Msg("read error")
			}
			return
		}
		if f.Type != FrameMessage {
			continue
		}

		msg, err := c.inbound(ch, f)
		if err != nil {
			ch.write(Frame{Type: FrameError, Text: err.Error()})
			continue
		}

		c.mu.RLock()
		handler := c.handler
		c.mu.RUnlock()
		if handler != nil {
			handler(msg)
		}
	}
}

// inbound converts a browser frame, storing an attached image for Download.
func (c *Channel) inbound(ch *chat, f Frame) (domain.InboundMessage, error) {
	msg := domain.InboundMessage{
		ID:        uuid.New().String(),
		ChannelID: "web",
		From:      ch.id,
		FromName:  ch.name,
		ChatID:    ch.id,
		ChatType:  domain.ChatTypeDM,
		Body:      f.Text,
		Caption:   f.Caption,
		Timestamp: time.Now(),
	}
	if f.Image == "" {
		return msg, nil
	}

	data, err := decodeImage(f.Image)
	if err != nil {
		return msg, err
	}
	if int64(len(data)) > c.cfg.MaxUploadBytes {
		return msg, errUploadTooLarge
	}

	ref := uuid.New().String()
	c.mu.Lock()
	c.uploads[ref] = data
	c.mu.Unlock()

	msg.Media = []domain.Attachment{{
		ID:       ref,
		Kind:     domain.MediaPhoto,
		MimeType: http.DetectContentType(data),
		Size:     int64(len(data)),
	}}
	return msg, nil
}

func decodeImage(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, errUnreadableImage
		}
		s = s[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(data) == 0 {
		return nil, errUnreadableImage
	}
	return data, nil
}

// Send writes a message frame to the chat named by msg.To.
func (c *Channel) Send(_ context.Context, msg domain.OutboundMessage) error {
	ch, ok := c.lookup(msg.To)
	if !ok {
		return fmt.Errorf("%w: %s", ErrChatGone, msg.To)
	}
	return ch.write(Frame{Type: FrameMessage, Text: msg.Body, Format: string(msg.Format)})
}

// SendTyping writes a typing frame.
func (c *Channel) SendTyping(_ context.Context, to string) error {
	ch, ok := c.lookup(to)
	if !ok {
		return fmt.Errorf("%w: %s", ErrChatGone, to)
	}
	return ch.write(Frame{Type: FrameTyping})
}

// Download writes an uploaded image to a temp file. Each upload can be
// downloaded once.
func (c *Channel) Download(_ context.Context, ref string) (string, error) {
	c.mu.Lock()
	data, ok := c.uploads[ref]
	delete(c.uploads, ref)
	c.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMediaNotFound, ref)
	}

	f, err := os.CreateTemp("", "cupid-web-*")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (c *Channel) lookup(id string) (*chat, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.chats[id]
	return ch, ok
}
