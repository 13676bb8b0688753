package domain

import "context"

// ChannelCapabilities describes what a channel implementation supports.
type ChannelCapabilities struct {
	ChatTypes []ChatType `json:"chatTypes"`
	Media     bool       `json:"media,omitempty"`
	Markdown  bool       `json:"markdown,omitempty"`
	Typing    bool       `json:"typing,omitempty"`
}

// ChannelStatus reports the runtime state of a channel.
type ChannelStatus struct {
	ChannelID string `json:"channelId"`
	AccountID string `json:"accountId,omitempty"`
	Connected bool   `json:"connected"`
	Running   bool   `json:"running"`
	LastError string `json:"lastError,omitempty"`
}

// Channel is the interface that all messaging channel implementations must satisfy.
type Channel interface {
	// ID returns the channel identifier (e.g., "telegram", "irc").
	ID() string

	// Capabilities returns what this channel supports.
	Capabilities() ChannelCapabilities

	// Start connects the channel and begins listening for messages.
	Start(ctx context.Context) error

	// Stop gracefully disconnects the channel.
	Stop(ctx context.Context) error

	// Send delivers an outbound message through this channel.
	Send(ctx context.Context, msg OutboundMessage) error

	// OnMessage registers a handler for inbound messages.
	OnMessage(handler func(msg InboundMessage))
}

// MediaSource is implemented by channels that can materialize a media
// reference as a local file. The caller owns the returned path and must
// remove it.
type MediaSource interface {
	Download(ctx context.Context, ref string) (string, error)
}

// TypingNotifier is implemented by channels that can show a typing indicator.
type TypingNotifier interface {
	SendTyping(ctx context.Context, chatID string) error
}

// DisconnectNotifier is implemented by channels whose chats can go away,
// such as a closed browser socket. The handler gets the chat id.
type DisconnectNotifier interface {
	OnDisconnect(handler func(chatID string))
}
