package domain

import "time"

// ChatType classifies the conversation context.
type ChatType string

const (
	ChatTypeDM     ChatType = "dm"
	ChatTypeGroup  ChatType = "group"
	ChatTypeThread ChatType = "thread"
)

// MediaKind classifies an attachment.
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaVoice    MediaKind = "voice"
	MediaDocument MediaKind = "document"
)

// Format selects how a channel renders an outbound body.
type Format string

const (
	FormatPlain    Format = "plain"
	FormatMarkdown Format = "markdown"
)

// Attachment represents a file or media attachment on a message.
// For photos, ID is the channel-side reference a MediaSource can resolve.
type Attachment struct {
	ID       string    `json:"id,omitempty"`
	Kind     MediaKind `json:"kind,omitempty"`
	URL      string    `json:"url,omitempty"`
	MimeType string    `json:"mimeType,omitempty"`
	Filename string    `json:"filename,omitempty"`
	Size     int64     `json:"size,omitempty"`
	Width    int       `json:"width,omitempty"`
	Height   int       `json:"height,omitempty"`
}

// InboundMessage is a message received from a channel.
type InboundMessage struct {
	ID        string       `json:"id"`
	ChannelID string       `json:"channelId"`
	AccountID string       `json:"accountId,omitempty"`
	From      string       `json:"from"`
	FromName  string       `json:"fromName,omitempty"`
	ChatID    string       `json:"chatId"`
	ChatType  ChatType     `json:"chatType"`
	Body      string       `json:"body"`
	Caption   string       `json:"caption,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	ReplyToID string       `json:"replyToId,omitempty"`
	Media     []Attachment `json:"media,omitempty"`
	Raw       any          `json:"raw,omitempty"`
}

// PhotoRefs returns the references of all photo attachments in channel order.
// Channels that deliver several sizes of one picture list them smallest first.
func (m InboundMessage) PhotoRefs() []string {
	var refs []string
	for _, a := range m.Media {
		if a.Kind == MediaPhoto {
			refs = append(refs, a.ID)
		}
	}
	return refs
}

// HasVideo reports whether the message carries a video.
func (m InboundMessage) HasVideo() bool { return m.hasKind(MediaVideo) }

// HasVoice reports whether the message carries a voice note.
func (m InboundMessage) HasVoice() bool { return m.hasKind(MediaVoice) }

func (m InboundMessage) hasKind(k MediaKind) bool {
	for _, a := range m.Media {
		if a.Kind == k {
			return true
		}
	}
	return false
}

// OutboundMessage is a message to be sent via a channel.
type OutboundMessage struct {
	ChannelID string       `json:"channelId"`
	AccountID string       `json:"accountId,omitempty"`
	To        string       `json:"to"`
	Body      string       `json:"body"`
	Format    Format       `json:"format,omitempty"`
	ReplyToID string       `json:"replyToId,omitempty"`
	Media     []Attachment `json:"media,omitempty"`
}
