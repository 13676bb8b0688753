package domain

import "time"

// SessionKey uniquely identifies a conversation session.
type SessionKey struct {
	ChannelID string `json:"channelId"`
	AccountID string `json:"accountId,omitempty"`
	ChatID    string `json:"chatId"`
	SenderID  string `json:"senderId,omitempty"`
}

// String returns a canonical string form of the session key.
func (k SessionKey) String() string {
	s := k.ChannelID + ":" + k.ChatID
	if k.SenderID != "" {
		s += ":" + k.SenderID
	}
	return s
}

// SessionSummary is the observable bookkeeping of one conversation.
type SessionSummary struct {
	ID            string     `json:"id"`
	Key           SessionKey `json:"key"`
	DisplayName   string     `json:"displayName"`
	StartedAt     time.Time  `json:"startedAt"`
	LastMessageAt time.Time  `json:"lastMessageAt"`
	UserMessages  int        `json:"userMessages"`
	BotMessages   int        `json:"botMessages"`
	Ended         bool       `json:"ended"`
	EndReason     string     `json:"endReason,omitempty"`
}

// Note is one delivered valentine note idea.
type Note struct {
	ID        int64     `json:"id,omitempty"`
	SessionID string    `json:"sessionId"`
	ChatKey   string    `json:"chatKey"`
	Position  int       `json:"position"`
	Text      string    `json:"text"`
	Signature string    `json:"signature"`
	CreatedAt time.Time `json:"createdAt"`
}
