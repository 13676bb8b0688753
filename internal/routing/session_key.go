package routing

import "github.com/soyeahso/cupid/internal/domain"

// ResolveSessionKey builds the session key for a private chat. One chat
// identity has at most one session.
func ResolveSessionKey(msg domain.InboundMessage) domain.SessionKey {
	return domain.SessionKey{
		ChannelID: msg.ChannelID,
		AccountID: msg.AccountID,
		ChatID:    msg.ChatID,
	}
}

// replyTarget determines where to send the response.
func replyTarget(msg domain.InboundMessage) string {
	switch msg.ChatType {
	case domain.ChatTypeDM:
		if msg.From != "" {
			return msg.From
		}
		return msg.ChatID
	default:
		return msg.ChatID
	}
}

// displayName is the name the conversation addresses the user by.
func displayName(msg domain.InboundMessage) string {
	if msg.FromName != "" {
		return msg.FromName
	}
	return "stranger"
}
