package domain

import "time"

// ChatSender indicates who authored a chat message.
type ChatSender string

const (
	SenderCustomer ChatSender = "customer"
	SenderAgent    ChatSender = "agent"
	SenderBot      ChatSender = "bot"
)

// ChatMessage is one utterance in a conversation. SessionID groups messages
// into a conversation; TicketID is set once the session is handed off.
// UserID is nil for bot-authored messages.
type ChatMessage struct {
	ID        string
	TenantID  string
	TicketID  *string
	UserID    *string
	SessionID string
	Sender    ChatSender
	Text      string
	CreatedAt time.Time
}
