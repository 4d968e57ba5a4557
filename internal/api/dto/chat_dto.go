package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// ChatMessageRequest is one customer utterance.
type ChatMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse carries the bot reply and any handoff outcome.
type ChatResponse struct {
	Response  string  `json:"response"`
	SessionID string  `json:"session_id"`
	TicketID  *string `json:"ticket_id"`
	Handoff   bool    `json:"handoff"`
}

// AssistRequest drafts a reply for an agent. Either a ticket id or a raw
// conversation transcript grounds the draft; query is optional.
type AssistRequest struct {
	TicketID            string `json:"ticket_id"`
	ConversationContext string `json:"conversation_context"`
	Query               string `json:"query"`
}

// ChatMessageResponse representation of a stored message.
type ChatMessageResponse struct {
	ID        string            `json:"id"`
	TicketID  *string           `json:"ticket_id"`
	UserID    *string           `json:"user_id"`
	SessionID string            `json:"session_id"`
	Sender    domain.ChatSender `json:"sender"`
	Text      string            `json:"text"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewChatMessageResponse maps a domain chat message.
func NewChatMessageResponse(msg *domain.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{
		ID:        msg.ID,
		TicketID:  msg.TicketID,
		UserID:    msg.UserID,
		SessionID: msg.SessionID,
		Sender:    msg.Sender,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
	}
}
