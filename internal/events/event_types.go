package events

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated        EventType = "ticket_created"
	EventTicketStatusChanged  EventType = "ticket_status_changed"
	EventTicketAssigned       EventType = "ticket_assigned"
	EventTicketNoteAdded      EventType = "ticket_note_added"
	EventChatHandoff          EventType = "chat_handoff"
	EventKnowledgeItemIndexed EventType = "knowledge_item_indexed"
)

// Actor encapsulates actor metadata for an event. UserID is nil for
// bot-initiated actions.
type Actor struct {
	UserID *string          `json:"user_id,omitempty"`
	Role   *domain.UserRole `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TenantID  string      `json:"tenant_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketID string                `json:"ticket_id"`
	Subject  string                `json:"subject"`
	Priority domain.TicketPriority `json:"priority"`
	Category string                `json:"category"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	TicketID  string              `json:"ticket_id"`
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TicketID string  `json:"ticket_id"`
	AgentID  *string `json:"agent_id,omitempty"`
}

// TicketNoteAddedPayload payload.
type TicketNoteAddedPayload struct {
	TicketID    string            `json:"ticket_id"`
	MessageID   string            `json:"message_id"`
	Sender      domain.ChatSender `json:"sender"`
	BodyPreview string            `json:"body_preview"`
}

// ChatHandoffPayload payload.
type ChatHandoffPayload struct {
	TicketID     string `json:"ticket_id"`
	SessionID    string `json:"session_id"`
	ReusedTicket bool   `json:"reused_ticket"`
}

// KnowledgeItemIndexedPayload payload.
type KnowledgeItemIndexedPayload struct {
	ItemID   string `json:"item_id"`
	VectorID string `json:"vector_id"`
	Title    string `json:"title"`
}
