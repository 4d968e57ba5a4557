package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateTicketRequest payload. Category and priority are optional and are
// suggested automatically when absent.
type CreateTicketRequest struct {
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateTicketRequest is the staff edit payload. Omitted fields are left
// untouched; unassign clears the agent.
type UpdateTicketRequest struct {
	Subject  *string                `json:"subject"`
	Status   *domain.TicketStatus   `json:"status"`
	Priority *domain.TicketPriority `json:"priority"`
	Category *string                `json:"category"`
	AgentID  *string                `json:"agent_id"`
	Unassign bool                   `json:"unassign"`
}

// AddNoteRequest payload.
type AddNoteRequest struct {
	Text string `json:"text"`
}

// TicketSummary response.
type TicketSummary struct {
	ID        string                `json:"id"`
	AgentID   *string               `json:"agent_id"`
	Subject   string                `json:"subject"`
	Status    domain.TicketStatus   `json:"status"`
	Priority  domain.TicketPriority `json:"priority"`
	Category  string                `json:"category"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info with its conversation.
type TicketDetailResponse struct {
	ID             string                `json:"id"`
	CustomerID     string                `json:"customer_id"`
	AgentID        *string               `json:"agent_id"`
	Subject        string                `json:"subject"`
	Description    string                `json:"description"`
	Status         domain.TicketStatus   `json:"status"`
	Priority       domain.TicketPriority `json:"priority"`
	Category       string                `json:"category"`
	ChatSessionRef string                `json:"chat_session_ref,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	Messages       []ChatMessageResponse `json:"messages"`
}

// SuggestionResponse is a drafted agent reply.
type SuggestionResponse struct {
	Suggestion   string `json:"suggestion"`
	SnippetCount int    `json:"snippet_count"`
}

// NewTicketSummary maps a domain ticket.
func NewTicketSummary(ticket *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:        ticket.ID,
		AgentID:   ticket.AgentID,
		Subject:   ticket.Subject,
		Status:    ticket.Status,
		Priority:  ticket.Priority,
		Category:  ticket.Category,
		CreatedAt: ticket.CreatedAt,
		UpdatedAt: ticket.UpdatedAt,
	}
}

// NewTicketDetail maps a ticket with its messages.
func NewTicketDetail(ticket *domain.Ticket, messages []domain.ChatMessage) TicketDetailResponse {
	msgs := make([]ChatMessageResponse, 0, len(messages))
	for i := range messages {
		msgs = append(msgs, NewChatMessageResponse(&messages[i]))
	}
	return TicketDetailResponse{
		ID:             ticket.ID,
		CustomerID:     ticket.CustomerID,
		AgentID:        ticket.AgentID,
		Subject:        ticket.Subject,
		Description:    ticket.Description,
		Status:         ticket.Status,
		Priority:       ticket.Priority,
		Category:       ticket.Category,
		ChatSessionRef: ticket.ChatSessionRef,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
		Messages:       msgs,
	}
}
