package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets. Values are stored as
// written, matching what the triage parser and note transitions produce.
type TicketStatus string

const (
	TicketStatusOpen            TicketStatus = "Open"
	TicketStatusInProgress      TicketStatus = "In Progress"
	TicketStatusPendingCustomer TicketStatus = "Pending Customer"
	TicketStatusResolved        TicketStatus = "Resolved"
	TicketStatusClosed          TicketStatus = "Closed"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
	TicketPriorityUrgent TicketPriority = "Urgent"
)

// IsTerminal reports whether the status ends a ticket's life for handoff
// purposes: terminal tickets are never reused by new chat handoffs.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusClosed || s == TicketStatusResolved
}

// KnownStatus reports whether s is one of the accepted status values.
func KnownStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusPendingCustomer,
		TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// KnownPriority reports whether p is one of the accepted priority values.
func KnownPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. A ticket belongs to exactly
// one tenant and one customer; the agent assignment is optional.
type Ticket struct {
	ID             string
	TenantID       string
	CustomerID     string
	AgentID        *string
	Subject        string
	Description    string
	Status         TicketStatus
	Priority       TicketPriority
	Category       string
	ChatSessionRef string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
