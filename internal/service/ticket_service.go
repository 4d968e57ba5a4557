package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// Categorizer suggests category and priority for new tickets.
type Categorizer interface {
	Categorize(ctx context.Context, query string) TriageSuggestion
}

// TicketService coordinates ticket workflows for customers and staff.
type TicketService struct {
	tickets     repository.TicketRepository
	users       repository.UserRepository
	messages    repository.ChatMessageRepository
	categorizer Categorizer
	dispatcher  events.Dispatcher
}

// TicketDependencies bundles requirements for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	MessageRepo repository.ChatMessageRepository
	Categorizer Categorizer
	Dispatcher  events.Dispatcher
}

// TicketCreateInput describes a customer-created ticket. Category and
// Priority are optional; missing values are filled by LLM categorization.
type TicketCreateInput struct {
	Subject     string
	Description string
	Category    string
	Priority    domain.TicketPriority
}

// TicketUpdateInput describes a staff edit. Nil fields are untouched.
// AssignAgentID assigns the ticket; Unassign clears the assignment.
type TicketUpdateInput struct {
	Subject       *string
	Status        *domain.TicketStatus
	Priority      *domain.TicketPriority
	Category      *string
	AssignAgentID *string
	Unassign      bool
}

// TicketListInput captures role-scoped listing parameters.
type TicketListInput struct {
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	SearchTerm   *string
	Unassigned   bool
	AssignedToMe bool
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		users:       deps.UserRepo,
		messages:    deps.MessageRepo,
		categorizer: deps.Categorizer,
		dispatcher:  deps.Dispatcher,
	}
}

// CreateTicket opens a ticket for the customer. Category and priority fall
// back to LLM suggestions derived from the subject and description.
func (s *TicketService) CreateTicket(ctx context.Context, customer *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if customer == nil || customer.Role != domain.RoleCustomer {
		return nil, errorutil.NewForbidden("only customers can open tickets")
	}
	if customer.TenantID == nil {
		return nil, errorutil.NewForbidden("account has no tenant")
	}
	subject := strings.TrimSpace(input.Subject)
	description := strings.TrimSpace(input.Description)
	if subject == "" || description == "" {
		return nil, errorutil.NewValidationError("subject and description are required", nil)
	}

	category := strings.TrimSpace(input.Category)
	priority := input.Priority
	if category == "" || !domain.KnownPriority(priority) {
		suggestion := s.categorizer.Categorize(ctx, subject+"\n"+description)
		if category == "" {
			category = suggestion.Category
		}
		if !domain.KnownPriority(priority) {
			priority = suggestion.Priority
		}
	}

	ticket := &domain.Ticket{
		TenantID:    *customer.TenantID,
		CustomerID:  customer.ID,
		Subject:     subject,
		Description: description,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		Category:    category,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketCreated,
		TenantID: ticket.TenantID,
		Actor:    customerActor(customer.ID),
		Payload: events.TicketCreatedPayload{
			TicketID: ticket.ID,
			Subject:  ticket.Subject,
			Priority: ticket.Priority,
			Category: ticket.Category,
		},
	})
	return ticket, nil
}

// GetTicket fetches a ticket with its conversation, enforcing tenant scope
// and customer ownership.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, []domain.ChatMessage, error) {
	ticket, err := s.accessibleTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, messages, nil
}

// ListTickets returns tickets visible to the actor. Customers see their own;
// staff see the tenant's, optionally narrowed to unassigned or their own
// queue.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, input TicketListInput) ([]domain.Ticket, error) {
	if actor == nil || actor.TenantID == nil {
		return nil, errorutil.NewForbidden("account has no tenant")
	}
	filter := repository.TicketFilter{
		TenantID:    *actor.TenantID,
		Statuses:    input.Statuses,
		Priorities:  input.Priorities,
		SearchTerm:  input.SearchTerm,
		CreatedFrom: input.CreatedFrom,
		CreatedTo:   input.CreatedTo,
		Limit:       input.Limit,
		Offset:      input.Offset,
	}
	if actor.IsStaff() {
		filter.Unassigned = input.Unassigned
		if input.AssignedToMe {
			filter.AgentID = &actor.ID
		}
	} else {
		filter.CustomerID = &actor.ID
	}
	return s.tickets.ListWithFilter(ctx, filter)
}

// StaffUpdate applies a staff edit. Closed tickets reject edits entirely;
// there are no other transition restrictions for staff.
func (s *TicketService) StaffUpdate(ctx context.Context, actor *domain.User, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	if actor == nil || !actor.IsStaff() {
		return nil, errorutil.NewForbidden("staff access required")
	}
	ticket, err := s.accessibleTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, errorutil.NewConflict("closed tickets cannot be modified", nil)
	}

	oldStatus := ticket.Status
	oldAgent := ticket.AgentID

	if input.Subject != nil {
		subject := strings.TrimSpace(*input.Subject)
		if subject == "" {
			return nil, errorutil.NewValidationError("subject cannot be empty", nil)
		}
		ticket.Subject = subject
	}
	if input.Status != nil {
		if !domain.KnownStatus(*input.Status) {
			return nil, errorutil.NewValidationError("unknown status", map[string]any{"status": *input.Status})
		}
		ticket.Status = *input.Status
	}
	if input.Priority != nil {
		if !domain.KnownPriority(*input.Priority) {
			return nil, errorutil.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
		}
		ticket.Priority = *input.Priority
	}
	if input.Category != nil {
		ticket.Category = strings.TrimSpace(*input.Category)
	}
	if input.Unassign {
		ticket.AgentID = nil
	} else if input.AssignAgentID != nil {
		agent, err := s.users.GetByID(ctx, *input.AssignAgentID)
		if err != nil {
			return nil, errorutil.NewValidationError("assignee not found", nil)
		}
		if !agent.IsStaff() || !agent.BelongsTo(ticket.TenantID) {
			return nil, errorutil.NewValidationError("assignee must be staff of this tenant", nil)
		}
		ticket.AgentID = &agent.ID
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	if ticket.Status != oldStatus {
		publishEvent(ctx, s.dispatcher, events.Event{
			Type:     events.EventTicketStatusChanged,
			TenantID: ticket.TenantID,
			Actor:    staffActor(actor),
			Payload: events.TicketStatusChangedPayload{
				TicketID:  ticket.ID,
				OldStatus: oldStatus,
				NewStatus: ticket.Status,
			},
		})
	}
	if !sameAgent(oldAgent, ticket.AgentID) {
		publishEvent(ctx, s.dispatcher, events.Event{
			Type:     events.EventTicketAssigned,
			TenantID: ticket.TenantID,
			Actor:    staffActor(actor),
			Payload: events.TicketAssignedPayload{
				TicketID: ticket.ID,
				AgentID:  ticket.AgentID,
			},
		})
	}
	return ticket, nil
}

// AddNote appends a note to the ticket conversation and applies the
// note-driven status transitions: a staff note moves Pending Customer to In
// Progress, a customer note reopens Resolved tickets and otherwise parks the
// ticket on Pending Customer when an agent is assigned (Open when not).
// Closed tickets accept notes without any transition.
func (s *TicketService) AddNote(ctx context.Context, actor *domain.User, ticketID, text string) (*domain.ChatMessage, *domain.Ticket, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, errorutil.NewValidationError("note text is required", nil)
	}
	ticket, err := s.accessibleTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, nil, err
	}

	sender := domain.SenderCustomer
	if actor.IsStaff() {
		sender = domain.SenderAgent
	}
	note := &domain.ChatMessage{
		TenantID:  ticket.TenantID,
		TicketID:  &ticket.ID,
		UserID:    &actor.ID,
		SessionID: fmt.Sprintf("ticket_%s", ticket.ID),
		Sender:    sender,
		Text:      text,
	}
	if err := s.messages.Create(ctx, note); err != nil {
		return nil, nil, err
	}

	oldStatus := ticket.Status
	ticket.Status = noteTransition(ticket, actor.IsStaff())
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, nil, err
	}

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketNoteAdded,
		TenantID: ticket.TenantID,
		Actor:    noteActor(actor),
		Payload: events.TicketNoteAddedPayload{
			TicketID:    ticket.ID,
			MessageID:   note.ID,
			Sender:      sender,
			BodyPreview: bodyPreview(text, 120),
		},
	})
	if ticket.Status != oldStatus {
		publishEvent(ctx, s.dispatcher, events.Event{
			Type:     events.EventTicketStatusChanged,
			TenantID: ticket.TenantID,
			Actor:    noteActor(actor),
			Payload: events.TicketStatusChangedPayload{
				TicketID:  ticket.ID,
				OldStatus: oldStatus,
				NewStatus: ticket.Status,
				Comment:   "note added",
			},
		})
	}
	return note, ticket, nil
}

// noteTransition computes the status after a note lands.
func noteTransition(ticket *domain.Ticket, staffNote bool) domain.TicketStatus {
	switch {
	case ticket.Status == domain.TicketStatusClosed:
		return ticket.Status
	case staffNote:
		if ticket.Status == domain.TicketStatusPendingCustomer {
			return domain.TicketStatusInProgress
		}
		return ticket.Status
	case ticket.Status == domain.TicketStatusResolved:
		return domain.TicketStatusOpen
	case ticket.AgentID != nil:
		return domain.TicketStatusPendingCustomer
	default:
		return domain.TicketStatusOpen
	}
}

// accessibleTicket loads a ticket and enforces tenant scope plus customer
// ownership.
func (s *TicketService) accessibleTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if actor == nil || actor.TenantID == nil {
		return nil, errorutil.NewForbidden("account has no tenant")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !actor.BelongsTo(ticket.TenantID) {
		return nil, errorutil.NewForbidden("ticket belongs to another tenant")
	}
	if !actor.IsStaff() && ticket.CustomerID != actor.ID {
		return nil, errorutil.NewForbidden("ticket belongs to another customer")
	}
	return ticket, nil
}

func noteActor(actor *domain.User) events.Actor {
	if actor.IsStaff() {
		return staffActor(actor)
	}
	return customerActor(actor.ID)
}

func sameAgent(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func bodyPreview(body string, max int) string {
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return string(runes[:max-3]) + "..."
}
