package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/llm"
	"github.com/spec-kit/support-desk/internal/repository"
)

// Escalation phrase sets. Matching is case-insensitive substring.
var (
	customerEscalationPhrases = []string{"talk to human", "speak to agent", "escalate", "human help"}
	botEscalationPhrases      = []string{"create a ticket", "human agent", "support ticket"}
)

const (
	defaultCategory = "General Inquiry"
	defaultPriority = domain.TicketPriorityMedium

	handoffSubjectPrefix = "Chat Handoff: "
	handoffSubjectLimit  = 50
)

// TriageSuggestion is the structured result of parsing LLM categorization
// output. Best effort: unparsable fields keep their defaults.
type TriageSuggestion struct {
	Category string
	Priority domain.TicketPriority
}

// TriageService decides when a chat conversation becomes (or updates) a
// ticket, and extracts category/priority suggestions from LLM free text.
type TriageService struct {
	tickets    repository.TicketRepository
	messages   repository.ChatMessageRepository
	llm        llm.Completer
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TriageDependencies bundles requirements for the triage service.
type TriageDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.ChatMessageRepository
	LLM         llm.Completer
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewTriageService constructs the service.
func NewTriageService(deps TriageDependencies) *TriageService {
	return &TriageService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		llm:        deps.LLM,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// ShouldHandoff reports whether the exchange triggers ticket resolution:
// either the customer asked for a human, or the bot itself recommended
// escalation.
func (s *TriageService) ShouldHandoff(customerMessage, botResponse string) bool {
	return containsAny(customerMessage, customerEscalationPhrases) ||
		containsAny(botResponse, botEscalationPhrases)
}

func containsAny(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range phrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// HandoffInput carries the conversation state at resolution time.
type HandoffInput struct {
	Tenant      *domain.Tenant
	CustomerID  string
	SessionID   string
	Inbound     *domain.ChatMessage
	BotResponse string
	History     []domain.ChatMessage
}

// HandoffResult reports what the resolution produced. Response carries the
// bot reply with any acknowledgment suffix appended.
type HandoffResult struct {
	Ticket    *domain.Ticket
	Response  string
	Triggered bool
}

// Resolve attaches the conversation to a ticket, in priority order: an active
// ticket already linked to this session, then the customer's most recently
// updated active ticket in the tenant, then a newly created one.
func (s *TriageService) Resolve(ctx context.Context, input HandoffInput) (*HandoffResult, error) {
	if ticket, err := s.sessionTicket(ctx, input); err != nil {
		return nil, err
	} else if ticket != nil {
		response := input.BotResponse + fmt.Sprintf("\n\nI'll add this to your ongoing ticket (ID: %s).", ticket.ID)
		if err := s.messages.LinkMessage(ctx, input.Inbound.ID, ticket.ID); err != nil {
			return nil, err
		}
		s.publishHandoff(ctx, input, ticket.ID, true)
		return &HandoffResult{Ticket: ticket, Response: response, Triggered: true}, nil
	}

	ticket, err := s.tickets.LatestActiveByCustomer(ctx, input.Tenant.ID, input.CustomerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if ticket != nil {
		return s.appendToExisting(ctx, input, ticket)
	}
	return s.createTicket(ctx, input)
}

// sessionTicket returns the session's linked ticket when it is still active.
// Terminal tickets are never reused.
func (s *TriageService) sessionTicket(ctx context.Context, input HandoffInput) (*domain.Ticket, error) {
	ticketID, err := s.messages.SessionTicketID(ctx, input.Tenant.ID, input.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if ticket.TenantID != input.Tenant.ID || ticket.Status.IsTerminal() {
		return nil, nil
	}
	return ticket, nil
}

// appendToExisting reuses the customer's open ticket from another session:
// the new exchange is appended to its description with a timestamp and the
// session's unlinked messages are attached.
func (s *TriageService) appendToExisting(ctx context.Context, input HandoffInput, ticket *domain.Ticket) (*HandoffResult, error) {
	response := input.BotResponse + fmt.Sprintf("\n\nAdding this to your open ticket (ID: %s). An agent will follow up.", ticket.ID)

	ticket.Description += fmt.Sprintf(
		"\n\n--- Additional chat from session %s on %s ---\nCustomer: %s\nBot: %s",
		input.SessionID,
		time.Now().UTC().Format("2006-01-02 15:04"),
		input.Inbound.Text,
		input.BotResponse,
	)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	if err := s.messages.LinkSession(ctx, input.Tenant.ID, input.SessionID, ticket.ID, true); err != nil {
		return nil, err
	}
	s.publishHandoff(ctx, input, ticket.ID, true)
	return &HandoffResult{Ticket: ticket, Response: response, Triggered: true}, nil
}

// createTicket builds a new ticket from the conversation, asks the LLM for a
// category/priority suggestion, and retroactively links every message of the
// session to it.
func (s *TriageService) createTicket(ctx context.Context, input HandoffInput) (*HandoffResult, error) {
	suggestion := s.Categorize(ctx, input.Inbound.Text)

	ticket := &domain.Ticket{
		TenantID:       input.Tenant.ID,
		CustomerID:     input.CustomerID,
		Subject:        handoffSubject(input.Inbound.Text),
		Description:    handoffDescription(input),
		Status:         domain.TicketStatusOpen,
		Priority:       suggestion.Priority,
		Category:       suggestion.Category,
		ChatSessionRef: input.SessionID,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	if err := s.messages.LinkSession(ctx, input.Tenant.ID, input.SessionID, ticket.ID, false); err != nil {
		return nil, err
	}

	response := input.BotResponse + fmt.Sprintf("\n\nA support ticket (ID: %s) has been created for you.", ticket.ID)
	s.publishHandoff(ctx, input, ticket.ID, false)
	return &HandoffResult{Ticket: ticket, Response: response, Triggered: true}, nil
}

// Categorize asks the LLM for a category/priority suggestion and parses the
// free-text reply. Every failure path falls back to the defaults.
func (s *TriageService) Categorize(ctx context.Context, query string) TriageSuggestion {
	prompt := fmt.Sprintf(
		"Based on the following customer query, suggest a category (e.g., Billing, Technical Support, Product Inquiry) and priority (Low, Medium, High) for a support ticket: %q", query)
	reply := s.llm.Complete(ctx, llm.Request{
		Prompt:        prompt,
		SystemMessage: "You are a ticket categorization assistant.",
	})
	if llm.IsErrorReply(reply) {
		s.logger.Warn("categorization unavailable, using defaults", zap.String("reply", reply))
		return TriageSuggestion{Category: defaultCategory, Priority: defaultPriority}
	}
	return ParseTriageSuggestion(reply)
}

// ParseTriageSuggestion scans LLM free text line by line for "category:" and
// "priority:" tokens (case-insensitive). The value runs from the token to the
// next delimiter (comma or the other token) and is title-cased. Anything
// unparsable keeps the defaults; unknown priorities collapse to Medium.
func ParseTriageSuggestion(raw string) TriageSuggestion {
	out := TriageSuggestion{Category: defaultCategory, Priority: defaultPriority}

	for _, line := range strings.Split(strings.ToLower(raw), "\n") {
		if value := extractToken(line, "category:", "priority:"); value != "" {
			out.Category = titleCase(value)
		}
		if value := extractToken(line, "priority:", "category:"); value != "" {
			parsed := domain.TicketPriority(titleCase(value))
			if domain.KnownPriority(parsed) {
				out.Priority = parsed
			}
		}
	}
	return out
}

// extractToken pulls the value following token, cut at a comma or the other
// token, from an already lower-cased line.
func extractToken(line, token, otherToken string) string {
	idx := strings.Index(line, token)
	if idx < 0 {
		return ""
	}
	value := line[idx+len(token):]
	if cut := strings.Index(value, otherToken); cut >= 0 {
		value = value[:cut]
	}
	if cut := strings.Index(value, ","); cut >= 0 {
		value = value[:cut]
	}
	return strings.TrimSpace(strings.Trim(value, "*\"' "))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// handoffSubject derives the ticket subject from the first part of the
// triggering message.
func handoffSubject(message string) string {
	runes := []rune(message)
	if len(runes) > handoffSubjectLimit {
		runes = runes[:handoffSubjectLimit]
	}
	return handoffSubjectPrefix + string(runes)
}

// handoffDescription reconstructs the conversation for the ticket body.
// Messages are deduplicated by exact text match against the accumulated
// history string, mirroring how transcripts were built before ticket links
// existed.
func handoffDescription(input HandoffInput) string {
	var history strings.Builder
	for _, msg := range input.History {
		entry := fmt.Sprintf("%s (%s): %s\n",
			capitalize(string(msg.Sender)),
			msg.CreatedAt.Format("15:04:05"),
			msg.Text,
		)
		if !strings.Contains(history.String(), msg.Text) {
			history.WriteString(entry)
		}
	}
	if !strings.Contains(history.String(), input.Inbound.Text) {
		history.WriteString(fmt.Sprintf("Customer (%s): %s\n",
			input.Inbound.CreatedAt.Format("15:04:05"), input.Inbound.Text))
	}

	return fmt.Sprintf("Chat session ID: %s\nInitial query: %s\n\n--- Chat History ---\n%s",
		input.SessionID, input.Inbound.Text, history.String())
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (s *TriageService) publishHandoff(ctx context.Context, input HandoffInput, ticketID string, reused bool) {
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventChatHandoff,
		TenantID: input.Tenant.ID,
		Actor:    customerActor(input.CustomerID),
		Payload: events.ChatHandoffPayload{
			TicketID:     ticketID,
			SessionID:    input.SessionID,
			ReusedTicket: reused,
		},
	})
}
