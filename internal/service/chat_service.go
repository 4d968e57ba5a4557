package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/llm"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/searchindex"
	"github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const (
	kbContextHeader  = "Relevant information from our knowledge base:"
	kbContextMissing = "No specific knowledge base articles found for this query."
	historyHeader    = "Previous conversation:"
	snippetSeparator = "\n---\n"
)

// SnippetSearcher retrieves knowledge snippets for a query. Retrieval is best
// effort and never fails the caller.
type SnippetSearcher interface {
	Search(ctx context.Context, tenantID, query string) []searchindex.Snippet
}

// ChatService orchestrates the customer chat loop: persist the inbound
// message, retrieve knowledge, generate the bot reply, and hand the session
// off to a ticket when escalation triggers fire.
type ChatService struct {
	tenants   repository.TenantRepository
	messages  repository.ChatMessageRepository
	knowledge SnippetSearcher
	llm       llm.Completer
	triage    *TriageService
	locker    persistence.SessionLocker
	cfg       config.ChatConfig
	logger    *zap.Logger
}

// ChatDependencies bundles requirements for the chat service.
type ChatDependencies struct {
	TenantRepo  repository.TenantRepository
	MessageRepo repository.ChatMessageRepository
	Knowledge   SnippetSearcher
	LLM         llm.Completer
	Triage      *TriageService
	Locker      persistence.SessionLocker
	Config      config.ChatConfig
	Logger      *zap.Logger
}

// ChatReply is the outcome of one customer message.
type ChatReply struct {
	Response  string
	SessionID string
	TicketID  *string
	Handoff   bool
}

// NewChatService constructs the service.
func NewChatService(deps ChatDependencies) *ChatService {
	return &ChatService{
		tenants:   deps.TenantRepo,
		messages:  deps.MessageRepo,
		knowledge: deps.Knowledge,
		llm:       deps.LLM,
		triage:    deps.Triage,
		locker:    deps.Locker,
		cfg:       deps.Config,
		logger:    deps.Logger,
	}
}

// HandleCustomerMessage runs the full chat turn for a customer message.
// Handoff resolution for the session is serialized behind a lease so two
// concurrent messages cannot both create a ticket.
func (s *ChatService) HandleCustomerMessage(ctx context.Context, customer *domain.User, sessionID, text string) (*ChatReply, error) {
	if customer == nil || customer.Role != domain.RoleCustomer {
		return nil, errorutil.NewForbidden("chat is for customers")
	}
	if customer.TenantID == nil {
		return nil, errorutil.NewForbidden("account has no tenant")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errorutil.NewValidationError("message text is required", nil)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	tenant, err := s.tenants.GetByID(ctx, *customer.TenantID)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, tenant.ID, sessionID)
	if err != nil {
		return nil, errorutil.NewConflict("another message in this session is being processed", nil)
	}
	defer release()

	inbound := &domain.ChatMessage{
		TenantID:  tenant.ID,
		UserID:    &customer.ID,
		SessionID: sessionID,
		Sender:    domain.SenderCustomer,
		Text:      text,
	}
	if err := s.messages.Create(ctx, inbound); err != nil {
		return nil, err
	}

	// Context is fetched after the inbound write so the window includes it.
	history, err := s.messages.ListRecentBySession(ctx, tenant.ID, sessionID, s.cfg.MaxContextMessages)
	if err != nil {
		return nil, err
	}

	snippets := s.knowledge.Search(ctx, tenant.ID, text)
	response := s.llm.Complete(ctx, llm.Request{
		Prompt:        buildChatPrompt(text, snippets, history, inbound.ID),
		SystemMessage: chatSystemMessage(tenant.Name),
	})

	reply := &ChatReply{Response: response, SessionID: sessionID}
	var outboundTicketID *string

	// A degraded LLM reply does not suppress handoff: the customer-phrase
	// trigger fires regardless of LLM health.
	if s.triage.ShouldHandoff(text, response) {
		result, err := s.triage.Resolve(ctx, HandoffInput{
			Tenant:      tenant,
			CustomerID:  customer.ID,
			SessionID:   sessionID,
			Inbound:     inbound,
			BotResponse: response,
			History:     history,
		})
		if err != nil {
			return nil, err
		}
		reply.Response = result.Response
		reply.TicketID = &result.Ticket.ID
		reply.Handoff = true
		outboundTicketID = &result.Ticket.ID
	}

	outbound := &domain.ChatMessage{
		TenantID:  tenant.ID,
		TicketID:  outboundTicketID,
		SessionID: sessionID,
		Sender:    domain.SenderBot,
		Text:      reply.Response,
	}
	if err := s.messages.Create(ctx, outbound); err != nil {
		return nil, err
	}

	s.logger.Debug("chat turn completed",
		zap.String("tenant_id", tenant.ID),
		zap.String("session_id", sessionID),
		zap.Bool("handoff", reply.Handoff),
	)
	return reply, nil
}

// SessionHistory returns the recent window of a customer's own session.
func (s *ChatService) SessionHistory(ctx context.Context, customer *domain.User, sessionID string) ([]domain.ChatMessage, error) {
	if customer == nil || customer.TenantID == nil {
		return nil, errorutil.NewForbidden("account has no tenant")
	}
	messages, err := s.messages.ListRecentBySession(ctx, *customer.TenantID, sessionID, s.cfg.MaxContextMessages)
	if err != nil {
		return nil, err
	}
	for _, msg := range messages {
		if msg.Sender == domain.SenderCustomer && (msg.UserID == nil || *msg.UserID != customer.ID) {
			return nil, errorutil.NewForbidden("session belongs to another customer")
		}
	}
	return messages, nil
}

func chatSystemMessage(companyName string) string {
	return fmt.Sprintf(
		"You are a helpful customer support assistant for %s. Answer based on the provided knowledge base information when available. Be concise and friendly. If you cannot help, suggest the customer create a support ticket.",
		companyName)
}

// buildChatPrompt assembles retrieval context, conversation history, and the
// current question into one prompt. The just-persisted inbound message is
// excluded from the history block since it appears as the question.
func buildChatPrompt(question string, snippets []searchindex.Snippet, history []domain.ChatMessage, inboundID string) string {
	var b strings.Builder

	if len(snippets) > 0 {
		texts := make([]string, 0, len(snippets))
		for _, snippet := range snippets {
			texts = append(texts, snippet.Text)
		}
		b.WriteString(kbContextHeader + "\n")
		b.WriteString(strings.Join(texts, snippetSeparator))
	} else {
		b.WriteString(kbContextMissing)
	}

	var lines []string
	for _, msg := range history {
		if msg.ID == inboundID {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", capitalize(string(msg.Sender)), msg.Text))
	}
	if len(lines) > 0 {
		b.WriteString("\n\n" + historyHeader + "\n")
		b.WriteString(strings.Join(lines, "\n"))
	}

	b.WriteString("\n\nCustomer question: " + question)
	return b.String()
}
