package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/llm"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/searchindex"
	"github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// assistQueryTail bounds how much of the ticket description seeds retrieval
// when the agent supplies no query.
const assistQueryTail = 200

// AssistService drafts replies for agents working a ticket, grounded on the
// tenant's knowledge base.
type AssistService struct {
	tickets   repository.TicketRepository
	knowledge SnippetSearcher
	llm       llm.Completer
	cfg       config.ChatConfig
	logger    *zap.Logger
}

// AssistDependencies bundles requirements for the assist service.
type AssistDependencies struct {
	TicketRepo repository.TicketRepository
	Knowledge  SnippetSearcher
	LLM        llm.Completer
	Config     config.ChatConfig
	Logger     *zap.Logger
}

// AssistSuggestion is a drafted reply plus how many knowledge snippets
// informed it.
type AssistSuggestion struct {
	Suggestion   string
	SnippetCount int
}

// NewAssistService constructs the service.
func NewAssistService(deps AssistDependencies) *AssistService {
	return &AssistService{
		tickets:   deps.TicketRepo,
		knowledge: deps.Knowledge,
		llm:       deps.LLM,
		cfg:       deps.Config,
		logger:    deps.Logger,
	}
}

// Suggest drafts a response for the ticket. When agentQuery is empty the tail
// of the ticket description seeds retrieval instead.
func (s *AssistService) Suggest(ctx context.Context, actor *domain.User, ticketID, agentQuery string) (*AssistSuggestion, error) {
	if actor == nil || !actor.IsStaff() {
		return nil, errorutil.NewForbidden("staff access required")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !actor.BelongsTo(ticket.TenantID) {
		return nil, errorutil.NewForbidden("ticket belongs to another tenant")
	}

	query := strings.TrimSpace(agentQuery)
	if query == "" {
		query = descriptionTail(ticket.Description, assistQueryTail)
	}

	snippets := s.knowledge.Search(ctx, ticket.TenantID, query)
	suggestion := s.llm.Complete(ctx, llm.Request{
		Prompt:        buildAssistPrompt(ticket, query, snippets),
		SystemMessage: "You are assisting a customer support agent. Draft a professional, helpful response the agent can send to the customer.",
		MaxTokens:     s.cfg.AssistMaxTokens,
	})

	return &AssistSuggestion{Suggestion: suggestion, SnippetCount: len(snippets)}, nil
}

// SuggestFromContext drafts a response from a raw conversation transcript when
// no ticket exists yet. When agentQuery is empty the tail of the transcript
// seeds retrieval instead.
func (s *AssistService) SuggestFromContext(ctx context.Context, actor *domain.User, conversationContext, agentQuery string) (*AssistSuggestion, error) {
	if actor == nil || !actor.IsStaff() {
		return nil, errorutil.NewForbidden("staff access required")
	}
	if actor.TenantID == nil {
		return nil, errorutil.NewForbidden("staff account is not bound to a tenant")
	}

	transcript := strings.TrimSpace(conversationContext)
	query := strings.TrimSpace(agentQuery)
	if transcript == "" && query == "" {
		return nil, errorutil.NewValidationError("conversation context or query is required", nil)
	}
	if query == "" {
		query = descriptionTail(transcript, assistQueryTail)
	}

	snippets := s.knowledge.Search(ctx, *actor.TenantID, query)
	suggestion := s.llm.Complete(ctx, llm.Request{
		Prompt:        buildContextAssistPrompt(transcript, query, snippets),
		SystemMessage: "You are assisting a customer support agent. Draft a professional, helpful response the agent can send to the customer.",
		MaxTokens:     s.cfg.AssistMaxTokens,
	})

	return &AssistSuggestion{Suggestion: suggestion, SnippetCount: len(snippets)}, nil
}

func buildAssistPrompt(ticket *domain.Ticket, query string, snippets []searchindex.Snippet) string {
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
	b.WriteString(fmt.Sprintf("\n\nTicket subject: %s\nTicket description: %s", ticket.Subject, ticket.Description))
	b.WriteString("\n\nAgent request: " + query)
	return b.String()
}

func buildContextAssistPrompt(transcript, query string, snippets []searchindex.Snippet) string {
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
	if transcript != "" {
		b.WriteString("\n\nConversation so far:\n" + transcript)
	}
	b.WriteString("\n\nAgent request: " + query)
	return b.String()
}

// descriptionTail returns the last max runes of text, safe for multibyte
// content.
func descriptionTail(text string, max int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[len(runes)-max:])
}
