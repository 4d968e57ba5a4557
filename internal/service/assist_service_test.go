package service

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/searchindex"
)

func newAssistFixture(description string, snippets []searchindex.Snippet) (*AssistService, *fakeTicketRepo, *scriptedLLM, *fakeSearcher, *domain.Ticket) {
	tickets := newFakeTicketRepo()
	ticket := &domain.Ticket{
		TenantID:    "tenant-1",
		CustomerID:  "cust-1",
		Subject:     "cannot log in",
		Description: description,
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityMedium,
	}
	_ = tickets.Create(context.Background(), ticket)

	model := &scriptedLLM{fallback: "Try resetting the password from the admin panel."}
	searcher := &fakeSearcher{snippets: snippets}
	svc := NewAssistService(AssistDependencies{
		TicketRepo: tickets,
		Knowledge:  searcher,
		LLM:        model,
		Config:     config.ChatConfig{AssistMaxTokens: 300},
		Logger:     zap.NewNop(),
	})
	return svc, tickets, model, searcher, ticket
}

func staffUser() *domain.User {
	return &domain.User{ID: "agent-1", TenantID: strPtr("tenant-1"), Role: domain.RoleAgent}
}

func TestAssistUsesExplicitQuery(t *testing.T) {
	svc, _, model, searcher, ticket := newAssistFixture("long description", nil)

	got, err := svc.Suggest(context.Background(), staffUser(), ticket.ID, "password reset steps")
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if got.Suggestion == "" {
		t.Error("empty suggestion")
	}
	if len(searcher.queries) != 1 || searcher.queries[0] != "password reset steps" {
		t.Errorf("search query = %v, want the agent query", searcher.queries)
	}
	if model.requests[0].MaxTokens != 300 {
		t.Errorf("max tokens = %d, want 300", model.requests[0].MaxTokens)
	}
}

func TestAssistFallsBackToDescriptionTail(t *testing.T) {
	long := strings.Repeat("a", 150) + strings.Repeat("b", 150)
	svc, _, _, searcher, ticket := newAssistFixture(long, nil)

	if _, err := svc.Suggest(context.Background(), staffUser(), ticket.ID, "   "); err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	want := strings.Repeat("a", 50) + strings.Repeat("b", 150)
	if len(searcher.queries) != 1 || searcher.queries[0] != want {
		t.Errorf("search query = %q, want trailing 200 chars of description", searcher.queries[0])
	}
}

func TestAssistReportsSnippetCount(t *testing.T) {
	snippets := []searchindex.Snippet{
		{Text: "Title: Login\nType: faq\nContent: use SSO"},
		{Text: "Title: Passwords\nType: faq\nContent: 12 chars minimum"},
	}
	svc, _, model, _, ticket := newAssistFixture("desc", snippets)

	got, err := svc.Suggest(context.Background(), staffUser(), ticket.ID, "login help")
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if got.SnippetCount != 2 {
		t.Errorf("snippet count = %d, want 2", got.SnippetCount)
	}
	if !strings.Contains(model.lastPrompt(), "use SSO") {
		t.Errorf("prompt lacks snippet text: %q", model.lastPrompt())
	}
	if !strings.Contains(model.lastPrompt(), "Ticket subject: cannot log in") {
		t.Errorf("prompt lacks ticket context: %q", model.lastPrompt())
	}
}

func TestAssistFromContextUsesTranscriptTail(t *testing.T) {
	svc, _, model, searcher, _ := newAssistFixture("unused", nil)

	transcript := strings.Repeat("x", 150) + strings.Repeat("y", 150)
	got, err := svc.SuggestFromContext(context.Background(), staffUser(), transcript, "")
	if err != nil {
		t.Fatalf("SuggestFromContext: %v", err)
	}
	if got.Suggestion == "" {
		t.Error("empty suggestion")
	}
	want := strings.Repeat("x", 50) + strings.Repeat("y", 150)
	if len(searcher.queries) != 1 || searcher.queries[0] != want {
		t.Errorf("search query = %q, want trailing 200 chars of transcript", searcher.queries[0])
	}
	if !strings.Contains(model.lastPrompt(), "Conversation so far:") {
		t.Errorf("prompt lacks transcript section: %q", model.lastPrompt())
	}
}

func TestAssistFromContextPrefersExplicitQuery(t *testing.T) {
	svc, _, _, searcher, _ := newAssistFixture("unused", nil)

	if _, err := svc.SuggestFromContext(context.Background(), staffUser(), "customer: my invoice is wrong", "billing dispute policy"); err != nil {
		t.Fatalf("SuggestFromContext: %v", err)
	}
	if len(searcher.queries) != 1 || searcher.queries[0] != "billing dispute policy" {
		t.Errorf("search query = %v, want the agent query", searcher.queries)
	}
}

func TestAssistFromContextRequiresContextOrQuery(t *testing.T) {
	svc, _, _, _, _ := newAssistFixture("unused", nil)

	if _, err := svc.SuggestFromContext(context.Background(), staffUser(), "   ", ""); err == nil {
		t.Fatal("expected rejection when both transcript and query are empty")
	}
}

func TestAssistRejectsNonStaffAndForeignTenant(t *testing.T) {
	svc, _, _, _, ticket := newAssistFixture("desc", nil)

	customer := &domain.User{ID: "cust-1", TenantID: strPtr("tenant-1"), Role: domain.RoleCustomer}
	if _, err := svc.Suggest(context.Background(), customer, ticket.ID, "q"); err == nil {
		t.Fatal("expected customer to be rejected")
	}

	foreign := &domain.User{ID: "agent-9", TenantID: strPtr("tenant-9"), Role: domain.RoleAgent}
	if _, err := svc.Suggest(context.Background(), foreign, ticket.ID, "q"); err == nil {
		t.Fatal("expected cross-tenant agent to be rejected")
	}
}
