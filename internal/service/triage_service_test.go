package service

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
)

func newTriageFixture(llmReplies ...string) (*TriageService, *fakeTicketRepo, *fakeChatRepo, *scriptedLLM) {
	tickets := newFakeTicketRepo()
	messages := newFakeChatRepo()
	model := &scriptedLLM{replies: llmReplies}
	svc := NewTriageService(TriageDependencies{
		TicketRepo:  tickets,
		MessageRepo: messages,
		LLM:         model,
		Dispatcher:  events.NewInMemoryDispatcher(),
		Logger:      zap.NewNop(),
	})
	return svc, tickets, messages, model
}

func TestShouldHandoff(t *testing.T) {
	svc, _, _, _ := newTriageFixture()

	cases := []struct {
		name     string
		message  string
		response string
		want     bool
	}{
		{"customer asks for human", "I want to TALK TO HUMAN now", "sure", true},
		{"customer asks to escalate", "please escalate this", "ok", true},
		{"bot recommends ticket", "my order is broken", "I suggest you create a ticket for this", true},
		{"bot mentions human agent", "help", "a human agent can assist further", true},
		{"no trigger", "how do I reset my password?", "click forgot password", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := svc.ShouldHandoff(tc.message, tc.response); got != tc.want {
				t.Fatalf("ShouldHandoff(%q, %q) = %v, want %v", tc.message, tc.response, got, tc.want)
			}
		})
	}
}

func TestParseTriageSuggestion(t *testing.T) {
	cases := []struct {
		name         string
		raw          string
		wantCategory string
		wantPriority domain.TicketPriority
	}{
		{"comma separated", "Category: Billing, Priority: High", "Billing", domain.TicketPriorityHigh},
		{"multi line", "Category: technical support\nPriority: low", "Technical Support", domain.TicketPriorityLow},
		{"reversed order", "Priority: Urgent Category: Product Inquiry", "Product Inquiry", domain.TicketPriorityUrgent},
		{"unparsable", "I think this is about billing problems.", "General Inquiry", domain.TicketPriorityMedium},
		{"unknown priority", "Category: Billing, Priority: Critical", "Billing", domain.TicketPriorityMedium},
		{"decorated values", "**Category:** \"refunds\", **Priority:** high", "Refunds", domain.TicketPriorityHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseTriageSuggestion(tc.raw)
			if got.Category != tc.wantCategory {
				t.Errorf("category = %q, want %q", got.Category, tc.wantCategory)
			}
			if got.Priority != tc.wantPriority {
				t.Errorf("priority = %q, want %q", got.Priority, tc.wantPriority)
			}
		})
	}
}

func handoffInput(messages *fakeChatRepo, tenant *domain.Tenant, sessionID, text string) HandoffInput {
	inbound := &domain.ChatMessage{
		TenantID:  tenant.ID,
		UserID:    strPtr("cust-1"),
		SessionID: sessionID,
		Sender:    domain.SenderCustomer,
		Text:      text,
	}
	_ = messages.Create(context.Background(), inbound)
	return HandoffInput{
		Tenant:      tenant,
		CustomerID:  "cust-1",
		SessionID:   sessionID,
		Inbound:     inbound,
		BotResponse: "Let me get a human to help.",
	}
}

func TestResolveCreatesTicket(t *testing.T) {
	svc, tickets, messages, _ := newTriageFixture("Category: Billing, Priority: High")
	tenant := &domain.Tenant{ID: "tenant-1", Name: "Acme"}

	input := handoffInput(messages, tenant, "sess-1", "I was double charged, talk to human please")
	result, err := svc.Resolve(context.Background(), input)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !result.Triggered {
		t.Fatal("expected handoff to trigger")
	}
	ticket := result.Ticket
	if ticket.Status != domain.TicketStatusOpen {
		t.Errorf("status = %q, want Open", ticket.Status)
	}
	if ticket.Category != "Billing" || ticket.Priority != domain.TicketPriorityHigh {
		t.Errorf("categorization = %q/%q, want Billing/High", ticket.Category, ticket.Priority)
	}
	if !strings.HasPrefix(ticket.Subject, "Chat Handoff: ") {
		t.Errorf("subject = %q, want Chat Handoff prefix", ticket.Subject)
	}
	if ticket.ChatSessionRef != "sess-1" {
		t.Errorf("session ref = %q, want sess-1", ticket.ChatSessionRef)
	}
	if !strings.Contains(result.Response, ticket.ID) {
		t.Errorf("response %q lacks ticket id acknowledgment", result.Response)
	}
	if _, ok := tickets.tickets[ticket.ID]; !ok {
		t.Fatal("ticket not persisted")
	}

	linked, _ := messages.ListByTicket(context.Background(), ticket.ID)
	if len(linked) == 0 {
		t.Error("session messages were not linked to the new ticket")
	}
}

func TestResolveSubjectTruncation(t *testing.T) {
	svc, _, messages, _ := newTriageFixture("none")
	tenant := &domain.Tenant{ID: "tenant-1", Name: "Acme"}

	long := strings.Repeat("x", 120)
	result, err := svc.Resolve(context.Background(), handoffInput(messages, tenant, "sess-long", long))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := "Chat Handoff: " + strings.Repeat("x", 50)
	if result.Ticket.Subject != want {
		t.Errorf("subject = %q, want 50-char truncation", result.Ticket.Subject)
	}
}

func TestResolveReusesSessionLinkedTicket(t *testing.T) {
	svc, tickets, messages, _ := newTriageFixture()
	tenant := &domain.Tenant{ID: "tenant-1", Name: "Acme"}

	existing := &domain.Ticket{
		TenantID:   tenant.ID,
		CustomerID: "cust-1",
		Subject:    "Chat Handoff: earlier",
		Status:     domain.TicketStatusOpen,
		Priority:   domain.TicketPriorityMedium,
	}
	_ = tickets.Create(context.Background(), existing)
	linkedMsg := &domain.ChatMessage{
		TenantID:  tenant.ID,
		TicketID:  &existing.ID,
		SessionID: "sess-2",
		Sender:    domain.SenderCustomer,
		Text:      "earlier question",
	}
	_ = messages.Create(context.Background(), linkedMsg)

	result, err := svc.Resolve(context.Background(), handoffInput(messages, tenant, "sess-2", "still broken, escalate"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Ticket.ID != existing.ID {
		t.Fatalf("ticket = %s, want reuse of %s", result.Ticket.ID, existing.ID)
	}
	if !strings.Contains(result.Response, "ongoing ticket") {
		t.Errorf("response %q lacks ongoing-ticket acknowledgment", result.Response)
	}
}

func TestResolveNeverReusesTerminalSessionTicket(t *testing.T) {
	svc, tickets, messages, _ := newTriageFixture("Category: General, Priority: Low")
	tenant := &domain.Tenant{ID: "tenant-1", Name: "Acme"}

	closed := &domain.Ticket{
		TenantID:   tenant.ID,
		CustomerID: "cust-1",
		Subject:    "old issue",
		Status:     domain.TicketStatusClosed,
		Priority:   domain.TicketPriorityMedium,
	}
	_ = tickets.Create(context.Background(), closed)
	_ = messages.Create(context.Background(), &domain.ChatMessage{
		TenantID:  tenant.ID,
		TicketID:  &closed.ID,
		SessionID: "sess-3",
		Sender:    domain.SenderCustomer,
		Text:      "old question",
	})

	result, err := svc.Resolve(context.Background(), handoffInput(messages, tenant, "sess-3", "this is back, human help"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Ticket.ID == closed.ID {
		t.Fatal("closed ticket must not be reused")
	}
}

func TestResolveAppendsToCustomerActiveTicket(t *testing.T) {
	svc, tickets, messages, _ := newTriageFixture()
	tenant := &domain.Tenant{ID: "tenant-1", Name: "Acme"}

	active := &domain.Ticket{
		TenantID:    tenant.ID,
		CustomerID:  "cust-1",
		Subject:     "login problem",
		Description: "cannot log in",
		Status:      domain.TicketStatusInProgress,
		Priority:    domain.TicketPriorityMedium,
	}
	_ = tickets.Create(context.Background(), active)

	result, err := svc.Resolve(context.Background(), handoffInput(messages, tenant, "sess-new", "same issue again, escalate"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Ticket.ID != active.ID {
		t.Fatalf("ticket = %s, want reuse of customer's active ticket %s", result.Ticket.ID, active.ID)
	}
	stored, _ := tickets.GetByID(context.Background(), active.ID)
	if !strings.Contains(stored.Description, "Additional chat from session sess-new") {
		t.Errorf("description not appended: %q", stored.Description)
	}
	if !strings.Contains(result.Response, "open ticket") {
		t.Errorf("response %q lacks open-ticket acknowledgment", result.Response)
	}
}

func TestCategorizeFallsBackOnLLMError(t *testing.T) {
	svc, _, _, _ := newTriageFixture("Error: LLM API key not configured.")
	got := svc.Categorize(context.Background(), "anything")
	if got.Category != "General Inquiry" || got.Priority != domain.TicketPriorityMedium {
		t.Errorf("got %q/%q, want defaults", got.Category, got.Priority)
	}
}

func TestHandoffDescriptionDeduplicatesHistory(t *testing.T) {
	input := HandoffInput{
		SessionID: "sess-d",
		Inbound: &domain.ChatMessage{
			Text:   "please escalate",
			Sender: domain.SenderCustomer,
		},
		History: []domain.ChatMessage{
			{Sender: domain.SenderCustomer, Text: "it is broken"},
			{Sender: domain.SenderCustomer, Text: "it is broken"},
			{Sender: domain.SenderBot, Text: "have you tried restarting?"},
		},
	}
	desc := handoffDescription(input)
	if got := strings.Count(desc, "it is broken"); got != 1 {
		t.Errorf("duplicate history entry appears %d times, want 1", got)
	}
	if !strings.Contains(desc, "Chat session ID: sess-d") {
		t.Errorf("description lacks session id: %q", desc)
	}
}
