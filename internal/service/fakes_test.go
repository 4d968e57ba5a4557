package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/llm"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/searchindex"
)

type fakeTicketRepo struct {
	tickets map[string]*domain.Ticket
	seq     int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[string]*domain.Ticket{}}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", r.seq)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	if _, ok := r.tickets[ticket.ID]; !ok {
		return repository.ErrNotFound
	}
	ticket.UpdatedAt = time.Now()
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.TenantID != filter.TenantID {
			continue
		}
		if filter.CustomerID != nil && ticket.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.AgentID != nil && (ticket.AgentID == nil || *ticket.AgentID != *filter.AgentID) {
			continue
		}
		if filter.Unassigned && ticket.AgentID != nil {
			continue
		}
		result = append(result, *ticket)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

func (r *fakeTicketRepo) LatestActiveByCustomer(_ context.Context, tenantID, customerID string) (*domain.Ticket, error) {
	var latest *domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.TenantID != tenantID || ticket.CustomerID != customerID || ticket.Status.IsTerminal() {
			continue
		}
		if latest == nil || ticket.UpdatedAt.After(latest.UpdatedAt) {
			latest = ticket
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

type fakeChatRepo struct {
	messages []domain.ChatMessage
	seq      int
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{}
}

func (r *fakeChatRepo) Create(_ context.Context, msg *domain.ChatMessage) error {
	r.seq++
	msg.ID = fmt.Sprintf("msg-%d", r.seq)
	msg.CreatedAt = time.Now().Add(time.Duration(r.seq) * time.Millisecond)
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeChatRepo) ListRecentBySession(_ context.Context, tenantID, sessionID string, limit int) ([]domain.ChatMessage, error) {
	var result []domain.ChatMessage
	for _, msg := range r.messages {
		if msg.TenantID == tenantID && msg.SessionID == sessionID {
			result = append(result, msg)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

func (r *fakeChatRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.ChatMessage, error) {
	var result []domain.ChatMessage
	for _, msg := range r.messages {
		if msg.TicketID != nil && *msg.TicketID == ticketID {
			result = append(result, msg)
		}
	}
	return result, nil
}

func (r *fakeChatRepo) SessionTicketID(_ context.Context, tenantID, sessionID string) (string, error) {
	for _, msg := range r.messages {
		if msg.TenantID == tenantID && msg.SessionID == sessionID && msg.TicketID != nil {
			return *msg.TicketID, nil
		}
	}
	return "", repository.ErrNotFound
}

func (r *fakeChatRepo) LinkMessage(_ context.Context, messageID, ticketID string) error {
	for i := range r.messages {
		if r.messages[i].ID == messageID {
			r.messages[i].TicketID = &ticketID
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeChatRepo) LinkSession(_ context.Context, tenantID, sessionID, ticketID string, onlyUnlinked bool) error {
	for i := range r.messages {
		msg := &r.messages[i]
		if msg.TenantID != tenantID || msg.SessionID != sessionID {
			continue
		}
		if onlyUnlinked && msg.TicketID != nil {
			continue
		}
		msg.TicketID = &ticketID
	}
	return nil
}

type fakeTenantRepo struct {
	tenants map[string]*domain.Tenant
}

func newFakeTenantRepo(tenants ...*domain.Tenant) *fakeTenantRepo {
	repo := &fakeTenantRepo{tenants: map[string]*domain.Tenant{}}
	for _, tenant := range tenants {
		repo.tenants[tenant.ID] = tenant
	}
	return repo
}

func (r *fakeTenantRepo) Create(_ context.Context, tenant *domain.Tenant) error {
	tenant.CreatedAt = time.Now()
	r.tenants[tenant.ID] = tenant
	return nil
}

func (r *fakeTenantRepo) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	tenant, ok := r.tenants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return tenant, nil
}

func (r *fakeTenantRepo) GetByName(_ context.Context, name string) (*domain.Tenant, error) {
	for _, tenant := range r.tenants {
		if tenant.Name == name {
			return tenant, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeUserRepo struct {
	users map[string]*domain.User
	seq   int
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: map[string]*domain.User{}}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.seq++
	user.ID = fmt.Sprintf("user-%d", r.seq)
	user.CreatedAt = time.Now()
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) ListByTenantRole(_ context.Context, tenantID string, role domain.UserRole) ([]domain.User, error) {
	var result []domain.User
	for _, user := range r.users {
		if user.BelongsTo(tenantID) && user.Role == role {
			result = append(result, *user)
		}
	}
	return result, nil
}

// scriptedLLM returns canned completions and records every request.
type scriptedLLM struct {
	replies  []string
	fallback string
	requests []llm.Request
}

func (s *scriptedLLM) Complete(_ context.Context, req llm.Request) string {
	s.requests = append(s.requests, req)
	if len(s.replies) > 0 {
		reply := s.replies[0]
		s.replies = s.replies[1:]
		return reply
	}
	if s.fallback != "" {
		return s.fallback
	}
	return "I can help with that."
}

func (s *scriptedLLM) lastPrompt() string {
	if len(s.requests) == 0 {
		return ""
	}
	return s.requests[len(s.requests)-1].Prompt
}

// fakeSearcher satisfies SnippetSearcher.
type fakeSearcher struct {
	snippets []searchindex.Snippet
	queries  []string
}

func (f *fakeSearcher) Search(_ context.Context, _ string, query string) []searchindex.Snippet {
	f.queries = append(f.queries, query)
	return f.snippets
}

// fakeSearchService satisfies searchindex.Service.
type fakeSearchService struct {
	failUpsert bool
	failQuery  bool
	upserts    map[string]string
	snippets   []searchindex.Snippet
}

func newFakeSearchService() *fakeSearchService {
	return &fakeSearchService{upserts: map[string]string{}}
}

func (f *fakeSearchService) EnsureNamespace(_ context.Context, tenantID string) (string, error) {
	return searchindex.NamespaceFor(tenantID), nil
}

func (f *fakeSearchService) Upsert(_ context.Context, _, id, text string, _ map[string]any) error {
	if f.failUpsert {
		return fmt.Errorf("index unavailable")
	}
	f.upserts[id] = text
	return nil
}

func (f *fakeSearchService) Query(_ context.Context, _, _ string, _ int) ([]searchindex.Snippet, error) {
	if f.failQuery {
		return nil, fmt.Errorf("index unavailable")
	}
	return f.snippets, nil
}

// fakeKnowledgeRepo mimics the all-or-nothing CreateIndexed contract.
type fakeKnowledgeRepo struct {
	items map[string]*domain.KnowledgeItem
	seq   int
}

func newFakeKnowledgeRepo() *fakeKnowledgeRepo {
	return &fakeKnowledgeRepo{items: map[string]*domain.KnowledgeItem{}}
}

func (r *fakeKnowledgeRepo) CreateIndexed(ctx context.Context, item *domain.KnowledgeItem, index repository.IndexFunc) error {
	r.seq++
	item.ID = fmt.Sprintf("kb-item-%d", r.seq)
	item.VectorID = fmt.Sprintf("kb_%s", item.ID)
	item.CreatedAt = time.Now()
	if index != nil {
		if err := index(ctx, item); err != nil {
			return fmt.Errorf("index knowledge item: %w", err)
		}
	}
	copied := *item
	r.items[item.ID] = &copied
	return nil
}

func (r *fakeKnowledgeRepo) GetByID(_ context.Context, id string) (*domain.KnowledgeItem, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return item, nil
}

func (r *fakeKnowledgeRepo) ListByTenant(_ context.Context, tenantID string) ([]domain.KnowledgeItem, error) {
	var result []domain.KnowledgeItem
	for _, item := range r.items {
		if item.TenantID == tenantID {
			result = append(result, *item)
		}
	}
	return result, nil
}

// noopLocker satisfies persistence.SessionLocker.
type noopLocker struct {
	acquired int
}

func (l *noopLocker) Acquire(context.Context, string, string) (func(), error) {
	l.acquired++
	return func() {}, nil
}

func strPtr(s string) *string { return &s }

func containsMarker(haystack, marker string) bool {
	return strings.Contains(haystack, marker)
}
