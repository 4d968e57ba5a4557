package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/searchindex"
	"github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// KnowledgeService manages knowledge-base articles and their mirror in the
// semantic-search service.
type KnowledgeService struct {
	items      repository.KnowledgeItemRepository
	search     searchindex.Service
	dispatcher events.Dispatcher
	logger     *zap.Logger
	topK       int
}

// KnowledgeDependencies bundles requirements for the knowledge service.
type KnowledgeDependencies struct {
	ItemRepo   repository.KnowledgeItemRepository
	Search     searchindex.Service
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	TopK       int
}

// KnowledgeItemInput describes a new article.
type KnowledgeItemInput struct {
	ItemType domain.KnowledgeItemType
	Title    string
	Content  string
}

// NewKnowledgeService constructs the service.
func NewKnowledgeService(deps KnowledgeDependencies) *KnowledgeService {
	topK := deps.TopK
	if topK <= 0 {
		topK = 3
	}
	return &KnowledgeService{
		items:      deps.ItemRepo,
		search:     deps.Search,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		topK:       topK,
	}
}

var knownItemTypes = map[domain.KnowledgeItemType]bool{
	domain.KnowledgeTypeFAQ:             true,
	domain.KnowledgeTypeProductInfo:     true,
	domain.KnowledgeTypeTroubleshooting: true,
	domain.KnowledgeTypePolicy:          true,
}

// AddItem creates a knowledge item and indexes it in the tenant's search
// namespace. Admin only. The relational row and the index entry land together
// or not at all.
func (s *KnowledgeService) AddItem(ctx context.Context, actor *domain.User, tenantID string, input KnowledgeItemInput) (*domain.KnowledgeItem, error) {
	if actor == nil || actor.Role != domain.RoleAdmin {
		return nil, errorutil.NewForbidden("only admins can manage the knowledge base")
	}
	if !actor.BelongsTo(tenantID) {
		return nil, errorutil.NewForbidden("knowledge base belongs to another tenant")
	}
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if title == "" || content == "" {
		return nil, errorutil.NewValidationError("title and content are required", nil)
	}
	if !knownItemTypes[input.ItemType] {
		return nil, errorutil.NewValidationError("unknown item type", map[string]any{
			"item_type": input.ItemType,
		})
	}

	namespace, err := s.search.EnsureNamespace(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("ensure search namespace: %w", err)
	}

	item := &domain.KnowledgeItem{
		TenantID: tenantID,
		ItemType: input.ItemType,
		Title:    title,
		Content:  content,
	}
	err = s.items.CreateIndexed(ctx, item, func(ctx context.Context, item *domain.KnowledgeItem) error {
		return s.search.Upsert(ctx, namespace, item.VectorID, documentText(item), map[string]any{
			"item_id":   item.ID,
			"type":      string(item.ItemType),
			"title":     item.Title,
			"tenant_id": item.TenantID,
		})
	})
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventKnowledgeItemIndexed,
		TenantID: tenantID,
		Actor:    staffActor(actor),
		Payload: events.KnowledgeItemIndexedPayload{
			ItemID:   item.ID,
			VectorID: item.VectorID,
			Title:    item.Title,
		},
	})
	return item, nil
}

// ListItems returns the tenant's articles, newest first.
func (s *KnowledgeService) ListItems(ctx context.Context, actor *domain.User, tenantID string) ([]domain.KnowledgeItem, error) {
	if actor == nil || !actor.IsStaff() {
		return nil, errorutil.NewForbidden("staff access required")
	}
	if !actor.BelongsTo(tenantID) {
		return nil, errorutil.NewForbidden("knowledge base belongs to another tenant")
	}
	return s.items.ListByTenant(ctx, tenantID)
}

// Search retrieves the top snippets for a query from the tenant's namespace.
// Retrieval is best effort: any failure logs a warning and yields no
// snippets, never an error, so chat stays available.
func (s *KnowledgeService) Search(ctx context.Context, tenantID, query string) []searchindex.Snippet {
	namespace := searchindex.NamespaceFor(tenantID)
	snippets, err := s.search.Query(ctx, namespace, query, s.topK)
	if err != nil {
		s.logger.Warn("knowledge search unavailable",
			zap.String("tenant_id", tenantID), zap.Error(err))
		return nil
	}
	return snippets
}

func documentText(item *domain.KnowledgeItem) string {
	return fmt.Sprintf("Title: %s\nType: %s\nContent: %s", item.Title, item.ItemType, item.Content)
}
