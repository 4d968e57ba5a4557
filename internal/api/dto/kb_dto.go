package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateKnowledgeItemRequest payload. Admin only.
type CreateKnowledgeItemRequest struct {
	ItemType domain.KnowledgeItemType `json:"item_type"`
	Title    string                   `json:"title"`
	Content  string                   `json:"content"`
}

// KnowledgeItemResponse representation.
type KnowledgeItemResponse struct {
	ID        string                   `json:"id"`
	ItemType  domain.KnowledgeItemType `json:"item_type"`
	Title     string                   `json:"title"`
	Content   string                   `json:"content"`
	VectorID  string                   `json:"vector_id"`
	CreatedAt time.Time                `json:"created_at"`
}

// NewKnowledgeItemResponse maps a domain item.
func NewKnowledgeItemResponse(item *domain.KnowledgeItem) KnowledgeItemResponse {
	return KnowledgeItemResponse{
		ID:        item.ID,
		ItemType:  item.ItemType,
		Title:     item.Title,
		Content:   item.Content,
		VectorID:  item.VectorID,
		CreatedAt: item.CreatedAt,
	}
}
