package domain

import "time"

// KnowledgeItemType enumerates supported article kinds.
type KnowledgeItemType string

const (
	KnowledgeTypeFAQ             KnowledgeItemType = "faq"
	KnowledgeTypeProductInfo     KnowledgeItemType = "product_info"
	KnowledgeTypeTroubleshooting KnowledgeItemType = "troubleshooting_guide"
	KnowledgeTypePolicy          KnowledgeItemType = "policy"
)

// KnowledgeItem is a knowledge-base article. VectorID is the stable key of
// the corresponding document in the semantic-search service ("kb_{ID}"),
// assigned when the item is indexed. Items are not versioned.
type KnowledgeItem struct {
	ID        string
	TenantID  string
	ItemType  KnowledgeItemType
	Title     string
	Content   string
	VectorID  string
	CreatedAt time.Time
}
