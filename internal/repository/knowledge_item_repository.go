package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// IndexFunc submits an item to the external semantic-search service. It runs
// inside the creation transaction: a failure rolls the relational write back.
type IndexFunc func(ctx context.Context, item *domain.KnowledgeItem) error

// KnowledgeItemRepository defines persistence access for knowledge items.
type KnowledgeItemRepository interface {
	// CreateIndexed inserts the item, assigns its vector id (kb_{id}), calls
	// index, and commits only when indexing succeeded. All-or-nothing.
	CreateIndexed(ctx context.Context, item *domain.KnowledgeItem, index IndexFunc) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.KnowledgeItem, error)
}

type knowledgeItemRepository struct {
	pool *pgxpool.Pool
}

// NewKnowledgeItemRepository returns a Postgres-backed implementation.
func NewKnowledgeItemRepository(pool *pgxpool.Pool) KnowledgeItemRepository {
	return &knowledgeItemRepository{pool: pool}
}

func (r *knowledgeItemRepository) CreateIndexed(ctx context.Context, item *domain.KnowledgeItem, index IndexFunc) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insert = `
        INSERT INTO knowledge_items (tenant_id, item_type, title, content)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, insert,
		item.TenantID,
		item.ItemType,
		item.Title,
		item.Content,
	).Scan(&item.ID, &item.CreatedAt); err != nil {
		return err
	}

	item.VectorID = fmt.Sprintf("kb_%s", item.ID)
	const setVector = `UPDATE knowledge_items SET vector_id=$1 WHERE id=$2`
	if _, err := tx.Exec(ctx, setVector, item.VectorID, item.ID); err != nil {
		return err
	}

	if index != nil {
		if err := index(ctx, item); err != nil {
			return fmt.Errorf("index knowledge item: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *knowledgeItemRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	const query = `
        SELECT id, tenant_id, item_type, title, content, COALESCE(vector_id, ''), created_at
        FROM knowledge_items WHERE id=$1`
	var item domain.KnowledgeItem
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.TenantID,
		&item.ItemType,
		&item.Title,
		&item.Content,
		&item.VectorID,
		&item.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *knowledgeItemRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.KnowledgeItem, error) {
	const query = `
        SELECT id, tenant_id, item_type, title, content, COALESCE(vector_id, ''), created_at
        FROM knowledge_items WHERE tenant_id=$1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.KnowledgeItem
	for rows.Next() {
		var item domain.KnowledgeItem
		if err := rows.Scan(
			&item.ID,
			&item.TenantID,
			&item.ItemType,
			&item.Title,
			&item.Content,
			&item.VectorID,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}
