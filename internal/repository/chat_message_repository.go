package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// ChatMessageRepository manages conversation messages.
type ChatMessageRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) error
	// ListRecentBySession returns the last `limit` messages of the session,
	// ordered oldest to newest.
	ListRecentBySession(ctx context.Context, tenantID, sessionID string, limit int) ([]domain.ChatMessage, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.ChatMessage, error)
	// SessionTicketID returns the ticket id referenced by any message in the
	// session, or ErrNotFound when none is linked.
	SessionTicketID(ctx context.Context, tenantID, sessionID string) (string, error)
	// LinkMessage attaches a single message to a ticket.
	LinkMessage(ctx context.Context, messageID, ticketID string) error
	// LinkSession attaches the session's messages to a ticket. With
	// onlyUnlinked set, messages already referencing a ticket are left alone.
	LinkSession(ctx context.Context, tenantID, sessionID, ticketID string, onlyUnlinked bool) error
}

type chatMessageRepository struct {
	pool *pgxpool.Pool
}

// NewChatMessageRepository builds repository.
func NewChatMessageRepository(pool *pgxpool.Pool) ChatMessageRepository {
	return &chatMessageRepository{pool: pool}
}

const chatColumns = `id, tenant_id, ticket_id, user_id, session_id, sender, text, created_at`

func (r *chatMessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	const query = `
        INSERT INTO chat_messages (tenant_id, ticket_id, user_id, session_id, sender, text)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.TenantID,
		msg.TicketID,
		msg.UserID,
		msg.SessionID,
		msg.Sender,
		msg.Text,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *chatMessageRepository) ListRecentBySession(ctx context.Context, tenantID, sessionID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + chatColumns + ` FROM (
            SELECT ` + chatColumns + ` FROM chat_messages
            WHERE tenant_id=$1 AND session_id=$2
            ORDER BY created_at DESC LIMIT $3
        ) recent ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, tenantID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChatMessages(rows)
}

func (r *chatMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.ChatMessage, error) {
	query := `SELECT ` + chatColumns + `
        FROM chat_messages WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChatMessages(rows)
}

func (r *chatMessageRepository) SessionTicketID(ctx context.Context, tenantID, sessionID string) (string, error) {
	const query = `
        SELECT ticket_id FROM chat_messages
        WHERE tenant_id=$1 AND session_id=$2 AND ticket_id IS NOT NULL
        ORDER BY created_at ASC LIMIT 1`
	var ticketID string
	if err := r.pool.QueryRow(ctx, query, tenantID, sessionID).Scan(&ticketID); err != nil {
		return "", err
	}
	return ticketID, nil
}

func (r *chatMessageRepository) LinkMessage(ctx context.Context, messageID, ticketID string) error {
	const query = `UPDATE chat_messages SET ticket_id=$1 WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, ticketID, messageID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *chatMessageRepository) LinkSession(ctx context.Context, tenantID, sessionID, ticketID string, onlyUnlinked bool) error {
	query := `UPDATE chat_messages SET ticket_id=$1 WHERE tenant_id=$2 AND session_id=$3`
	if onlyUnlinked {
		query += ` AND ticket_id IS NULL`
	}
	_, err := r.pool.Exec(ctx, query, ticketID, tenantID, sessionID)
	return err
}

func scanChatMessages(rows pgx.Rows) ([]domain.ChatMessage, error) {
	var result []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.TenantID,
			&msg.TicketID,
			&msg.UserID,
			&msg.SessionID,
			&msg.Sender,
			&msg.Text,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
