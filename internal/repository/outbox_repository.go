package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// OutboxRepository enqueues outbound mail for the external dispatcher.
type OutboxRepository interface {
	Enqueue(ctx context.Context, email *domain.OutboundEmail) error
}

type outboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository constructs repository.
func NewOutboxRepository(pool *pgxpool.Pool) OutboxRepository {
	return &outboxRepository{pool: pool}
}

func (r *outboxRepository) Enqueue(ctx context.Context, email *domain.OutboundEmail) error {
	if email.Status == "" {
		email.Status = domain.OutboxStatusPending
	}
	const query = `
        INSERT INTO email_outbox (org_id, ticket_id, to_address, subject, text_body, message_id, in_reply_to, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		email.OrgID,
		email.TicketID,
		email.ToAddress,
		email.Subject,
		email.TextBody,
		email.MessageID,
		email.InReplyTo,
		email.Status,
	).Scan(&email.ID, &email.CreatedAt)
}
