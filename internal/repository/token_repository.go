package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// TokenRepository persists hashed ticket tokens.
type TokenRepository interface {
	Create(ctx context.Context, token *domain.TicketToken) error
	// Consume marks the matching unconsumed, unexpired token as consumed in a
	// single statement and returns the row. An empty ticketID matches any
	// ticket. pgx.ErrNoRows means nothing was consumable.
	Consume(ctx context.Context, tokenHash string, purpose domain.TokenPurpose, ticketID string) (*domain.TicketToken, error)
	// Find returns the token row for a live ticket without consuming it.
	Find(ctx context.Context, tokenHash string, purpose domain.TokenPurpose) (*domain.TicketToken, error)
	LatestForRecipient(ctx context.Context, ticketID, email string, purpose domain.TokenPurpose) (*domain.TicketToken, error)
}

type tokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository constructs repository.
func NewTokenRepository(pool *pgxpool.Pool) TokenRepository {
	return &tokenRepository{pool: pool}
}

func (r *tokenRepository) Create(ctx context.Context, token *domain.TicketToken) error {
	const query = `
        INSERT INTO ticket_tokens (ticket_id, email, token_hash, purpose, expires_at, created_ip, last_sent_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		token.TicketID,
		token.Email,
		token.TokenHash,
		token.Purpose,
		token.ExpiresAt,
		token.CreatedIP,
		token.LastSentAt,
	).Scan(&token.ID, &token.CreatedAt)
}

func (r *tokenRepository) Consume(ctx context.Context, tokenHash string, purpose domain.TokenPurpose, ticketID string) (*domain.TicketToken, error) {
	const query = `
        UPDATE ticket_tokens tt SET consumed_at = NOW()
        WHERE tt.token_hash=$1 AND tt.purpose=$2
          AND ($3 = '' OR tt.ticket_id::text = $3)
          AND tt.consumed_at IS NULL
          AND tt.expires_at > NOW()
          AND EXISTS (SELECT 1 FROM tickets t WHERE t.id = tt.ticket_id AND t.deleted_at IS NULL)
        RETURNING tt.id, tt.ticket_id, tt.email, tt.token_hash, tt.purpose, tt.expires_at,
                  tt.created_ip, tt.last_sent_at, tt.consumed_at, tt.created_at`
	var token domain.TicketToken
	if err := r.pool.QueryRow(ctx, query, tokenHash, purpose, ticketID).Scan(
		&token.ID,
		&token.TicketID,
		&token.Email,
		&token.TokenHash,
		&token.Purpose,
		&token.ExpiresAt,
		&token.CreatedIP,
		&token.LastSentAt,
		&token.ConsumedAt,
		&token.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *tokenRepository) Find(ctx context.Context, tokenHash string, purpose domain.TokenPurpose) (*domain.TicketToken, error) {
	const query = `
        SELECT tt.id, tt.ticket_id, tt.email, tt.token_hash, tt.purpose, tt.expires_at,
               tt.created_ip, tt.last_sent_at, tt.consumed_at, tt.created_at
        FROM ticket_tokens tt
        JOIN tickets t ON t.id = tt.ticket_id AND t.deleted_at IS NULL
        WHERE tt.token_hash=$1 AND tt.purpose=$2`
	var token domain.TicketToken
	if err := r.pool.QueryRow(ctx, query, tokenHash, purpose).Scan(
		&token.ID,
		&token.TicketID,
		&token.Email,
		&token.TokenHash,
		&token.Purpose,
		&token.ExpiresAt,
		&token.CreatedIP,
		&token.LastSentAt,
		&token.ConsumedAt,
		&token.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *tokenRepository) LatestForRecipient(ctx context.Context, ticketID, email string, purpose domain.TokenPurpose) (*domain.TicketToken, error) {
	const query = `
        SELECT id, ticket_id, email, token_hash, purpose, expires_at, created_ip, last_sent_at, consumed_at, created_at
        FROM ticket_tokens
        WHERE ticket_id=$1 AND LOWER(email)=LOWER($2) AND purpose=$3
        ORDER BY last_sent_at DESC LIMIT 1`
	var token domain.TicketToken
	if err := r.pool.QueryRow(ctx, query, ticketID, email, purpose).Scan(
		&token.ID,
		&token.TicketID,
		&token.Email,
		&token.TokenHash,
		&token.Purpose,
		&token.ExpiresAt,
		&token.CreatedIP,
		&token.LastSentAt,
		&token.ConsumedAt,
		&token.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &token, nil
}
