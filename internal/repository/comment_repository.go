package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// CommentRepository manages ticket thread comments.
type CommentRepository interface {
	// Create inserts the comment unless one with the same (ticket, message id)
	// already exists; created reports which happened.
	Create(ctx context.Context, comment *domain.TicketComment) (created bool, err error)
	GetByMessageID(ctx context.Context, ticketID, messageID string) (*domain.TicketComment, error)
	// FindTicketIDsByMessageIDs maps each message id that belongs to a comment
	// or an outbound mail of a live ticket to that ticket's id.
	FindTicketIDsByMessageIDs(ctx context.Context, messageIDs []string) (map[string]string, error)
	ListPublicByTicket(ctx context.Context, ticketID string) ([]domain.TicketComment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

const commentColumns = `id, ticket_id, user_id, author_email, content, is_internal, message_id, in_reply_to, "references", created_at`

func (r *commentRepository) Create(ctx context.Context, comment *domain.TicketComment) (bool, error) {
	const query = `
        INSERT INTO ticket_comments (ticket_id, user_id, author_email, content, is_internal, message_id, in_reply_to, "references")
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (ticket_id, message_id) DO NOTHING
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		comment.TicketID,
		comment.UserID,
		comment.AuthorEmail,
		comment.Content,
		comment.IsInternal,
		comment.MessageID,
		comment.InReplyTo,
		comment.References,
	).Scan(&comment.ID, &comment.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *commentRepository) GetByMessageID(ctx context.Context, ticketID, messageID string) (*domain.TicketComment, error) {
	query := `SELECT ` + commentColumns + ` FROM ticket_comments WHERE ticket_id=$1 AND message_id=$2`
	return scanComment(r.pool.QueryRow(ctx, query, ticketID, messageID))
}

func (r *commentRepository) FindTicketIDsByMessageIDs(ctx context.Context, messageIDs []string) (map[string]string, error) {
	result := make(map[string]string, len(messageIDs))
	if len(messageIDs) == 0 {
		return result, nil
	}
	const query = `
        SELECT DISTINCT ON (m.message_id) m.message_id, m.ticket_id
        FROM (
            SELECT c.message_id, c.ticket_id, c.created_at FROM ticket_comments c WHERE c.message_id = ANY($1)
            UNION ALL
            SELECT o.message_id, o.ticket_id, o.created_at FROM email_outbox o
            WHERE o.message_id = ANY($1) AND o.ticket_id IS NOT NULL
        ) m
        JOIN tickets t ON t.id = m.ticket_id AND t.deleted_at IS NULL
        ORDER BY m.message_id, m.created_at ASC`
	rows, err := r.pool.Query(ctx, query, messageIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var messageID, ticketID string
		if err := rows.Scan(&messageID, &ticketID); err != nil {
			return nil, err
		}
		result[messageID] = ticketID
	}
	return result, rows.Err()
}

func (r *commentRepository) ListPublicByTicket(ctx context.Context, ticketID string) ([]domain.TicketComment, error) {
	query := `SELECT ` + commentColumns + ` FROM ticket_comments
        WHERE ticket_id=$1 AND is_internal = FALSE ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketComment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *comment)
	}
	return result, rows.Err()
}

func scanComment(row pgx.Row) (*domain.TicketComment, error) {
	var comment domain.TicketComment
	if err := row.Scan(
		&comment.ID,
		&comment.TicketID,
		&comment.UserID,
		&comment.AuthorEmail,
		&comment.Content,
		&comment.IsInternal,
		&comment.MessageID,
		&comment.InReplyTo,
		&comment.References,
		&comment.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &comment, nil
}
