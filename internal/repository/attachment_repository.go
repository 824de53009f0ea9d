package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// AttachmentRepository persists attachments. Every read is keyed by the
// owning ticket so a caller can only reach files of the ticket it holds.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	GetForTicket(ctx context.Context, ticketID, attachmentID string) (*domain.Attachment, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	const query = `
        INSERT INTO ticket_attachments (ticket_id, comment_id, file_name, content_type, size_bytes, content)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		attachment.TicketID,
		attachment.CommentID,
		attachment.FileName,
		attachment.ContentType,
		attachment.SizeBytes,
		attachment.Content,
	).Scan(&attachment.ID, &attachment.CreatedAt)
}

func (r *attachmentRepository) GetForTicket(ctx context.Context, ticketID, attachmentID string) (*domain.Attachment, error) {
	const query = `
        SELECT id, ticket_id, comment_id, file_name, content_type, size_bytes, content, created_at
        FROM ticket_attachments WHERE ticket_id=$1 AND id=$2`
	var attachment domain.Attachment
	if err := r.pool.QueryRow(ctx, query, ticketID, attachmentID).Scan(
		&attachment.ID,
		&attachment.TicketID,
		&attachment.CommentID,
		&attachment.FileName,
		&attachment.ContentType,
		&attachment.SizeBytes,
		&attachment.Content,
		&attachment.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &attachment, nil
}

// ListByTicket returns metadata only; Content is left empty.
func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error) {
	const query = `
        SELECT id, ticket_id, comment_id, file_name, content_type, size_bytes, created_at
        FROM ticket_attachments WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		var attachment domain.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.TicketID,
			&attachment.CommentID,
			&attachment.FileName,
			&attachment.ContentType,
			&attachment.SizeBytes,
			&attachment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, attachment)
	}
	return result, rows.Err()
}
