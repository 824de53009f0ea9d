package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// TicketRepository encapsulates ticket persistence. Lookups never return
// soft-deleted tickets.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByKey(ctx context.Context, key string) (*domain.Ticket, error)
	NextKeyNumber(ctx context.Context) (int64, error)
	// ApplyCustomerReply reopens a ticket waiting on the customer and always
	// refreshes updated_at. It returns the resulting status.
	ApplyCustomerReply(ctx context.Context, orgID, ticketID string) (domain.TicketStatus, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, key, org_id, subject, description, requester_email, requester_id,
               status, priority, category, source, sla_response_target_hours, sla_resolution_target_hours,
               first_response_at, resolved_at, created_at, updated_at, deleted_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (key, org_id, subject, description, requester_email, requester_id, status,
            priority, category, source, sla_response_target_hours, sla_resolution_target_hours)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Key,
		ticket.OrgID,
		ticket.Subject,
		ticket.Description,
		ticket.RequesterEmail,
		ticket.RequesterID,
		ticket.Status,
		ticket.Priority,
		ticket.Category,
		ticket.Source,
		ticket.SLAResponseTargetHours,
		ticket.SLAResolutionTargetHours,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 AND deleted_at IS NULL`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByKey(ctx context.Context, key string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE key=$1 AND deleted_at IS NULL`
	return r.fetchSingle(ctx, query, key)
}

func (r *ticketRepository) NextKeyNumber(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT nextval('ticket_key_seq')`).Scan(&n)
	return n, err
}

func (r *ticketRepository) ApplyCustomerReply(ctx context.Context, orgID, ticketID string) (domain.TicketStatus, error) {
	const query = `
        UPDATE tickets SET
            status = CASE WHEN status = $1 THEN $2 ELSE status END,
            updated_at = NOW()
        WHERE id=$3 AND org_id=$4 AND deleted_at IS NULL
        RETURNING status`
	var status domain.TicketStatus
	err := r.pool.QueryRow(ctx, query,
		domain.TicketStatusWaitingOnCustomer,
		domain.TicketStatusOpen,
		ticketID,
		orgID,
	).Scan(&status)
	return status, err
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Key,
		&ticket.OrgID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.RequesterEmail,
		&ticket.RequesterID,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Category,
		&ticket.Source,
		&ticket.SLAResponseTargetHours,
		&ticket.SLAResolutionTargetHours,
		&ticket.FirstResponseAt,
		&ticket.ResolvedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.DeletedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
