package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/repository"
	"github.com/spec-kit/ticket-intake/pkg/errorutil"
)

// TicketView is what a magic link holder may see.
type TicketView struct {
	Ticket      *domain.Ticket
	Comments    []domain.TicketComment
	Attachments []domain.Attachment
}

// PortalService serves ticket data to access grant holders. Every read
// re-checks that the resource belongs to the granted ticket.
type PortalService struct {
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
}

// PortalDependencies bundles repositories for the portal.
type PortalDependencies struct {
	TicketRepo     repository.TicketRepository
	CommentRepo    repository.CommentRepository
	AttachmentRepo repository.AttachmentRepository
}

// NewPortalService constructs the service.
func NewPortalService(deps PortalDependencies) *PortalService {
	return &PortalService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
	}
}

// View loads the granted ticket with its public thread and attachment
// metadata.
func (s *PortalService) View(ctx context.Context, grant *domain.AccessGrant) (*TicketView, error) {
	if grant == nil {
		return nil, errorutil.NewNotFound("ticket", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, grant.TicketID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errorutil.NewNotFound("ticket", nil)
	}
	if err != nil {
		return nil, err
	}
	if !grant.Allows(ticket.ID) {
		return nil, errorutil.NewNotFound("ticket", nil)
	}
	comments, err := s.comments.ListPublicByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	attachments, err := s.attachments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	return &TicketView{Ticket: ticket, Comments: comments, Attachments: attachments}, nil
}

// Attachment returns the file when the grant, the requested ticket and the
// attachment's owner all agree. Any mismatch is reported as not found.
func (s *PortalService) Attachment(ctx context.Context, grant *domain.AccessGrant, ticketID, attachmentID string) (*domain.Attachment, error) {
	if !grant.Allows(ticketID) {
		return nil, errorutil.NewNotFound("attachment", nil)
	}
	if _, err := uuid.Parse(attachmentID); err != nil {
		return nil, errorutil.NewNotFound("attachment", nil)
	}
	attachment, err := s.attachments.GetForTicket(ctx, ticketID, attachmentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errorutil.NewNotFound("attachment", nil)
	}
	if err != nil {
		return nil, err
	}
	if !grant.Allows(attachment.TicketID) {
		return nil, errorutil.NewNotFound("attachment", nil)
	}
	return attachment, nil
}
