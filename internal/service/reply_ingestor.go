package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/events"
	"github.com/spec-kit/ticket-intake/internal/inbound"
	"github.com/spec-kit/ticket-intake/internal/observability"
	"github.com/spec-kit/ticket-intake/internal/repository"
	"github.com/spec-kit/ticket-intake/pkg/errorutil"
)

// ReplyIngestor appends an inbound email to the ticket it threads onto.
type ReplyIngestor struct {
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	users       repository.UserRepository
	attachments repository.AttachmentRepository
	dispatcher  events.Dispatcher
	cfg         config.IntakeConfig
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// ReplyDependencies bundles collaborators for the ingestor.
type ReplyDependencies struct {
	TicketRepo     repository.TicketRepository
	CommentRepo    repository.CommentRepository
	UserRepo       repository.UserRepository
	AttachmentRepo repository.AttachmentRepository
	Dispatcher     events.Dispatcher
	Config         config.IntakeConfig
	Logger         *zap.Logger
	Metrics        *observability.Metrics
}

// IngestResult describes the stored reply. Duplicate is set when the
// provider redelivered a message that was already recorded.
type IngestResult struct {
	Comment   *domain.TicketComment
	Status    domain.TicketStatus
	Duplicate bool
}

// NewReplyIngestor constructs the ingestor.
func NewReplyIngestor(deps ReplyDependencies) *ReplyIngestor {
	r := &ReplyIngestor{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		users:       deps.UserRepo,
		attachments: deps.AttachmentRepo,
		dispatcher:  deps.Dispatcher,
		cfg:         deps.Config,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Ingest records the reply as a public comment and reopens the ticket when
// it was waiting on the customer.
func (r *ReplyIngestor) Ingest(ctx context.Context, ticket *domain.Ticket, email *domain.InboundEmail) (*IngestResult, error) {
	address, _, ok := inbound.ParseAddress(email.From)
	if !ok {
		return nil, errorutil.NewValidationError("sender address is invalid", nil)
	}

	messageID := inbound.NormalizeMessageID(email.MessageID)
	if messageID != "" {
		existing, err := r.comments.GetByMessageID(ctx, ticket.ID, messageID)
		if err == nil {
			r.metrics.RecordInbound("email", "duplicate")
			return &IngestResult{Comment: existing, Status: ticket.Status, Duplicate: true}, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}

	comment := &domain.TicketComment{
		TicketID:   ticket.ID,
		Content:    email.TextBody,
		IsInternal: false,
	}
	if comment.Content == "" {
		comment.Content = inbound.StripHTML(email.HTMLBody)
	}

	// Accounts are only looked up inside the ticket's own organization.
	user, err := r.users.FindMember(ctx, ticket.OrgID, address)
	switch {
	case err == nil:
		comment.UserID = &user.ID
	case errors.Is(err, pgx.ErrNoRows):
		comment.AuthorEmail = &address
	default:
		return nil, err
	}

	if messageID == "" {
		messageID = syntheticMessageID(ticket.ID, "new", r.cfg.MailDomain)
	}
	comment.MessageID = &messageID
	if email.InReplyTo != "" {
		comment.InReplyTo = &email.InReplyTo
	}
	if email.References != "" {
		comment.References = &email.References
	}

	// The transition is idempotent, so it runs before the insert: a retry
	// after a failed insert still lands both effects.
	status, err := r.tickets.ApplyCustomerReply(ctx, ticket.OrgID, ticket.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errorutil.NewNotFound("ticket", nil)
	}
	if err != nil {
		return nil, err
	}

	created, err := r.comments.Create(ctx, comment)
	if err != nil {
		return nil, err
	}
	if !created {
		existing, err := r.comments.GetByMessageID(ctx, ticket.ID, messageID)
		if err != nil {
			return nil, err
		}
		r.metrics.RecordInbound("email", "duplicate")
		return &IngestResult{Comment: existing, Status: status, Duplicate: true}, nil
	}

	storeAttachments(ctx, r.attachments, ticket.ID, &comment.ID, email.Attachments, r.cfg.MaxAttachmentBytes, r.logger)
	r.publishReply(ctx, ticket, comment, status, address)
	r.metrics.RecordInbound("email", "reply")

	return &IngestResult{Comment: comment, Status: status}, nil
}

func (r *ReplyIngestor) publishReply(ctx context.Context, ticket *domain.Ticket, comment *domain.TicketComment, status domain.TicketStatus, address string) {
	if r.dispatcher == nil {
		return
	}
	actor := events.Actor{Type: events.ActorRequester, Email: address}
	if comment.UserID != nil {
		actor = events.Actor{Type: events.ActorUser, UserID: comment.UserID, Email: address}
	}
	err := r.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketReplyReceived,
		OrgID:     ticket.OrgID,
		TicketID:  ticket.ID,
		Actor:     actor,
		Timestamp: time.Now(),
		Payload: events.TicketReplyReceivedPayload{
			CommentID:   comment.ID,
			Status:      status,
			BodyPreview: preview(comment.Content, 200),
		},
	})
	if err != nil {
		r.logger.Warn("reply notification failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
