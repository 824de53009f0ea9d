// Package threading decides whether an inbound email continues an existing
// ticket.
package threading

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/inbound"
	"github.com/spec-kit/ticket-intake/internal/repository"
)

// Strategy names reported in Match.
const (
	StrategySubjectKey = "subject_key"
	StrategyInReplyTo  = "in_reply_to"
	StrategyReferences = "references"
	StrategyMessageID  = "message_id"
)

// subjectKeyPattern finds [PREFIX-YYYY-NNNNNN] or [PREFIX-NNNNNN] anywhere in
// a subject. The sequence is zero padded to six digits and may grow past it.
var subjectKeyPattern = regexp.MustCompile(`(?i)\[([a-z][a-z0-9]*-(?:\d{4}-)?\d{6,})\]`)

// Match is a resolved thread.
type Match struct {
	Ticket   *domain.Ticket
	Strategy string
}

type strategy struct {
	name string
	find func(ctx context.Context, email *domain.InboundEmail) (*domain.Ticket, error)
}

// Resolver runs the threading strategies in precedence order and stops at
// the first one that identifies a live ticket.
type Resolver struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	logger     *zap.Logger
	strategies []strategy
}

// NewResolver constructs a resolver. The subject key strategy comes first so
// an explicit key beats any header correlation.
func NewResolver(tickets repository.TicketRepository, comments repository.CommentRepository, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{tickets: tickets, comments: comments, logger: logger}
	r.strategies = []strategy{
		{name: StrategySubjectKey, find: r.bySubjectKey},
		{name: StrategyInReplyTo, find: func(ctx context.Context, email *domain.InboundEmail) (*domain.Ticket, error) {
			return r.byMessageIDs(ctx, inbound.ParseMessageIDs(email.InReplyTo))
		}},
		{name: StrategyReferences, find: func(ctx context.Context, email *domain.InboundEmail) (*domain.Ticket, error) {
			return r.byMessageIDs(ctx, inbound.ParseMessageIDs(email.References))
		}},
		{name: StrategyMessageID, find: func(ctx context.Context, email *domain.InboundEmail) (*domain.Ticket, error) {
			return r.byMessageIDs(ctx, inbound.ParseMessageIDs(email.MessageID))
		}},
	}
	return r
}

// Match returns nil, nil when the email is not a reply.
func (r *Resolver) Match(ctx context.Context, email *domain.InboundEmail) (*Match, error) {
	if email == nil {
		return nil, nil
	}
	for _, s := range r.strategies {
		ticket, err := s.find(ctx, email)
		if err != nil {
			return nil, err
		}
		if ticket != nil {
			r.logger.Debug("thread matched",
				zap.String("strategy", s.name),
				zap.String("ticket_id", ticket.ID))
			return &Match{Ticket: ticket, Strategy: s.name}, nil
		}
	}
	return nil, nil
}

// SubjectKeys extracts the bracketed ticket keys in subject, uppercased, in
// order of appearance.
func SubjectKeys(subject string) []string {
	matches := subjectKeyPattern.FindAllStringSubmatch(subject, -1)
	if len(matches) == 0 {
		return nil
	}
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, strings.ToUpper(m[1]))
	}
	return keys
}

func (r *Resolver) bySubjectKey(ctx context.Context, email *domain.InboundEmail) (*domain.Ticket, error) {
	for _, key := range SubjectKeys(email.Subject) {
		ticket, err := r.tickets.GetByKey(ctx, key)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return ticket, nil
	}
	return nil, nil
}

// byMessageIDs returns the ticket owning the leftmost id that is known.
func (r *Resolver) byMessageIDs(ctx context.Context, ids []string) (*domain.Ticket, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	owners, err := r.comments.FindTicketIDsByMessageIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		ticketID, ok := owners[id]
		if !ok {
			continue
		}
		ticket, err := r.tickets.GetByID(ctx, ticketID)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return ticket, nil
	}
	return nil, nil
}
