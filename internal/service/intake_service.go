package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

// IntakeChannel identifies where a submission came from.
type IntakeChannel string

const (
	ChannelEmail IntakeChannel = "email"
	ChannelWeb   IntakeChannel = "web"
)

// IntakeRequest is a new-ticket submission from either channel.
type IntakeRequest struct {
	SenderEmail string
	SenderName  string
	Subject     string
	Description string
	SourceIP    string
	Channel     IntakeChannel
	// SubdomainHint is the web form host's subdomain, used when the sender
	// has no membership.
	SubdomainHint string
	Priority      domain.TicketPriority
	Category      string
	Attachments   []domain.InboundAttachment
}

// IntakeResult is the created ticket. ConfirmationQueued reports whether the
// confirmation mail made it into the outbox.
type IntakeResult struct {
	Ticket             *domain.Ticket
	ConfirmationQueued bool
}

// IntakeService admits external submissions as tickets.
type IntakeService struct {
	tickets     repository.TicketRepository
	orgs        repository.OrganizationRepository
	users       repository.UserRepository
	attachments repository.AttachmentRepository
	outbox      repository.OutboxRepository
	limiter     *RateLimiter
	guard       *AbuseGuard
	tokens      *TokenService
	dispatcher  events.Dispatcher
	cfg         config.IntakeConfig
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// IntakeDependencies bundles collaborators for the intake service.
type IntakeDependencies struct {
	TicketRepo       repository.TicketRepository
	OrganizationRepo repository.OrganizationRepository
	UserRepo         repository.UserRepository
	AttachmentRepo   repository.AttachmentRepository
	OutboxRepo       repository.OutboxRepository
	RateLimiter      *RateLimiter
	AbuseGuard       *AbuseGuard
	TokenService     *TokenService
	Dispatcher       events.Dispatcher
	Config           config.IntakeConfig
	Logger           *zap.Logger
	Metrics          *observability.Metrics
	Now              func() time.Time
}

// NewIntakeService constructs the service.
func NewIntakeService(deps IntakeDependencies) *IntakeService {
	s := &IntakeService{
		tickets:     deps.TicketRepo,
		orgs:        deps.OrganizationRepo,
		users:       deps.UserRepo,
		attachments: deps.AttachmentRepo,
		outbox:      deps.OutboxRepo,
		limiter:     deps.RateLimiter,
		guard:       deps.AbuseGuard,
		tokens:      deps.TokenService,
		dispatcher:  deps.Dispatcher,
		cfg:         deps.Config,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		now:         deps.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateTicket runs the intake gates in order and creates the ticket. Once
// the ticket row exists, confirmation and notification failures are logged
// and never undo it.
func (s *IntakeService) CreateTicket(ctx context.Context, req IntakeRequest) (*IntakeResult, error) {
	channel := req.Channel
	if channel == "" {
		channel = ChannelWeb
	}

	email, subject, description, err := s.requiredFields(req)
	if err != nil {
		s.metrics.RecordInbound(string(channel), errorutil.CodeMissingFields)
		return nil, err
	}

	ip := req.SourceIP
	if channel == ChannelEmail {
		// Webhook requests come from the provider, not the sender.
		ip = ""
	}
	if s.limiter != nil && !s.limiter.Allow(ctx, ip, email) {
		s.metrics.RecordInbound(string(channel), errorutil.CodeRateLimited)
		return nil, errorutil.NewRateLimited()
	}

	org, err := s.resolveOrganization(ctx, email, req.SubdomainHint)
	if err != nil {
		return nil, err
	}
	if !org.AllowPublicIntake {
		s.metrics.RecordInbound(string(channel), errorutil.CodeIntakeDisabled)
		return nil, errorutil.NewIntakeDisabled()
	}

	if s.guard != nil {
		verdict := s.guard.Evaluate(ctx, req.SourceIP, email, subject, description)
		if !verdict.Allowed {
			s.metrics.RecordInbound(string(channel), errorutil.CodeSpamDetected)
			return nil, errorutil.NewSpamDetected(verdict.Reason)
		}
	}

	priority := s.priority(req.Priority)
	targets := ResolveSLATargets(org.SLAPolicy, priority)

	ticket := &domain.Ticket{
		OrgID:                    org.ID,
		Subject:                  subject,
		Description:              description,
		RequesterEmail:           &email,
		Status:                   domain.TicketStatusNew,
		Priority:                 priority,
		Category:                 firstNonBlank(req.Category, s.cfg.DefaultCategory, "general"),
		Source:                   sourceFor(channel),
		SLAResponseTargetHours:   targets.ResponseHours,
		SLAResolutionTargetHours: targets.ResolutionHours,
	}
	user, err := s.users.FindMember(ctx, org.ID, email)
	switch {
	case err == nil:
		ticket.RequesterID = &user.ID
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, err
	}

	if ticket.Key, err = s.nextKey(ctx); err != nil {
		return nil, err
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.metrics.RecordInbound(string(channel), "created")
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_key", ticket.Key),
		zap.String("org_id", org.ID),
		zap.String("channel", string(channel)))

	storeAttachments(ctx, s.attachments, ticket.ID, nil, req.Attachments, s.cfg.MaxAttachmentBytes, s.logger)

	result := &IntakeResult{Ticket: ticket}
	result.ConfirmationQueued = s.sendConfirmation(ctx, ticket, email, senderName(req), req.SourceIP)
	s.publishCreated(ctx, ticket, email)
	return result, nil
}

func (s *IntakeService) requiredFields(req IntakeRequest) (email, subject, description string, err error) {
	subject = strings.TrimSpace(req.Subject)
	description = strings.TrimSpace(req.Description)
	if description == "" && req.Channel == ChannelEmail {
		description = subject
	}

	var missing []string
	address, _, ok := inbound.ParseAddress(req.SenderEmail)
	if !ok {
		missing = append(missing, "email")
	}
	if subject == "" {
		missing = append(missing, "subject")
	}
	if description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return "", "", "", errorutil.NewMissingFields(missing...)
	}
	return address, subject, description, nil
}

// senderName is the explicit name, else the display name of the address.
func senderName(req IntakeRequest) string {
	name := req.SenderName
	if strings.TrimSpace(name) == "" {
		_, name, _ = inbound.ParseAddress(req.SenderEmail)
	}
	return strings.Join(strings.Fields(name), " ")
}

// resolveOrganization prefers the sender's membership, then the subdomain
// hint, then the shared unassigned organization.
func (s *IntakeService) resolveOrganization(ctx context.Context, email, hint string) (*domain.Organization, error) {
	org, err := s.orgs.FindByMemberEmail(ctx, email)
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if hint = strings.ToLower(strings.TrimSpace(hint)); hint != "" {
		org, err := s.orgs.GetBySubdomain(ctx, hint)
		if err == nil {
			return org, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}

	return s.orgs.EnsureBySlug(ctx, &domain.Organization{
		Slug:              s.cfg.UnassignedOrgSlug,
		Name:              "Unassigned intake",
		AllowPublicIntake: true,
	})
}

func (s *IntakeService) priority(requested domain.TicketPriority) domain.TicketPriority {
	if requested.Valid() {
		return requested
	}
	if p := domain.TicketPriority(strings.ToUpper(s.cfg.DefaultPriority)); p.Valid() {
		return p
	}
	return domain.TicketPriorityP3
}

func (s *IntakeService) nextKey(ctx context.Context) (string, error) {
	n, err := s.tickets.NextKeyNumber(ctx)
	if err != nil {
		return "", fmt.Errorf("next ticket key: %w", err)
	}
	prefix := firstNonBlank(s.cfg.KeyPrefix, "SUP")
	return fmt.Sprintf("%s-%04d-%06d", prefix, s.now().Year(), n), nil
}

// sendConfirmation issues the VIEW token and queues the confirmation mail.
func (s *IntakeService) sendConfirmation(ctx context.Context, ticket *domain.Ticket, email, name, ip string) bool {
	if s.tokens == nil {
		return false
	}
	token, err := s.tokens.Issue(ctx, ticket.ID, email, domain.TokenPurposeView, ip)
	if err != nil {
		s.logger.Error("view token not issued", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return false
	}
	if s.outbox == nil {
		return false
	}
	mail := confirmationEmail(ticket, email, name, ticketLinkURL(s.cfg.BaseURL, token), s.cfg.MailDomain)
	if err := s.outbox.Enqueue(ctx, mail); err != nil {
		s.logger.Warn("confirmation not queued", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return false
	}
	return true
}

func (s *IntakeService) publishCreated(ctx context.Context, ticket *domain.Ticket, email string) {
	if s.dispatcher == nil {
		return
	}
	actor := events.Actor{Type: events.ActorRequester, Email: email}
	if ticket.RequesterID != nil {
		actor = events.Actor{Type: events.ActorUser, UserID: ticket.RequesterID, Email: email}
	}
	err := s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketCreated,
		OrgID:     ticket.OrgID,
		TicketID:  ticket.ID,
		Actor:     actor,
		Timestamp: s.now(),
		Payload: events.TicketCreatedPayload{
			Key:      ticket.Key,
			Subject:  ticket.Subject,
			Priority: ticket.Priority,
			Category: ticket.Category,
			Source:   ticket.Source,
		},
	})
	if err != nil {
		s.logger.Warn("ticket notification failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

func sourceFor(channel IntakeChannel) domain.TicketSource {
	if channel == ChannelEmail {
		return domain.TicketSourceEmail
	}
	return domain.TicketSourceWeb
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
