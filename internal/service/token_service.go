package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/observability"
	"github.com/spec-kit/ticket-intake/internal/repository"
)

const tokenBytes = 32

// TokenService issues and consumes single-use ticket access tokens. Only a
// keyed hash of each bearer value is persisted.
type TokenService struct {
	tokens  repository.TokenRepository
	tickets repository.TicketRepository
	outbox  repository.OutboxRepository
	cfg     config.TokenConfig
	intake  config.IntakeConfig
	logger  *zap.Logger
	metrics *observability.Metrics
	hashKey []byte
	now     func() time.Time
	random  io.Reader
}

// TokenDependencies bundles collaborators for the token service.
type TokenDependencies struct {
	TokenRepo  repository.TokenRepository
	TicketRepo repository.TicketRepository
	OutboxRepo repository.OutboxRepository
	Config     config.TokenConfig
	Intake     config.IntakeConfig
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Now        func() time.Time
}

// NewTokenService constructs the service.
func NewTokenService(deps TokenDependencies) *TokenService {
	key := []byte(deps.Config.HashKey)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	s := &TokenService{
		tokens:  deps.TokenRepo,
		tickets: deps.TicketRepo,
		outbox:  deps.OutboxRepo,
		cfg:     deps.Config,
		intake:  deps.Intake,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		hashKey: key,
		now:     deps.Now,
		random:  rand.Reader,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Issue mints a token bound to (ticketID, email) and returns the bearer
// value. The value is not recoverable afterwards.
func (s *TokenService) Issue(ctx context.Context, ticketID, email string, purpose domain.TokenPurpose, ip string) (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := io.ReadFull(s.random, raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	bearer := base64.RawURLEncoding.EncodeToString(raw)

	now := s.now()
	record := &domain.TicketToken{
		TicketID:   ticketID,
		Email:      strings.ToLower(strings.TrimSpace(email)),
		TokenHash:  s.HashToken(bearer),
		Purpose:    purpose,
		ExpiresAt:  now.Add(s.cfg.ViewTTL()),
		CreatedIP:  ip,
		LastSentAt: now,
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		s.metrics.RecordToken("issue", "error")
		return "", err
	}
	s.metrics.RecordToken("issue", "ok")
	return bearer, nil
}

// Consume spends the token for purpose on whichever ticket it was minted
// for. Unknown, expired, consumed and wrong-purpose tokens all return nil
// with no error; only store failures return an error.
func (s *TokenService) Consume(ctx context.Context, token string, purpose domain.TokenPurpose) (*domain.AccessGrant, error) {
	return s.consume(ctx, token, purpose, "")
}

// Peek resolves the grant a token would yield without spending it. Callers
// that must do more work before committing call Consume afterwards.
func (s *TokenService) Peek(ctx context.Context, token string, purpose domain.TokenPurpose) (*domain.AccessGrant, error) {
	if !wellFormedToken(token) {
		return nil, nil
	}
	record, err := s.tokens.Find(ctx, s.HashToken(token), purpose)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !record.Usable(s.now()) {
		return nil, nil
	}
	return &domain.AccessGrant{
		TicketID: record.TicketID,
		Email:    record.Email,
		Purpose:  record.Purpose,
	}, nil
}

// ConsumeForTicket is Consume restricted to tokens minted for ticketID.
func (s *TokenService) ConsumeForTicket(ctx context.Context, token string, purpose domain.TokenPurpose, ticketID string) (*domain.AccessGrant, error) {
	if ticketID == "" {
		return nil, nil
	}
	return s.consume(ctx, token, purpose, ticketID)
}

func (s *TokenService) consume(ctx context.Context, token string, purpose domain.TokenPurpose, ticketID string) (*domain.AccessGrant, error) {
	if !wellFormedToken(token) {
		s.metrics.RecordToken("consume", "rejected")
		return nil, nil
	}
	record, err := s.tokens.Consume(ctx, s.HashToken(token), purpose, ticketID)
	if errors.Is(err, pgx.ErrNoRows) {
		s.metrics.RecordToken("consume", "rejected")
		return nil, nil
	}
	if err != nil {
		s.metrics.RecordToken("consume", "error")
		return nil, err
	}
	s.metrics.RecordToken("consume", "ok")
	return &domain.AccessGrant{
		TicketID: record.TicketID,
		Email:    record.Email,
		Purpose:  record.Purpose,
	}, nil
}

// RequestAccessLink mails a fresh VIEW link to the requester of ticketKey.
// Unknown tickets, other addresses and requests inside the resend interval
// are silently ignored so callers always observe the same outcome.
func (s *TokenService) RequestAccessLink(ctx context.Context, ticketKey, email, ip string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	ticket, err := s.tickets.GetByKey(ctx, strings.ToUpper(strings.TrimSpace(ticketKey)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if ticket.RequesterEmail == nil || !strings.EqualFold(*ticket.RequesterEmail, email) {
		return nil
	}

	latest, err := s.tokens.LatestForRecipient(ctx, ticket.ID, email, domain.TokenPurposeView)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return err
	case s.now().Sub(latest.LastSentAt) < s.cfg.ResendInterval():
		s.logger.Info("access link throttled", zap.String("ticket_id", ticket.ID))
		return nil
	}

	token, err := s.Issue(ctx, ticket.ID, email, domain.TokenPurposeView, ip)
	if err != nil {
		return err
	}
	mail := accessLinkEmail(ticket, email, ticketLinkURL(s.intake.BaseURL, token), s.intake.MailDomain)
	return s.outbox.Enqueue(ctx, mail)
}

// HashToken returns the hex BLAKE2b-256 of token keyed with the pepper.
func (s *TokenService) HashToken(token string) string {
	h, err := blake2b.New256(s.hashKey)
	if err != nil {
		// Unreachable: the key is at most blake2b.Size bytes.
		panic(err)
	}
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}

func wellFormedToken(token string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil && len(raw) == tokenBytes
}
