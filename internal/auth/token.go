package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// GrantManager signs and validates portal grants: short-lived JWTs handed
// out after a magic link is consumed, so the holder can keep browsing the
// one ticket the link was minted for.
type GrantManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewGrantManager builds a new manager.
func NewGrantManager(secret string, ttl time.Duration) *GrantManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &GrantManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Claims describes JWT payload.
type Claims struct {
	TicketID string              `json:"ticket_id"`
	Email    string              `json:"email"`
	Purpose  domain.TokenPurpose `json:"purpose"`
	jwt.RegisteredClaims
}

// Issue signs a grant for the (ticket, email) pair.
func (m *GrantManager) Issue(grant *domain.AccessGrant) (string, time.Time, error) {
	if grant == nil || grant.TicketID == "" {
		return "", time.Time{}, errors.New("grant requires a ticket")
	}
	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := &Claims{
		TicketID: grant.TicketID,
		Email:    grant.Email,
		Purpose:  grant.Purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   grant.TicketID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse validates a signed grant and returns it.
func (m *GrantManager) Parse(tokenStr string) (*domain.AccessGrant, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.TicketID == "" {
		return nil, errors.New("invalid grant claims")
	}
	return &domain.AccessGrant{
		TicketID: claims.TicketID,
		Email:    claims.Email,
		Purpose:  claims.Purpose,
	}, nil
}
