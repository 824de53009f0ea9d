package domain

import "time"

// TokenPurpose scopes what a ticket token may be used for.
type TokenPurpose string

const (
	TokenPurposeView TokenPurpose = "VIEW"
)

// TicketToken is the persisted half of a magic link. Only the hash of the
// bearer value is stored.
type TicketToken struct {
	ID         string
	TicketID   string
	Email      string
	TokenHash  string
	Purpose    TokenPurpose
	ExpiresAt  time.Time
	CreatedIP  string
	LastSentAt time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Usable reports whether the token can still be consumed at now.
func (t *TicketToken) Usable(now time.Time) bool {
	return t != nil && t.ConsumedAt == nil && now.Before(t.ExpiresAt)
}

// AccessGrant is the result of consuming a token: it authorizes exactly the
// (ticket, email) pair the token was minted for.
type AccessGrant struct {
	TicketID string
	Email    string
	Purpose  TokenPurpose
}

// Allows reports whether a resource owned by ticketID may be accessed.
func (g *AccessGrant) Allows(ticketID string) bool {
	return g != nil && g.TicketID != "" && g.TicketID == ticketID
}
