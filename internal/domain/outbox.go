package domain

import "time"

// OutboxStatus tracks delivery by the external mail dispatcher.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "PENDING"
)

// OutboundEmail is a row in the mail outbox. Delivery and retries belong to
// the dispatcher that drains the table.
type OutboundEmail struct {
	ID        string
	OrgID     string
	TicketID  *string
	ToAddress string
	Subject   string
	TextBody  string
	MessageID string
	InReplyTo *string
	Status    OutboxStatus
	Attempts  int
	CreatedAt time.Time
}
