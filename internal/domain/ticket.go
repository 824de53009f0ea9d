package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew               TicketStatus = "NEW"
	TicketStatusOpen              TicketStatus = "OPEN"
	TicketStatusWaitingOnCustomer TicketStatus = "WAITING_ON_CUSTOMER"
	TicketStatusInProgress        TicketStatus = "IN_PROGRESS"
	TicketStatusResolved          TicketStatus = "RESOLVED"
	TicketStatusClosed            TicketStatus = "CLOSED"
)

// TicketPriority enumerates SLA urgency, P1 being the most urgent.
type TicketPriority string

const (
	TicketPriorityP1 TicketPriority = "P1"
	TicketPriorityP2 TicketPriority = "P2"
	TicketPriorityP3 TicketPriority = "P3"
	TicketPriorityP4 TicketPriority = "P4"
)

// Valid reports whether p is one of the known priorities.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityP1, TicketPriorityP2, TicketPriorityP3, TicketPriorityP4:
		return true
	}
	return false
}

// TicketSource records which intake channel created the ticket.
type TicketSource string

const (
	TicketSourceEmail TicketSource = "EMAIL"
	TicketSourceWeb   TicketSource = "WEB"
)

// Ticket is the aggregate for support requests. OrgID never changes after
// creation and the SLA targets are snapshotted from the org policy at insert.
type Ticket struct {
	ID                       string
	Key                      string
	OrgID                    string
	Subject                  string
	Description              string
	RequesterEmail           *string
	RequesterID              *string
	Status                   TicketStatus
	Priority                 TicketPriority
	Category                 string
	Source                   TicketSource
	SLAResponseTargetHours   int
	SLAResolutionTargetHours int
	FirstResponseAt          *time.Time
	ResolvedAt               *time.Time
	CreatedAt                time.Time
	UpdatedAt                time.Time
	DeletedAt                *time.Time
}
