package events

import (
	"time"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketReplyReceived EventType = "ticket_reply_received"
)

// ActorType distinguishes who caused an event.
type ActorType string

const (
	ActorRequester ActorType = "requester"
	ActorUser      ActorType = "user"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type   ActorType `json:"type"`
	UserID *string   `json:"user_id,omitempty"`
	Email  string    `json:"email,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	OrgID     string      `json:"org_id"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Key      string                `json:"key"`
	Subject  string                `json:"subject"`
	Priority domain.TicketPriority `json:"priority"`
	Category string                `json:"category"`
	Source   domain.TicketSource   `json:"source"`
}

// TicketReplyReceivedPayload payload.
type TicketReplyReceivedPayload struct {
	CommentID   string              `json:"comment_id"`
	Status      domain.TicketStatus `json:"status"`
	BodyPreview string              `json:"body_preview"`
}
