package dto

import (
	"time"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// TicketView is the requester-facing ticket representation.
type TicketView struct {
	ID          string                `json:"id"`
	Key         string                `json:"key"`
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	Category    string                `json:"category"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	ResolvedAt  *time.Time            `json:"resolved_at,omitempty"`
}

// CommentView represents one public thread entry.
type CommentView struct {
	ID          string    `json:"id"`
	AuthorEmail *string   `json:"author_email,omitempty"`
	FromMember  bool      `json:"from_member"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// AttachmentView is attachment metadata; content is served separately.
type AttachmentView struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

// GrantView carries the portal grant issued with a consumed link.
type GrantView struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TicketViewResponse is returned when a magic link is opened.
type TicketViewResponse struct {
	Ticket      TicketView       `json:"ticket"`
	Comments    []CommentView    `json:"comments"`
	Attachments []AttachmentView `json:"attachments"`
	Grant       *GrantView       `json:"grant,omitempty"`
}

// AccessLinkRequest asks for a fresh magic link.
type AccessLinkRequest struct {
	TicketKey string `json:"ticketKey" form:"ticketKey"`
	Email     string `json:"email" form:"email"`
}
