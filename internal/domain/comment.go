package domain

import "time"

// TicketComment is one entry in a ticket thread. A nil UserID means the
// author is anonymous and identified only by AuthorEmail.
type TicketComment struct {
	ID          string
	TicketID    string
	UserID      *string
	AuthorEmail *string
	Content     string
	IsInternal  bool
	MessageID   *string
	InReplyTo   *string
	References  *string
	CreatedAt   time.Time
}
