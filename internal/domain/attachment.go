package domain

import "time"

// Attachment is a stored file owned by a ticket, optionally tied to the
// comment that carried it.
type Attachment struct {
	ID          string
	TicketID    string
	CommentID   *string
	FileName    string
	ContentType string
	SizeBytes   int64
	Content     []byte
	CreatedAt   time.Time
}
