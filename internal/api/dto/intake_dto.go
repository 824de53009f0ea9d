package dto

// PublicTicketForm is the public support form. Website is a honeypot that
// humans never see.
type PublicTicketForm struct {
	Email       string `form:"email" json:"email"`
	Name        string `form:"name" json:"name"`
	Subject     string `form:"subject" json:"subject"`
	Description string `form:"description" json:"description"`
	Website     string `form:"website" json:"website"`
}

// WebhookResponse acknowledges an inbound email.
type WebhookResponse struct {
	Success   bool    `json:"success"`
	TicketID  string  `json:"ticketId"`
	TicketKey string  `json:"ticketKey"`
	IsReply   bool    `json:"isReply"`
	CommentID *string `json:"commentId,omitempty"`
}
