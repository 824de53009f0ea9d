package domain

// InboundEmail is the canonical form of a provider webhook payload.
type InboundEmail struct {
	From        string
	Subject     string
	TextBody    string
	HTMLBody    string
	MessageID   string
	InReplyTo   string
	References  string
	Attachments []InboundAttachment
}

// InboundAttachment is a file carried by an inbound email.
type InboundAttachment struct {
	FileName    string
	ContentType string
	Content     []byte
}
