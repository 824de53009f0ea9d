// Package inbound turns provider webhook bodies into domain.InboundEmail.
package inbound

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/mail"
	"strings"

	"github.com/jhillyerd/enmime"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// ErrUnrecognizedPayload is returned when no supported shape yields a sender
// and a subject.
var ErrUnrecognizedPayload = errors.New("inbound: unrecognized payload")

// fields is the undecoded top level of a JSON object.
type fields map[string]json.RawMessage

// payloadShape is one recognized provider layout.
type payloadShape interface {
	toEmail() *domain.InboundEmail
}

// shapeMatcher reports whether its discriminators are present in f.
type shapeMatcher func(f fields) (payloadShape, bool)

// Tried in order; the first shape with a non-empty from and subject wins.
var shapeMatchers = []shapeMatcher{
	matchEnvelope,
	matchFlat,
	matchSenderKeyed,
	matchRawMIME,
}

// Normalize parses a webhook body into the canonical email record.
func Normalize(body []byte) (*domain.InboundEmail, error) {
	var top fields
	if err := json.Unmarshal(body, &top); err != nil || top == nil {
		return nil, ErrUnrecognizedPayload
	}
	for _, match := range shapeMatchers {
		shape, ok := match(top)
		if !ok {
			continue
		}
		email := shape.toEmail()
		if email == nil {
			continue
		}
		finish(email)
		if email.From != "" && email.Subject != "" {
			return email, nil
		}
	}
	return nil, ErrUnrecognizedPayload
}

func finish(email *domain.InboundEmail) {
	email.From = strings.TrimSpace(email.From)
	email.Subject = strings.TrimSpace(email.Subject)
	email.TextBody = strings.TrimSpace(email.TextBody)
	if email.TextBody == "" {
		email.TextBody = StripHTML(email.HTMLBody)
	}
	email.MessageID = NormalizeMessageID(email.MessageID)
	if ids := ParseMessageIDs(email.InReplyTo); len(ids) > 0 {
		email.InReplyTo = ids[0]
	} else {
		email.InReplyTo = ""
	}
	email.References = strings.Join(ParseMessageIDs(email.References), " ")
}

// Shape A: {"type": "...", "data": {...}}.
type envelopePayload struct {
	data fields
}

func matchEnvelope(f fields) (payloadShape, bool) {
	if str(f, "type") == "" {
		return nil, false
	}
	data := object(f, "data")
	if data == nil {
		return nil, false
	}
	return envelopePayload{data: data}, true
}

func (p envelopePayload) toEmail() *domain.InboundEmail {
	d := p.data
	headers := headerMap(d, "headers")
	return &domain.InboundEmail{
		From:        firstNonEmpty(addressValue(d, "from"), headers.get("From")),
		Subject:     firstNonEmpty(str(d, "subject"), headers.get("Subject")),
		TextBody:    str(d, "text", "text_body", "plain"),
		HTMLBody:    str(d, "html", "html_body"),
		MessageID:   firstNonEmpty(str(d, "message_id", "messageId"), headers.get("Message-Id")),
		InReplyTo:   firstNonEmpty(str(d, "in_reply_to", "inReplyTo"), headers.get("In-Reply-To")),
		References:  firstNonEmpty(str(d, "references"), headers.get("References")),
		Attachments: attachments(d, "attachments"),
	}
}

// Shape B: flat object with from/subject and provider-specific body names.
type flatPayload struct {
	f fields
}

func matchFlat(f fields) (payloadShape, bool) {
	if !has(f, "from", "From") || !has(f, "subject", "Subject") {
		return nil, false
	}
	// Sender-keyed payloads also carry "from"; leave them to shape C.
	if has(f, "sender") {
		return nil, false
	}
	return flatPayload{f: f}, true
}

func (p flatPayload) toEmail() *domain.InboundEmail {
	f := p.f
	headers := headerMap(f, "Headers", "headers")
	return &domain.InboundEmail{
		From:        addressValue(f, "from", "From"),
		Subject:     str(f, "subject", "Subject"),
		TextBody:    str(f, "text", "TextBody", "plain", "text_body"),
		HTMLBody:    str(f, "html", "HtmlBody", "html_body"),
		MessageID:   firstNonEmpty(str(f, "message_id", "MessageID", "messageId"), headers.get("Message-Id")),
		InReplyTo:   firstNonEmpty(str(f, "in_reply_to", "InReplyTo", "inReplyTo"), headers.get("In-Reply-To")),
		References:  firstNonEmpty(str(f, "references", "References"), headers.get("References")),
		Attachments: attachments(f, "attachments", "Attachments"),
	}
}

// Shape C: keyed by "sender", hyphenated bodies, capitalized headers.
type senderKeyedPayload struct {
	f fields
}

func matchSenderKeyed(f fields) (payloadShape, bool) {
	if !has(f, "sender") {
		return nil, false
	}
	return senderKeyedPayload{f: f}, true
}

func (p senderKeyedPayload) toEmail() *domain.InboundEmail {
	f := p.f
	return &domain.InboundEmail{
		From:       firstNonEmpty(str(f, "from", "From"), str(f, "sender")),
		Subject:    str(f, "subject", "Subject"),
		TextBody:   str(f, "body-plain", "stripped-text"),
		HTMLBody:   str(f, "body-html", "stripped-html"),
		MessageID:  str(f, "Message-Id", "Message-ID"),
		InReplyTo:  str(f, "In-Reply-To"),
		References: str(f, "References"),
	}
}

// Shape D: the whole RFC 5322 message under "raw".
type rawMIMEPayload struct {
	raw string
}

func matchRawMIME(f fields) (payloadShape, bool) {
	raw := str(f, "raw", "raw_email", "RawEmail")
	if raw == "" {
		return nil, false
	}
	return rawMIMEPayload{raw: raw}, true
}

func (p rawMIMEPayload) toEmail() *domain.InboundEmail {
	env, err := enmime.ReadEnvelope(strings.NewReader(p.raw))
	if err != nil {
		return nil
	}
	email := &domain.InboundEmail{
		From:       env.GetHeader("From"),
		Subject:    env.GetHeader("Subject"),
		TextBody:   env.Text,
		HTMLBody:   env.HTML,
		MessageID:  env.GetHeader("Message-Id"),
		InReplyTo:  env.GetHeader("In-Reply-To"),
		References: env.GetHeader("References"),
	}
	for _, part := range env.Attachments {
		if len(part.Content) == 0 {
			continue
		}
		email.Attachments = append(email.Attachments, domain.InboundAttachment{
			FileName:    part.FileName,
			ContentType: part.ContentType,
			Content:     part.Content,
		})
	}
	return email
}

// str returns the first non-empty JSON string among keys.
func str(f fields, keys ...string) string {
	for _, key := range keys {
		raw, ok := f[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func has(f fields, keys ...string) bool {
	for _, key := range keys {
		if _, ok := f[key]; ok {
			return true
		}
	}
	return false
}

func object(f fields, key string) fields {
	raw, ok := f[key]
	if !ok {
		return nil
	}
	var nested fields
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil
	}
	return nested
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// addressValue accepts "Jane <jane@x.com>", {"email": "...", "name": "..."}
// or a list of either, returning the first entry.
func addressValue(f fields, keys ...string) string {
	if s := str(f, keys...); s != "" {
		return s
	}
	for _, key := range keys {
		raw, ok := f[key]
		if !ok {
			continue
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			var list []json.RawMessage
			if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
				continue
			}
			raw = list[0]
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
		var addr struct {
			Email   string `json:"email"`
			Address string `json:"address"`
			Name    string `json:"name"`
		}
		if err := json.Unmarshal(raw, &addr); err != nil {
			continue
		}
		mailbox := firstNonEmpty(addr.Email, addr.Address)
		if mailbox == "" {
			continue
		}
		if addr.Name != "" {
			return (&mail.Address{Name: addr.Name, Address: mailbox}).String()
		}
		return mailbox
	}
	return ""
}

// headers is a case-insensitive header lookup built from whichever layout
// the provider used.
type headers map[string]string

func (h headers) get(name string) string {
	return h[strings.ToLower(name)]
}

// headerMap understands an object, a [{Name, Value}] list or a raw header
// block.
func headerMap(f fields, keys ...string) headers {
	out := headers{}
	for _, key := range keys {
		raw, ok := f[key]
		if !ok {
			continue
		}
		var obj map[string]string
		if err := json.Unmarshal(raw, &obj); err == nil {
			for k, v := range obj {
				out[strings.ToLower(k)] = v
			}
			return out
		}
		// encoding/json matches "Name"/"Value" case-insensitively.
		var list []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		}
		if err := json.Unmarshal(raw, &list); err == nil {
			for _, item := range list {
				if item.Name == "" {
					continue
				}
				out[strings.ToLower(item.Name)] = item.Value
			}
			return out
		}
		var block string
		if err := json.Unmarshal(raw, &block); err == nil && block != "" {
			msg, err := mail.ReadMessage(strings.NewReader(strings.TrimRight(block, "\r\n") + "\r\n\r\n"))
			if err != nil {
				continue
			}
			for k, v := range msg.Header {
				if len(v) > 0 {
					out[strings.ToLower(k)] = v[0]
				}
			}
			return out
		}
	}
	return out
}

// attachments decodes base64 attachment lists; entries that fail to decode
// are skipped.
func attachments(f fields, keys ...string) []domain.InboundAttachment {
	for _, key := range keys {
		raw, ok := f[key]
		if !ok {
			continue
		}
		var list []fields
		if err := json.Unmarshal(raw, &list); err != nil {
			continue
		}
		out := make([]domain.InboundAttachment, 0, len(list))
		for _, item := range list {
			encoded := str(item, "content", "Content")
			if encoded == "" {
				continue
			}
			content, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				continue
			}
			out = append(out, domain.InboundAttachment{
				FileName:    firstNonEmpty(str(item, "filename", "name", "Name", "FileName"), "attachment"),
				ContentType: firstNonEmpty(str(item, "content_type", "contentType", "ContentType"), "application/octet-stream"),
				Content:     content,
			})
		}
		return out
	}
	return nil
}
