package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// syntheticMessageID builds <{ticketID}-{kind}-{8 hex}@{domain}>.
func syntheticMessageID(ticketID, kind, mailDomain string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("<%s-%s-%s@%s>", ticketID, kind, suffix, mailDomain)
}

func ticketLinkURL(baseURL, token string) string {
	return baseURL + "/ticket/" + token
}

func confirmationEmail(ticket *domain.Ticket, to, name, link, mailDomain string) *domain.OutboundEmail {
	ticketID := ticket.ID
	greeting := "Hello,\n\n"
	if name != "" {
		greeting = fmt.Sprintf("Hi %s,\n\n", name)
	}
	body := greeting + fmt.Sprintf(
		"We received your request %q and opened ticket %s.\n\n"+
			"Follow this link to view its status:\n%s\n\n"+
			"Reply to this email to add information. Keep [%s] in the subject.\n",
		ticket.Subject, ticket.Key, link, ticket.Key)
	return &domain.OutboundEmail{
		OrgID:     ticket.OrgID,
		TicketID:  &ticketID,
		ToAddress: to,
		Subject:   fmt.Sprintf("[%s] %s", ticket.Key, ticket.Subject),
		TextBody:  body,
		MessageID: syntheticMessageID(ticket.ID, "confirm", mailDomain),
		Status:    domain.OutboxStatusPending,
	}
}

func accessLinkEmail(ticket *domain.Ticket, to, link, mailDomain string) *domain.OutboundEmail {
	ticketID := ticket.ID
	body := fmt.Sprintf(
		"A new link to ticket %s was requested.\n\n%s\n\n"+
			"The link works once. If you did not ask for it you can ignore this email.\n",
		ticket.Key, link)
	return &domain.OutboundEmail{
		OrgID:     ticket.OrgID,
		TicketID:  &ticketID,
		ToAddress: to,
		Subject:   fmt.Sprintf("[%s] Your ticket link", ticket.Key),
		TextBody:  body,
		MessageID: syntheticMessageID(ticket.ID, "link", mailDomain),
		Status:    domain.OutboxStatusPending,
	}
}
