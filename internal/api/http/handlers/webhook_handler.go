package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/api/dto"
	"github.com/spec-kit/ticket-intake/internal/inbound"
	"github.com/spec-kit/ticket-intake/internal/service"
	"github.com/spec-kit/ticket-intake/internal/threading"
	"github.com/spec-kit/ticket-intake/pkg/errorutil"
)

// WebhookHandler receives inbound email from the mail provider.
type WebhookHandler struct {
	secret   string
	resolver *threading.Resolver
	replies  *service.ReplyIngestor
	intake   *service.IntakeService
	logger   *zap.Logger
}

// WebhookDependencies bundles collaborators for the webhook handler.
type WebhookDependencies struct {
	Secret   string
	Resolver *threading.Resolver
	Replies  *service.ReplyIngestor
	Intake   *service.IntakeService
	Logger   *zap.Logger
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(deps WebhookDependencies) *WebhookHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		secret:   deps.Secret,
		resolver: deps.Resolver,
		replies:  deps.Replies,
		intake:   deps.Intake,
		logger:   logger,
	}
}

// Verify GET /webhooks/inbound-email answers provider verification pings.
func (h *WebhookHandler) Verify(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Receive POST /webhooks/inbound-email.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	body := c.Body()
	if !inbound.VerifySignature(h.secret, body, func(name string) string { return c.Get(name) }) {
		return errorutil.NewUnauthorized("invalid signature")
	}

	email, err := inbound.Normalize(body)
	if err != nil {
		return errorutil.NewUnprocessablePayload("unrecognized email payload")
	}

	ctx := c.UserContext()
	match, err := h.resolver.Match(ctx, email)
	if err != nil {
		return err
	}

	if match != nil {
		result, err := h.replies.Ingest(ctx, match.Ticket, email)
		if err != nil {
			return err
		}
		h.logger.Info("inbound reply recorded",
			zap.String("ticket_id", match.Ticket.ID),
			zap.String("strategy", match.Strategy),
			zap.Bool("duplicate", result.Duplicate))
		commentID := result.Comment.ID
		return c.JSON(dto.WebhookResponse{
			Success:   true,
			TicketID:  match.Ticket.ID,
			TicketKey: match.Ticket.Key,
			IsReply:   true,
			CommentID: &commentID,
		})
	}

	_, name, _ := inbound.ParseAddress(email.From)
	result, err := h.intake.CreateTicket(ctx, service.IntakeRequest{
		SenderEmail: email.From,
		SenderName:  name,
		Subject:     email.Subject,
		Description: email.TextBody,
		SourceIP:    c.IP(),
		Channel:     service.ChannelEmail,
		Attachments: email.Attachments,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.WebhookResponse{
		Success:   true,
		TicketID:  result.Ticket.ID,
		TicketKey: result.Ticket.Key,
		IsReply:   false,
	})
}
