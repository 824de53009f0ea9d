package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/api/dto"
	"github.com/spec-kit/ticket-intake/internal/auth"
	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/service"
	"github.com/spec-kit/ticket-intake/pkg/errorutil"
)

const invalidLinkMessage = "link is invalid or expired"

// PortalHandler exposes a ticket to magic link holders.
type PortalHandler struct {
	tokens *service.TokenService
	portal *service.PortalService
	grants *auth.GrantManager
	cfg    config.PortalConfig
	logger *zap.Logger
}

// PortalHandlerDependencies bundles collaborators for the portal handler.
type PortalHandlerDependencies struct {
	TokenService  *service.TokenService
	PortalService *service.PortalService
	Grants        *auth.GrantManager
	Config        config.PortalConfig
	Logger        *zap.Logger
}

// NewPortalHandler constructs handler.
func NewPortalHandler(deps PortalHandlerDependencies) *PortalHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortalHandler{
		tokens: deps.TokenService,
		portal: deps.PortalService,
		grants: deps.Grants,
		cfg:    deps.Config,
		logger: logger,
	}
}

// OpenTicket GET /ticket/:token loads the ticket, then consumes the link and
// hands out a grant. A failed load leaves the link usable.
func (h *PortalHandler) OpenTicket(c *fiber.Ctx) error {
	noStore(c)
	ctx := c.UserContext()
	token := c.Params("token")

	grant, err := h.tokens.Peek(ctx, token, domain.TokenPurposeView)
	if err != nil {
		return err
	}
	if grant == nil {
		return invalidLink()
	}

	view, err := h.portal.View(ctx, grant)
	if errorutil.HasCode(err, errorutil.CodeNotFound) {
		return invalidLink()
	}
	if err != nil {
		return err
	}

	grant, err = h.tokens.ConsumeForTicket(ctx, token, domain.TokenPurposeView, view.Ticket.ID)
	if err != nil {
		return err
	}
	if grant == nil {
		return invalidLink()
	}

	signed, expiresAt, err := h.grants.Issue(grant)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.CookieName,
		Value:    signed,
		Path:     "/portal",
		Expires:  expiresAt,
		HTTPOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	resp := toTicketViewResponse(view)
	resp.Grant = &dto.GrantView{Token: signed, ExpiresAt: expiresAt}
	return c.JSON(resp)
}

// GetTicket GET /portal/tickets/:ticketId reloads the granted ticket.
func (h *PortalHandler) GetTicket(c *fiber.Ctx) error {
	noStore(c)
	grant, ok := auth.GrantFromContext(c)
	if !ok || !grant.Allows(c.Params("ticketId")) {
		return errorutil.NewNotFound("ticket", nil)
	}
	view, err := h.portal.View(c.UserContext(), grant)
	if err != nil {
		return err
	}
	return c.JSON(toTicketViewResponse(view))
}

// DownloadAttachment GET /portal/tickets/:ticketId/attachments/:attachmentId.
func (h *PortalHandler) DownloadAttachment(c *fiber.Ctx) error {
	noStore(c)
	grant, _ := auth.GrantFromContext(c)
	attachment, err := h.portal.Attachment(c.UserContext(), grant, c.Params("ticketId"), c.Params("attachmentId"))
	if err != nil {
		return err
	}
	c.Attachment(attachment.FileName)
	c.Set(fiber.HeaderContentType, attachment.ContentType)
	return c.Send(attachment.Content)
}

// RequestAccessLink POST /ticket/access-link. The response never reveals
// whether a link was sent.
func (h *PortalHandler) RequestAccessLink(c *fiber.Ctx) error {
	var req dto.AccessLinkRequest
	if err := c.BodyParser(&req); err == nil && req.TicketKey != "" && req.Email != "" {
		if err := h.tokens.RequestAccessLink(c.UserContext(), req.TicketKey, req.Email, c.IP()); err != nil {
			h.logger.Warn("access link request failed", zap.Error(err))
		}
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "if the ticket exists, a new link has been sent to its requester",
	})
}

func invalidLink() error {
	return errorutil.NewDomainError(errorutil.CodeNotFound, invalidLinkMessage, fiber.StatusNotFound, nil)
}

func noStore(c *fiber.Ctx) {
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set(fiber.HeaderReferrerPolicy, "no-referrer")
}

func toTicketViewResponse(view *service.TicketView) dto.TicketViewResponse {
	t := view.Ticket
	resp := dto.TicketViewResponse{
		Ticket: dto.TicketView{
			ID:          t.ID,
			Key:         t.Key,
			Subject:     t.Subject,
			Description: t.Description,
			Status:      t.Status,
			Priority:    t.Priority,
			Category:    t.Category,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
			ResolvedAt:  t.ResolvedAt,
		},
		Comments:    make([]dto.CommentView, 0, len(view.Comments)),
		Attachments: make([]dto.AttachmentView, 0, len(view.Attachments)),
	}
	for _, comment := range view.Comments {
		resp.Comments = append(resp.Comments, dto.CommentView{
			ID:          comment.ID,
			AuthorEmail: comment.AuthorEmail,
			FromMember:  comment.UserID != nil,
			Content:     comment.Content,
			CreatedAt:   comment.CreatedAt,
		})
	}
	for _, attachment := range view.Attachments {
		resp.Attachments = append(resp.Attachments, dto.AttachmentView{
			ID:          attachment.ID,
			FileName:    attachment.FileName,
			ContentType: attachment.ContentType,
			SizeBytes:   attachment.SizeBytes,
			URL:         "/portal/tickets/" + t.ID + "/attachments/" + attachment.ID,
			CreatedAt:   attachment.CreatedAt,
		})
	}
	return resp
}
