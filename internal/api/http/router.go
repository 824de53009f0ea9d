package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/ticket-intake/internal/api/http/handlers"
	"github.com/spec-kit/ticket-intake/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Webhook         *handlers.WebhookHandler
	Form            *handlers.IntakeFormHandler
	Portal          *handlers.PortalHandler
	GrantMiddleware *auth.GrantMiddleware
	Metrics         prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics, promhttp.HandlerOpts{})))
	}

	webhooks := app.Group("/webhooks")
	webhooks.Get("/inbound-email", cfg.Webhook.Verify)
	webhooks.Post("/inbound-email", cfg.Webhook.Receive)

	app.Post("/public/tickets", cfg.Form.Submit)

	app.Post("/ticket/access-link", cfg.Portal.RequestAccessLink)
	app.Get("/ticket/:token", cfg.Portal.OpenTicket)

	portal := app.Group("/portal", cfg.GrantMiddleware.Handle)
	portal.Get("/tickets/:ticketId", cfg.Portal.GetTicket)
	portal.Get("/tickets/:ticketId/attachments/:attachmentId", cfg.Portal.DownloadAttachment)
}
