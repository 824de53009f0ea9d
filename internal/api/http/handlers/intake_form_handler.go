package handlers

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/api/dto"
	"github.com/spec-kit/ticket-intake/internal/service"
	"github.com/spec-kit/ticket-intake/pkg/errorutil"
)

// Form error values understood by the support site.
const (
	formErrorMissingFields  = "missing_fields"
	formErrorRateLimit      = "rate_limit"
	formErrorIntakeDisabled = "intake_disabled"
	formErrorSpamDetected   = "spam_detected"
)

// IntakeFormHandler accepts the public support form and answers with
// redirects back to the support site.
type IntakeFormHandler struct {
	intake  *service.IntakeService
	baseURL string
	logger  *zap.Logger
}

// NewIntakeFormHandler constructs handler.
func NewIntakeFormHandler(intake *service.IntakeService, baseURL string, logger *zap.Logger) *IntakeFormHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeFormHandler{intake: intake, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// Submit POST /public/tickets.
func (h *IntakeFormHandler) Submit(c *fiber.Ctx) error {
	var form dto.PublicTicketForm
	if err := c.BodyParser(&form); err != nil {
		return h.fail(c, formErrorMissingFields)
	}
	if strings.TrimSpace(form.Website) != "" {
		h.logger.Info("honeypot field filled", zap.String("ip", c.IP()))
		return h.fail(c, formErrorSpamDetected)
	}

	result, err := h.intake.CreateTicket(c.UserContext(), service.IntakeRequest{
		SenderEmail:   form.Email,
		SenderName:    form.Name,
		Subject:       form.Subject,
		Description:   form.Description,
		SourceIP:      c.IP(),
		Channel:       service.ChannelWeb,
		SubdomainHint: subdomainHint(c.Hostname(), h.baseURL),
	})
	if err != nil {
		code, ok := formErrorCode(err)
		if !ok {
			return err
		}
		return h.fail(c, code)
	}

	target := h.baseURL + "/support/submitted?" + url.Values{
		"ticket":     {result.Ticket.Key},
		"email_sent": {strconv.FormatBool(result.ConfirmationQueued)},
	}.Encode()
	return c.Redirect(target, fiber.StatusSeeOther)
}

func (h *IntakeFormHandler) fail(c *fiber.Ctx, code string) error {
	return c.Redirect(h.baseURL+"/support/new?error="+code, fiber.StatusSeeOther)
}

// formErrorCode maps rejections the submitter can act on. Anything else is
// an internal failure and goes through the error middleware.
func formErrorCode(err error) (string, bool) {
	switch {
	case errorutil.HasCode(err, errorutil.CodeMissingFields), errorutil.HasCode(err, errorutil.CodeValidation):
		return formErrorMissingFields, true
	case errorutil.HasCode(err, errorutil.CodeRateLimited):
		return formErrorRateLimit, true
	case errorutil.HasCode(err, errorutil.CodeIntakeDisabled):
		return formErrorIntakeDisabled, true
	case errorutil.HasCode(err, errorutil.CodeSpamDetected):
		return formErrorSpamDetected, true
	}
	return "", false
}

// subdomainHint returns the leftmost label of host when host is a subdomain
// of the configured base host, e.g. "acme" for acme.help.example.com.
func subdomainHint(host, baseURL string) string {
	base, err := url.Parse(baseURL)
	if err != nil || base.Hostname() == "" {
		return ""
	}
	host = strings.ToLower(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	suffix := "." + strings.ToLower(base.Hostname())
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	label := strings.TrimSuffix(host, suffix)
	if label == "" || strings.Contains(label, ".") {
		return ""
	}
	return label
}
