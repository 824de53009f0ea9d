package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/pkg/errorutil"
)

const grantKey = "portal_grant"

// GrantMiddleware loads the portal grant from the grant cookie or a Bearer
// header.
type GrantMiddleware struct {
	grants     *GrantManager
	cookieName string
}

// NewGrantMiddleware constructs middleware.
func NewGrantMiddleware(grants *GrantManager, cookieName string) *GrantMiddleware {
	return &GrantMiddleware{grants: grants, cookieName: cookieName}
}

// Handle rejects requests without a valid grant. Every failure produces the
// same response.
func (m *GrantMiddleware) Handle(c *fiber.Ctx) error {
	raw := c.Cookies(m.cookieName)
	if raw == "" {
		parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			raw = strings.TrimSpace(parts[1])
		}
	}
	if raw == "" {
		return errorutil.NewUnauthorized("access link required")
	}

	grant, err := m.grants.Parse(raw)
	if err != nil {
		return errorutil.NewUnauthorized("access link required")
	}

	c.Locals(grantKey, grant)
	return c.Next()
}

// GrantFromContext retrieves the grant set by Handle.
func GrantFromContext(c *fiber.Ctx) (*domain.AccessGrant, bool) {
	val := c.Locals(grantKey)
	if val == nil {
		return nil, false
	}
	grant, ok := val.(*domain.AccessGrant)
	return grant, ok
}
