package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/sma-results-api/internal/utils"
)

// RequireRole ensures that the authenticated user possesses one of the allowed roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		roleValue := c.Locals("user_role")
		role := normalizeRoleValue(roleValue)
		if _, ok := allowed[role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// RequireCapability ensures the authenticated user carries the named capability claim.
func RequireCapability(capability string) fiber.Handler {
	required := strings.ToLower(strings.TrimSpace(capability))

	return func(c *fiber.Ctx) error {
		for _, held := range CapabilitiesFromContext(c) {
			if held == required {
				return c.Next()
			}
		}

		return utils.SendError(c, fiber.StatusForbidden, "missing required capability")
	}
}

// CapabilitiesFromContext returns the capability claims bound to the request.
func CapabilitiesFromContext(c *fiber.Ctx) []string {
	value := c.Locals("user_capabilities")
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		capabilities := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				capabilities = append(capabilities, strings.ToLower(strings.TrimSpace(str)))
			}
		}
		return capabilities
	default:
		return nil
	}
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		if value == nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	}
}
