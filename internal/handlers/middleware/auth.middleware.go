package middleware

import (
	"strings"

	"biteback/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
)

const UserKeyFiber = "User"

// RequireAuth validates the bearer token and loads the caller, registering
// the user on first sight.
func (m *Middleware) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		log := logger.New("middleware").TraceFromContext(c.UserContext()).Function("RequireAuth")

		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			log.Info("missing or malformed authorization header")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
			})
		}

		info, err := m.auth.ValidateToken(token)
		if err != nil {
			log.Info("token validation failed", "error", err.Error())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		user, err := m.userRepo.FindOrCreateFromToken(c.UserContext(), *info)
		if err != nil {
			log.Er("failed to load user", err, "subject", info.Subject)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "User lookup failed",
			})
		}

		if !user.IsActive {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Account disabled",
			})
		}

		c.Locals(UserKeyFiber, user)
		return c.Next()
	}
}

// RequireRole must run after RequireAuth.
func (m *Middleware) RequireRole(role models.Role) fiber.Handler {
	log := m.log.Function("RequireRole")

	return func(c *fiber.Ctx) error {
		user := GetUser(c)
		if user == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		if user.Role != role {
			log.Info("role mismatch", "userID", user.ID, "role", user.Role, "required", role)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "This action requires a " + string(role) + " account",
			})
		}

		return c.Next()
	}
}

func GetUser(c *fiber.Ctx) *models.User {
	user, ok := c.Locals(UserKeyFiber).(*models.User)
	if !ok {
		return nil
	}
	return user
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
