package middleware

import (
	"errors"
	"strings"

	"unholygrail/internal/models"
	"unholygrail/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// userKey is the Fiber locals key holding the resolved *models.UserView.
const userKey = "user"

// ResolveUser is a Fiber middleware attaching the user that owns the request's
// bearer token. The token comes from "Authorization: Bearer <token>" or, for
// recovery links, the "token" query parameter. Requests without a valid token
// pass through anonymously; handlers decide whether that is acceptable.
func ResolveUser(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return c.Next()
		}

		user, err := authService.Authenticate(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, services.ErrUnauthenticated) {
				logrus.WithField("path", c.Path()).WithError(err).Warn("bearer token rejected")
				return c.Next()
			}
			return err
		}

		c.Locals(userKey, user)
		return c.Next()
	}
}

// CurrentUser returns the user attached by ResolveUser, if any.
func CurrentUser(c *fiber.Ctx) (*models.UserView, bool) {
	user, ok := c.Locals(userKey).(*models.UserView)
	return user, ok && user != nil
}

// ClearUser detaches the resolved user from the request.
func ClearUser(c *fiber.Ctx) {
	c.Locals(userKey, nil)
}

func bearerToken(c *fiber.Ctx) string {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("token")
}
