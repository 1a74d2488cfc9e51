package handlers

import (
	"path"

	"unholygrail/internal/middleware"
	"unholygrail/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// RegisterRoutes registers the authentication routes under /auth.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth", middleware.ResolveUser(h.authService))
	authRoutes.Post("/signup", h.HandleSignup)
	authRoutes.Post("/signin", h.HandleSignin)
	authRoutes.Post("/recover", h.HandleRecover)
	authRoutes.Post("/reset", h.HandleReset)
	authRoutes.Get("/signout", h.HandleSignout)
}

// HandleSignup registers a new user.
func (h *AuthHandler) HandleSignup(c *fiber.Ctx) error {
	var req services.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, "signup", err)
	}

	user, err := h.authService.Signup(c.UserContext(), req)
	if err != nil {
		return respondError(c, "signup", req.Username, err)
	}

	c.Location(path.Join("/api/user", user.ID))
	return c.Status(fiber.StatusCreated).JSON(user)
}

// HandleSignin authenticates a user and returns the rotated token.
func (h *AuthHandler) HandleSignin(c *fiber.Ctx) error {
	var req services.SigninRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, "signin", err)
	}

	user, err := h.authService.Signin(c.UserContext(), req)
	if err != nil {
		return respondError(c, "signin", req.Username, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// HandleRecover emails a recovery link.
func (h *AuthHandler) HandleRecover(c *fiber.Ctx) error {
	var req services.RecoverRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, "recover", err)
	}

	msg, err := h.authService.Recover(c.UserContext(), req)
	if err != nil {
		return respondError(c, "recover", req.Username, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": msg})
}

// HandleReset sets a new password for the user resolved from the bearer token.
func (h *AuthHandler) HandleReset(c *fiber.Ctx) error {
	var userID string
	if user, ok := middleware.CurrentUser(c); ok {
		userID = user.ID
	}

	var req services.ResetRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, "reset", err)
	}

	user, err := h.authService.Reset(c.UserContext(), userID, req)
	if err != nil {
		return respondError(c, "reset", userID, err)
	}
	return c.Status(fiber.StatusOK).JSON(user)
}

// HandleSignout ends the request's authenticated session. Tokens are not
// revoked server-side; the client discards its copy.
func (h *AuthHandler) HandleSignout(c *fiber.Ctx) error {
	user, ok := middleware.CurrentUser(c)
	middleware.ClearUser(c)
	if !ok {
		logrus.WithField("operation", "signout").Warn("signout without authenticated user")
		return c.SendStatus(fiber.StatusNotFound)
	}

	logrus.WithFields(logrus.Fields{"operation": "signout", "user_id": user.ID}).Info("user signed out")
	return c.SendStatus(fiber.StatusNoContent)
}

func invalidBody(c *fiber.Ctx, operation string, err error) error {
	logrus.WithField("operation", operation).WithError(err).Warn("error parsing request body")
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": msgInvalidBody})
}
