package handlers

import (
	"errors"
	"fmt"

	"unholygrail/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	msgBadCredentials  = "Bad login credentials"
	msgDeliveryFailed  = "There was a problem with sending your password recovery email."
	msgUnauthenticated = "A valid token is required"
	msgUsernameTaken   = "Username %s is already in use."
	msgUnknownUsername = "Username does not exist."
	msgInvalidBody     = "Invalid request body"
	msgInternal        = "internal server error"
)

// statusFor translates a service error into a status code and a client-safe
// message. actor is the username or user id the request acted for.
func statusFor(err error, actor string) (int, string) {
	var validationErr *services.ValidationError
	var deliveryErr *services.DeliveryError

	switch {
	case errors.As(err, &validationErr):
		// Recover reports unknown usernames as 401 rather than 404.
		if errors.Is(err, services.ErrUserNotFound) {
			return fiber.StatusUnauthorized, validationErr.Message
		}
		return fiber.StatusBadRequest, validationErr.Message
	case errors.Is(err, services.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, msgBadCredentials
	case errors.Is(err, services.ErrUnauthenticated):
		return fiber.StatusBadRequest, msgUnauthenticated
	case errors.Is(err, services.ErrUsernameTaken):
		return fiber.StatusBadRequest, fmt.Sprintf(msgUsernameTaken, actor)
	case errors.Is(err, services.ErrUserNotFound):
		return fiber.StatusUnauthorized, msgUnknownUsername
	case errors.As(err, &deliveryErr):
		return fiber.StatusBadRequest, msgDeliveryFailed
	default:
		return fiber.StatusInternalServerError, msgInternal
	}
}

// respondError logs err with the operation and actor and writes the translated response.
func respondError(c *fiber.Ctx, operation, actor string, err error) error {
	status, msg := statusFor(err, actor)

	entry := logrus.WithFields(logrus.Fields{
		"operation": operation,
		"actor":     actor,
		"status":    status,
	}).WithError(err)
	if status >= fiber.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}

	return c.Status(status).JSON(fiber.Map{"message": msg})
}

// ErrorHandler is the app-wide Fiber error handler. Errors that escape a
// handler never expose their text to the client.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	msg := msgInternal

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
		msg = fiberErr.Message
	} else {
		logrus.WithFields(logrus.Fields{"method": c.Method(), "path": c.Path()}).WithError(err).Error("unhandled error")
	}

	return c.Status(status).JSON(fiber.Map{"message": msg})
}
