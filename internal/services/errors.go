package services

import (
	"errors"
	"fmt"

	"unholygrail/internal/repositories"
)

var (
	// ErrUserNotFound is returned when a flow targets a username with no record.
	ErrUserNotFound = repositories.ErrUserNotFound
	// ErrUsernameTaken is returned when signup collides with an existing username.
	ErrUsernameTaken = repositories.ErrUsernameTaken
	// ErrInvalidCredentials is returned for any signin failure. It deliberately
	// does not say whether the username or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is returned when a flow needs a resolved bearer token and has none.
	ErrUnauthenticated = errors.New("request is not authenticated")
)

// ValidationError reports the first precondition a request violated.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DeliveryError reports that an email could not be handed to the transport.
type DeliveryError struct {
	Template string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver %s: %v", e.Template, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// outcome classifies an error for metrics labels.
func outcome(err error) string {
	var validationErr *ValidationError
	var deliveryErr *DeliveryError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &validationErr):
		return "invalid"
	case errors.Is(err, ErrInvalidCredentials):
		return "bad_credentials"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrUserNotFound):
		return "not_found"
	case errors.Is(err, ErrUsernameTaken):
		return "conflict"
	case errors.As(err, &deliveryErr):
		return "delivery_failed"
	default:
		return "error"
	}
}
