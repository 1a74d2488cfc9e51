package services

import (
	"context"

	"unholygrail/internal/models"
)

// Notifier hands templated emails to a delivery transport.
type Notifier interface {
	Send(ctx context.Context, msg models.Email) error
}
