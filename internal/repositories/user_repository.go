package repositories

import (
	"context"
	"errors"
	"time"

	"unholygrail/internal/models"
)

var (
	// ErrUserNotFound is returned when no user matches a lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when an insert violates username uniqueness.
	ErrUsernameTaken = errors.New("username already taken")
)

// UserPatch lists the mutable columns of a user. Nil fields are left untouched.
type UserPatch struct {
	PasswordDigest *string
	Token          *string
	LastLogin      *time.Time
}

func (p UserPatch) columns() map[string]interface{} {
	cols := make(map[string]interface{}, 3)
	if p.PasswordDigest != nil {
		cols["password_digest"] = *p.PasswordDigest
	}
	if p.Token != nil {
		cols["token"] = *p.Token
	}
	if p.LastLogin != nil {
		cols["last_login"] = *p.LastLogin
	}
	return cols
}

// UserRepository defines the interface for user data access.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByToken(ctx context.Context, token string) (*models.User, error)
	Insert(ctx context.Context, user *models.User) error
	// Update applies patch to the user with the given id and reports how many rows changed.
	Update(ctx context.Context, id string, patch UserPatch) (int64, error)
}
