package repositories

import (
	"context"
	"errors"
	"fmt"

	"unholygrail/internal/models"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
// The database must be opened with TranslateError enabled so that unique
// violations surface as gorm.ErrDuplicatedKey.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Insert creates a new user in the database.
func (r *GORMUserRepository) Insert(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("username %s: %w", user.Username, ErrUsernameTaken)
		}
		return oops.In("user_repository").
			With("operation", "insert").
			With("username", user.Username).
			Wrapf(err, "failed to create user")
	}
	return nil
}

// GetByUsername retrieves a user by their username from the database.
func (r *GORMUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "username", username)
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.first(ctx, "id", id)
}

// GetByToken retrieves the user currently holding the given bearer token.
func (r *GORMUserRepository) GetByToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token: %w", ErrUserNotFound)
	}
	return r.first(ctx, "token", token)
}

// Update patches the mutable columns of a user.
func (r *GORMUserRepository) Update(ctx context.Context, id string, patch UserPatch) (int64, error) {
	cols := patch.columns()
	if len(cols) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return 0, oops.In("user_repository").
			With("operation", "update").
			With("user_id", id).
			Wrapf(res.Error, "failed to update user")
	}
	return res.RowsAffected, nil
}

func (r *GORMUserRepository) first(ctx context.Context, column, value string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, column+" = ?", value).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with %s %s: %w", column, value, ErrUserNotFound)
		}
		return nil, oops.In("user_repository").
			With("operation", "get_by_"+column).
			Wrapf(err, "failed to get user by %s", column)
	}
	return &user, nil
}
