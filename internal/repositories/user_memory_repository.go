package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"unholygrail/internal/models"

	"github.com/google/uuid"
)

// MemoryUserRepository is an in-memory implementation of UserRepository.
// Used for local development when DB_DRIVER=memory.
type MemoryUserRepository struct {
	users      map[string]models.User
	byUsername map[string]string
	mu         sync.RWMutex
}

// NewMemoryUserRepository creates a new instance of MemoryUserRepository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:      make(map[string]models.User),
		byUsername: make(map[string]string),
	}
}

// Insert adds a new user, rejecting duplicate usernames.
func (r *MemoryUserRepository) Insert(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[user.Username]; ok {
		return fmt.Errorf("username %s: %w", user.Username, ErrUsernameTaken)
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	r.byUsername[user.Username] = user.ID
	return nil
}

// GetByUsername returns a user by username.
func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return nil, fmt.Errorf("user with username %s: %w", username, ErrUserNotFound)
	}
	user := r.users[id]
	return &user, nil
}

// GetByID returns a user by ID.
func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user with id %s: %w", id, ErrUserNotFound)
	}
	return &user, nil
}

// GetByToken returns the user holding token.
func (r *MemoryUserRepository) GetByToken(_ context.Context, token string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if token != "" {
		for _, user := range r.users {
			if user.Token == token {
				u := user
				return &u, nil
			}
		}
	}
	return nil, fmt.Errorf("user with token: %w", ErrUserNotFound)
}

// Update patches a user in place.
func (r *MemoryUserRepository) Update(_ context.Context, id string, patch UserPatch) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return 0, nil
	}
	if patch.PasswordDigest != nil {
		user.PasswordDigest = *patch.PasswordDigest
	}
	if patch.Token != nil {
		user.Token = *patch.Token
	}
	if patch.LastLogin != nil {
		user.LastLogin = *patch.LastLogin
	}
	user.UpdatedAt = time.Now()
	r.users[id] = user
	return 1, nil
}
