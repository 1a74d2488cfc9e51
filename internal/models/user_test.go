package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"unholygrail/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize_OmitsDigest(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	user := models.User{
		ID:             "user-1",
		Username:       "alice",
		Email:          "a@b.com",
		PasswordDigest: "$2a$10$secretdigest",
		Token:          "tok",
		LastLogin:      now,
		CreatedAt:      now,
	}

	view := models.Sanitize(user)
	assert.Equal(t, "user-1", view.ID)
	assert.Equal(t, "alice", view.Username)
	assert.Equal(t, "a@b.com", view.Email)
	assert.Equal(t, "tok", view.Token)
	assert.Equal(t, now, view.LastLogin)

	body, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "password")
	assert.NotContains(t, string(body), "secretdigest")
}

func TestSanitize_IsPure(t *testing.T) {
	user := models.User{ID: "user-1", Username: "alice", PasswordDigest: "digest"}

	first := models.Sanitize(user)
	second := models.Sanitize(user)
	assert.Equal(t, first, second)
	assert.Equal(t, "digest", user.PasswordDigest, "input must not be mutated")
}

func TestUser_JSONHidesDigest(t *testing.T) {
	body, err := json.Marshal(models.User{Username: "alice", PasswordDigest: "digest"})
	require.NoError(t, err)
	assert.NotContains(t, string(body), "digest")
}

func TestSanitize_StripsMarkup(t *testing.T) {
	view := models.Sanitize(models.User{
		ID:       "user-1",
		Username: "<script>alert(1)</script>bob",
		Email:    `bob@example.com<img src=x onerror="alert(1)">`,
	})

	assert.Equal(t, "bob", view.Username)
	assert.Equal(t, "bob@example.com", view.Email)
}
