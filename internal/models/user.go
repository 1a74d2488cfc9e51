package models

import (
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// User represents a registered account on the listing site.
type User struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username       string    `json:"username" gorm:"uniqueIndex;type:varchar(100);not null"`
	Email          string    `json:"email" gorm:"type:varchar(255);not null"`
	PasswordDigest string    `json:"-" gorm:"column:password_digest;type:varchar(255);not null"` // Never serialized
	Token          string    `json:"token" gorm:"index;type:varchar(512)"`
	LastLogin      time.Time `json:"last_login"`
	CreatedAt      time.Time `json:"created"`
	UpdatedAt      time.Time `json:"modified"`
}

// TableName keeps the table name used by the rest of the site.
func (User) TableName() string {
	return "app_user"
}

// UserView is the client-safe projection of a User.
type UserView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	LastLogin time.Time `json:"last_login"`
	Created   time.Time `json:"created"`
}

// strictPolicy strips all markup. Policies are safe for concurrent use.
var strictPolicy = bluemonday.StrictPolicy()

// Sanitize projects a User into a UserView. The password digest has no
// counterpart in the view, so it can never leak through it. Free-text fields
// are stripped of markup before they reach a client.
func Sanitize(u User) UserView {
	return UserView{
		ID:        u.ID,
		Username:  strictPolicy.Sanitize(u.Username),
		Email:     strictPolicy.Sanitize(u.Email),
		Token:     u.Token,
		LastLogin: u.LastLogin,
		Created:   u.CreatedAt,
	}
}
