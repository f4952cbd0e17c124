package models

import (
	"github.com/google/uuid"
)

// UserContact is what the identity provider exposes about a session owner.
type UserContact struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
}

// Name returns the display name, or the email when no name is set.
func (c *UserContact) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Email
}
