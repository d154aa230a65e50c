// Package domain defines the entities shared across services.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account
type User struct {
	UserID       uuid.UUID `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AvatarImage  string    `json:"avatar_image"`
	IsAvatarSet  bool      `json:"is_avatar_set"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserResponse is the public projection of a user
type UserResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	AvatarImage string    `json:"avatar_image"`
	IsAvatarSet bool      `json:"is_avatar_set"`
}

// ContactResponse is a contact list entry: the public projection plus
// the mirrored presence state at the time of the query.
type ContactResponse struct {
	*UserResponse
	IsOnline bool `json:"is_online"`
}

// ToResponse strips private fields from a user
func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		UserID:      u.UserID,
		Username:    u.Username,
		Email:       u.Email,
		AvatarImage: u.AvatarImage,
		IsAvatarSet: u.IsAvatarSet,
	}
}
