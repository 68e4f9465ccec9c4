package models

import (
	"time"
)

const DefaultAvatar = "avatars/default.svg"

// User is an identity record together with its one-to-one profile
type User struct {
	ID          int64      `json:"id" db:"id"`
	Username    string     `json:"username" db:"username"`
	Email       string     `json:"email" db:"email"`
	Password    string     `json:"-" db:"password"`
	FirstName   string     `json:"first_name" db:"first_name"`
	LastName    string     `json:"last_name" db:"last_name"`
	DateJoined  time.Time  `json:"date_joined" db:"date_joined"`
	LastLoginAt *time.Time `json:"last_login,omitempty" db:"last_login_at"`
	Profile     Profile    `json:"profile"`
}

// Profile holds the library-specific attributes of a user
type Profile struct {
	UserID   int64    `json:"-" db:"user_id"`
	RoleType RoleType `json:"type" db:"role_type"`
	Age      *int     `json:"age" db:"age"`
	Avatar   string   `json:"avatar" db:"avatar"`
}

// Role is shorthand for the profile role
func (u *User) Role() RoleType {
	return u.Profile.RoleType
}

// RefreshToken is a stored, revocable refresh token
type RefreshToken struct {
	ID        int64     `db:"id"`
	Token     string    `db:"token"`
	UserID    int64     `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	Revoked   bool      `db:"revoked"`
	CreatedAt time.Time `db:"created_at"`
}
