package dto

import (
	"time"

	"github.com/yigit/libris/internal/app/models"
)

// ProfileResponse is the public part of a user's profile
type ProfileResponse struct {
	Type        string `json:"type" example:"US"`
	TypeDisplay string `json:"type_display" example:"User"`
	Age         *int   `json:"age"`
	Avatar      string `json:"avatar" example:"avatars/default.svg"`
}

// UserResponse represents a user with their profile
type UserResponse struct {
	ID         int64           `json:"id"`
	Username   string          `json:"username"`
	Email      string          `json:"email"`
	FirstName  string          `json:"first_name"`
	LastName   string          `json:"last_name"`
	DateJoined time.Time       `json:"date_joined"`
	LastLogin  *time.Time      `json:"last_login"`
	Profile    ProfileResponse `json:"profile"`
}

// NewUserResponse converts a user model
func NewUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		DateJoined: user.DateJoined,
		LastLogin:  user.LastLoginAt,
		Profile: ProfileResponse{
			Type:        string(user.Role()),
			TypeDisplay: user.Role().Display(),
			Age:         user.Profile.Age,
			Avatar:      user.Profile.Avatar,
		},
	}
}

// NewUserResponses converts a list of user models
func NewUserResponses(users []*models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserResponse(u))
	}
	return out
}

// CreateUserRequest is an admin-created account with any role
type CreateUserRequest struct {
	Username  string `json:"username" binding:"required,username"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	FirstName string `json:"first_name" binding:"max=150"`
	LastName  string `json:"last_name" binding:"max=150"`
	Type      string `json:"type" binding:"omitempty,oneof=AD US LB"`
	Age       *int   `json:"age" binding:"omitempty,gte=0,lte=150"`
}

// UpdateUserRequest is a partial update of identity and profile fields.
// A password change requires the current password unless an admin updates
// someone else's account.
type UpdateUserRequest struct {
	Username        *string `json:"username" binding:"omitempty,username"`
	Email           *string `json:"email" binding:"omitempty,email"`
	FirstName       *string `json:"first_name" binding:"omitempty,max=150"`
	LastName        *string `json:"last_name" binding:"omitempty,max=150"`
	Age             *int    `json:"age" binding:"omitempty,gte=0,lte=150"`
	Password        *string `json:"password" binding:"omitempty,min=6"`
	CurrentPassword *string `json:"current_password"`
}

// UpdateRoleRequest changes a user's role
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=AD US LB" example:"LB"`
}
