package auth

import (
	"github.com/emekandu/kasuwa-backend/internal/users"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

// RegisterRequest carries the fields needed to open a marketplace account.
type RegisterRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8"`
	FirstName string  `json:"firstName" validate:"required"`
	LastName  string  `json:"lastName" validate:"required"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,e164"`
}

// StaffRegisterRequest lets an admin provision agent or admin accounts.
type StaffRegisterRequest struct {
	Email     string           `json:"email" validate:"required,email"`
	Password  string           `json:"password" validate:"required,min=8"`
	FirstName string           `json:"firstName" validate:"required"`
	LastName  string           `json:"lastName" validate:"required"`
	Role      enums.MemberRole `json:"role" validate:"required"`
}

// LoginRequest carries user credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest rotates an expired access token using its refresh token.
type RefreshRequest struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// AuthResponse is returned by login, register, and refresh.
type AuthResponse struct {
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	User         users.UserSummary `json:"user"`
}
