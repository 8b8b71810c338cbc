package domain

import (
	"time"

	"github.com/google/uuid"
)

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered user.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Password      *string    `json:"-"` // bcrypt hash; nil for Google-only accounts
	GoogleSub     *string    `json:"-"`
	Role          string     `json:"role"`
	IsPremium     bool       `json:"isPremium"`
	PremiumExpiry *time.Time `json:"premiumExpiry,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// PremiumAt reports whether the user holds an unexpired premium entitlement at t.
func (u *User) PremiumAt(t time.Time) bool {
	return premiumAt(u.IsPremium, u.PremiumExpiry, t)
}

// PremiumLapsed reports whether the stored flag is still set although the expiry has passed.
func (u *User) PremiumLapsed(t time.Time) bool {
	return u.IsPremium && u.PremiumExpiry != nil && u.PremiumExpiry.Before(t)
}

func premiumAt(flag bool, expiry *time.Time, t time.Time) bool {
	if !flag {
		return false
	}
	return expiry == nil || expiry.After(t)
}

// Session is the hydrated view of the signed-in user, refreshed on every authenticated request.
type Session struct {
	UserID        string     `json:"userId"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	IsPremium     bool       `json:"isPremium"`
	PremiumExpiry *time.Time `json:"premiumExpiry,omitempty"`
}

// PremiumAt reports whether the session grants premium at t.
func (s *Session) PremiumAt(t time.Time) bool {
	return premiumAt(s.IsPremium, s.PremiumExpiry, t)
}

// IsAdmin reports whether the session carries the admin role.
func (s *Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// NewSession builds a session from a user row.
func NewSession(u *User) *Session {
	return &Session{
		UserID:        u.ID,
		Email:         u.Email,
		Role:          u.Role,
		IsPremium:     u.IsPremium,
		PremiumExpiry: u.PremiumExpiry,
	}
}

// LoginRequest is the validated input for logging in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// RegisterRequest is the validated input for self-service sign up.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginResponse is the API response after successful login.
type LoginResponse struct {
	Token string    `json:"token"`
	User  LoginUser `json:"user"`
}

// LoginUser is the user info returned after login.
type LoginUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	IsPremium bool   `json:"isPremium"`
}

// JWTClaims represents the JWT payload.
type JWTClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// CreateUserRequest is the validated input for creating a user.
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// UserResponse is the safe API response for a user (no password).
type UserResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	IsPremium     bool       `json:"isPremium"`
	PremiumExpiry *time.Time `json:"premiumExpiry,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// NewUserResponse strips the secrets from a user row.
func NewUserResponse(u *User) *UserResponse {
	return &UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		Role:          u.Role,
		IsPremium:     u.IsPremium,
		PremiumExpiry: u.PremiumExpiry,
		CreatedAt:     u.CreatedAt,
	}
}

// NewID generates a new UUID.
func NewID() string {
	return uuid.New().String()
}
