package model

import (
	"time"

	"github.com/google/uuid"
)

// User status constants
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusPending  = "pending"
)

// User role constants
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleVolunteer = "volunteer"
	RoleDonor     = "donor"
)

// User represents a platform account. Donor profiles hang off a user row.
type User struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Email         string     `json:"email" db:"email"`
	FullName      string     `json:"full_name" db:"full_name"`
	Password      string     `json:"password,omitempty" db:"-"`
	PasswordHash  string     `json:"-" db:"password_hash"`
	Phone         *string    `json:"phone" db:"phone"`
	Role          string     `json:"role" db:"role"`
	Status        string     `json:"status" db:"status"`
	EmailVerified bool       `json:"email_verified" db:"email_verified"`
	LastLoginAt   *time.Time `json:"last_login_at" db:"last_login_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Session is the authenticated caller's identity, built once at sign-in
// and passed explicitly into services rather than looked up ambiently.
type Session struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

func (s *Session) CanModerate() bool {
	return s.Role == RoleAdmin || s.Role == RoleModerator
}
