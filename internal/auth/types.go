package auth

import (
	"errors"
	"net/mail"
	"time"
)

// User is the authenticated account mirrored into a session on login.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	CompanyName  string    `json:"company_name,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsZero reports whether u is the empty, unauthenticated sentinel.
func (u User) IsZero() bool {
	return u.ID == ""
}

// IsValidEmail checks that an address parses as a bare RFC 5322 address.
func IsValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// Credentials are what the login form submits.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is a successful credential exchange.
type LoginResult struct {
	Token string
	TTL   time.Duration
	User  User
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrEmailExists        = errors.New("email already exists")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrInvalidTTL         = errors.New("token ttl must be positive")
	ErrStorageUnavailable = errors.New("token storage unavailable")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidAccessTable = errors.New("invalid access table")
	ErrSessionClosed      = errors.New("session manager closed")
	ErrUnknownSession     = errors.New("unknown session")
)
