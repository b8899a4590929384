package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Authenticator exchanges credentials for a session token and restores the
// user behind a stored token.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*LoginResult, error)
	Restore(ctx context.Context, token string) (*User, error)
}

// PasswordAuthenticator checks Argon2id password hashes and issues JWTs.
type PasswordAuthenticator struct {
	users  UserRepository
	secret string
	issuer string
	ttl    time.Duration
	now    Clock
}

// NewPasswordAuthenticator creates the production authenticator.
func NewPasswordAuthenticator(users UserRepository, secret, issuer string, ttl time.Duration, now Clock) *PasswordAuthenticator {
	if now == nil {
		now = time.Now
	}
	return &PasswordAuthenticator{users: users, secret: secret, issuer: issuer, ttl: ttl, now: now}
}

// Authenticate verifies the email and password. Unknown accounts and wrong
// passwords both return ErrInvalidCredentials.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, creds Credentials) (*LoginResult, error) {
	email := strings.TrimSpace(strings.ToLower(creds.Email))
	if email == "" || creds.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := VerifyPassword(creds.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	var sid string
	if s := SessionFromContext(ctx); s != nil {
		sid = s.ID()
	}

	token, err := GenerateSessionToken(user, sid, a.secret, a.issuer, a.ttl, a.now())
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return &LoginResult{Token: token, TTL: a.ttl, User: *user}, nil
}

// Restore parses token and reloads its subject.
func (a *PasswordAuthenticator) Restore(ctx context.Context, token string) (*User, error) {
	claims, err := ParseToken(token, a.secret, a.now())
	if err != nil {
		return nil, err
	}

	user, err := a.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("reloading user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	user.PasswordHash = ""
	return user, nil
}

// StaticToken is the fixed token handed out by StaticAuthenticator.
const StaticToken = "hirehub-static-session-token"

// StaticAuthenticator accepts any non-empty credentials and returns the
// same token every time. It is for local UI work only.
type StaticAuthenticator struct {
	ttl  time.Duration
	role Role
}

// NewStaticAuthenticator logs a warning and returns the placeholder
// authenticator. Every login gets role.
func NewStaticAuthenticator(ttl time.Duration, role Role, logger *slog.Logger) *StaticAuthenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if !role.Valid() {
		role = RoleUser
	}
	logger.Warn("static authenticator selected: any credentials log in, do not use in production",
		"role", string(role))
	return &StaticAuthenticator{ttl: ttl, role: role}
}

// Authenticate returns StaticToken for any non-empty email and password.
func (a *StaticAuthenticator) Authenticate(_ context.Context, creds Credentials) (*LoginResult, error) {
	email := strings.TrimSpace(strings.ToLower(creds.Email))
	if email == "" || creds.Password == "" {
		return nil, ErrInvalidCredentials
	}
	return &LoginResult{Token: StaticToken, TTL: a.ttl, User: a.user(email)}, nil
}

// Restore accepts only StaticToken. The email is not recoverable from the
// token so the restored user is anonymous.
func (a *StaticAuthenticator) Restore(_ context.Context, token string) (*User, error) {
	if token != StaticToken {
		return nil, ErrTokenInvalid
	}
	u := a.user("")
	return &u, nil
}

func (a *StaticAuthenticator) user(email string) User {
	return User{
		ID:          "usr-static",
		Email:       email,
		DisplayName: "Static User",
		Role:        a.role,
		IsActive:    true,
	}
}
