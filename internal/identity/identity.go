// Package identity talks to the hosted authentication service that owns the
// backend accounts. This service never stores passwords; the active room code
// is the password, and the collaborator is the source of truth for it.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrBadCredentials means the collaborator rejected the email/secret
	// pair. For a room identity this usually means the account does not
	// exist yet, or the stored password belongs to a superseded code.
	ErrBadCredentials = errors.New("invalid credentials")

	// ErrAccountExists means sign-up was attempted for an identity that is
	// already registered.
	ErrAccountExists = errors.New("account already exists")
)

// Metadata travels with a new account at sign-up and is echoed back on every
// session. Role strings are raw here; callers normalize through
// domain.ParseRole.
type Metadata struct {
	RoomNumber  string `json:"room_number,omitempty"`
	Role        string `json:"role,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	Email        string
	Metadata     Metadata
}

type Authenticator interface {
	SignIn(ctx context.Context, email, secret string) (*Session, error)
	SignUp(ctx context.Context, email, secret string, meta Metadata) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
}
