package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Account is a credential record owned by the credential gateway.
type Account struct {
	ID           string     `db:"id" json:"uid"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	LastSignInAt *time.Time `db:"last_sign_in_at" json:"lastSignInAt,omitempty"`
}

// AuthSession is returned by the gateway after account creation or sign-in.
type AuthSession struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionClaims is the JWT payload of a session token.
type SessionClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// SessionChange is delivered to the session observer on every state change.
// Account is nil when the change is a sign-out, and UID is empty for the initial check.
type SessionChange struct {
	UID     string
	Account *Account
}

// SignedIn reports whether the change moves the account into the signed-in state.
func (c SessionChange) SignedIn() bool {
	return c.Account != nil
}

// SessionState is the per-account session lifecycle state.
type SessionState string

const (
	SessionSignedOut SessionState = "signed_out"
	SessionSignedIn  SessionState = "signed_in"
)
