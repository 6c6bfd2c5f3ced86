package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Email          string
	Username       string
	HashedPassword string
	IsVerified     bool

	// Pending email verification and password reset secrets, nil if none
	Verification  *SecretToken
	PasswordReset *SecretToken

	// Digest of the only refresh token accepted for the user, empty if none
	RefreshTokenHash string
}

// Single use time boxed secret sent to the user by email
// Only the digest is stored, so token and expiry are always set or cleared together
type SecretToken struct {
	Hash      string
	ExpiresAt time.Time
}

// Whether the secret may still be consumed at the moment
// Expiry exactly equal to now is already expired
func (t *SecretToken) ActiveAt(now time.Time) bool {
	return t != nil && now.Before(t.ExpiresAt)
}
