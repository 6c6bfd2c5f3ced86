package models

import (
	"time"

	"github.com/google/uuid"
)

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
	TTL       time.Duration // Lifetime at issue, cookies expire after it
}

// Token pair issued by AuthService on login
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Result of authenticating a request
// Access is set only when the access token was transparently reissued
type Session struct {
	UserID uuid.UUID
	Access *IssuedToken
}
