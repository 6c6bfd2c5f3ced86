package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/nkiryanov/fittrack/internal/models"
)

const (
	secretTokenBytes = 32

	// Lifetime of email verification and password reset links
	SecretTokenTTL = time.Hour
)

// Generate random secret to send to the user
// Only its digest (HashSecret) is stored
func GenerateSecret() (string, error) {
	b := make([]byte, secretTokenBytes)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("error while generate secret. Err: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Digest of the secret to store
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Whether stored digest is digest of the presented secret
func SecretMatches(digest string, presented string) bool {
	if digest == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(digest), []byte(HashSecret(presented))) == 1
}

// Generate secret and the token to store that expires at now+ttl
func NewSecretToken(now time.Time, ttl time.Duration) (string, models.SecretToken, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return "", models.SecretToken{}, err
	}

	return secret, models.SecretToken{Hash: HashSecret(secret), ExpiresAt: now.Add(ttl)}, nil
}
