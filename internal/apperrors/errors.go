package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrVerificationPending = errors.New("user exists but email is not verified yet")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrPasswordIncorrect  = errors.New("password is incorrect")

	// Access and refresh token failures
	// Expired and invalid tokens are distinguished: the auth gate refreshes on expiry only
	ErrTokenMissing = errors.New("token is missing")
	ErrTokenExpired = errors.New("token is expired")
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenRevoked = errors.New("token is revoked")

	// Email verification or password reset secret is wrong, consumed or expired
	ErrInvalidOrExpiredLink = errors.New("invalid or expired link")
	ErrEmailDelivery        = errors.New("email could not be delivered")

	ErrWorkoutNotFound = errors.New("workout not found")

	ErrRateLimited         = errors.New("rate limited")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
)
