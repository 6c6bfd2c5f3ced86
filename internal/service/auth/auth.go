package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/fittrack/internal/apperrors"
	"github.com/nkiryanov/fittrack/internal/models"
	"github.com/nkiryanov/fittrack/internal/repository"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type tokenManager interface {
	GeneratePair(userID uuid.UUID) (models.TokenPair, error)
	IssueAccess(userID uuid.UUID) (models.IssuedToken, error)
	ParseAccess(access string) (uuid.UUID, error)
	ParseRefresh(refresh string) (uuid.UUID, error)
}

type Config struct {
	// Hasher to use during login. DefaultHasher if not set
	Hasher PasswordHasher

	// Set 'Secure' flag on auth cookies. Has to be true in production
	SecureCookies bool
}

// Auth service: logs user in, refreshes and revokes sessions, authenticates requests
type AuthService struct {
	hasher PasswordHasher
	tokens tokenManager
	users  repository.UserRepo

	secureCookies bool

	// Hash to compare against when user not found
	// So login takes the same time whether email is known or not
	dummyHash string
}

func NewService(cfg Config, tokens tokenManager, users repository.UserRepo) (*AuthService, error) {
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher
	}

	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("hasher does not work. Err: %w", err)
	}

	return &AuthService{
		hasher:        hasher,
		tokens:        tokens,
		users:         users,
		secureCookies: cfg.SecureCookies,
		dummyHash:     dummyHash,
	}, nil
}

// Login user with email and password and start new session
// Previous refresh token of the user stops working
//
// Errors: apperrors.ErrInvalidCredentials, apperrors.ErrEmailNotVerified
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.TokenPair, error) {
	var pair models.TokenPair

	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(s.dummyHash, password)
		return pair, apperrors.ErrInvalidCredentials
	case err != nil:
		return pair, fmt.Errorf("can't get user. Err: %w", err)
	}

	if !user.IsVerified {
		return pair, apperrors.ErrEmailNotVerified
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return pair, apperrors.ErrInvalidCredentials
	}

	pair, err = s.tokens.GeneratePair(user.ID)
	if err != nil {
		return pair, fmt.Errorf("token could not generated, sorry. Err: %w", err)
	}

	_, err = s.users.UpdateUser(ctx, user.ID, repository.WithRefreshTokenHash(HashSecret(pair.Refresh.Value)))
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("can't save refresh token. Err: %w", err)
	}

	return pair, nil
}

// Issue new access token by refresh token
// Refresh token itself is not rotated
//
// Errors: apperrors.ErrTokenMissing, apperrors.ErrTokenExpired, apperrors.ErrTokenInvalid, apperrors.ErrTokenRevoked
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.IssuedToken, error) {
	_, access, err := s.refresh(ctx, refresh)
	return access, err
}

// Revoke user's refresh token
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	_, err := s.users.UpdateUser(ctx, userID, repository.WithRefreshTokenHash(""))
	if err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
		return fmt.Errorf("can't revoke refresh token. Err: %w", err)
	}
	return nil
}

// Authenticate request credentials
//
// Valid access token is enough. Expired or absent one is renewed by the refresh token,
// then returned session carries new access token to deliver with response.
// Access token that is invalid for any other reason fails immediately, refresh token is not tried.
func (s *AuthService) Authenticate(ctx context.Context, access string, refresh string) (models.Session, error) {
	if access != "" {
		userID, err := s.tokens.ParseAccess(access)
		switch {
		case err == nil:
			return models.Session{UserID: userID}, nil
		case !errors.Is(err, apperrors.ErrTokenExpired):
			return models.Session{}, err
		}
	}

	userID, renewed, err := s.refresh(ctx, refresh)
	if err != nil {
		return models.Session{}, err
	}

	return models.Session{UserID: userID, Access: &renewed}, nil
}

func (s *AuthService) refresh(ctx context.Context, refresh string) (uuid.UUID, models.IssuedToken, error) {
	var access models.IssuedToken

	if refresh == "" {
		return uuid.Nil, access, apperrors.ErrTokenMissing
	}

	userID, err := s.tokens.ParseRefresh(refresh)
	if err != nil {
		return uuid.Nil, access, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return uuid.Nil, access, apperrors.ErrTokenRevoked
	case err != nil:
		return uuid.Nil, access, fmt.Errorf("can't get user. Err: %w", err)
	}

	if !SecretMatches(user.RefreshTokenHash, refresh) {
		return uuid.Nil, access, apperrors.ErrTokenRevoked
	}

	access, err = s.tokens.IssueAccess(userID)
	if err != nil {
		return uuid.Nil, access, fmt.Errorf("token could not generated, sorry. Err: %w", err)
	}

	return userID, access, nil
}
