package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/fittrack/internal/apperrors"
	"github.com/nkiryanov/fittrack/internal/logger"
	"github.com/nkiryanov/fittrack/internal/models"
	"github.com/nkiryanov/fittrack/internal/repository"
	"github.com/nkiryanov/fittrack/internal/service/auth"
)

type mailer interface {
	Send(ctx context.Context, to string, subject string, html string) error
}

type Config struct {
	// Public base url links in emails point to, e.g. http://localhost:3000
	PublicURL string

	// Hasher for new passwords. auth.DefaultHasher if not set
	Hasher auth.PasswordHasher

	// Lifetime of verification and reset links. auth.SecretTokenTTL if not set
	TokenTTL time.Duration

	// Clock, time.Now if not set
	Now func() time.Time
}

// Account service: signup, email verification and password reset
type AccountService struct {
	publicURL string
	hasher    auth.PasswordHasher
	tokenTTL  time.Duration
	now       func() time.Time

	users  repository.UserRepo
	mailer mailer
	log    logger.Logger
}

func NewService(cfg Config, users repository.UserRepo, m mailer, l logger.Logger) (*AccountService, error) {
	if cfg.PublicURL == "" {
		return nil, errors.New("public url must not be empty")
	}
	if cfg.Hasher == nil {
		cfg.Hasher = auth.DefaultHasher
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = auth.SecretTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &AccountService{
		publicURL: cfg.PublicURL,
		hasher:    cfg.Hasher,
		tokenTTL:  cfg.TokenTTL,
		now:       cfg.Now,
		users:     users,
		mailer:    m,
		log:       l.With("service", "account"),
	}, nil
}

// Register unverified user and send verification link
//
// If email is taken by unverified user returns apperrors.ErrVerificationPending, by verified one apperrors.ErrUserAlreadyExists.
// If user is created but email not sent returns the user and apperrors.ErrEmailDelivery
func (s *AccountService) Signup(ctx context.Context, email string, password string, username string) (models.User, error) {
	var user models.User

	existing, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil && existing.IsVerified:
		return user, apperrors.ErrUserAlreadyExists
	case err == nil:
		return user, apperrors.ErrVerificationPending
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return user, fmt.Errorf("can't get user. Err: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	secret, verification, err := auth.NewSecretToken(s.now(), s.tokenTTL)
	if err != nil {
		return user, err
	}

	user, err = s.users.CreateUser(ctx, repository.CreateUserParams{
		Email:          email,
		Username:       username,
		HashedPassword: hash,
		Verification:   &verification,
	})
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	s.log.Info("user signed up", "user_id", user.ID)

	err = s.sendVerification(ctx, email, secret)
	if err != nil {
		return user, err
	}

	return user, nil
}

// Verify email by the link secret. Link works once
//
// Errors: apperrors.ErrInvalidOrExpiredLink
func (s *AccountService) VerifyEmail(ctx context.Context, email string, token string) error {
	if email == "" || token == "" {
		return apperrors.ErrInvalidOrExpiredLink
	}

	user, err := s.users.ConsumeVerification(ctx, email, auth.HashSecret(token), s.now())
	if err != nil {
		return err
	}

	s.log.Info("email verified", "user_id", user.ID)
	return nil
}

// Issue and send fresh verification link if unverified account with the email exists
// Response is the same whether it exists or not
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	err := s.resendVerification(ctx, email)
	if err != nil {
		s.log.Debug("verification not resent", "error", err)
	}

	return acknowledge(err,
		apperrors.ErrUserNotFound,
		apperrors.ErrAlreadyVerified,
		apperrors.ErrEmailDelivery,
	)
}

func (s *AccountService) resendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return apperrors.ErrAlreadyVerified
	}

	secret, verification, err := auth.NewSecretToken(s.now(), s.tokenTTL)
	if err != nil {
		return err
	}

	_, err = s.users.UpdateUser(ctx, user.ID, repository.WithVerification(&verification))
	if err != nil {
		return fmt.Errorf("can't save verification token. Err: %w", err)
	}

	return s.sendVerification(ctx, user.Email, secret)
}

// Issue and send password reset link for the authenticated user
// Unknown user is acknowledged as success
//
// Errors: apperrors.ErrEmailNotVerified, apperrors.ErrEmailDelivery
func (s *AccountService) RequestPasswordReset(ctx context.Context, userID uuid.UUID) error {
	return acknowledge(s.requestPasswordReset(ctx, userID), apperrors.ErrUserNotFound)
}

func (s *AccountService) requestPasswordReset(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsVerified {
		return apperrors.ErrEmailNotVerified
	}

	secret, reset, err := auth.NewSecretToken(s.now(), s.tokenTTL)
	if err != nil {
		return err
	}

	_, err = s.users.UpdateUser(ctx, user.ID, repository.WithPasswordReset(&reset))
	if err != nil {
		return fmt.Errorf("can't save reset token. Err: %w", err)
	}

	html, err := render(resetPasswordTemplate, emailData{
		Link: secretLink(s.publicURL, resetPasswordPath, user.Email, secret),
		TTL:  ttlText(s.tokenTTL),
	})
	if err != nil {
		return fmt.Errorf("can't render email. Err: %w", err)
	}

	return s.send(ctx, user.Email, resetPasswordSubject, html)
}

// Set new password by the reset link secret. Link works once
// All sessions of the user are revoked
//
// Errors: apperrors.ErrInvalidOrExpiredLink
func (s *AccountService) ResetPassword(ctx context.Context, email string, token string, newPassword string) error {
	now := s.now()

	if email == "" || token == "" {
		return apperrors.ErrInvalidOrExpiredLink
	}

	// Check before hashing, so garbage links don't cost bcrypt round
	user, err := s.users.GetUserByEmailWithPendingReset(ctx, email, now)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return apperrors.ErrInvalidOrExpiredLink
	case err != nil:
		return fmt.Errorf("can't get user. Err: %w", err)
	case !auth.SecretMatches(user.PasswordReset.Hash, token):
		return apperrors.ErrInvalidOrExpiredLink
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err = s.users.ConsumePasswordReset(ctx, email, auth.HashSecret(token), now, hash)
	if err != nil {
		return err
	}

	s.log.Info("password reset", "user_id", user.ID)
	return nil
}

func (s *AccountService) GetProfile(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// Change username and/or email. Empty value keeps the field
// New email makes user unverified again and a verification link is sent to it
//
// Errors: apperrors.ErrUserAlreadyExists if email belongs to another user, apperrors.ErrUserNotFound.
// If profile is updated but email not sent returns the user and apperrors.ErrEmailDelivery
func (s *AccountService) UpdateProfile(ctx context.Context, userID uuid.UUID, username string, email string) (models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return user, err
	}

	var opts []repository.UpdateOption
	if username != "" {
		opts = append(opts, repository.WithUsername(username))
	}

	var secret string
	if email != "" && email != user.Email {
		var verification models.SecretToken
		secret, verification, err = auth.NewSecretToken(s.now(), s.tokenTTL)
		if err != nil {
			return user, err
		}
		opts = append(opts,
			repository.WithEmail(email),
			repository.WithVerified(false),
			repository.WithVerification(&verification),
		)
	}

	user, err = s.users.UpdateUser(ctx, userID, opts...)
	if err != nil {
		return user, err
	}

	if secret != "" {
		s.log.Info("email changed, verification required", "user_id", userID)
		if err := s.sendVerification(ctx, email, secret); err != nil {
			return user, err
		}
	}

	return user, nil
}

// Delete user with all it's data. Password has to be confirmed
//
// Errors: apperrors.ErrPasswordIncorrect, apperrors.ErrUserNotFound
func (s *AccountService) DeleteAccount(ctx context.Context, userID uuid.UUID, password string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return apperrors.ErrPasswordIncorrect
	}

	err = s.users.DeleteUser(ctx, userID)
	if err != nil {
		return err
	}

	s.log.Info("account deleted", "user_id", userID)
	return nil
}

func (s *AccountService) sendVerification(ctx context.Context, email string, secret string) error {
	html, err := render(verifyEmailTemplate, emailData{
		Link: secretLink(s.publicURL, verifyEmailPath, email, secret),
		TTL:  ttlText(s.tokenTTL),
	})
	if err != nil {
		return fmt.Errorf("can't render email. Err: %w", err)
	}

	return s.send(ctx, email, verifyEmailSubject, html)
}

func (s *AccountService) send(ctx context.Context, to string, subject string, html string) error {
	err := s.mailer.Send(ctx, to, subject, html)
	if err != nil {
		s.log.Error("email delivery failed", "subject", subject, "error", err)
		return fmt.Errorf("%w: %w", apperrors.ErrEmailDelivery, err)
	}
	return nil
}

// Hide outcomes that tell whether account exists
// Any other error (store failures) is returned as is
func acknowledge(err error, hidden ...error) error {
	for _, h := range hidden {
		if errors.Is(err, h) {
			return nil
		}
	}
	return err
}

func ttlText(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d.Hours()))
	default:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
}
