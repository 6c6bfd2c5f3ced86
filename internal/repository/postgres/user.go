package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/fittrack/internal/apperrors"
	"github.com/nkiryanov/fittrack/internal/models"
	"github.com/nkiryanov/fittrack/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, email, username, password_hash, is_verified,
	verification_token_hash, verification_expires_at,
	reset_token_hash, reset_expires_at,
	refresh_token_hash`

const createUser = `-- name: CreateUser
INSERT INTO users (id, email, username, password_hash, verification_token_hash, verification_expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, params repository.CreateUserParams) (models.User, error) {
	hash, expiresAt := secretToColumns(params.Verification)
	rows, _ := r.DB.Query(ctx, createUser, uuid.New(), params.Email, params.Username, params.HashedPassword, hash, expiresAt)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return user, apperrors.ErrUserAlreadyExists
		}

		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + `
FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows, apperrors.ErrUserNotFound)
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT ` + userColumns + `
FROM users
WHERE email = $1
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmail, email)
	return collectUser(rows, apperrors.ErrUserNotFound)
}

const getUserByEmailWithPendingReset = `-- name: GetUserByEmailWithPendingReset
SELECT ` + userColumns + `
FROM users
WHERE email = $1 AND reset_token_hash IS NOT NULL AND reset_expires_at > $2
`

func (r *UserRepo) GetUserByEmailWithPendingReset(ctx context.Context, email string, now time.Time) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmailWithPendingReset, email, now)
	return collectUser(rows, apperrors.ErrUserNotFound)
}

// Build 'UPDATE ... SET' with the columns present in update only
func (r *UserRepo) UpdateUser(ctx context.Context, id uuid.UUID, opts ...repository.UpdateOption) (models.User, error) {
	upd := repository.NewUserUpdate(opts...)
	if upd.Empty() {
		return r.GetUserByID(ctx, id)
	}

	args := []any{id}
	sets := make([]string, 0, 8)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Email.Set {
		add("email", upd.Email.Value)
	}
	if upd.Username.Set {
		add("username", upd.Username.Value)
	}
	if upd.HashedPassword.Set {
		add("password_hash", upd.HashedPassword.Value)
	}
	if upd.IsVerified.Set {
		add("is_verified", upd.IsVerified.Value)
	}
	if upd.Verification.Set {
		hash, expiresAt := secretToColumns(upd.Verification.Value)
		add("verification_token_hash", hash)
		add("verification_expires_at", expiresAt)
	}
	if upd.PasswordReset.Set {
		hash, expiresAt := secretToColumns(upd.PasswordReset.Value)
		add("reset_token_hash", hash)
		add("reset_expires_at", expiresAt)
	}
	if upd.RefreshTokenHash.Set {
		var hash *string
		if upd.RefreshTokenHash.Value != "" {
			hash = &upd.RefreshTokenHash.Value
		}
		add("refresh_token_hash", hash)
	}

	query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = $1 RETURNING " + userColumns
	rows, _ := r.DB.Query(ctx, query, args...)
	user, err := collectUser(rows, apperrors.ErrUserNotFound)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return user, apperrors.ErrUserAlreadyExists
	}
	return user, err
}

const deleteUser = `-- name: DeleteUser
DELETE FROM users
WHERE id = $1
`

func (r *UserRepo) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteUser, id)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrUserNotFound
	default:
		return nil
	}
}

// Single statement: the second concurrent consumer finds no matching row
const consumeVerification = `-- name: ConsumeVerification
UPDATE users
SET is_verified = TRUE, verification_token_hash = NULL, verification_expires_at = NULL
WHERE email = $1 AND verification_token_hash = $2 AND verification_expires_at > $3
RETURNING ` + userColumns

func (r *UserRepo) ConsumeVerification(ctx context.Context, email string, hash string, now time.Time) (models.User, error) {
	rows, _ := r.DB.Query(ctx, consumeVerification, email, hash, now)
	return collectUser(rows, apperrors.ErrInvalidOrExpiredLink)
}

const consumePasswordReset = `-- name: ConsumePasswordReset
UPDATE users
SET password_hash = $4, reset_token_hash = NULL, reset_expires_at = NULL, refresh_token_hash = NULL
WHERE email = $1 AND reset_token_hash = $2 AND reset_expires_at > $3
RETURNING ` + userColumns

func (r *UserRepo) ConsumePasswordReset(ctx context.Context, email string, hash string, now time.Time, hashedPassword string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, consumePasswordReset, email, hash, now, hashedPassword)
	return collectUser(rows, apperrors.ErrInvalidOrExpiredLink)
}

// Collect exactly one user. No rows is reported as notFound error
func collectUser(rows pgx.Rows, notFound error) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, notFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var (
		u                                 models.User
		verificationHash, resetHash       *string
		verificationExpires, resetExpires *time.Time
		refreshHash                       *string
	)

	err := row.Scan(
		&u.ID, &u.CreatedAt, &u.Email, &u.Username, &u.HashedPassword, &u.IsVerified,
		&verificationHash, &verificationExpires,
		&resetHash, &resetExpires,
		&refreshHash,
	)
	if err != nil {
		return u, err
	}

	u.Verification = columnsToSecret(verificationHash, verificationExpires)
	u.PasswordReset = columnsToSecret(resetHash, resetExpires)
	if refreshHash != nil {
		u.RefreshTokenHash = *refreshHash
	}

	return u, nil
}

func secretToColumns(t *models.SecretToken) (hash *string, expiresAt *time.Time) {
	if t == nil {
		return nil, nil
	}
	return &t.Hash, &t.ExpiresAt
}

func columnsToSecret(hash *string, expiresAt *time.Time) *models.SecretToken {
	if hash == nil || expiresAt == nil {
		return nil
	}
	return &models.SecretToken{Hash: *hash, ExpiresAt: *expiresAt}
}
