package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/fittrack/internal/models"
)

type CreateUserParams struct {
	Email          string
	Username       string
	HashedPassword string
	Verification   *models.SecretToken
}

// User repository interface
// Every method touches exactly one user row and is atomic on its own
type UserRepo interface {
	// Create unverified user
	// If user with the email exists already (verified or not) has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Get user only if it has password reset secret that is still active at 'now'
	// Otherwise must return apperrors.ErrUserNotFound
	GetUserByEmailWithPendingReset(ctx context.Context, email string, now time.Time) (models.User, error)

	// Update only the fields set by options and return the updated user
	// If user not found must return apperrors.ErrUserNotFound
	// If new email belongs to another user must return apperrors.ErrUserAlreadyExists
	UpdateUser(ctx context.Context, userID uuid.UUID, opts ...UpdateOption) (models.User, error)

	// Delete user with all it's data
	// If user not found must return apperrors.ErrUserNotFound
	DeleteUser(ctx context.Context, userID uuid.UUID) error

	// Mark user verified and clear verification secret
	// Only if the stored digest equals 'hash' and the secret is active at 'now', so concurrent consumers can't both succeed
	// Otherwise must return apperrors.ErrInvalidOrExpiredLink
	ConsumeVerification(ctx context.Context, email string, hash string, now time.Time) (models.User, error)

	// Set new password hash, clear reset secret and refresh token
	// Same conditions and errors as ConsumeVerification
	ConsumePasswordReset(ctx context.Context, email string, hash string, now time.Time, hashedPassword string) (models.User, error)
}

type WorkoutFilter struct {
	ExerciseType string     // any if empty
	From         *time.Time // inclusive
	To           *time.Time // inclusive

	// Page bounds, Limit=0 means no limit
	Limit  int
	Offset int
}

var ErrInvalidFilter = errors.New("invalid workout filter")

// Negative page bounds are refused by every repository
func (f WorkoutFilter) Check() error {
	if f.Limit < 0 || f.Offset < 0 {
		return fmt.Errorf("%w: limit %d, offset %d", ErrInvalidFilter, f.Limit, f.Offset)
	}
	return nil
}

// Workout repository interface
// Workouts of other users behave as not existing ones: apperrors.ErrWorkoutNotFound
type WorkoutRepo interface {
	CreateWorkout(ctx context.Context, w models.Workout) (models.Workout, error)
	GetWorkout(ctx context.Context, userID uuid.UUID, workoutID uuid.UUID) (models.Workout, error)

	// List user's workouts newest first and total count matched by filter regardless page bounds
	ListWorkouts(ctx context.Context, userID uuid.UUID, f WorkoutFilter) ([]models.Workout, int, error)

	UpdateWorkout(ctx context.Context, userID uuid.UUID, workoutID uuid.UUID, upd WorkoutUpdate) (models.Workout, error)
	DeleteWorkout(ctx context.Context, userID uuid.UUID, workoutID uuid.UUID) error
}

type Storage interface {
	User() UserRepo
	Workout() WorkoutRepo
}
