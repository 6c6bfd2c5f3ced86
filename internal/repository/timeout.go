package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/fittrack/internal/models"
)

// Storage which bounds every repository call with timeout
// Parent context cancellation still propagates
func WithTimeout(s Storage, d time.Duration) Storage {
	if d <= 0 {
		return s
	}
	return &timeoutStorage{
		user:    &timeoutUserRepo{repo: s.User(), d: d},
		workout: &timeoutWorkoutRepo{repo: s.Workout(), d: d},
	}
}

type timeoutStorage struct {
	user    UserRepo
	workout WorkoutRepo
}

func (s *timeoutStorage) User() UserRepo       { return s.user }
func (s *timeoutStorage) Workout() WorkoutRepo { return s.workout }

type timeoutUserRepo struct {
	repo UserRepo
	d    time.Duration
}

func (r *timeoutUserRepo) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.d)
	defer cancel()
	return r.repo.CreateUser(ctx, params)
}

func (r *timeoutUserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.d)
	defer cancel()
	return r.repo.GetUserByID(ctx, userID)
}

func (r *timeoutUserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.d)
	defer cancel()
	return r.repo.GetUserByEmail(ctx, email)
}

func (r *timeoutUserRepo) GetUserByEmailWithPendingReset(ctx context.Context, email string, now time.Time) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.d)
	defer cancel()
	return r.repo.GetUserByEmailWithPendingReset(ctx, email, now)
}

func (r *timeoutUserRepo) UpdateUser(ctx context.Context, userID uuid.UUID, opts ...UpdateOption) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.d)
	defer cancel()
	return r.repo.UpdateUser(ctx, userID, opts...)
}

func (r *timeoutUserRepo) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, r.d)
	defer cancel()
	return r.repo.DeleteUser(ctx, userID)
}

func (r *timeoutUserRepo) ConsumeVerification(ctx context.Context, email string, hash string, now time.Time) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.d)
	defer cancel()
	return r.repo.ConsumeVerification(ctx, email, hash, now)
}

func (r *timeoutUserRepo) ConsumePasswordReset(ctx context.Context, email string, hash string, now time.Time, hashedPassword string) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.d)
	defer cancel()
	return r.repo.ConsumePasswordReset(ctx, email, hash, now, hashedPassword)
}

type timeoutWorkoutRepo struct {
	repo WorkoutRepo
	d    time.Duration
}

func (r *timeoutWorkoutRepo) CreateWorkout(ctx context.Context, w models.Workout) (models.Workout, error) {
	ctx, cancel := context.WithTimeout(ctx, r.d)
	defer cancel()
	return r.repo.CreateWorkout(ctx, w)
}

func (r *timeoutWorkoutRepo) GetWorkout(ctx context.Context, userID uuid.UUID, workoutID uuid.UUID) (models.Workout, error) {
	ctx, cancel := context.WithTimeout(ctx, r.d)
	defer cancel()
	return r.repo.GetWorkout(ctx, userID, workoutID)
}

func (r *timeoutWorkoutRepo) ListWorkouts(ctx context.Context, userID uuid.UUID, f WorkoutFilter) ([]models.Workout, int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.d)
	defer cancel()
	return r.repo.ListWorkouts(ctx, userID, f)
}

func (r *timeoutWorkoutRepo) UpdateWorkout(ctx context.Context, userID uuid.UUID, workoutID uuid.UUID, upd WorkoutUpdate) (models.Workout, error) {
	ctx, cancel := context.WithTimeout(ctx, r.d)
	defer cancel()
	return r.repo.UpdateWorkout(ctx, userID, workoutID, upd)
}

func (r *timeoutWorkoutRepo) DeleteWorkout(ctx context.Context, userID uuid.UUID, workoutID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, r.d)
	defer cancel()
	return r.repo.DeleteWorkout(ctx, userID, workoutID)
}
