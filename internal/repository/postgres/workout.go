package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/fittrack/internal/apperrors"
	"github.com/nkiryanov/fittrack/internal/models"
	"github.com/nkiryanov/fittrack/internal/repository"
)

type WorkoutRepo struct {
	DB DBTX
}

const workoutColumns = `id, user_id, date, exercise_type, duration, calories, created_at`

const createWorkout = `-- name: CreateWorkout
INSERT INTO workouts (id, user_id, date, exercise_type, duration, calories)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + workoutColumns

func (r *WorkoutRepo) CreateWorkout(ctx context.Context, w models.Workout) (models.Workout, error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createWorkout, w.ID, w.UserID, w.Date, w.ExerciseType, w.Duration, w.Calories)
	created, err := pgx.CollectOneRow(rows, rowToWorkout)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return created, apperrors.ErrUserNotFound
		}

		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const getWorkout = `-- name: GetWorkout
SELECT ` + workoutColumns + `
FROM workouts
WHERE id = $1 AND user_id = $2
`

func (r *WorkoutRepo) GetWorkout(ctx context.Context, userID uuid.UUID, workoutID uuid.UUID) (models.Workout, error) {
	rows, _ := r.DB.Query(ctx, getWorkout, workoutID, userID)
	return collectWorkout(rows)
}

// Nil filter args match everything. 'LIMIT NULL' is no limit
const listWorkouts = `-- name: ListWorkouts
SELECT ` + workoutColumns + `
FROM workouts
WHERE user_id = $1
	AND ($2::text IS NULL OR exercise_type = $2)
	AND ($3::timestamptz IS NULL OR date >= $3)
	AND ($4::timestamptz IS NULL OR date <= $4)
ORDER BY date DESC, created_at DESC
LIMIT $5 OFFSET $6
`

const countWorkouts = `-- name: CountWorkouts
SELECT count(*)
FROM workouts
WHERE user_id = $1
	AND ($2::text IS NULL OR exercise_type = $2)
	AND ($3::timestamptz IS NULL OR date >= $3)
	AND ($4::timestamptz IS NULL OR date <= $4)
`

func (r *WorkoutRepo) ListWorkouts(ctx context.Context, userID uuid.UUID, f repository.WorkoutFilter) ([]models.Workout, int, error) {
	if err := f.Check(); err != nil {
		return nil, 0, err
	}

	var exerciseType *string
	if f.ExerciseType != "" {
		exerciseType = &f.ExerciseType
	}

	var limit *int
	if f.Limit > 0 {
		limit = &f.Limit
	}

	var total int
	err := r.DB.QueryRow(ctx, countWorkouts, userID, exerciseType, f.From, f.To).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	rows, _ := r.DB.Query(ctx, listWorkouts, userID, exerciseType, f.From, f.To, limit, f.Offset)
	workouts, err := pgx.CollectRows(rows, rowToWorkout)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return workouts, total, nil
}

const updateWorkout = `-- name: UpdateWorkout
UPDATE workouts
SET
	date = COALESCE($3, date),
	exercise_type = COALESCE($4, exercise_type),
	duration = COALESCE($5, duration),
	calories = COALESCE($6, calories)
WHERE id = $1 AND user_id = $2
RETURNING ` + workoutColumns

func (r *WorkoutRepo) UpdateWorkout(ctx context.Context, userID uuid.UUID, workoutID uuid.UUID, upd repository.WorkoutUpdate) (models.Workout, error) {
	if upd.Empty() {
		return r.GetWorkout(ctx, userID, workoutID)
	}

	rows, _ := r.DB.Query(ctx, updateWorkout, workoutID, userID, upd.Date, upd.ExerciseType, upd.Duration, upd.Calories)
	return collectWorkout(rows)
}

const deleteWorkout = `-- name: DeleteWorkout
DELETE FROM workouts
WHERE id = $1 AND user_id = $2
`

func (r *WorkoutRepo) DeleteWorkout(ctx context.Context, userID uuid.UUID, workoutID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteWorkout, workoutID, userID)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrWorkoutNotFound
	default:
		return nil
	}
}

func collectWorkout(rows pgx.Rows) (models.Workout, error) {
	w, err := pgx.CollectOneRow(rows, rowToWorkout)

	switch {
	case err == nil:
		return w, nil
	case errors.Is(err, pgx.ErrNoRows):
		return w, apperrors.ErrWorkoutNotFound
	default:
		return w, fmt.Errorf("db error: %w", err)
	}
}

func rowToWorkout(row pgx.CollectableRow) (models.Workout, error) {
	var w models.Workout
	err := row.Scan(&w.ID, &w.UserID, &w.Date, &w.ExerciseType, &w.Duration, &w.Calories, &w.CreatedAt)
	if err != nil {
		return w, err
	}

	w.Date = w.Date.UTC()
	w.CreatedAt = w.CreatedAt.UTC()
	return w, nil
}
