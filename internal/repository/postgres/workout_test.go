package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/fittrack/internal/apperrors"
	"github.com/nkiryanov/fittrack/internal/models"
	"github.com/nkiryanov/fittrack/internal/repository"
	"github.com/nkiryanov/fittrack/internal/testutil"
)

func Test_WorkoutRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	day := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	setup := func(t *testing.T, tx pgx.Tx) (*WorkoutRepo, models.User) {
		t.Helper()
		users := UserRepo{DB: tx}
		u, err := users.CreateUser(t.Context(), repository.CreateUserParams{
			Email:          uuid.NewString() + "@example.com",
			Username:       "runner",
			HashedPassword: "hash",
		})
		require.NoError(t, err)
		return &WorkoutRepo{DB: tx}, u
	}

	add := func(t *testing.T, r *WorkoutRepo, userID uuid.UUID, date time.Time, exercise string) models.Workout {
		t.Helper()
		w, err := r.CreateWorkout(t.Context(), models.Workout{
			UserID:       userID,
			Date:         date,
			ExerciseType: exercise,
			Duration:     30,
			Calories:     250,
		})
		require.NoError(t, err)
		return w
	}

	t.Run("create and get workout", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r, u := setup(t, tx)

			created := add(t, r, u.ID, day, models.ExerciseRunning)
			got, err := r.GetWorkout(t.Context(), u.ID, created.ID)

			require.NoError(t, err)
			assert.Equal(t, created, got)
			assert.Equal(t, day, got.Date)
			assert.Equal(t, models.ExerciseRunning, got.ExerciseType)
		})
	})

	t.Run("create workout for unknown user", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := WorkoutRepo{DB: tx}

			_, err := r.CreateWorkout(t.Context(), models.Workout{UserID: uuid.New(), Date: day, ExerciseType: models.ExerciseCycling, Duration: 1, Calories: 1})

			require.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("other user's workout not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r, owner := setup(t, tx)
			_, stranger := setup(t, tx)
			w := add(t, r, owner.ID, day, models.ExerciseSwimming)

			_, err := r.GetWorkout(t.Context(), stranger.ID, w.ID)
			require.ErrorIs(t, err, apperrors.ErrWorkoutNotFound)

			err = r.DeleteWorkout(t.Context(), stranger.ID, w.ID)
			require.ErrorIs(t, err, apperrors.ErrWorkoutNotFound)

			duration := 10
			_, err = r.UpdateWorkout(t.Context(), stranger.ID, w.ID, repository.WorkoutUpdate{Duration: &duration})
			require.ErrorIs(t, err, apperrors.ErrWorkoutNotFound)
		})
	})

	t.Run("list filters and paginates newest first", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r, u := setup(t, tx)
			for i := range 5 {
				add(t, r, u.ID, day.AddDate(0, 0, i), models.ExerciseRunning)
			}
			add(t, r, u.ID, day, models.ExerciseCycling)

			page, total, err := r.ListWorkouts(t.Context(), u.ID, repository.WorkoutFilter{ExerciseType: models.ExerciseRunning, Limit: 2, Offset: 1})
			require.NoError(t, err)

			assert.Equal(t, 5, total)
			require.Len(t, page, 2)
			assert.Equal(t, day.AddDate(0, 0, 3), page[0].Date)
			assert.Equal(t, day.AddDate(0, 0, 2), page[1].Date)

			from, to := day.AddDate(0, 0, 1), day.AddDate(0, 0, 2)
			ranged, total, err := r.ListWorkouts(t.Context(), u.ID, repository.WorkoutFilter{From: &from, To: &to})
			require.NoError(t, err)
			assert.Equal(t, 2, total)
			assert.Len(t, ranged, 2)

			beyond, total, err := r.ListWorkouts(t.Context(), u.ID, repository.WorkoutFilter{Offset: 100})
			require.NoError(t, err)
			assert.Equal(t, 6, total)
			assert.Empty(t, beyond)
		})
	})

	t.Run("list with negative offset", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r, u := setup(t, tx)

			_, _, err := r.ListWorkouts(t.Context(), u.ID, repository.WorkoutFilter{Limit: 10, Offset: -1})

			require.ErrorIs(t, err, repository.ErrInvalidFilter)
		})
	})

	t.Run("update workout partially", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r, u := setup(t, tx)
			w := add(t, r, u.ID, day, models.ExerciseRunning)

			calories := 900
			exercise := models.ExerciseWeightlifting
			updated, err := r.UpdateWorkout(t.Context(), u.ID, w.ID, repository.WorkoutUpdate{Calories: &calories, ExerciseType: &exercise})

			require.NoError(t, err)
			assert.Equal(t, 900, updated.Calories)
			assert.Equal(t, models.ExerciseWeightlifting, updated.ExerciseType)
			assert.Equal(t, w.Duration, updated.Duration)
			assert.Equal(t, w.Date, updated.Date)
		})
	})

	t.Run("delete user cascades workouts", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r, u := setup(t, tx)
			w := add(t, r, u.ID, day, models.ExerciseRunning)

			err := (&UserRepo{DB: tx}).DeleteUser(t.Context(), u.ID)
			require.NoError(t, err)

			_, err = r.GetWorkout(t.Context(), u.ID, w.ID)
			require.ErrorIs(t, err, apperrors.ErrWorkoutNotFound)
		})
	})
}
