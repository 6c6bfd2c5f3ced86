package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/fittrack/internal/apperrors"
	"github.com/nkiryanov/fittrack/internal/models"
	"github.com/nkiryanov/fittrack/internal/repository"
)

type WorkoutRepo struct {
	s *Storage
}

func (r *WorkoutRepo) CreateWorkout(_ context.Context, w models.Workout) (models.Workout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[w.UserID]; !ok {
		return models.Workout{}, apperrors.ErrUserNotFound
	}

	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	r.s.workouts[w.ID] = w

	return w, nil
}

func (r *WorkoutRepo) GetWorkout(_ context.Context, userID uuid.UUID, workoutID uuid.UUID) (models.Workout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.owned(userID, workoutID)
}

func (r *WorkoutRepo) ListWorkouts(_ context.Context, userID uuid.UUID, f repository.WorkoutFilter) ([]models.Workout, int, error) {
	if err := f.Check(); err != nil {
		return nil, 0, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	matched := make([]models.Workout, 0)
	for _, w := range r.s.workouts {
		switch {
		case w.UserID != userID:
			continue
		case f.ExerciseType != "" && w.ExerciseType != f.ExerciseType:
			continue
		case f.From != nil && w.Date.Before(*f.From):
			continue
		case f.To != nil && w.Date.After(*f.To):
			continue
		}
		matched = append(matched, w)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Date.Equal(matched[j].Date) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].Date.After(matched[j].Date)
	})

	total := len(matched)
	if f.Offset >= total {
		return []models.Workout{}, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}

	return matched, total, nil
}

func (r *WorkoutRepo) UpdateWorkout(_ context.Context, userID uuid.UUID, workoutID uuid.UUID, upd repository.WorkoutUpdate) (models.Workout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	w, err := r.owned(userID, workoutID)
	if err != nil {
		return w, err
	}

	upd.Apply(&w)
	r.s.workouts[w.ID] = w

	return w, nil
}

func (r *WorkoutRepo) DeleteWorkout(_ context.Context, userID uuid.UUID, workoutID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, err := r.owned(userID, workoutID); err != nil {
		return err
	}

	delete(r.s.workouts, workoutID)
	return nil
}

func (r *WorkoutRepo) owned(userID uuid.UUID, workoutID uuid.UUID) (models.Workout, error) {
	w, ok := r.s.workouts[workoutID]
	if !ok || w.UserID != userID {
		return models.Workout{}, apperrors.ErrWorkoutNotFound
	}
	return w, nil
}
