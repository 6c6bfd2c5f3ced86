// Package memory keeps repositories in process memory.
// It is used by tests and local runs without a database; data is lost on restart.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/nkiryanov/fittrack/internal/models"
	"github.com/nkiryanov/fittrack/internal/repository"
)

type Storage struct {
	mu       sync.Mutex
	users    map[uuid.UUID]models.User
	workouts map[uuid.UUID]models.Workout
}

func NewStorage() *Storage {
	return &Storage{
		users:    make(map[uuid.UUID]models.User),
		workouts: make(map[uuid.UUID]models.Workout),
	}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{s: s}
}

func (s *Storage) Workout() repository.WorkoutRepo {
	return &WorkoutRepo{s: s}
}

// Copy user so callers can't mutate stored secrets
func cloneUser(u models.User) models.User {
	if u.Verification != nil {
		v := *u.Verification
		u.Verification = &v
	}
	if u.PasswordReset != nil {
		r := *u.PasswordReset
		u.PasswordReset = &r
	}
	return u
}
