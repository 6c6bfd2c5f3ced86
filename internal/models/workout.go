package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ExerciseRunning       = "RUNNING"
	ExerciseCycling       = "CYCLING"
	ExerciseSwimming      = "SWIMMING"
	ExerciseWeightlifting = "WEIGHTLIFTING"
)

var ExerciseTypes = []string{ExerciseRunning, ExerciseCycling, ExerciseSwimming, ExerciseWeightlifting}

type Workout struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Date         time.Time
	ExerciseType string
	Duration     int // minutes
	Calories     int
	CreatedAt    time.Time
}
