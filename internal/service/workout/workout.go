package workout

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/fittrack/internal/models"
	"github.com/nkiryanov/fittrack/internal/repository"
)

const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
	PeriodAll   = "all"

	recentActivityDays = 7

	DefaultPageLimit = 10
	MaxPageLimit     = 100

	// Keeps page offset far from int overflow
	MaxPage = 1_000_000
)

var ErrUnknownPeriod = errors.New("unknown stats period")

// How far back each stats period looks
var periods = map[string]time.Duration{
	PeriodWeek:  7 * 24 * time.Hour,
	PeriodMonth: 30 * 24 * time.Hour,
	PeriodYear:  365 * 24 * time.Hour,
	PeriodAll:   0,
}

type Config struct {
	// Clock, time.Now if not set
	Now func() time.Time
}

type WorkoutService struct {
	repo repository.WorkoutRepo
	now  func() time.Time
}

func NewService(cfg Config, repo repository.WorkoutRepo) *WorkoutService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &WorkoutService{repo: repo, now: cfg.Now}
}

type ListParams struct {
	Page  int // starts from 1
	Limit int

	ExerciseType string
	From         *time.Time
	To           *time.Time
}

type Page struct {
	Workouts     []models.Workout
	Current      int
	Total        int // pages
	Count        int // workouts on this page
	TotalRecords int
}

type TypeStats struct {
	ExerciseType    string
	Workouts        int
	Duration        int
	Calories        int
	AverageCalories decimal.Decimal
}

type Totals struct {
	Workouts int
	Duration int
	Calories int
}

type Stats struct {
	Period string
	Totals Totals

	// Ordered by models.ExerciseTypes, types without workouts are skipped
	ByType []TypeStats

	// Workouts of the last 7 days whatever the period, newest first
	Recent []models.Workout
}

func (s *WorkoutService) Create(ctx context.Context, userID uuid.UUID, w models.Workout) (models.Workout, error) {
	w.ID = uuid.Nil
	w.UserID = userID
	w.Date = w.Date.UTC()

	created, err := s.repo.CreateWorkout(ctx, w)
	if err != nil {
		return created, fmt.Errorf("can't create workout. Err: %w", err)
	}
	return created, nil
}

func (s *WorkoutService) Get(ctx context.Context, userID uuid.UUID, workoutID uuid.UUID) (models.Workout, error) {
	return s.repo.GetWorkout(ctx, userID, workoutID)
}

func (s *WorkoutService) List(ctx context.Context, userID uuid.UUID, p ListParams) (Page, error) {
	p.Page = min(max(p.Page, 1), MaxPage)
	if p.Limit < 1 || p.Limit > MaxPageLimit {
		p.Limit = DefaultPageLimit
	}

	workouts, total, err := s.repo.ListWorkouts(ctx, userID, repository.WorkoutFilter{
		ExerciseType: p.ExerciseType,
		From:         p.From,
		To:           p.To,
		Limit:        p.Limit,
		Offset:       (p.Page - 1) * p.Limit,
	})
	if err != nil {
		return Page{}, fmt.Errorf("can't list workouts. Err: %w", err)
	}

	return Page{
		Workouts:     workouts,
		Current:      p.Page,
		Total:        (total + p.Limit - 1) / p.Limit,
		Count:        len(workouts),
		TotalRecords: total,
	}, nil
}

func (s *WorkoutService) Update(ctx context.Context, userID uuid.UUID, workoutID uuid.UUID, upd repository.WorkoutUpdate) (models.Workout, error) {
	if upd.Date != nil {
		date := upd.Date.UTC()
		upd.Date = &date
	}
	return s.repo.UpdateWorkout(ctx, userID, workoutID, upd)
}

func (s *WorkoutService) Delete(ctx context.Context, userID uuid.UUID, workoutID uuid.UUID) error {
	return s.repo.DeleteWorkout(ctx, userID, workoutID)
}

func (s *WorkoutService) Stats(ctx context.Context, userID uuid.UUID, period string) (Stats, error) {
	lookback, ok := periods[period]
	if !ok {
		return Stats{}, ErrUnknownPeriod
	}

	now := s.now().UTC()

	var filter repository.WorkoutFilter
	if lookback > 0 {
		from := now.Add(-lookback)
		filter.From = &from
	}

	workouts, _, err := s.repo.ListWorkouts(ctx, userID, filter)
	if err != nil {
		return Stats{}, fmt.Errorf("can't list workouts. Err: %w", err)
	}

	recentFrom := now.AddDate(0, 0, -recentActivityDays)
	recent, _, err := s.repo.ListWorkouts(ctx, userID, repository.WorkoutFilter{From: &recentFrom})
	if err != nil {
		return Stats{}, fmt.Errorf("can't list workouts. Err: %w", err)
	}

	stats := Stats{Period: period, Recent: recent}
	byType := make(map[string]*TypeStats)

	for _, w := range workouts {
		stats.Totals.Workouts++
		stats.Totals.Duration += w.Duration
		stats.Totals.Calories += w.Calories

		ts, ok := byType[w.ExerciseType]
		if !ok {
			ts = &TypeStats{ExerciseType: w.ExerciseType}
			byType[w.ExerciseType] = ts
		}
		ts.Workouts++
		ts.Duration += w.Duration
		ts.Calories += w.Calories
	}

	for _, exercise := range models.ExerciseTypes {
		ts, ok := byType[exercise]
		if !ok {
			continue
		}
		ts.AverageCalories = decimal.NewFromInt(int64(ts.Calories)).
			Div(decimal.NewFromInt(int64(ts.Workouts))).
			Round(2)
		stats.ByType = append(stats.ByType, *ts)
	}

	return stats, nil
}

// Whether value is one of known exercise types
func ValidExerciseType(value string) bool {
	return slices.Contains(models.ExerciseTypes, value)
}
