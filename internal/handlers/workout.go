package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/fittrack/internal/apperrors"
	"github.com/nkiryanov/fittrack/internal/handlers/render"
	"github.com/nkiryanov/fittrack/internal/handlers/userctx"
	"github.com/nkiryanov/fittrack/internal/logger"
	"github.com/nkiryanov/fittrack/internal/models"
	"github.com/nkiryanov/fittrack/internal/repository"
	"github.com/nkiryanov/fittrack/internal/service/workout"
)

const msgWorkoutNotFound = "Workout not found"

type workoutResponse struct {
	ID           uuid.UUID `json:"id"`
	Date         time.Time `json:"date"`
	ExerciseType string    `json:"exerciseType"`
	Duration     int       `json:"duration"`
	Calories     int       `json:"calories"`
	CreatedAt    time.Time `json:"createdAt"`
}

func newWorkoutResponse(w models.Workout) workoutResponse {
	return workoutResponse{
		ID:           w.ID,
		Date:         w.Date,
		ExerciseType: w.ExerciseType,
		Duration:     w.Duration,
		Calories:     w.Calories,
		CreatedAt:    w.CreatedAt,
	}
}

func newWorkoutsResponse(workouts []models.Workout) []workoutResponse {
	resp := make([]workoutResponse, 0, len(workouts))
	for _, w := range workouts {
		resp = append(resp, newWorkoutResponse(w))
	}
	return resp
}

func handleListWorkouts(workoutService workoutService, l logger.Logger) http.Handler {
	type query struct {
		Page         int        `query:"page" validate:"gte=1,lte=1000000"`
		Limit        int        `query:"limit" validate:"gte=1,lte=100"`
		ExerciseType string     `query:"exerciseType" validate:"omitempty,exercise"`
		StartDate    *time.Time `query:"startDate"`
		EndDate      *time.Time `query:"endDate"`
	}

	type pagination struct {
		Current      int `json:"current"`
		Total        int `json:"total"`
		Count        int `json:"count"`
		TotalRecords int `json:"totalRecords"`
	}

	type response struct {
		Workouts   []workoutResponse `json:"workouts"`
		Pagination pagination        `json:"pagination"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
			return
		}

		values := r.URL.Query()
		qp := queryParser{values: values}
		q := query{
			Page:         qp.integer("page", 1),
			Limit:        qp.integer("limit", workout.DefaultPageLimit),
			ExerciseType: values.Get("exerciseType"),
			StartDate:    qp.date("startDate"),
			EndDate:      qp.date("endDate"),
		}
		if qp.failed(w) || render.Validate(w, q) != nil {
			return
		}

		page, err := workoutService.List(r.Context(), userID, workout.ListParams{
			Page:         q.Page,
			Limit:        q.Limit,
			ExerciseType: q.ExerciseType,
			From:         q.StartDate,
			To:           q.EndDate,
		})
		if err != nil {
			l.Error("Failed to list workouts", "error", err)
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{
			Workouts: newWorkoutsResponse(page.Workouts),
			Pagination: pagination{
				Current:      page.Current,
				Total:        page.Total,
				Count:        page.Count,
				TotalRecords: page.TotalRecords,
			},
		})
	})
}

func handleCreateWorkout(workoutService workoutService, l logger.Logger) http.Handler {
	type request struct {
		Date         *time.Time `json:"date" validate:"required"`
		ExerciseType string     `json:"exerciseType" validate:"required,exercise"`
		Duration     int        `json:"duration" validate:"required,gte=1,lte=600"`
		Calories     int        `json:"calories" validate:"required,gte=1,lte=5000"`
	}

	type response struct {
		Message string          `json:"message"`
		Workout workoutResponse `json:"workout"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		created, err := workoutService.Create(r.Context(), userID, models.Workout{
			Date:         *req.Date,
			ExerciseType: req.ExerciseType,
			Duration:     req.Duration,
			Calories:     req.Calories,
		})
		if err != nil {
			l.Error("Failed to create workout", "error", err)
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
			return
		}

		render.JSONWithStatus(w, response{
			Message: "Workout created successfully",
			Workout: newWorkoutResponse(created),
		}, http.StatusCreated)
	})
}

func handleGetWorkout(workoutService workoutService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, workoutID, ok := workoutPath(w, r)
		if !ok {
			return
		}

		found, err := workoutService.Get(r.Context(), userID, workoutID)

		switch {
		case err == nil:
			render.JSON(w, newWorkoutResponse(found))
		case errors.Is(err, apperrors.ErrWorkoutNotFound):
			render.ServiceError(w, msgWorkoutNotFound, http.StatusNotFound)
		default:
			l.Error("Failed to get workout", "error", err)
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
		}
	})
}

func handleUpdateWorkout(workoutService workoutService, l logger.Logger) http.Handler {
	type request struct {
		Date         *time.Time `json:"date" validate:"required_without_all=ExerciseType Duration Calories"`
		ExerciseType *string    `json:"exerciseType" validate:"omitempty,exercise"`
		Duration     *int       `json:"duration" validate:"omitempty,gte=1,lte=600"`
		Calories     *int       `json:"calories" validate:"omitempty,gte=1,lte=5000"`
	}

	type response struct {
		Message string          `json:"message"`
		Workout workoutResponse `json:"workout"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, workoutID, ok := workoutPath(w, r)
		if !ok {
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		updated, err := workoutService.Update(r.Context(), userID, workoutID, repository.WorkoutUpdate{
			Date:         req.Date,
			ExerciseType: req.ExerciseType,
			Duration:     req.Duration,
			Calories:     req.Calories,
		})

		switch {
		case err == nil:
			render.JSON(w, response{
				Message: "Workout updated successfully",
				Workout: newWorkoutResponse(updated),
			})
		case errors.Is(err, apperrors.ErrWorkoutNotFound):
			render.ServiceError(w, msgWorkoutNotFound, http.StatusNotFound)
		default:
			l.Error("Failed to update workout", "error", err)
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
		}
	})
}

func handleDeleteWorkout(workoutService workoutService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, workoutID, ok := workoutPath(w, r)
		if !ok {
			return
		}

		err := workoutService.Delete(r.Context(), userID, workoutID)

		switch {
		case err == nil:
			render.Message(w, "Workout deleted successfully")
		case errors.Is(err, apperrors.ErrWorkoutNotFound):
			render.ServiceError(w, msgWorkoutNotFound, http.StatusNotFound)
		default:
			l.Error("Failed to delete workout", "error", err)
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
		}
	})
}

func handleWorkoutStats(workoutService workoutService, l logger.Logger) http.Handler {
	type totals struct {
		Workouts int `json:"workouts"`
		Duration int `json:"duration"`
		Calories int `json:"calories"`
	}

	type typeStats struct {
		ExerciseType    string  `json:"exerciseType"`
		Workouts        int     `json:"workouts"`
		Duration        int     `json:"duration"`
		Calories        int     `json:"calories"`
		AverageCalories float64 `json:"averageCalories"`
	}

	type response struct {
		Period         string            `json:"period"`
		TotalStats     totals            `json:"totalStats"`
		StatsByType    []typeStats       `json:"statsByType"`
		RecentActivity []workoutResponse `json:"recentActivity"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
			return
		}

		period := r.URL.Query().Get("period")
		if period == "" {
			period = workout.PeriodAll
		}

		stats, err := workoutService.Stats(r.Context(), userID, period)

		switch {
		case err == nil:
		case errors.Is(err, workout.ErrUnknownPeriod):
			render.ServiceError(w, "Period must be one of week, month, year, all", http.StatusBadRequest)
			return
		default:
			l.Error("Failed to get workout stats", "error", err)
			render.ServiceError(w, "Failed to fetch statistics", http.StatusInternalServerError)
			return
		}

		byType := make([]typeStats, 0, len(stats.ByType))
		for _, ts := range stats.ByType {
			avg, _ := ts.AverageCalories.Float64()
			byType = append(byType, typeStats{
				ExerciseType:    ts.ExerciseType,
				Workouts:        ts.Workouts,
				Duration:        ts.Duration,
				Calories:        ts.Calories,
				AverageCalories: avg,
			})
		}

		render.JSON(w, response{
			Period: stats.Period,
			TotalStats: totals{
				Workouts: stats.Totals.Workouts,
				Duration: stats.Totals.Duration,
				Calories: stats.Totals.Calories,
			},
			StatsByType:    byType,
			RecentActivity: newWorkoutsResponse(stats.Recent),
		})
	})
}

// Authenticated user and workout id from the path
// Writes error response if any is missing or malformed
func workoutPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, msgInternalError, http.StatusInternalServerError)
		return uuid.Nil, uuid.Nil, false
	}

	workoutID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		// Malformed id can't point to any workout
		render.ServiceError(w, msgWorkoutNotFound, http.StatusNotFound)
		return uuid.Nil, uuid.Nil, false
	}

	return userID, workoutID, true
}

// Collects typed query params, remembers fields that failed to parse
type queryParser struct {
	values url.Values
	fields map[string]string
}

func (p *queryParser) integer(name string, def int) int {
	raw := p.values.Get(name)
	if raw == "" {
		return def
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(name, "Value must be an integer")
		return def
	}
	return v
}

// Accepts RFC 3339 timestamp or plain date
func (p *queryParser) date(name string) *time.Time {
	raw := p.values.Get(name)
	if raw == "" {
		return nil
	}

	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}

	p.fail(name, "Value must be a date in ISO 8601 format")
	return nil
}

func (p *queryParser) fail(name string, message string) {
	if p.fields == nil {
		p.fields = make(map[string]string)
	}
	p.fields[name] = message
}

// Write validation error response if any param failed to parse
func (p *queryParser) failed(w http.ResponseWriter) bool {
	if len(p.fields) == 0 {
		return false
	}

	render.JSONWithStatus(w, render.ErrorResponse{
		Error:   render.ValidationErrorType,
		Message: "Request validation failed",
		Fields:  p.fields,
	}, http.StatusBadRequest)
	return true
}
