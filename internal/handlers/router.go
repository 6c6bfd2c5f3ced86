package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/fittrack/internal/handlers/middleware"
	"github.com/nkiryanov/fittrack/internal/logger"
	"github.com/nkiryanov/fittrack/internal/models"
	"github.com/nkiryanov/fittrack/internal/repository"
	"github.com/nkiryanov/fittrack/internal/service/workout"
)

const (
	UserServiceName    = "user-service"
	WorkoutServiceName = "workout-service"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// Router of user service: /api/auth/* and /api/user/*
func NewUserRouter(
	authService authService,
	accountService accountService,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService, logger)

	apiauth := http.NewServeMux()
	apiauth.Handle("POST /login", handleLogin(authService, logger))
	apiauth.Handle("POST /signup", handleSignup(accountService, logger))
	apiauth.Handle("POST /refresh", handleTokenRefresh(authService, logger))
	apiauth.Handle("POST /logout", withAuth(handleLogout(authService, logger)))
	apiauth.Handle("GET /verify-email", handleVerifyEmail(accountService, logger))
	apiauth.Handle("POST /resend-email-verify", handleResendVerification(accountService, logger))
	apiauth.Handle("POST /request-password-reset", withAuth(handleRequestPasswordReset(accountService, logger)))
	apiauth.Handle("POST /reset-password", handleResetPassword(accountService, logger))

	apiuser := http.NewServeMux()
	apiuser.Handle("GET /profile", withAuth(handleProfile(accountService, logger)))
	apiuser.Handle("PUT /profile", withAuth(handleUpdateProfile(accountService, logger)))
	apiuser.Handle("DELETE /profile", withAuth(handleDeleteProfile(accountService, authService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", apiauth))
	root.Handle("/api/user/", http.StripPrefix("/api/user", apiuser))
	root.Handle("GET /health", handleHealth(UserServiceName))

	return chain(root,
		middleware.LoggerMiddleware(logger),
		middleware.JSONMuxErrors,
	)
}

// Router of workout service: /api/workout/*
func NewWorkoutRouter(
	authService requestAuthenticator,
	workoutService workoutService,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService, logger)

	apiworkout := http.NewServeMux()
	apiworkout.Handle("GET /workouts", withAuth(handleListWorkouts(workoutService, logger)))
	apiworkout.Handle("POST /workouts", withAuth(handleCreateWorkout(workoutService, logger)))
	apiworkout.Handle("GET /workouts/stats", withAuth(handleWorkoutStats(workoutService, logger)))
	apiworkout.Handle("GET /workouts/{id}", withAuth(handleGetWorkout(workoutService, logger)))
	apiworkout.Handle("PUT /workouts/{id}", withAuth(handleUpdateWorkout(workoutService, logger)))
	apiworkout.Handle("DELETE /workouts/{id}", withAuth(handleDeleteWorkout(workoutService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/workout/", http.StripPrefix("/api/workout", apiworkout))
	root.Handle("GET /health", handleHealth(WorkoutServiceName))

	return chain(root,
		middleware.LoggerMiddleware(logger),
		middleware.JSONMuxErrors,
	)
}

type requestAuthenticator interface {
	// Authenticate request and return user id
	// Renewed access token is written to the response
	AuthenticateRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, error)
}

type authService interface {
	requestAuthenticator

	// Login verified user with email and password
	// Has to return apperrors.ErrInvalidCredentials whether user not found or password is wrong
	Login(ctx context.Context, email string, password string) (models.TokenPair, error)

	// Issue new access token by refresh one
	Refresh(ctx context.Context, refresh string) (models.IssuedToken, error)

	// Revoke current refresh token of the user
	Logout(ctx context.Context, userID uuid.UUID) error

	SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair)
	SetAccessToResponse(w http.ResponseWriter, access models.IssuedToken)
	ClearTokens(w http.ResponseWriter)
	GetRefreshString(r *http.Request) (string, error)
}

type accountService interface {
	Signup(ctx context.Context, email string, password string, username string) (models.User, error)
	VerifyEmail(ctx context.Context, email string, token string) error
	ResendVerification(ctx context.Context, email string) error
	RequestPasswordReset(ctx context.Context, userID uuid.UUID) error
	ResetPassword(ctx context.Context, email string, token string, newPassword string) error

	GetProfile(ctx context.Context, userID uuid.UUID) (models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, username string, email string) (models.User, error)
	DeleteAccount(ctx context.Context, userID uuid.UUID, password string) error
}

type workoutService interface {
	Create(ctx context.Context, userID uuid.UUID, w models.Workout) (models.Workout, error)
	Get(ctx context.Context, userID uuid.UUID, workoutID uuid.UUID) (models.Workout, error)
	List(ctx context.Context, userID uuid.UUID, p workout.ListParams) (workout.Page, error)
	Update(ctx context.Context, userID uuid.UUID, workoutID uuid.UUID, upd repository.WorkoutUpdate) (models.Workout, error)
	Delete(ctx context.Context, userID uuid.UUID, workoutID uuid.UUID) error
	Stats(ctx context.Context, userID uuid.UUID, period string) (workout.Stats, error)
}
