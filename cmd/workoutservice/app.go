package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkiryanov/fittrack/internal/db"
	"github.com/nkiryanov/fittrack/internal/handlers"
	"github.com/nkiryanov/fittrack/internal/logger"
	"github.com/nkiryanov/fittrack/internal/repository"
	"github.com/nkiryanov/fittrack/internal/repository/postgres"
	"github.com/nkiryanov/fittrack/internal/server"
	"github.com/nkiryanov/fittrack/internal/service/auth"
	"github.com/nkiryanov/fittrack/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/fittrack/internal/service/workout"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	pool   *pgxpool.Pool
	logger logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}
	l = l.With("service", handlers.WorkoutServiceName)

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN, db.Options{PingTimeout: c.StoreTimeout})
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := repository.WithTimeout(postgres.NewStorage(pool), c.StoreTimeout)

	// Initialize services
	// Auth service shares users table with user service, so expired access tokens renewed here too
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		AccessSecret:  c.AccessSecret,
		RefreshSecret: c.RefreshSecret,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	authService, err := auth.NewService(auth.Config{
		SecureCookies: strings.EqualFold(c.Environment, logger.EnvProduction),
	}, tokenManager, storage.User())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	workoutService := workout.NewService(workout.Config{}, storage.Workout())

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    handlers.NewWorkoutRouter(authService, workoutService, l),
		pool:       pool,
		logger:     l,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.pool.Close()
	return server.Run(ctx, s.ListenAddr, s.Handler, s.logger)
}
