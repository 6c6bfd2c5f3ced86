package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/nkiryanov/fittrack/internal/gateway"
	"github.com/nkiryanov/fittrack/internal/logger"
	"github.com/nkiryanov/fittrack/internal/server"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	// Served only when MetricsAddr is set
	MetricsAddr    string
	MetricsHandler http.Handler

	rdb    *redis.Client
	logger logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to redis. Limiter fails open, so redis down at start is only warned about
	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url. Err: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		l.Warn("redis unavailable, requests won't be rate limited until it is back", "error", err)
	}

	metrics := gateway.NewMetrics()
	gw, err := gateway.New(gateway.Config{
		ID:                c.GatewayID,
		UserServiceURL:    c.UserServiceURL,
		WorkoutServiceURL: c.WorkoutServiceURL,
		TrustProxy:        c.TrustProxy,
	}, gateway.NewLimiter(rdb), metrics, l)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("error while creating gateway. Err: %w", err)
	}

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:        gw.Handler(),
		MetricsAddr:    c.MetricsAddr,
		MetricsHandler: metrics.Handler(),
		rdb:            rdb,
		logger:         l,
	}, nil
}

// Run starts gateway and metrics servers and closes them gracefully on context cancellation
// Failure of one server stops the other
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.rdb.Close() // nolint:errcheck

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, s.ListenAddr, s.Handler, s.logger)
	})
	if s.MetricsAddr != "" {
		g.Go(func() error {
			mux := http.NewServeMux()
			mux.Handle("GET /metrics", s.MetricsHandler)
			return server.Run(ctx, s.MetricsAddr, mux, s.logger.With("server", "metrics"))
		})
	}

	return g.Wait()
}
