package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/fittrack/internal/logger"
)

const (
	defaultListenAddr        = "localhost:3000"
	defaultMetricsAddr       = "localhost:9100"
	defaultLoggingLevel      = logger.LevelInfo
	defaultEnvironment       = logger.EnvProduction
	defaultRedisURL          = "redis://localhost:6379/0"
	defaultUserServiceURL    = "http://localhost:3001"
	defaultWorkoutServiceURL = "http://localhost:3002"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the gateway will be run
	ListenAddr string

	// Internal address of prometheus metrics, not exposed by the gateway itself. Empty disables metrics
	MetricsAddr string

	// Redis keeping rate limit counters
	RedisURL string

	// Upstream services
	UserServiceURL    string
	WorkoutServiceURL string

	// Gateway instance id, hostname if empty
	GatewayID string

	// Gateway runs behind a trusted proxy, so X-Forwarded-For is used to identify clients
	TrustProxy bool

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:          defaultLoggingLevel,
		ListenAddr:        defaultListenAddr,
		MetricsAddr:       defaultMetricsAddr,
		RedisURL:          defaultRedisURL,
		UserServiceURL:    defaultUserServiceURL,
		WorkoutServiceURL: defaultWorkoutServiceURL,
		Environment:       defaultEnvironment,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setBool := func(o *bool) func(value string) error {
		return func(value string) (err error) {
			if value != "" {
				*o, err = strconv.ParseBool(value)
			}
			return err
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":         setString(&c.ListenAddr),
		"METRICS_ADDRESS":     setString(&c.MetricsAddr),
		"REDIS_URL":           setString(&c.RedisURL),
		"USER_SERVICE_URL":    setString(&c.UserServiceURL),
		"WORKOUT_SERVICE_URL": setString(&c.WorkoutServiceURL),
		"GATEWAY_ID":          setString(&c.GatewayID),
		"TRUST_PROXY":         setBool(&c.TrustProxy),
		"LOG_LEVEL":           setString(&c.LogLevel),
		"ENVIRONMENT":         setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s. Err: %w", key, err)
		}
	}
	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("gateway", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Gateway listen address")
	fs.StringVar(&c.MetricsAddr, "metrics-address", c.MetricsAddr, "Internal metrics listen address, empty to disable")
	fs.StringVarP(&c.RedisURL, "redis", "r", c.RedisURL, "Redis url, e.g. redis://localhost:6379/0")
	fs.StringVar(&c.UserServiceURL, "user-service", c.UserServiceURL, "User service base url")
	fs.StringVar(&c.WorkoutServiceURL, "workout-service", c.WorkoutServiceURL, "Workout service base url")
	fs.StringVar(&c.GatewayID, "id", c.GatewayID, "Gateway instance id, hostname if empty")
	fs.BoolVar(&c.TrustProxy, "trust-proxy", c.TrustProxy, "Identify clients by X-Forwarded-For")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}

// Fill gateway id with hostname if not set
func (c *Config) Validate(hostname func() (string, error)) error {
	if c.GatewayID == "" {
		h, err := hostname()
		if err != nil {
			return fmt.Errorf("gateway id not set and hostname unknown. Err: %w", err)
		}
		c.GatewayID = h
	}

	switch {
	case c.RedisURL == "":
		return errors.New("redis url must be set")
	case c.UserServiceURL == "" || c.WorkoutServiceURL == "":
		return errors.New("upstream service urls must be set")
	case c.MetricsAddr != "" && c.MetricsAddr == c.ListenAddr:
		return errors.New("metrics address must differ from gateway address")
	}
	return nil
}
