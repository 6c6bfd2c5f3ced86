package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/fittrack/internal/logger"
)

const (
	defaultListenAddr   = "localhost:3001"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultPublicURL    = "http://localhost:3000"
	defaultStoreTimeout = 5 * time.Second
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the user service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secrets to sign access and refresh tokens, must differ
	AccessSecret  string
	RefreshSecret string

	// Base url of verification and password reset links
	PublicURL string

	// SMTP server to send emails with. Emails only logged if empty
	SMTPAddr     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPTLS      bool

	// Bound of every database call
	StoreTimeout time.Duration

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:     defaultLoggingLevel,
		ListenAddr:   defaultListenAddr,
		PublicURL:    defaultPublicURL,
		StoreTimeout: defaultStoreTimeout,
		Environment:  defaultEnvironment,
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
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) (err error) {
			if value != "" {
				*o, err = time.ParseDuration(value)
			}
			return err
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"JWT_SECRET":         setString(&c.AccessSecret),
		"JWT_REFRESH_SECRET": setString(&c.RefreshSecret),
		"PUBLIC_URL":         setString(&c.PublicURL),
		"SMTP_ADDR":          setString(&c.SMTPAddr),
		"SMTP_USER":          setString(&c.SMTPUser),
		"SMTP_PASSWORD":      setString(&c.SMTPPassword),
		"SMTP_FROM":          setString(&c.SMTPFrom),
		"SMTP_TLS":           setBool(&c.SMTPTLS),
		"STORE_TIMEOUT":      setDuration(&c.StoreTimeout),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s. Err: %w", key, err)
		}
	}
	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("userservice", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVar(&c.AccessSecret, "jwt-secret", c.AccessSecret, "Access token secret")
	fs.StringVar(&c.RefreshSecret, "jwt-refresh-secret", c.RefreshSecret, "Refresh token secret")
	fs.StringVarP(&c.PublicURL, "public-url", "u", c.PublicURL, "Base url of links in emails")
	fs.StringVar(&c.SMTPAddr, "smtp-addr", c.SMTPAddr, "SMTP server address host:port")
	fs.StringVar(&c.SMTPUser, "smtp-user", c.SMTPUser, "SMTP user")
	fs.StringVar(&c.SMTPPassword, "smtp-password", c.SMTPPassword, "SMTP password")
	fs.StringVar(&c.SMTPFrom, "smtp-from", c.SMTPFrom, "Sender of emails, SMTP user if empty")
	fs.BoolVar(&c.SMTPTLS, "smtp-tls", c.SMTPTLS, "Use implicit TLS to connect to SMTP server")
	fs.DurationVar(&c.StoreTimeout, "store-timeout", c.StoreTimeout, "Timeout of every database call")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}

func (c *Config) Validate() error {
	switch {
	case c.DatabaseDSN == "":
		return errors.New("database uri must be set")
	case c.AccessSecret == "" || c.RefreshSecret == "":
		return errors.New("both jwt secrets must be set")
	case c.AccessSecret == c.RefreshSecret:
		return errors.New("jwt secrets must differ")
	case c.PublicURL == "":
		return errors.New("public url must be set")
	}
	return nil
}
