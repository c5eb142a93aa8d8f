package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/logger"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultPublicURL       = "http://localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultMagicLinkTTL    = 5 * time.Minute
)

type Config struct {
	// Default logging level
	LogLevel string

	// Environment
	Environment string

	// Address on which the service will be run
	ListenAddr string

	// Public base URL magic links point at (the frontend's verify page)
	PublicURL string

	// Database to connect to
	DatabaseDSN string

	// Secrets signing access and refresh tokens, must differ
	AccessSecret  string
	RefreshSecret string

	// Credential lifetimes
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	MagicLinkTTL    time.Duration

	// Postmark delivery; token empty means links are only logged
	PostmarkToken string
	MailFrom      string

	// Address to pre-seed as administrator at startup, optional
	AdminEmail string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:        defaultLoggingLevel,
		Environment:     defaultEnvironment,
		ListenAddr:      defaultListenAddr,
		PublicURL:       defaultPublicURL,
		AccessTokenTTL:  defaultAccessTokenTTL,
		RefreshTokenTTL: defaultRefreshTokenTTL,
		MagicLinkTTL:    defaultMagicLinkTTL,
	}
}

// Load variables from '.env' file (should be located at working directory)
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
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"LISTEN_ADDR":       setString(&c.ListenAddr),
		"PUBLIC_URL":        setString(&c.PublicURL),
		"DATABASE_URI":      setString(&c.DatabaseDSN),
		"ACCESS_SECRET":     setString(&c.AccessSecret),
		"REFRESH_SECRET":    setString(&c.RefreshSecret),
		"ACCESS_TOKEN_TTL":  setDuration(&c.AccessTokenTTL),
		"REFRESH_TOKEN_TTL": setDuration(&c.RefreshTokenTTL),
		"MAGIC_LINK_TTL":    setDuration(&c.MagicLinkTTL),
		"POSTMARK_TOKEN":    setString(&c.PostmarkToken),
		"MAIL_FROM":         setString(&c.MailFrom),
		"ADMIN_EMAIL":       setString(&c.AdminEmail),
		"LOG_LEVEL":         setString(&c.LogLevel),
		"ENVIRONMENT":       setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}

	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("authd", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.PublicURL, "public-url", "u", c.PublicURL, "Public base URL for magic links")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVar(&c.AccessSecret, "access-secret", c.AccessSecret, "Access token signing secret")
	fs.StringVar(&c.RefreshSecret, "refresh-secret", c.RefreshSecret, "Refresh token signing secret")
	fs.DurationVar(&c.AccessTokenTTL, "access-ttl", c.AccessTokenTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTokenTTL, "refresh-ttl", c.RefreshTokenTTL, "Refresh token lifetime")
	fs.DurationVar(&c.MagicLinkTTL, "link-ttl", c.MagicLinkTTL, "Magic link lifetime")
	fs.StringVar(&c.AdminEmail, "admin-email", c.AdminEmail, "Pre-seed this address as administrator")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}

// Validate checks the values the service cannot start without.
// Misconfiguration is fatal at startup, never a per request error
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return errors.New("database DSN is required")
	}
	if c.AccessSecret == "" || c.RefreshSecret == "" {
		return errors.New("both signing secrets are required")
	}
	if c.AccessSecret == c.RefreshSecret {
		return errors.New("access and refresh signing secrets must differ")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.MagicLinkTTL <= 0 {
		return errors.New("credential lifetimes must be positive")
	}

	return nil
}
