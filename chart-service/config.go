package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ResponseMode selects what a successful extraction returns.
type ResponseMode string

const (
	// ModeData returns the parsed labels/values object.
	ModeData ResponseMode = "data"
	// ModeImage renders the data to a PNG and returns its URL.
	ModeImage ResponseMode = "image"
)

// ClientKind selects how the generation API is called.
type ClientKind string

const (
	ClientHTTP ClientKind = "http"
	ClientSDK  ClientKind = "sdk"
)

type Config struct {
	Addr string

	GeminiAPIKey    string
	GeminiBaseURL   string
	GeminiModel     string
	UpstreamClient  ClientKind
	UpstreamTimeout time.Duration

	Mode          ResponseMode
	PublicBaseURL string
	StaticDir     string

	S3Bucket string
	S3Prefix string

	RetentionTTL      time.Duration
	RetentionMaxFiles int
	SweepInterval     time.Duration
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// LoadConfig reads the process environment, after merging an optional .env file.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Config{
		Addr:           ":" + getEnv("PORT", "5000"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:  strings.TrimRight(getEnv("GEMINI_API_URL", "https://generativelanguage.googleapis.com"), "/"),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-pro"),
		UpstreamClient: ClientKind(getEnv("UPSTREAM_CLIENT", string(ClientHTTP))),
		Mode:           ResponseMode(getEnv("CHART_MODE", string(ModeData))),
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:5000"), "/"),
		StaticDir:      getEnv("STATIC_DIR", "static"),
		S3Bucket:       os.Getenv("CHART_S3_BUCKET"),
		S3Prefix:       getEnv("CHART_S3_PREFIX", "charts/"),
	}

	var err error
	if cfg.UpstreamTimeout, err = durationEnv("UPSTREAM_TIMEOUT", "30s"); err != nil {
		return Config{}, err
	}
	if cfg.RetentionTTL, err = durationEnv("CHART_RETENTION_TTL", "24h"); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durationEnv("CHART_SWEEP_INTERVAL", "10m"); err != nil {
		return Config{}, err
	}
	if cfg.RetentionMaxFiles, err = strconv.Atoi(getEnv("CHART_RETENTION_MAX", "1000")); err != nil {
		return Config{}, fmt.Errorf("invalid CHART_RETENTION_MAX: %w", err)
	}

	return cfg, nil
}

func durationEnv(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// Validate checks the settings the serve command depends on.
func (c Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY not set")
	}
	switch c.Mode {
	case ModeData, ModeImage:
	default:
		return fmt.Errorf("invalid mode %q (must be data or image)", c.Mode)
	}
	switch c.UpstreamClient {
	case ClientHTTP, ClientSDK:
	default:
		return fmt.Errorf("invalid upstream client %q (must be http or sdk)", c.UpstreamClient)
	}
	// the write deadline is derived from it, so it must be bounded
	if c.UpstreamTimeout <= 0 {
		return errors.New("upstream timeout must be positive")
	}
	return c.ValidateRetention()
}

// ValidateRetention checks the settings the janitor depends on.
func (c Config) ValidateRetention() error {
	if c.RetentionTTL < 0 || c.RetentionMaxFiles < 0 {
		return errors.New("retention limits must not be negative")
	}
	if c.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	return nil
}

func (c Config) ChartURL(name string) string {
	return c.PublicBaseURL + "/static/" + name
}
