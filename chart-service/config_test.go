package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GEMINI_API_KEY", "key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Addr != ":5000" {
		t.Errorf("unexpected addr %q", cfg.Addr)
	}
	if cfg.Mode != ModeData {
		t.Errorf("unexpected mode %q", cfg.Mode)
	}
	if cfg.UpstreamTimeout != 30*time.Second {
		t.Errorf("unexpected timeout %v", cfg.UpstreamTimeout)
	}
	if cfg.RetentionTTL != 24*time.Hour || cfg.RetentionMaxFiles != 1000 {
		t.Errorf("unexpected retention %v/%d", cfg.RetentionTTL, cfg.RetentionMaxFiles)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("PORT", "8084")
	t.Setenv("CHART_MODE", "image")
	t.Setenv("PUBLIC_BASE_URL", "https://charts.example.com/")
	t.Setenv("UPSTREAM_TIMEOUT", "5s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Addr != ":8084" {
		t.Errorf("unexpected addr %q", cfg.Addr)
	}
	if cfg.Mode != ModeImage {
		t.Errorf("unexpected mode %q", cfg.Mode)
	}
	if cfg.UpstreamTimeout != 5*time.Second {
		t.Errorf("unexpected timeout %v", cfg.UpstreamTimeout)
	}
	if got := cfg.ChartURL("chart_x.png"); got != "https://charts.example.com/static/chart_x.png" {
		t.Errorf("unexpected chart url %q", got)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "Timeout", key: "UPSTREAM_TIMEOUT", value: "soon"},
		{name: "TTL", key: "CHART_RETENTION_TTL", value: "1 day"},
		{name: "Max files", key: "CHART_RETENTION_MAX", value: "many"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.value)

			if _, err := LoadConfig(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		GeminiAPIKey:    "key",
		Mode:            ModeData,
		UpstreamClient:  ClientHTTP,
		UpstreamTimeout: 30 * time.Second,
		SweepInterval:   time.Minute,
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{name: "Valid", mutate: func(c *Config) {}},
		{name: "Missing key", mutate: func(c *Config) { c.GeminiAPIKey = "" }, expectError: true},
		{name: "Unknown mode", mutate: func(c *Config) { c.Mode = "svg" }, expectError: true},
		{name: "Unknown client", mutate: func(c *Config) { c.UpstreamClient = "grpc" }, expectError: true},
		{name: "Negative TTL", mutate: func(c *Config) { c.RetentionTTL = -time.Hour }, expectError: true},
		{name: "Negative max files", mutate: func(c *Config) { c.RetentionMaxFiles = -1 }, expectError: true},
		{name: "Zero upstream timeout", mutate: func(c *Config) { c.UpstreamTimeout = 0 }, expectError: true},
		{name: "Zero sweep interval", mutate: func(c *Config) { c.SweepInterval = 0 }, expectError: true},
		{name: "SDK client", mutate: func(c *Config) { c.UpstreamClient = ClientSDK }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSweepRejectsNegativeRetention(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"CHART_RETENTION_TTL", "-1h"},
		{"CHART_RETENTION_MAX", "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			t.Setenv("STATIC_DIR", filepath.Join(dir, "static"))
			t.Setenv(tt.key, tt.value)

			if err := sweep(context.Background(), testLogger()); err == nil {
				t.Fatal("expected sweep to reject the retention settings")
			}
			if _, err := os.Stat(filepath.Join(dir, "static")); !os.IsNotExist(err) {
				t.Errorf("expected no store to be created, stat returned %v", err)
			}
		})
	}
}
