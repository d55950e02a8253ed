package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/homehistory/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenMode(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}

	cfg.Token = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("empty token error = %v", err)
	}
}

func TestAuthConfig_ClaimsNeedSecret(t *testing.T) {
	cfg := AuthConfig{}
	if cfg.ClaimsEnabled() {
		t.Error("claims should be off without a jwt secret")
	}
	cfg.JWTSecret = "k"
	if !cfg.ClaimsEnabled() {
		t.Error("claims should be on with a jwt secret")
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.App.HTTP.Address() != ":3001" {
		t.Errorf("address = %q", cfg.App.HTTP.Address())
	}
}

func TestConfig_SectionValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"auth", func(c *Config) { c.Auth = AuthConfig{Mode: "token"} }},
		{"port", func(c *Config) { c.App.HTTP.Port = 70000 }},
		{"census url", func(c *Config) { c.Geocoding.CensusURL = "not a url" }},
		{"timeout", func(c *Config) { c.Geocoding.Timeout = 0 }},
		{"memory ttl", func(c *Config) { c.Cache.MemoryTTL = 0 }},
		{"concurrency", func(c *Config) { c.Enrichment.BackfillConcurrency = 0 }},
		{"negative delay", func(c *Config) { c.Enrichment.BackfillDelay = -time.Second }},
		{"photo dir", func(c *Config) { c.Photos.Dir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfig_LoadYAML(t *testing.T) {
	t.Setenv("HH_ADMIN_TOKEN", "s3cret")
	t.Setenv("HH_JWT_SECRET", "jwt-key")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  log_level: DEBUG
  http:
    port: 4000
auth:
  mode: token
  token: ${HH_ADMIN_TOKEN}
  jwt_secret: ${HH_JWT_SECRET}
geocoding:
  timeout: 3s
enrichment:
  backfill_delay: 0s
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
	if cfg.App.HTTP.Port != 4000 || cfg.Auth.Token != "s3cret" {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.Auth.ClaimsEnabled() || cfg.Auth.JWTSecret != "jwt-key" {
		t.Errorf("jwt secret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Geocoding.Timeout != 3*time.Second || cfg.Enrichment.BackfillDelay != 0 {
		t.Errorf("durations = %v %v", cfg.Geocoding.Timeout, cfg.Enrichment.BackfillDelay)
	}
	if cfg.Geocoding.UserAgent != "HomeHistoryApp/1.0" {
		t.Errorf("defaults lost: %q", cfg.Geocoding.UserAgent)
	}
}
