package server

import (
	"testing"
	"time"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.Port != ":8080" {
		t.Errorf("Port = %q, want :8080", cfg.Port)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want data", cfg.DataDir)
	}
	if cfg.UploadDir != "uploads" {
		t.Errorf("UploadDir = %q, want uploads", cfg.UploadDir)
	}
	if cfg.UploadMaxAge != 24*time.Hour {
		t.Errorf("UploadMaxAge = %v, want 24h", cfg.UploadMaxAge)
	}
	if cfg.SweepInterval != time.Hour {
		t.Errorf("SweepInterval = %v, want 1h", cfg.SweepInterval)
	}
	if cfg.RateLimit.Burst <= 0 {
		t.Errorf("RateLimit.Burst = %d, want positive", cfg.RateLimit.Burst)
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("DATA_DIR", "/var/lib/campfire")
	t.Setenv("UPLOAD_DIR", "/var/lib/campfire/uploads")
	t.Setenv("UPLOAD_MAX_AGE_HOURS", "48")
	t.Setenv("SWEEP_INTERVAL_MINUTES", "30")
	t.Setenv("MAX_MESSAGE_SIZE", "8192")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example")

	cfg := NewConfigFromEnv()

	if cfg.Port != ":9090" {
		t.Errorf("Port = %q, want :9090", cfg.Port)
	}
	if cfg.DataDir != "/var/lib/campfire" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.UploadMaxAge != 48*time.Hour {
		t.Errorf("UploadMaxAge = %v, want 48h", cfg.UploadMaxAge)
	}
	if cfg.SweepInterval != 30*time.Minute {
		t.Errorf("SweepInterval = %v, want 30m", cfg.SweepInterval)
	}
	if cfg.MaxMessageSize != 8192 {
		t.Errorf("MaxMessageSize = %d, want 8192", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 10 {
		t.Errorf("RateLimit.Burst = %d, want 10", cfg.RateLimit.Burst)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestNewConfigFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("UPLOAD_MAX_AGE_HOURS", "not-a-number")
	t.Setenv("SWEEP_INTERVAL_MINUTES", "-5")
	t.Setenv("MAX_MESSAGE_SIZE", "0")

	cfg := NewConfigFromEnv()

	if cfg.UploadMaxAge != 24*time.Hour {
		t.Errorf("UploadMaxAge = %v, want default", cfg.UploadMaxAge)
	}
	if cfg.SweepInterval != time.Hour {
		t.Errorf("SweepInterval = %v, want default", cfg.SweepInterval)
	}
	if cfg.MaxMessageSize != 4096 {
		t.Errorf("MaxMessageSize = %d, want default", cfg.MaxMessageSize)
	}
}

func TestSetConfigSanitizesZeroValues(t *testing.T) {
	SetConfig(&Config{})
	t.Cleanup(func() { SetConfig(nil) })

	cfg := currentConfig()
	if cfg.Port != ":8080" {
		t.Errorf("Port = %q, want sanitized default", cfg.Port)
	}
	if cfg.DataDir != "data" || cfg.UploadDir != "uploads" {
		t.Errorf("storage dirs = %q/%q, want sanitized defaults", cfg.DataDir, cfg.UploadDir)
	}
	if cfg.UploadMaxAge != 24*time.Hour || cfg.SweepInterval != time.Hour {
		t.Errorf("sweep settings = %v/%v, want sanitized defaults", cfg.UploadMaxAge, cfg.SweepInterval)
	}
}
