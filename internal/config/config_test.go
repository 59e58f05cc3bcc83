package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("MASTERIE_BACKEND_URL", "https://example.backend.test")
	t.Setenv("MASTERIE_BACKEND_KEY", "anon-key-for-tests")
}

func TestLoad_AllRequiredVarsSet_ReturnsConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.BackendURL != "https://example.backend.test" {
		t.Errorf("BackendURL = %q, want %q", cfg.BackendURL, "https://example.backend.test")
	}
	if cfg.BackendKey != "anon-key-for-tests" {
		t.Errorf("BackendKey = %q, want %q", cfg.BackendKey, "anon-key-for-tests")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("HTTPTimeout = %v, want %v", cfg.HTTPTimeout, 10*time.Second)
	}
	if cfg.RateLimitPerSec != 10 {
		t.Errorf("RateLimitPerSec = %v, want %v", cfg.RateLimitPerSec, 10.0)
	}
	if cfg.RateLimitBurst != 20 {
		t.Errorf("RateLimitBurst = %d, want %d", cfg.RateLimitBurst, 20)
	}
	if cfg.QuizQuestionLimit != 10 {
		t.Errorf("QuizQuestionLimit = %d, want %d", cfg.QuizQuestionLimit, 10)
	}
	if cfg.AvatarMaxSize != 2097152 {
		t.Errorf("AvatarMaxSize = %d, want %d", cfg.AvatarMaxSize, 2097152)
	}
	if cfg.StateDir == "" {
		t.Error("StateDir should have a non-empty default")
	}
	if cfg.MetricsAddr != "" {
		t.Errorf("MetricsAddr = %q, want empty by default", cfg.MetricsAddr)
	}
}

func TestLoad_OverriddenValues(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("MASTERIE_HTTP_TIMEOUT", "3s")
	t.Setenv("MASTERIE_RATE_LIMIT", "2.5")
	t.Setenv("MASTERIE_RATE_BURST", "5")
	t.Setenv("MASTERIE_STATE_DIR", "/tmp/masterie-test")
	t.Setenv("MASTERIE_QUIZ_QUESTIONS", "20")
	t.Setenv("MASTERIE_METRICS_ADDR", "127.0.0.1:9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.HTTPTimeout != 3*time.Second {
		t.Errorf("HTTPTimeout = %v, want %v", cfg.HTTPTimeout, 3*time.Second)
	}
	if cfg.RateLimitPerSec != 2.5 {
		t.Errorf("RateLimitPerSec = %v, want %v", cfg.RateLimitPerSec, 2.5)
	}
	if cfg.RateLimitBurst != 5 {
		t.Errorf("RateLimitBurst = %d, want %d", cfg.RateLimitBurst, 5)
	}
	if cfg.StateDir != "/tmp/masterie-test" {
		t.Errorf("StateDir = %q, want %q", cfg.StateDir, "/tmp/masterie-test")
	}
	if cfg.QuizQuestionLimit != 20 {
		t.Errorf("QuizQuestionLimit = %d, want %d", cfg.QuizQuestionLimit, 20)
	}
	if cfg.MetricsAddr != "127.0.0.1:9090" {
		t.Errorf("MetricsAddr = %q, want %q", cfg.MetricsAddr, "127.0.0.1:9090")
	}
}

func TestLoad_MissingRequiredVars_ReturnsError(t *testing.T) {
	t.Setenv("MASTERIE_BACKEND_URL", "")
	t.Setenv("MASTERIE_BACKEND_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when required vars are missing")
	}
	if !strings.Contains(err.Error(), "MASTERIE_BACKEND_URL") {
		t.Errorf("error should name MASTERIE_BACKEND_URL, got %v", err)
	}
	if !strings.Contains(err.Error(), "MASTERIE_BACKEND_KEY") {
		t.Errorf("error should name MASTERIE_BACKEND_KEY, got %v", err)
	}
}

func TestLoad_InvalidOptionalValues_FallBackToDefaults(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("MASTERIE_HTTP_TIMEOUT", "not-a-duration")
	t.Setenv("MASTERIE_RATE_BURST", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("HTTPTimeout = %v, want default %v", cfg.HTTPTimeout, 10*time.Second)
	}
	if cfg.RateLimitBurst != 20 {
		t.Errorf("RateLimitBurst = %d, want default %d", cfg.RateLimitBurst, 20)
	}
}
