package infra

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadConfigDefaultStorageBaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:8080/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
	if cfg.ResultFetchHosts[0] != "localhost" {
		t.Fatalf("ResultFetchHosts mismatch: %#v", cfg.ResultFetchHosts)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:1919/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
}

func TestLoadConfigPollingDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("JOB_POLL_INTERVAL_SECONDS", "")
	t.Setenv("JOB_MAX_POLL_ATTEMPTS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.JobPollInterval != 2*time.Second {
		t.Fatalf("JobPollInterval = %v, want 2s", cfg.JobPollInterval)
	}
	if cfg.JobMaxPollAttempts != 120 {
		t.Fatalf("JobMaxPollAttempts = %d, want 120", cfg.JobMaxPollAttempts)
	}
}

func TestJobStaleAfter(t *testing.T) {
	tests := []struct {
		interval time.Duration
		attempts int
		want     time.Duration
	}{
		{interval: 2 * time.Second, attempts: 120, want: 5 * time.Minute},
		{interval: 5 * time.Second, attempts: 120, want: 10 * time.Minute},
		{interval: time.Second, attempts: 10, want: 5 * time.Minute},
	}
	for _, tc := range tests {
		cfg := &Config{JobPollInterval: tc.interval, JobMaxPollAttempts: tc.attempts}
		if got := cfg.JobStaleAfter(); got != tc.want {
			t.Fatalf("JobStaleAfter(%v x %d) = %v, want %v", tc.interval, tc.attempts, got, tc.want)
		}
	}
}

func TestLoadConfigRejectsNonPositivePolling(t *testing.T) {
	setRequired(t)
	t.Setenv("JOB_POLL_INTERVAL_SECONDS", "0")
	t.Setenv("JOB_MAX_POLL_ATTEMPTS", "-3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.JobPollInterval != 2*time.Second || cfg.JobMaxPollAttempts != 120 {
		t.Fatalf("expected polling defaults, got %v / %d", cfg.JobPollInterval, cfg.JobMaxPollAttempts)
	}
}

func TestLoadConfigMergesResultAllowlist(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_BASE_URL", "https://cdn.example.com/static")
	t.Setenv("S3_PUBLIC_BASE_URL", "")
	t.Setenv("RESULT_FETCH_HOST_ALLOWLIST", "media.example.com, CDN.example.com ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := []string{"cdn.example.com", "replicate.delivery", "media.example.com"}
	if len(cfg.ResultFetchHosts) != len(expected) {
		t.Fatalf("ResultFetchHosts mismatch: got %#v want %#v", cfg.ResultFetchHosts, expected)
	}
	for i, host := range expected {
		if cfg.ResultFetchHosts[i] != host {
			t.Fatalf("ResultFetchHosts[%d] = %q, want %q", i, cfg.ResultFetchHosts[i], host)
		}
	}
}

func TestLoadConfigRequiresS3Endpoint(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_DRIVER", "s3")
	t.Setenv("S3_ENDPOINT", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when S3_ENDPOINT is missing")
	}
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "x")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error without JWT_SECRET")
	}
}
