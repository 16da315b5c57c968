package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RISK_CLIENT_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Clients.Scoring.BaseURL != "http://localhost:8000" {
		t.Fatalf("unexpected base url %q", cfg.Clients.Scoring.BaseURL)
	}
	if cfg.Clients.Scoring.PredictPath != "/v1/predict/t2d" || cfg.Clients.Scoring.PredictAndStorePath != "/v1/predict-and-store/t2d" {
		t.Fatalf("unexpected predict paths %+v", cfg.Clients.Scoring)
	}
	if cfg.Clients.Scoring.UserHeader != "X-User-ID" || cfg.Clients.Scoring.Timeout != 10*time.Second {
		t.Fatalf("unexpected scoring defaults %+v", cfg.Clients.Scoring)
	}
	if cfg.Identity.Backend != BackendFile || cfg.Identity.Key != "risk_user_id" || cfg.Identity.Fallback != "demo-user" {
		t.Fatalf("unexpected identity defaults %+v", cfg.Identity)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	doc := `
clients:
  scoring:
    baseURL: http://scoring.internal:9000
    timeout: 3s
identity:
  backend: sqlite
  sqlitePath: /tmp/id.db
history:
  pageSize: 20
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("RISK_CLIENT_TIMEOUT", "not-a-duration")
	t.Setenv("RISK_CLIENT_USER_HEADER", "X-Device-User")
	t.Setenv("RISK_CLIENT_BATCH_CONCURRENCY", "8")
	t.Setenv("RISK_CLIENT_LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Clients.Scoring.BaseURL != "http://scoring.internal:9000" {
		t.Fatalf("file base url not applied: %q", cfg.Clients.Scoring.BaseURL)
	}
	if cfg.Clients.Scoring.Timeout != 3*time.Second {
		t.Fatalf("invalid env duration must be ignored, got %s", cfg.Clients.Scoring.Timeout)
	}
	if cfg.Clients.Scoring.PredictPath != "/v1/predict/t2d" {
		t.Fatalf("unset file keys should keep defaults, got %q", cfg.Clients.Scoring.PredictPath)
	}
	if cfg.Clients.Scoring.UserHeader != "X-Device-User" {
		t.Fatalf("env header override not applied: %q", cfg.Clients.Scoring.UserHeader)
	}
	if cfg.Identity.Backend != BackendSQLite || cfg.Identity.SQLitePath != "/tmp/id.db" {
		t.Fatalf("unexpected identity %+v", cfg.Identity)
	}
	if cfg.History.PageSize != 20 || cfg.Batch.Concurrency != 8 || !cfg.Logging.JSON {
		t.Fatalf("unexpected overrides history=%d batch=%d json=%v", cfg.History.PageSize, cfg.Batch.Concurrency, cfg.Logging.JSON)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "empty base url", mutate: func(c *Config) { c.Clients.Scoring.BaseURL = " " }, want: "baseURL"},
		{name: "zero timeout", mutate: func(c *Config) { c.Clients.Scoring.Timeout = 0 }, want: "timeout"},
		{name: "unknown backend", mutate: func(c *Config) { c.Identity.Backend = "etcd" }, want: "etcd"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}
