package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("missing config file should not error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("expected default db host, got %s", cfg.Database.Host)
	}
	if cfg.Evaluation.Workers != 4 {
		t.Errorf("expected 4 default workers, got %d", cfg.Evaluation.Workers)
	}
	if cfg.Auth.TokenExpiry != 15*time.Minute {
		t.Errorf("expected 15m token expiry, got %v", cfg.Auth.TokenExpiry)
	}
	if cfg.Notifications.MinSeverity != "MEDIUM" {
		t.Errorf("expected MEDIUM min severity, got %s", cfg.Notifications.MinSeverity)
	}
	if cfg.Scoring.Weights.LegalRegulatory != 0.25 {
		t.Errorf("expected default legal weight 0.25, got %v", cfg.Scoring.Weights.LegalRegulatory)
	}
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
  cors_allow_origin: "https://governance.example.com"
database:
  host: db.internal
  database: aigov
evaluation:
  sweep_schedule: "0 4 * * *"
  workers: 8
scoring:
  weights:
    technical: 0.3
    operational: 0.2
    legal_regulatory: 0.2
    ethical_societal: 0.2
    business: 0.1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("expected db.internal, got %s", cfg.Database.Host)
	}
	if cfg.Evaluation.SweepSchedule != "0 4 * * *" {
		t.Errorf("expected custom sweep schedule, got %s", cfg.Evaluation.SweepSchedule)
	}
	if cfg.Evaluation.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Evaluation.Workers)
	}
	if cfg.Scoring.Weights.Technical != 0.3 {
		t.Errorf("expected technical weight 0.3, got %v", cfg.Scoring.Weights.Technical)
	}

	// Unset values still receive defaults.
	if cfg.Database.Port != 5432 {
		t.Errorf("expected default db port, got %d", cfg.Database.Port)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("AIGOV_TEST_DB_PASSWORD", "s3cret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  password: ${AIGOV_TEST_DB_PASSWORD}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Password != "s3cret" {
		t.Errorf("expected env expansion, got %q", cfg.Database.Password)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "aigov",
		Password: "pw",
		Database: "aigov",
		SSLMode:  "require",
	}

	dsn := cfg.DSN()
	expected := "host=db port=5432 user=aigov password=pw dbname=aigov sslmode=require"
	if dsn != expected {
		t.Errorf("DSN mismatch:\n  got:      %s\n  expected: %s", dsn, expected)
	}
}
