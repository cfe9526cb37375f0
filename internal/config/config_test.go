package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.IntervalHours != 12 {
		t.Errorf("expected default interval 12, got %d", cfg.IntervalHours)
	}
	if cfg.ArtifactDir != "data" {
		t.Errorf("expected default artifact dir, got %q", cfg.ArtifactDir)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
port = "9090"
db_path = "/tmp/jobs.db"
interval_hours = 24
serpapi_key = "file-key"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port from file, got %q", cfg.Port)
	}
	if cfg.IntervalHours != 24 {
		t.Errorf("expected interval from file, got %d", cfg.IntervalHours)
	}
	if cfg.SerpAPIKey != "file-key" {
		t.Errorf("expected api key from file, got %q", cfg.SerpAPIKey)
	}
	// Unset file keys keep their defaults.
	if cfg.Workers != 3 {
		t.Errorf("expected default workers, got %d", cfg.Workers)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`port = "9090"`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "7070")
	t.Setenv("INTERVAL_HOURS", "6")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("expected env to win over file, got %q", cfg.Port)
	}
	if cfg.IntervalHours != 6 {
		t.Errorf("expected interval from env, got %d", cfg.IntervalHours)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_BadEnvInt(t *testing.T) {
	t.Setenv("WORKERS", "lots")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workers != 3 {
		t.Errorf("non-numeric env must fall back to default, got %d", cfg.Workers)
	}
}
