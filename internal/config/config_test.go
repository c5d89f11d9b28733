package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORE_BACKEND", "SQLITE_PATH", "WORKER_COUNT", "JOB_TTL", "ID_STRATEGY"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Port)
	}
	if cfg.StoreBackend != "sqlite" || cfg.SQLitePath != "paperdoc.db" {
		t.Errorf("expected sqlite at paperdoc.db, got %q at %q", cfg.StoreBackend, cfg.SQLitePath)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.WorkerCount)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("expected 1h TTL, got %v", cfg.JobTTL)
	}
	if cfg.IDStrategy != "hash" {
		t.Errorf("expected hash ids, got %q", cfg.IDStrategy)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("JOB_TTL", "30m")
	t.Setenv("MAX_QUEUE_SIZE", "-1")
	t.Setenv("DEFAULT_CHUNK_SIZE", "notanumber")
	cfg := Load()

	if cfg.WorkerCount != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.WorkerCount)
	}
	if cfg.JobTTL != 30*time.Minute {
		t.Errorf("expected 30m, got %v", cfg.JobTTL)
	}
	if cfg.MaxQueueSize != 100 {
		t.Errorf("expected negative queue size reset to 100, got %d", cfg.MaxQueueSize)
	}
	if cfg.DefaultChunkSize != 1500 {
		t.Errorf("expected unparsable chunk size to fall back, got %d", cfg.DefaultChunkSize)
	}
}

func TestValidate(t *testing.T) {
	base := Config{PaperdocAPIKey: "k", StoreBackend: "sqlite", SQLitePath: "x.db", IDStrategy: "hash"}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid sqlite", func(*Config) {}, false},
		{"missing api key", func(c *Config) { c.PaperdocAPIKey = "" }, true},
		{"pathstore without key", func(c *Config) { c.StoreBackend = "pathstore" }, true},
		{"pathstore with key", func(c *Config) { c.StoreBackend = "pathstore"; c.PathstoreAPIKey = "p" }, false},
		{"unknown backend", func(c *Config) { c.StoreBackend = "redis" }, true},
		{"unknown id strategy", func(c *Config) { c.IDStrategy = "sequential" }, true},
		{"random ids", func(c *Config) { c.IDStrategy = "random" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadSectionOverrides(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "overrides.yaml")
	if err := os.WriteFile(path, []byte("section_numbers:\n  sec-9: \"3\"\n  sec-12: \"5.1\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadSectionOverrides(path)
	if err != nil {
		t.Fatalf("LoadSectionOverrides: %v", err)
	}
	if len(got) != 2 || got["sec-9"] != "3" || got["sec-12"] != "5.1" {
		t.Errorf("unexpected overrides %v", got)
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("section_numbers: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = LoadSectionOverrides(empty)
	if err != nil {
		t.Fatalf("LoadSectionOverrides: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil map, got %v", got)
	}

	got, err = LoadSectionOverrides("")
	if err != nil || got != nil {
		t.Errorf("expected nil, nil for empty path, got %v, %v", got, err)
	}

	if _, err := LoadSectionOverrides(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("section_numbers: [1, 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSectionOverrides(bad); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
