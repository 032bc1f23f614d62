package config

import (
	"os"
	"path/filepath"
	"testing"

	pebblestore "github.com/rzbill/seglog/internal/storage/pebble"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Mode != "primary" || !cfg.Compression {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ScanBatchSize != 1000 {
		t.Fatalf("scan batch default = %d", cfg.ScanBatchSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadJSONWithComments(t *testing.T) {
	file := filepath.Join(t.TempDir(), "seglog.json")
	data := []byte(`{
  // where the log and kv directories live
  "dataDir": "/srv/seglog",
  "mode": "secondary",
  "secondaryDir": "/srv/replica",
  "compression": false,
  "server": {"httpAddr": ":9000"},
}`)
	if err := os.WriteFile(file, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/srv/seglog" || cfg.StoreMode() != pebblestore.ModeSecondary || cfg.Compression {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Server.HTTPAddr != ":9000" || cfg.Server.GRPCAddr != ":7071" {
		t.Fatalf("file should layer over defaults: %+v", cfg.Server)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	file := filepath.Join(t.TempDir(), "seglog.yaml")
	data := []byte("dataDir: /tmp/seglog\nfsync: always\nscanBatchSize: 250\nlog:\n  level: debug\n  format: json\n")
	if err := os.WriteFile(file, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FsyncMode() != pebblestore.FsyncModeAlways || cfg.ScanBatchSize != 250 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log section: %+v", cfg.Log)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestFromEnvOverridesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "seglog.json")
	if err := os.WriteFile(file, []byte(`{"dataDir":"/from/file","scanBatchSize":10}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("SEGLOG_DATA_DIR", "/from/env")
	t.Setenv("SEGLOG_COMPRESSION", "false")
	t.Setenv("SEGLOG_FSYNC_INTERVAL_MS", "20")
	t.Setenv("SEGLOG_SCAN_BATCH_SIZE", "not-a-number")

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	FromEnv(&cfg)
	if cfg.DataDir != "/from/env" {
		t.Fatalf("env should win over file, got %s", cfg.DataDir)
	}
	if cfg.Compression {
		t.Fatalf("env override bool")
	}
	if cfg.FsyncInterval().Milliseconds() != 20 {
		t.Fatalf("fsync interval = %v", cfg.FsyncInterval())
	}
	if cfg.ScanBatchSize != 10 {
		t.Fatalf("malformed env number must be ignored, got %d", cfg.ScanBatchSize)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"bad mode", func(c *Config) { c.Mode = "leader" }},
		{"secondary without dir", func(c *Config) { c.Mode = "secondary" }},
		{"bad fsync", func(c *Config) { c.Fsync = "sometimes" }},
		{"negative batch", func(c *Config) { c.ScanBatchSize = -1 }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
