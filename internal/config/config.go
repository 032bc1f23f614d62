package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-yaml"
	"github.com/tailscale/hujson"

	pebblestore "github.com/rzbill/seglog/internal/storage/pebble"
	logpkg "github.com/rzbill/seglog/pkg/log"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir           string        `json:"dataDir" yaml:"dataDir"`
	Mode              string        `json:"mode" yaml:"mode"`
	SecondaryDir      string        `json:"secondaryDir" yaml:"secondaryDir"`
	Compression       bool          `json:"compression" yaml:"compression"`
	Fsync             string        `json:"fsync" yaml:"fsync"`
	FsyncIntervalMs   int           `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`
	CompactOnTruncate bool          `json:"compactOnTruncate" yaml:"compactOnTruncate"`
	ScanBatchSize     int           `json:"scanBatchSize" yaml:"scanBatchSize"`
	Server            ServerConfig  `json:"server" yaml:"server"`
	Log               logpkg.Config `json:"log" yaml:"log"`
}

// ServerConfig holds listener addresses. An empty address disables that listener.
type ServerConfig struct {
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`
	GRPCAddr string `json:"grpcAddr" yaml:"grpcAddr"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataDir:         DefaultDataDir(),
		Mode:            "primary",
		Compression:     true,
		Fsync:           "interval",
		FsyncIntervalMs: 5,
		ScanBatchSize:   1000,
		Server: ServerConfig{
			HTTPAddr: ":7070",
			GRPCAddr: ":7071",
		},
		Log: logpkg.Config{Level: "info", Format: "text", Output: "stderr"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension) on top of
// the defaults. JSON files may carry comments and trailing commas. If path is
// empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse yaml %s", path)
		}
	default:
		std, err := hujson.Standardize(b)
		if err != nil {
			return Config{}, errors.Wrapf(err, "invalid JSONC in %s", path)
		}
		if err := json.Unmarshal(std, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse json %s", path)
		}
	}
	return cfg, nil
}

// Validate checks enumerations and bounds.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: dataDir is required")
	}
	mode, ok := pebblestore.ParseMode(c.Mode)
	if !ok {
		return errors.Newf("config: unknown mode %q", c.Mode)
	}
	if mode == pebblestore.ModeSecondary && c.SecondaryDir == "" {
		return errors.New("config: secondaryDir is required in secondary mode")
	}
	if _, ok := pebblestore.ParseFsyncMode(c.Fsync); !ok {
		return errors.Newf("config: unknown fsync mode %q", c.Fsync)
	}
	if c.FsyncIntervalMs < 0 {
		return errors.New("config: fsyncIntervalMs must not be negative")
	}
	if c.ScanBatchSize < 0 {
		return errors.New("config: scanBatchSize must not be negative")
	}
	if _, err := logpkg.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "config: log.level")
	}
	return nil
}

// StoreMode returns the parsed open mode. Call Validate first.
func (c Config) StoreMode() pebblestore.Mode {
	m, _ := pebblestore.ParseMode(c.Mode)
	return m
}

// FsyncMode returns the parsed fsync policy. Call Validate first.
func (c Config) FsyncMode() pebblestore.FsyncMode {
	m, _ := pebblestore.ParseFsyncMode(c.Fsync)
	return m
}

// FsyncInterval returns the group-commit window.
func (c Config) FsyncInterval() time.Duration {
	return time.Duration(c.FsyncIntervalMs) * time.Millisecond
}
