package config

import (
	"os"
	"strconv"
)

// FromEnv overlays SEGLOG_* environment variables onto cfg. Malformed numbers
// and booleans are ignored.
func FromEnv(cfg *Config) {
	if v := os.Getenv("SEGLOG_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SEGLOG_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("SEGLOG_SECONDARY_DIR"); v != "" {
		cfg.SecondaryDir = v
	}
	if v := os.Getenv("SEGLOG_COMPRESSION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Compression = b
		}
	}
	if v := os.Getenv("SEGLOG_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("SEGLOG_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FsyncIntervalMs = n
		}
	}
	if v := os.Getenv("SEGLOG_COMPACT_ON_TRUNCATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CompactOnTruncate = b
		}
	}
	if v := os.Getenv("SEGLOG_SCAN_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ScanBatchSize = n
		}
	}
	if v := os.Getenv("SEGLOG_HTTP_ADDR"); v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v := os.Getenv("SEGLOG_GRPC_ADDR"); v != "" {
		cfg.Server.GRPCAddr = v
	}
	if v := os.Getenv("SEGLOG_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SEGLOG_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("SEGLOG_LOG_OUTPUT"); v != "" {
		cfg.Log.Output = v
	}
}
