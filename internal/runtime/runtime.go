package runtime

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/errors"

	cfgpkg "github.com/rzbill/seglog/internal/config"
	"github.com/rzbill/seglog/internal/kvstore"
	"github.com/rzbill/seglog/internal/segmentlog"
	pebblestore "github.com/rzbill/seglog/internal/storage/pebble"
	logpkg "github.com/rzbill/seglog/pkg/log"
)

const (
	logDirName = "log"
	kvDirName  = "kv"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
}

// Runtime wires config, the segmented log and the key-value store for one
// process. Both share the configured mode.
type Runtime struct {
	log     *segmentlog.Log
	kv      *kvstore.Store
	config  cfgpkg.Config
	metrics *pebblestore.Counters
	logger  logpkg.Logger
}

// Open validates the config and opens the log and the store.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.Nop()
	}
	mode := cfg.StoreMode()
	metrics := &pebblestore.Counters{}

	secondary := func(name string) string {
		if mode != pebblestore.ModeSecondary {
			return ""
		}
		return filepath.Join(cfg.SecondaryDir, name)
	}

	l, err := segmentlog.OpenMode(segmentlog.Options{
		Path:              filepath.Join(cfg.DataDir, logDirName),
		SecondaryPath:     secondary(logDirName),
		Compression:       cfg.Compression,
		Fsync:             cfg.FsyncMode(),
		FsyncInterval:     cfg.FsyncInterval(),
		CompactOnTruncate: cfg.CompactOnTruncate,
		Metrics:           metrics,
		Logger:            logger,
	}, mode)
	if err != nil {
		return nil, err
	}
	kv, err := kvstore.OpenMode(kvstore.Options{
		Path:              filepath.Join(cfg.DataDir, kvDirName),
		SecondaryPath:     secondary(kvDirName),
		Compression:       cfg.Compression,
		Profile:           pebblestore.ProfileStore,
		Fsync:             cfg.FsyncMode(),
		FsyncInterval:     cfg.FsyncInterval(),
		CompactOnTruncate: cfg.CompactOnTruncate,
		Metrics:           metrics,
		Logger:            logger.WithComponent("kvstore"),
	}, mode)
	if err != nil {
		_ = l.Close()
		return nil, err
	}
	logger.Info("runtime opened", logpkg.Str("data_dir", cfg.DataDir), logpkg.Str("mode", mode.String()))
	return &Runtime{log: l, kv: kv, config: cfg, metrics: metrics, logger: logger}, nil
}

// Close closes the store and the log, reporting both failures.
func (r *Runtime) Close() error {
	return errors.CombineErrors(r.kv.Close(), r.log.Close())
}

// CheckHealth reads the tail of both databases.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := r.log.LastKey(); err != nil {
		return errors.Wrap(err, "log")
	}
	if _, _, err := r.kv.LastKey(); err != nil {
		return errors.Wrap(err, "kv")
	}
	return nil
}

// CatchUp resyncs both databases with their primaries.
func (r *Runtime) CatchUp() error {
	if err := r.log.CatchUp(); err != nil {
		return err
	}
	return r.kv.CatchUp()
}

// Log returns the segmented log.
func (r *Runtime) Log() *segmentlog.Log { return r.log }

// KV returns the key-value store.
func (r *Runtime) KV() *kvstore.Store { return r.kv }

// Metrics returns storage counters accumulated across both databases.
func (r *Runtime) Metrics() map[string]int64 { return r.metrics.Snapshot() }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the runtime's logger.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }
