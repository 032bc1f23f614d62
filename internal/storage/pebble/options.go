package pebblestore

import (
	"time"

	"github.com/cockroachdb/pebble"

	logpkg "github.com/rzbill/seglog/pkg/log"
)

// FsyncMode defines durability behavior for write operations.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways requests a WAL fsync on each committed batch/write.
	FsyncModeAlways
	// FsyncModeInterval enables group-commit by allowing Pebble to coalesce WAL
	// syncs for operations within the configured interval.
	FsyncModeInterval
	// FsyncModeNever avoids forcing WAL syncs from the application.
	FsyncModeNever
)

// ParseFsyncMode maps always|interval|never to a FsyncMode.
func ParseFsyncMode(s string) (FsyncMode, bool) {
	switch s {
	case "always":
		return FsyncModeAlways, true
	case "interval":
		return FsyncModeInterval, true
	case "never":
		return FsyncModeNever, true
	case "":
		return FsyncModeUnspecified, true
	default:
		return FsyncModeUnspecified, false
	}
}

// Mode selects how the database directory is opened.
type Mode int

const (
	// ModePrimary opens read-write, creating the directory if missing.
	ModePrimary Mode = iota
	// ModeReadOnly opens an existing store without write capability.
	ModeReadOnly
	// ModeSecondary trails a primary through a mirror that is resynced on demand.
	ModeSecondary
)

func (m Mode) String() string {
	switch m {
	case ModePrimary:
		return "primary"
	case ModeReadOnly:
		return "read-only"
	case ModeSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// ParseMode maps primary|read-only|secondary to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "", "primary":
		return ModePrimary, true
	case "read-only", "readonly", "ro":
		return ModeReadOnly, true
	case "secondary":
		return ModeSecondary, true
	default:
		return ModePrimary, false
	}
}

// Profile selects the write-path tuning for a primary.
type Profile int

const (
	// ProfileStore favors larger write buffers for general key-value workloads.
	ProfileStore Profile = iota
	// ProfileLog favors a low memory footprint and a single steady append
	// stream over burst throughput.
	ProfileLog
)

// Options configures the Pebble store wrapper.
type Options struct {
	// Path is the primary database directory.
	Path string
	// Mode selects primary, read-only or secondary access.
	Mode Mode
	// SecondaryPath is the mirror directory used by ModeSecondary.
	SecondaryPath string
	// Compression enables per-level Snappy with Zstd at the bottommost level.
	Compression bool
	// Profile selects primary write tuning.
	Profile Profile
	// Fsync determines when to sync the WAL.
	Fsync FsyncMode
	// FsyncInterval controls group-commit when Fsync=FsyncModeInterval.
	FsyncInterval time.Duration
	// Metrics allows observing read/write/commit latencies and sizes. Optional.
	Metrics MetricsHook
	// Logger receives lifecycle and engine messages. Optional.
	Logger logpkg.Logger
}

const (
	numLevels = 7

	logMemTableSize     = 8 << 20
	logMemTables        = 2
	logCompactions      = 1
	logL0CompactTrigger = 2
	logL0StopWrites     = 12

	storeMemTableSize     = 256 << 20
	storeCompactions      = 2
	storeL0CompactTrigger = 4
	storeL0StopWrites     = 12

	readerBlockCache   = 32 << 20
	readerMaxOpenFiles = 512

	defaultFsyncInterval = 5 * time.Millisecond
)

// engineOptions builds a fresh pebble.Options for one open. The returned
// release func drops the caller's reference on the block cache and must be
// called once pebble.Open has returned.
func engineOptions(o Options, logger logpkg.Logger) (*pebble.Options, func()) {
	po := &pebble.Options{
		Logger: logpkg.PebbleLogger{L: logger},
		Levels: levelOptions(o.Compression),
	}
	release := func() {}

	if o.Mode != ModePrimary {
		cache := pebble.NewCache(readerBlockCache)
		po.Cache = cache
		po.MaxOpenFiles = readerMaxOpenFiles
		po.ReadOnly = true
		return po, cache.Unref
	}

	switch o.Profile {
	case ProfileLog:
		po.MemTableSize = logMemTableSize
		po.MemTableStopWritesThreshold = logMemTables
		po.MaxConcurrentCompactions = func() int { return logCompactions }
		po.L0CompactionThreshold = logL0CompactTrigger
		po.L0StopWritesThreshold = logL0StopWrites
	default:
		po.MemTableSize = storeMemTableSize
		po.MaxConcurrentCompactions = func() int { return storeCompactions }
		po.L0CompactionThreshold = storeL0CompactTrigger
		po.L0StopWritesThreshold = storeL0StopWrites
	}

	switch o.Fsync {
	case FsyncModeAlways, FsyncModeNever:
		// Always syncs per commit; Never leaves syncing to Pebble.
	case FsyncModeInterval:
		interval := o.FsyncInterval
		if interval <= 0 {
			interval = defaultFsyncInterval
		}
		po.WALMinSyncInterval = func() time.Duration { return interval }
	default:
		po.WALMinSyncInterval = func() time.Duration { return defaultFsyncInterval }
	}
	return po, release
}

// levelOptions pairs a fast codec on upper levels with a higher-ratio codec at
// the bottommost level. The choice is baked into every table written.
func levelOptions(compression bool) []pebble.LevelOptions {
	levels := make([]pebble.LevelOptions, numLevels)
	for i := range levels {
		switch {
		case !compression:
			levels[i].Compression = pebble.NoCompression
		case i == numLevels-1:
			levels[i].Compression = pebble.ZstdCompression
		default:
			levels[i].Compression = pebble.SnappyCompression
		}
	}
	return levels
}
