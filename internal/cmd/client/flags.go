package client

import (
	"github.com/spf13/pflag"

	cfgpkg "github.com/rzbill/seglog/internal/config"
)

// GlobalFlags holds the store-selection flags shared by every command.
type GlobalFlags struct {
	ConfigPath   string
	DataDir      string
	Mode         string
	SecondaryDir string
	Compression  bool
	GRPCAddr     string
}

// Bind registers the shared flags on fs.
func (g *GlobalFlags) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&g.ConfigPath, "config", "", "Config file (.json, .jsonc, .yaml)")
	fs.StringVar(&g.DataDir, "data-dir", "", "Data directory (default: OS application data directory)")
	fs.StringVar(&g.Mode, "mode", "", "Open mode: primary|read-only|secondary")
	fs.StringVar(&g.SecondaryDir, "secondary-dir", "", "Mirror directory for --mode=secondary")
	fs.BoolVar(&g.Compression, "compression", true, "Compress tables (snappy, zstd at the bottom level)")
	fs.StringVar(&g.GRPCAddr, "grpc", "", "Talk to a running server at this gRPC address instead of opening the data directory")
}

// Config resolves defaults, then the config file, then SEGLOG_* env, then
// flags that were set explicitly on fs.
func (g *GlobalFlags) Config(fs *pflag.FlagSet) (cfgpkg.Config, error) {
	cfg, err := cfgpkg.Load(g.ConfigPath)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	cfgpkg.FromEnv(&cfg)
	if fs.Changed("data-dir") {
		cfg.DataDir = g.DataDir
	}
	if fs.Changed("mode") {
		cfg.Mode = g.Mode
	}
	if fs.Changed("secondary-dir") {
		cfg.SecondaryDir = g.SecondaryDir
	}
	if fs.Changed("compression") {
		cfg.Compression = g.Compression
	}
	if cfg.DataDir == "" {
		cfg.DataDir = cfgpkg.DefaultDataDir()
	}
	return cfg, cfg.Validate()
}
