// Package config loads seglog configuration. Default() is the baseline; Load
// layers a JSON (comments allowed) or YAML file on top; FromEnv overlays
// SEGLOG_* variables last.
//
//	cfg, err := config.Load("/etc/seglog.yaml")
//	if err != nil { /* handle */ }
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil { /* handle */ }
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
package config
