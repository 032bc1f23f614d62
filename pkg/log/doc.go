// Package log provides seglog's structured logging facade.
//
// # Overview
//
// Logger is a small leveled interface with a Field type for structured
// context. It is backed by log/slog through a bridge handler that renders
// entries with a Formatter (text or JSON) and fans them out to Outputs
// (console, file, null).
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("segmentlog"), log.Str("path", dir))
//	l.Info("log opened", log.Int64("next_seq", 42))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config. RedirectStdLog sends
// the standard library logger through a Logger, and PebbleLogger adapts a
// Logger to the storage engine's logging interface.
package log
