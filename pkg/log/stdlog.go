package log

import (
	"bytes"
	"fmt"
	stdlog "log"
)

// stdWriter adapts a Logger to io.Writer for the standard library logger.
type stdWriter struct {
	l     Logger
	level Level
}

func (w stdWriter) Write(p []byte) (int, error) {
	msg := string(bytes.TrimRight(p, "\r\n"))
	switch w.level {
	case DebugLevel:
		w.l.Debug(msg)
	case WarnLevel:
		w.l.Warn(msg)
	case ErrorLevel:
		w.l.Error(msg)
	default:
		w.l.Info(msg)
	}
	return len(p), nil
}

// ToStdLogger returns a *log.Logger that writes through l at level.
func ToStdLogger(l Logger, level Level) *stdlog.Logger {
	return stdlog.New(stdWriter{l: l, level: level}, "", 0)
}

// RedirectStdLog routes the standard library's default logger through l.
func RedirectStdLog(l Logger) {
	stdlog.SetFlags(0)
	stdlog.SetPrefix("")
	stdlog.SetOutput(stdWriter{l: l.WithComponent("stdlog"), level: InfoLevel})
}

// PebbleLogger adapts l to the storage engine's logger interface
// (Infof/Errorf/Fatalf). Fatalf logs at error level and panics, matching the
// engine's expectation that Fatalf does not return.
type PebbleLogger struct {
	L Logger
}

func (p PebbleLogger) Infof(format string, args ...interface{})  { p.L.Debugf(format, args...) }
func (p PebbleLogger) Errorf(format string, args ...interface{}) { p.L.Errorf(format, args...) }
func (p PebbleLogger) Fatalf(format string, args ...interface{}) {
	p.L.Errorf(format, args...)
	panic(fmt.Sprintf(format, args...))
}
