// File: api/logger.go
//
// Minimal logging contract. The teacher core (momentics/hioload-ws) wires
// no concrete logging library into its api package either — control.go
// exposes hooks, not a logger — so this core keeps the same shape: a
// tiny interface satisfied by a no-op default and a standard-library
// adapter, rather than pulling a logging dependency into the engine.
package api

import (
	"log"
)

// Logger is the minimal structured-ish logging contract used across the
// command engine, scheduler and batch executor.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NoopLogger discards everything; it is the default when
// command.NewAsyncCommand or batch.NewExecutor is given a nil Logger.
type NoopLogger struct{}

func (NoopLogger) Debugf(string, ...any) {}
func (NoopLogger) Infof(string, ...any)  {}
func (NoopLogger) Warnf(string, ...any)  {}
func (NoopLogger) Errorf(string, ...any) {}

// StdLogger adapts the standard library's log.Logger to the Logger
// contract.
type StdLogger struct {
	L *log.Logger
}

func (s StdLogger) Debugf(format string, args ...any) { s.L.Printf("DEBUG "+format, args...) }
func (s StdLogger) Infof(format string, args ...any)  { s.L.Printf("INFO "+format, args...) }
func (s StdLogger) Warnf(format string, args ...any)  { s.L.Printf("WARN "+format, args...) }
func (s StdLogger) Errorf(format string, args ...any) { s.L.Printf("ERROR "+format, args...) }
