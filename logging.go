package raft

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

// Logger is the structured logging facade the engine writes to rather
// than calling fmt.Printf directly. It is a subset of hclog.Logger, so
// any hclog.Logger satisfies it; hosts that already use go-hclog (as
// hashicorp/raft-based hosts do) can pass their own logger through
// unchanged.
type Logger interface {
	Trace(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	With(args ...interface{}) hclog.Logger
}

// NewLogger builds a Logger writing to os.Stderr at the given level
// name ("trace", "debug", "info", "warn", "error"), for hosts that want
// the default rather than supplying their own.
func NewLogger(name string, level string) Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  hclog.LevelFromString(level),
		Output: os.Stderr,
	})
}

// nullLogger satisfies Logger by discarding everything; used when a
// Config carries no Logger.
func nullLogger() Logger {
	return hclog.NewNullLogger()
}
