package raft

import (
	"time"

	"github.com/pkg/errors"
)

// Config carries the tunables a Server needs at construction time: a
// small struct of durations and thresholds validated once at startup
// rather than threaded through every call. Timeouts are expressed as
// time.Duration for ergonomics, but the engine never calls time.Now()
// itself — every comparison goes through Host.Now (see host.go).
type Config struct {
	// ElectionTimeout is the base election timeout T. A follower or
	// candidate samples its actual timeout uniformly from [T, 2T)
	// using Host.Rand.
	ElectionTimeout time.Duration

	// RequestTimeout is the leader's heartbeat/replication interval.
	RequestTimeout time.Duration

	// LeaseMaintenanceGrace extends how long a leader trusts a stale
	// lease before stepping down.
	LeaseMaintenanceGrace time.Duration

	// MaxAppendEntries caps how many log entries a single AppendEntries
	// batch carries, bounding host upcall batch size the way
	// hashicorp/raft's MaxAppendEntries does.
	MaxAppendEntries int

	// Logger receives structured diagnostic output. A nil Logger is
	// replaced by a no-op logger at NewServer time.
	Logger Logger

	// Metrics receives election counters: elections started, Pre-Vote
	// rounds won, and elections won. No other events are counted. A nil
	// Metrics is replaced by a no-op sink at NewServer time.
	Metrics Metrics
}

// DefaultConfig returns a Config with the values this package's tests
// and examples are built against: a 1s base election timeout, 100ms
// heartbeats, and no lease grace.
func DefaultConfig() *Config {
	return &Config{
		ElectionTimeout:       1000 * time.Millisecond,
		RequestTimeout:        100 * time.Millisecond,
		LeaseMaintenanceGrace: 0,
		MaxAppendEntries:      64,
	}
}

// Validate checks the Config for obviously unusable values before a
// Server is built from it.
func (c *Config) Validate() error {
	if c.ElectionTimeout <= 0 {
		return errors.New("raft: ElectionTimeout must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("raft: RequestTimeout must be positive")
	}
	if c.RequestTimeout >= c.ElectionTimeout {
		return errors.New("raft: RequestTimeout must be smaller than ElectionTimeout")
	}
	if c.LeaseMaintenanceGrace < 0 {
		return errors.New("raft: LeaseMaintenanceGrace must not be negative")
	}
	if c.MaxAppendEntries <= 0 {
		return errors.New("raft: MaxAppendEntries must be positive")
	}
	return nil
}
