// Package raft implements the deterministic core of a Raft consensus
// engine: leader election with Pre-Vote, log replication, single-step
// membership change with a non-voting catch-up phase, snapshotting, and
// leader leases for linearizable reads.
//
// The engine performs no networking, disk I/O, timing, or randomness of
// its own. Every such effect is delegated to a Host supplied by the
// caller. A Server is driven by feeding it received messages, ticking it
// periodically, and submitting client entries; it responds by mutating
// its own state and invoking Host methods to send messages, persist
// state, or apply committed entries. See Host for the full contract.
package raft
