package raft

import "github.com/pkg/errors"

// Sentinel error kinds the engine returns. Callers compare with
// errors.Is. The engine returns these sentinels as they are; errors
// coming back from Host methods are wrapped with call-site context via
// wrapf (github.com/pkg/errors), preserving a recoverable cause chain.
var (
	// ErrNotLeader is returned by client entry submission (RecvEntry)
	// when the server is not the leader.
	ErrNotLeader = errors.New("raft: not leader")

	// ErrOneVotingChangeOnly is returned when a second voting
	// configuration change is submitted while one is still pending
	// (uncommitted).
	ErrOneVotingChangeOnly = errors.New("raft: a voting configuration change is already pending")

	// ErrSnapshotInProgress is returned for configuration-change
	// submissions, or a second begin_snapshot, while a snapshot is in
	// progress.
	ErrSnapshotInProgress = errors.New("raft: snapshot in progress")

	// ErrSnapshotAlreadyLoaded is returned by begin_load_snapshot if the
	// engine has already applied entries past the snapshot's index.
	ErrSnapshotAlreadyLoaded = errors.New("raft: snapshot already loaded")

	// ErrInvalidConfigChange is returned when a submitted configuration
	// change entry fails the validity matrix in membership.go, or
	// targets the local node.
	ErrInvalidConfigChange = errors.New("raft: invalid configuration change")

	// ErrNoMem is returned by RecvEntry when the log takes none of the
	// submitted entry because Host.LogOffer accepted zero entries.
	ErrNoMem = errors.New("raft: out of memory")

	// ErrMightViolateLease is returned by RequestVote handling when
	// granting the vote might violate an outstanding lease (see
	// canGrantVote in election.go); the grant is refused rather than risking a
	// simultaneous leader.
	ErrMightViolateLease = errors.New("raft: refusing vote, might violate an outstanding lease")

	// ErrShutdown is returned (never panicked) when a detected
	// state-machine impossibility is discovered — e.g. a truncation at
	// or below commit_index — or propagated up from a Host.ApplyLog
	// that returned it. The engine does not corrupt committed history;
	// it surfaces this instead.
	ErrShutdown = errors.New("raft: shutdown")
)

// wrapf annotates err with a formatted message while preserving it for
// errors.Is/errors.Cause, mirroring pkg/errors.Wrapf. Returns nil if err
// is nil.
func wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}
