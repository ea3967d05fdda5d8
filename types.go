package raft

import "fmt"

// Term is a Raft logical clock. It increments only on entry into the
// real-vote candidate phase, never during Pre-Vote.
type Term uint64

// LogIndex is a 1-based position in the replicated log. Zero means "no
// entry" and never refers to a real log position.
type LogIndex uint64

// NodeID is a stable, host-chosen identifier for a cluster member. The
// engine never interprets it beyond equality comparison.
type NodeID uint64

// EntryID is an opaque, host-chosen tag carried on an Entry so the host
// can match a committed/applied entry back to the client request that
// produced it. The engine never interprets it.
type EntryID uint64

// NoIndex is the sentinel LogIndex meaning "nothing here": an empty log's
// last index, a peer's unknown match index, and so on.
const NoIndex LogIndex = 0

// NoNode is the sentinel NodeID meaning "no node": an unset vote, an
// unknown leader.
const NoNode NodeID = 0

// Role is a server's current position in the Raft state machine.
type Role int

const (
	// Follower replicates a leader's log and may grant votes.
	Follower Role = iota
	// Candidate is campaigning for leadership, either probing with
	// Pre-Vote or, once it has a Pre-Vote majority, running a real
	// election. See Server.prevote.
	Candidate
	// Leader replicates its log to followers and serves client entries.
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// EntryType classifies a log Entry. NormalEntry carries application
// data; the remaining values drive single-step membership changes (see
// membership.go) or mark a snapshot boundary.
type EntryType int

const (
	NormalEntry EntryType = iota
	AddNonvoting
	AddVoting
	Promote
	Demote
	RemoveVoting
	RemoveNonvoting
	NoopSnapshot
)

func (t EntryType) String() string {
	switch t {
	case NormalEntry:
		return "normal"
	case AddNonvoting:
		return "add_nonvoting"
	case AddVoting:
		return "add_voting"
	case Promote:
		return "promote"
	case Demote:
		return "demote"
	case RemoveVoting:
		return "remove_voting"
	case RemoveNonvoting:
		return "remove_nonvoting"
	case NoopSnapshot:
		return "noop_snapshot"
	default:
		return fmt.Sprintf("entry_type(%d)", int(t))
	}
}

// isVotingChange reports whether t is one of the single-step voting
// configuration change types, of which at most one may be pending
// (uncommitted) at a time; see membership.go.
func (t EntryType) isVotingChange() bool {
	switch t {
	case AddVoting, Promote, Demote, RemoveVoting:
		return true
	default:
		return false
	}
}

func (t EntryType) isConfigChange() bool {
	switch t {
	case AddNonvoting, AddVoting, Promote, Demote, RemoveVoting, RemoveNonvoting:
		return true
	default:
		return false
	}
}
