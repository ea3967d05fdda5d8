package raft

import "time"

// InstallSnapshotStatus is the result of Host.RecvInstallSnapshot: the
// chunk was accepted but the snapshot is not yet fully received
// (InProgress), the snapshot is now complete (Complete), or the host
// failed to accept it (use a non-nil error instead).
type InstallSnapshotStatus int

const (
	SnapshotInProgress InstallSnapshotStatus = iota
	SnapshotComplete
)

// Host is every upcall the engine invokes to perform a side effect. A
// Server owns no transport, no disk, no clock, and no random source of
// its own; all of it is this interface, consumed synchronously and
// never re-entered. This collapses a typical FSM/LogStore/StableStore/
// SnapshotStore/Transport split into one capability object: the host is
// modeled as a single synchronous callback table rather than several
// pluggable stores.
type Host interface {
	// --- transport ---

	// SendRequestVote asks node to vote. The engine does not wait for a
	// reply here; the reply arrives later through
	// Server.RecvRequestVoteResponse.
	SendRequestVote(node NodeID, msg RequestVote) error
	// SendAppendEntries replicates a batch (possibly empty, for a
	// heartbeat) to node.
	SendAppendEntries(node NodeID, msg AppendEntries) error
	// SendInstallSnapshot begins or continues sending a snapshot to
	// node. The snapshot payload itself is host-defined and not
	// modeled here; Msg carries only the metadata the engine needs.
	SendInstallSnapshot(node NodeID, msg InstallSnapshot) error

	// --- snapshot transfer (follower side) ---

	// RecvInstallSnapshot is delegated to when the engine cannot
	// satisfy an InstallSnapshot from what it already knows (see
	// Server.RecvInstallSnapshot). It returns whether the transfer is
	// complete.
	RecvInstallSnapshot(node NodeID, msg InstallSnapshot) (InstallSnapshotStatus, error)
	// RecvInstallSnapshotResponse is delegated to on the leader side so
	// the host can advance its own snapshot-transfer bookkeeping (e.g.
	// streaming the next chunk).
	RecvInstallSnapshotResponse(node NodeID, resp InstallSnapshotResponse) error

	// --- application ---

	// ApplyLog is invoked once per committed entry, in increasing index
	// order, never more than once per index. Returning ErrShutdown
	// propagates out of Server.Periodic.
	ApplyLog(entry IndexedEntry) error

	// --- durable state ---

	// PersistVote must be durable before the engine sends a
	// RequestVoteResponse granting a real vote.
	PersistVote(nodeID NodeID) error
	// PersistTerm must be durable before the engine acts on the new
	// term (e.g. sends any message whose correctness depends on it).
	PersistTerm(term Term) error

	// --- log storage ---

	// LogOffer is called once per contiguous batch as entries are
	// appended, before the log reports them present. The host may
	// shrink n to partial-accept the batch.
	LogOffer(entries []IndexedEntry) (n int, err error)
	// LogPoll is called once per contiguous batch as a compacted prefix
	// is removed from the head, in strictly increasing index order.
	LogPoll(entries []IndexedEntry) error
	// LogPop is called once per contiguous batch, in reverse order of
	// LogOffer, as a conflicting tail is truncated.
	LogPop(entries []IndexedEntry) error
	// LogGetNodeID interprets a configuration-change entry's Data to
	// recover the NodeID it targets.
	LogGetNodeID(entry Entry) NodeID

	// --- membership ---

	// NodeHasSufficientLogs fires exactly once per non-voting peer,
	// when that peer's replicated log has caught up to within one
	// entry of the leader's tail. The host typically responds with a
	// PROMOTE entry submission.
	NodeHasSufficientLogs(node NodeID) error
	// NotifyMembershipEvent reports a membership-affecting entry as it
	// is appended, committed, or reverted; kind is one of the
	// MembershipEvent constants.
	NotifyMembershipEvent(node NodeID, entry IndexedEntry, kind MembershipEvent)

	// --- capabilities ---

	// Now returns the current time. Successive calls within one engine
	// instance must not decrease.
	Now() time.Time
	// Rand returns a uniform random float64 in [0, 1).
	Rand() float64

	// Log receives a structured diagnostic line about a specific node
	// (NoNode if not about a particular peer).
	Log(node NodeID, level LogLevel, message string)
}

// MembershipEvent classifies a NotifyMembershipEvent call.
type MembershipEvent int

const (
	MembershipAppended MembershipEvent = iota
	MembershipCommitted
	MembershipReverted
)

// LogLevel mirrors hclog's level vocabulary for Host.Log, keeping the
// Host interface independent of the concrete logging library a host
// happens to use.
type LogLevel int

const (
	LogTrace LogLevel = iota
	LogDebug
	LogInfo
	LogWarn
	LogError
)
