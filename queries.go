package raft

// Term returns the current term.
func (s *Server) Term() Term { return s.currentTerm }

// Role returns the current role.
func (s *Server) Role() Role { return s.role }

// IsPrevote reports whether a Candidate is still in the Pre-Vote
// sub-phase (meaningless outside Candidate).
func (s *Server) IsPrevote() bool { return s.prevote }

// LeaderID returns the node this server currently believes is leader,
// or NoNode.
func (s *Server) LeaderID() NodeID { return s.leaderID }

// CommitIndex returns the highest log index known committed.
func (s *Server) CommitIndex() LogIndex { return s.commitIndex }

// LastApplied returns the highest log index applied so far.
func (s *Server) LastApplied() LogIndex { return s.lastApplied }

// CurrentIndex returns the index of the last log entry.
func (s *Server) CurrentIndex() LogIndex { return s.log.CurrentIdx() }

// VotingChangePending returns the log index of the pending
// (uncommitted) voting configuration change, or NoIndex if none.
func (s *Server) VotingChangePending() LogIndex { return s.votingCfgChangeLogIdx }

// SnapshotInProgress reports whether a snapshot (begin_snapshot or
// begin_load_snapshot) is currently open.
func (s *Server) SnapshotInProgress() bool { return s.snapshotInProgress }

// Node returns the node-table entry for id, or nil if unknown.
func (s *Server) Node(id NodeID) *Node { return s.nodes.Get(id) }

// Nodes calls fn once per known node, in an unspecified order.
func (s *Server) Nodes(fn func(*Node)) { s.nodes.Each(fn) }

// NumVotingNodes returns the number of currently-voting nodes.
func (s *Server) NumVotingNodes() int { return s.nodes.NumVoting() }

// MsgEntryResponseCommitted answers, for an EntryResult previously
// returned by RecvEntry: 1 if the entry committed, 0 if it's still
// pending, -1 if the log index now holds a different term (the entry
// was truncated away by a later leader and will never commit).
func (s *Server) MsgEntryResponseCommitted(r EntryResult) int {
	if r.Index <= s.log.Base() {
		// Compacted away; compaction only ever removes committed prefix.
		return 1
	}
	e, ok := s.log.GetAt(r.Index)
	if !ok || e.Term != r.Term {
		return -1
	}
	if r.Index <= s.commitIndex {
		return 1
	}
	return 0
}
