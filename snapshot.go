package raft

import "github.com/pkg/errors"

// BeginSnapshot starts leader-side compaction up to idx: idx must
// already be committed, any entries up to it are applied first, and
// the flag set here blocks elections and the apply loop until
// EndSnapshot.
func (s *Server) BeginSnapshot(idx LogIndex) error {
	if s.snapshotInProgress {
		return ErrSnapshotInProgress
	}
	if idx > s.commitIndex {
		return errors.Errorf("raft: begin_snapshot(%d) exceeds commit_index %d", idx, s.commitIndex)
	}
	if err := s.applyUpTo(idx); err != nil {
		return err
	}
	term := s.log.BaseTerm()
	if e, ok := s.log.GetAt(idx); ok {
		term = e.Term
	}
	s.snapshotInProgress = true
	s.snapshotLastIndex = idx
	s.snapshotLastTerm = term
	return nil
}

// EndSnapshot finishes compaction: the log prefix up to
// snapshot_last_idx is polled away and the in-progress flag clears.
func (s *Server) EndSnapshot() error {
	if !s.snapshotInProgress {
		return errors.New("raft: end_snapshot with no snapshot in progress")
	}
	if s.snapshotLastIndex > s.log.Base() {
		if err := s.log.PollTo(s.host, s.snapshotLastIndex); err != nil {
			return err
		}
	}
	s.snapshotInProgress = false
	return nil
}

// BeginLoadSnapshot replaces engine state wholesale for a replica
// catching up from a snapshot transfer: the log is cleared and seeded
// at (idx, term), commit/applied jump to idx, and the node table is
// cleared to be repopulated by the host replaying the snapshot's
// membership.
func (s *Server) BeginLoadSnapshot(term Term, idx LogIndex) error {
	if s.snapshotInProgress {
		return ErrSnapshotInProgress
	}
	if idx <= s.lastApplied {
		return ErrSnapshotAlreadyLoaded
	}
	s.log.LoadFromSnapshot(idx, term)
	s.commitIndex = idx
	s.lastApplied = idx
	s.snapshotLastIndex = idx
	s.snapshotLastTerm = term
	s.nodes = newNodeTable()
	s.votingCfgChangeLogIdx = NoIndex
	s.snapshotInProgress = true
	return nil
}

// EndLoadSnapshot marks every currently-voting peer as having
// sufficient logs (trivially true immediately after a wholesale state
// replacement) and clears the in-progress flag.
func (s *Server) EndLoadSnapshot() error {
	if !s.snapshotInProgress {
		return errors.New("raft: end_load_snapshot with no load in progress")
	}
	s.nodes.Each(func(n *Node) {
		if n.isVoting {
			n.hasSufficientLogs = true
		}
	})
	s.snapshotInProgress = false
	return nil
}

// RecvInstallSnapshot is the follower side of snapshot installation:
// idempotent if already committed past last_idx, a fast-path commit
// advance if the log already holds a matching (last_idx, last_term)
// entry, otherwise delegated to the host's chunked transfer.
func (s *Server) RecvInstallSnapshot(from NodeID, is InstallSnapshot) (InstallSnapshotResponse, error) {
	if is.Term < s.currentTerm {
		return InstallSnapshotResponse{Term: s.currentTerm, LastIdx: s.log.CurrentIdx(), Complete: false}, nil
	}
	if is.Term > s.currentTerm || s.role != Follower {
		if err := s.becomeFollower(is.Term, from); err != nil {
			return InstallSnapshotResponse{}, err
		}
	}
	s.acceptLeader(from)

	if is.LastIdx <= s.commitIndex {
		return InstallSnapshotResponse{Term: s.currentTerm, LastIdx: is.LastIdx, Complete: true, Lease: s.myLeaseExpiry}, nil
	}

	if e, ok := s.log.GetAt(is.LastIdx); ok && e.Term == is.LastTerm {
		if err := s.log.PollTo(s.host, is.LastIdx); err != nil {
			return InstallSnapshotResponse{}, err
		}
		if s.commitIndex < is.LastIdx {
			s.commitIndex = is.LastIdx
		}
		return InstallSnapshotResponse{Term: s.currentTerm, LastIdx: is.LastIdx, Complete: true, Lease: s.myLeaseExpiry}, nil
	}

	status, err := s.host.RecvInstallSnapshot(from, is)
	if err != nil {
		return InstallSnapshotResponse{}, wrapf(err, "raft: recv_installsnapshot")
	}
	complete := status == SnapshotComplete
	if complete {
		if err := s.BeginLoadSnapshot(is.LastTerm, is.LastIdx); err != nil {
			return InstallSnapshotResponse{}, err
		}
		if err := s.EndLoadSnapshot(); err != nil {
			return InstallSnapshotResponse{}, err
		}
	}
	return InstallSnapshotResponse{Term: s.currentTerm, LastIdx: is.LastIdx, Complete: complete, Lease: s.myLeaseExpiry}, nil
}

// RecvInstallSnapshotResponse is the leader side: the host advances its
// own chunked-transfer bookkeeping, and on Complete the peer's
// replication state jumps to the snapshot boundary.
func (s *Server) RecvInstallSnapshotResponse(from NodeID, resp InstallSnapshotResponse) error {
	if resp.Term > s.currentTerm {
		return s.becomeFollower(resp.Term, NoNode)
	}
	if s.role != Leader {
		return nil
	}
	n := s.nodes.Get(from)
	if n == nil {
		return nil
	}

	if resp.Lease.After(n.lease) {
		n.lease = resp.Lease
	}

	if err := s.host.RecvInstallSnapshotResponse(from, resp); err != nil {
		return wrapf(err, "raft: recv_installsnapshot_response")
	}
	if !resp.Complete {
		return nil
	}

	n.nextIdx = resp.LastIdx + 1
	if resp.LastIdx > n.matchIdx {
		n.matchIdx = resp.LastIdx
	}
	if !n.isVoting && !n.hasSufficientLogs && n.matchIdx+1 >= s.log.CurrentIdx() {
		n.hasSufficientLogs = true
		if err := s.host.NodeHasSufficientLogs(n.id); err != nil {
			return wrapf(err, "raft: node_has_sufficient_logs")
		}
	}
	s.advanceCommitIndex()
	return s.sendAppendEntriesTo(n)
}
