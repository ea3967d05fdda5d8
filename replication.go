package raft

// prevLogFor returns the (index, term) pair a follower must match
// against before accepting entries starting at next, i.e. the entry
// immediately preceding next.
func (s *Server) prevLogFor(next LogIndex) (LogIndex, Term) {
	prevIdx := next - 1
	if prevIdx == s.log.Base() {
		return prevIdx, s.log.BaseTerm()
	}
	if e, ok := s.log.GetAt(prevIdx); ok {
		return prevIdx, e.Term
	}
	return prevIdx, 0
}

// sendAppendEntriesTo builds and sends one AppendEntries to a single
// peer, falling back to InstallSnapshot when the peer's next_idx has
// already fallen behind our retained log window.
func (s *Server) sendAppendEntriesTo(n *Node) error {
	if n.nextIdx <= s.log.Base() {
		msg := InstallSnapshot{
			Term:     s.currentTerm,
			LastIdx:  s.snapshotLastIndex,
			LastTerm: s.snapshotLastTerm,
		}
		return s.host.SendInstallSnapshot(n.id, msg)
	}

	prevIdx, prevTerm := s.prevLogFor(n.nextIdx)
	entries := s.log.GetFrom(n.nextIdx, s.cfg.MaxAppendEntries)
	msg := AppendEntries{
		Term:         s.currentTerm,
		LeaderCommit: s.commitIndex,
		PrevLogIndex: prevIdx,
		PrevLogTerm:  prevTerm,
		Entries:      entries,
	}
	return s.host.SendAppendEntries(n.id, msg)
}

// broadcastAppendEntries sends every peer (voting or not) either a
// replication batch or a heartbeat, keeping every follower's election
// timer from firing.
func (s *Server) broadcastAppendEntries() {
	s.nodes.Each(func(n *Node) {
		if n.isSelf {
			return
		}
		if err := s.sendAppendEntriesTo(n); err != nil {
			s.logger.Warn("append_entries send failed", "node", n.id, "error", err)
		}
	})
}

// acceptLeader folds the lease/election-timer/leader-id bookkeeping a
// follower performs whenever it hears from a leader it recognizes as
// current, whether or not the message's log-matching check passes.
func (s *Server) acceptLeader(leader NodeID) {
	now := s.host.Now()
	s.leaderID = leader
	s.myLeaseHolder = leader
	s.myLeaseExpiry = now.Add(s.cfg.ElectionTimeout)
	s.resetElectionTimer()
}

// RecvAppendEntries is the follower (or stepping-down candidate/leader)
// side of replication.
func (s *Server) RecvAppendEntries(from NodeID, ae AppendEntries) (AppendEntriesResponse, error) {
	if ae.Term < s.currentTerm {
		return AppendEntriesResponse{Term: s.currentTerm, Success: false, CurrentIdx: s.log.CurrentIdx()}, nil
	}

	if ae.Term > s.currentTerm || s.role != Follower {
		if err := s.becomeFollower(ae.Term, from); err != nil {
			return AppendEntriesResponse{}, err
		}
	}

	s.acceptLeader(from)

	fail := func() AppendEntriesResponse {
		return AppendEntriesResponse{
			Term:       s.currentTerm,
			Success:    false,
			CurrentIdx: s.log.CurrentIdx(),
			FirstIdx:   s.log.Base() + 1,
			Lease:      s.myLeaseExpiry,
		}
	}

	if ae.PrevLogIndex > s.log.Base() {
		e, ok := s.log.GetAt(ae.PrevLogIndex)
		if !ok || e.Term != ae.PrevLogTerm {
			return fail(), nil
		}
	} else if ae.PrevLogIndex == s.log.Base() {
		if ae.PrevLogTerm != s.log.BaseTerm() {
			return fail(), nil
		}
	} else {
		// PrevLogIndex is behind our retained window; the leader should
		// be sending a snapshot instead, but treat conservatively.
		return fail(), nil
	}

	// Find how many leading entries already match what we have, and the
	// first conflicting index (if any) to truncate from.
	conflictAt := NoIndex
	matched := 0
	for i, incoming := range ae.Entries {
		idx := ae.PrevLogIndex + 1 + LogIndex(i)
		existing, ok := s.log.GetAt(idx)
		if !ok {
			break
		}
		if existing.Term != incoming.Term {
			conflictAt = idx
			break
		}
		matched++
	}
	if conflictAt != NoIndex {
		if conflictAt <= s.commitIndex {
			return AppendEntriesResponse{}, ErrShutdown
		}
		if err := s.log.TruncateFrom(s.host, s, conflictAt); err != nil {
			return AppendEntriesResponse{}, err
		}
	}

	toAppend := ae.Entries[matched:]
	if len(toAppend) > 0 {
		plain := make([]Entry, len(toAppend))
		for i, ie := range toAppend {
			plain[i] = ie.Entry
		}
		if _, err := s.log.Append(s.host, s, plain); err != nil {
			return AppendEntriesResponse{}, err
		}
	}

	if ae.LeaderCommit > s.commitIndex {
		newCommit := ae.LeaderCommit
		if s.log.CurrentIdx() < newCommit {
			newCommit = s.log.CurrentIdx()
		}
		s.commitIndex = newCommit
	}

	return AppendEntriesResponse{
		Term:       s.currentTerm,
		Success:    true,
		CurrentIdx: s.log.CurrentIdx(),
		FirstIdx:   ae.PrevLogIndex + 1,
		Lease:      s.myLeaseExpiry,
	}, nil
}

// RecvAppendEntriesResponse is the leader side: advance match/next
// index on success, back off next_idx on failure, recompute
// commit_index, fire NodeHasSufficientLogs for a caught-up non-voting
// peer, and record the peer's returned lease.
func (s *Server) RecvAppendEntriesResponse(from NodeID, resp AppendEntriesResponse) error {
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

	if !resp.Success {
		if resp.FirstIdx > 0 && resp.FirstIdx < n.nextIdx {
			n.nextIdx = resp.FirstIdx
		} else if n.nextIdx > 1 {
			n.nextIdx--
		}
		return s.sendAppendEntriesTo(n)
	}

	if resp.CurrentIdx > n.matchIdx {
		n.matchIdx = resp.CurrentIdx
	}
	n.nextIdx = n.matchIdx + 1

	if !n.isVoting && !n.hasSufficientLogs && n.matchIdx+1 >= s.log.CurrentIdx() {
		n.hasSufficientLogs = true
		if err := s.host.NodeHasSufficientLogs(n.id); err != nil {
			return wrapf(err, "raft: node_has_sufficient_logs")
		}
	}

	s.advanceCommitIndex()

	if n.matchIdx < s.log.CurrentIdx() {
		return s.sendAppendEntriesTo(n)
	}
	return nil
}

// advanceCommitIndex implements Raft §5.4.2: commit_index may only
// advance to an index whose entry was replicated (and thus counted for
// majority) in the leader's current term.
func (s *Server) advanceCommitIndex() {
	if s.role != Leader {
		return
	}
	for idx := s.log.CurrentIdx(); idx > s.commitIndex; idx-- {
		e, ok := s.log.GetAt(idx)
		if !ok {
			continue
		}
		if e.Term != s.currentTerm {
			break // older-term entries only commit as a side effect of a later one
		}
		if s.nodes.majorityHave(func(n *Node) bool {
			return n.isSelf || n.matchIdx >= idx
		}) {
			s.commitIndex = idx
			return
		}
	}
}
