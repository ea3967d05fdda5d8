package raft

// EntryRequest is what a client (or the host, on the engine's behalf
// for a PROMOTE/DEMOTE/etc. follow-up) submits to RecvEntry. Term is
// assigned by the engine, not the caller.
type EntryRequest struct {
	ID   EntryID
	Type EntryType
	Data []byte
}

// EntryResult is the assignment RecvEntry hands back: the position the
// entry was actually appended at. Pass it to MsgEntryResponseCommitted
// later to learn whether it committed, is still pending, or was
// invalidated by a leader change.
type EntryResult struct {
	Index LogIndex
	Term  Term
	ID    EntryID
}

// RecvEntry is client entry submission: only a leader may accept;
// configuration-change entries are validated against the
// single-pending-voting-change rule, the validity matrix, and
// self-targeting before being appended.
func (s *Server) RecvEntry(req EntryRequest) (EntryResult, error) {
	if s.role != Leader {
		return EntryResult{}, ErrNotLeader
	}

	if req.Type.isConfigChange() {
		if s.snapshotInProgress {
			return EntryResult{}, ErrSnapshotInProgress
		}
		target := s.host.LogGetNodeID(Entry{Type: req.Type, Data: req.Data})
		if me := s.nodes.Self(); me != nil && me.id == target {
			return EntryResult{}, ErrInvalidConfigChange
		}
		if req.Type.isVotingChange() && s.votingCfgChangeLogIdx != NoIndex {
			return EntryResult{}, ErrOneVotingChangeOnly
		}
		if err := s.nodes.configChangeValidity(req.Type, target); err != nil {
			return EntryResult{}, err
		}
	}

	entry := Entry{Term: s.currentTerm, ID: req.ID, Type: req.Type, Data: req.Data}
	n, err := s.log.Append(s.host, s, []Entry{entry})
	if err != nil {
		return EntryResult{}, err
	}
	if n == 0 {
		return EntryResult{}, ErrNoMem
	}
	idx := s.log.CurrentIdx()

	if me := s.nodes.Self(); me != nil {
		me.matchIdx = idx
	}

	// A single-voting-node cluster commits as soon as self's match_idx
	// advances; a multi-node cluster needs followers to ack first, but
	// there's no reason to wait for the next heartbeat to send it.
	s.advanceCommitIndex()
	s.broadcastAppendEntries()

	return EntryResult{Index: idx, Term: entry.Term, ID: entry.ID}, nil
}
