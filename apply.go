package raft

import "github.com/pkg/errors"

// applyUpTo applies (last_applied, idx] in strictly increasing index
// order via Host.ApplyLog, clearing the pending voting-change marker
// and reporting a membership commit as each config-change entry lands.
func (s *Server) applyUpTo(idx LogIndex) error {
	for s.lastApplied < idx {
		next := s.lastApplied + 1
		e, ok := s.log.GetAt(next)
		if !ok {
			break
		}
		if err := s.host.ApplyLog(e); err != nil {
			if errors.Is(err, ErrShutdown) {
				return err
			}
			return wrapf(err, "raft: applylog")
		}
		s.lastApplied = next
		if e.Type.isConfigChange() {
			target := s.host.LogGetNodeID(e.Entry)
			s.host.NotifyMembershipEvent(target, e, MembershipCommitted)
			if e.Type.isVotingChange() && s.votingCfgChangeLogIdx == e.Index {
				s.votingCfgChangeLogIdx = NoIndex
			}
		}
	}
	return nil
}

// applyCommitted runs the apply loop up to commit_index; it is a no-op
// while a snapshot is in progress.
func (s *Server) applyCommitted() error {
	if s.snapshotInProgress {
		return nil
	}
	return s.applyUpTo(s.commitIndex)
}
