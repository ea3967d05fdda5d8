package raft

import "time"

// isUpToDate reports whether a candidate's last log is at least as
// up-to-date as ours: a higher last-log term, or an equal term with an
// index at least as large.
func (s *Server) isUpToDate(candLastTerm Term, candLastIdx LogIndex) bool {
	myTerm := s.log.CurrentTerm()
	if myTerm != candLastTerm {
		return candLastTerm > myTerm
	}
	return candLastIdx >= s.log.CurrentIdx()
}

// canGrantVote implements RequestVote grant predicate (iv): a node that
// has, or might have, granted a lease to someone other than candidate
// must refuse. During the unknown window after a restart (first_start
// false, within ElectionTimeout of start), every candidate is refused,
// since we don't know who we might have leased to before the restart.
func (s *Server) canGrantVote(candidate NodeID, now time.Time) bool {
	if !s.firstStart && now.Sub(s.startTime) < s.cfg.ElectionTimeout {
		return false
	}
	if now.Before(s.myLeaseExpiry) && s.myLeaseHolder != candidate && s.myLeaseHolder != NoNode {
		return false
	}
	return true
}

// RecvRequestVote handles an incoming RequestVote, real or Pre-Vote.
func (s *Server) RecvRequestVote(from NodeID, vr RequestVote) (RequestVoteResponse, error) {
	now := s.host.Now()

	if vr.Term > s.currentTerm {
		if err := s.becomeFollower(vr.Term, s.leaderID); err != nil {
			return RequestVoteResponse{}, err
		}
	}

	resp := RequestVoteResponse{Term: s.currentTerm, Prevote: vr.Prevote, VoteGranted: VoteDenied}

	if s.nodes.Get(vr.CandidateID) == nil {
		resp.VoteGranted = VoteUnknownNode
		return resp, nil
	}

	if vr.Term < s.currentTerm {
		return resp, nil
	}

	if !vr.Prevote && s.votedFor != NoNode && s.votedFor != vr.CandidateID {
		return resp, nil
	}

	if !s.isUpToDate(vr.LastLogTerm, vr.LastLogIndex) {
		return resp, nil
	}

	if !s.canGrantVote(vr.CandidateID, now) {
		s.logger.Debug("refusing vote, outstanding lease", "candidate", vr.CandidateID)
		return resp, ErrMightViolateLease
	}

	if !vr.Prevote {
		if err := s.host.PersistVote(vr.CandidateID); err != nil {
			return RequestVoteResponse{}, wrapf(err, "raft: persist_vote")
		}
		s.votedFor = vr.CandidateID
	}
	resp.VoteGranted = VoteGranted
	s.resetElectionTimer()
	return resp, nil
}

// RecvRequestVoteResponse tallies a vote response, advancing a
// Pre-Vote candidate to the real-vote phase on Pre-Vote majority, or a
// voted candidate to leader on real-vote majority.
func (s *Server) RecvRequestVoteResponse(from NodeID, resp RequestVoteResponse) error {
	if resp.Term > s.currentTerm {
		return s.becomeFollower(resp.Term, s.leaderID)
	}
	if s.role != Candidate || resp.Prevote != s.prevote {
		return nil // stale response for a phase we've already left
	}
	if resp.VoteGranted != VoteGranted {
		return nil
	}
	n := s.nodes.Get(from)
	if n == nil || !n.isVoting {
		return nil
	}
	n.votedForMe = true

	if !s.nodes.majorityHave(func(n *Node) bool { return n.votedForMe }) {
		return nil
	}
	if s.prevote {
		s.metrics.IncrCounter([]string{"raft", "election", "prevote_won"}, 1)
		if err := s.becomeVotedCandidate(); err != nil {
			return err
		}
		msg := RequestVote{
			Term:         s.currentTerm,
			CandidateID:  s.votedFor,
			LastLogIndex: s.log.CurrentIdx(),
			LastLogTerm:  s.log.CurrentTerm(),
		}
		var sendErr error
		s.nodes.Each(func(n *Node) {
			if n.isSelf || !n.isVoting {
				return
			}
			if err := s.host.SendRequestVote(n.id, msg); err != nil && sendErr == nil {
				sendErr = err
			}
		})
		return sendErr
	}
	s.becomeLeader()
	return nil
}

// startElection is invoked by Periodic when the election timer has
// elapsed for a voting follower with no outstanding lease and no
// snapshot in progress.
func (s *Server) startElection() error {
	s.becomePrevoteCandidate()
	if s.nodes.majorityHave(func(n *Node) bool { return n.votedForMe }) {
		// A lone voting node's own vote is already a majority.
		if err := s.becomeVotedCandidate(); err != nil {
			return err
		}
		s.becomeLeader()
		return nil
	}
	me := s.nodes.Self()
	var lastIdx LogIndex
	var lastTerm Term
	if me != nil {
		lastIdx = s.log.CurrentIdx()
		lastTerm = s.log.CurrentTerm()
	}
	msg := RequestVote{
		Term:         s.currentTerm,
		LastLogIndex: lastIdx,
		LastLogTerm:  lastTerm,
		Prevote:      true,
	}
	if me != nil {
		msg.CandidateID = me.id
	}
	var sendErr error
	s.nodes.Each(func(n *Node) {
		if n.isSelf || !n.isVoting {
			return
		}
		if err := s.host.SendRequestVote(n.id, msg); err != nil && sendErr == nil {
			sendErr = err
		}
	})
	return sendErr
}

// electionEligible reports whether a follower may start a (Pre-Vote)
// election: it must be a voting node, hold no outstanding lease that
// would make the attempt futile, and not be mid-snapshot.
func (s *Server) electionEligible(now time.Time) bool {
	me := s.nodes.Self()
	if me == nil || !me.isVoting {
		return false
	}
	if s.snapshotInProgress {
		return false
	}
	if now.Before(s.myLeaseExpiry) {
		return false
	}
	return true
}
