package raft

import "github.com/pkg/errors"

// Periodic is the host's time-driven tick: it advances elections,
// heartbeats, lease-majority checks, and the apply loop. The host must
// call it often enough that election and heartbeat timers are serviced
// with reasonable precision.
func (s *Server) Periodic() error {
	now := s.host.Now()

	switch s.role {
	case Follower, Candidate:
		if now.Sub(s.electionTimerStart) >= s.electionTimeoutRand && s.electionEligible(now) {
			if err := s.startElection(); err != nil {
				s.logger.Warn("failed to start election", "error", err)
			}
		}
	case Leader:
		if err := s.checkLeaseMajority(); err != nil {
			return err
		}
		if s.role == Leader && now.Sub(s.lastHeartbeat) >= s.cfg.RequestTimeout {
			s.lastHeartbeat = now
			s.broadcastAppendEntries()
		}
	}

	if err := s.applyCommitted(); err != nil {
		if errors.Is(err, ErrShutdown) {
			return err
		}
		return err
	}
	return nil
}
