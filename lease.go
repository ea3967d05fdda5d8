package raft

import "time"

// HasMajorityLeases reports whether the leader can currently treat a
// majority of voting peers as leased. Self always counts.
func (s *Server) HasMajorityLeases(now time.Time) bool {
	return s.nodes.majorityHave(func(n *Node) bool {
		return n.isSelf || n.hasLease(now, s.cfg.ElectionTimeout, s.cfg.LeaseMaintenanceGrace)
	})
}

// checkLeaseMajority steps a leader down to follower the moment it can
// no longer account a majority of voting peers as leased, including the
// lease_maintenance_grace fallback.
func (s *Server) checkLeaseMajority() error {
	if s.role != Leader {
		return nil
	}
	if s.HasMajorityLeases(s.host.Now()) {
		return nil
	}
	s.logger.Warn("lost majority of peer leases, stepping down", "term", s.currentTerm)
	return s.becomeFollower(s.currentTerm, NoNode)
}
