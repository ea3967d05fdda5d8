package raft

import "time"

// Node is a cluster member as tracked by the local server: either self
// or a peer, voting or still catching up as a non-voting replica. Next/
// match indices and vote flag are only meaningful while the local
// server is, respectively, leader or candidate.
type Node struct {
	id NodeID

	isSelf   bool
	isVoting bool

	// candidate-phase bookkeeping
	votedForMe bool

	// leader-phase replication bookkeeping
	nextIdx  LogIndex
	matchIdx LogIndex

	// lease is the absolute time until which this peer has promised not
	// to vote for anyone but the leader that most recently heard from
	// it. Zero value means "no lease outstanding".
	lease time.Time
	// effectiveTime is when this peer became effective for the current
	// leader term, used for the lease-maintenance-grace fallback.
	effectiveTime time.Time

	hasSufficientLogs bool

	// Udata is an opaque, host-owned cookie; the engine never reads it.
	Udata interface{}
}

func (n *Node) ID() NodeID               { return n.id }
func (n *Node) IsSelf() bool             { return n.isSelf }
func (n *Node) IsVoting() bool           { return n.isVoting }
func (n *Node) NextIndex() LogIndex      { return n.nextIdx }
func (n *Node) MatchIndex() LogIndex     { return n.matchIdx }
func (n *Node) HasSufficientLogs() bool  { return n.hasSufficientLogs }


// hasLease reports whether the leader may still treat this peer as
// having promised not to vote away, either because the lease itself
// hasn't expired or, with grace, because the peer has been effective
// recently enough that we trust it implicitly.
func (n *Node) hasLease(now time.Time, electionTimeout, grace time.Duration) bool {
	if now.Before(n.lease) {
		return true
	}
	return now.Sub(n.effectiveTime) < electionTimeout+grace
}
