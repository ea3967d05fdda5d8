package raft

import (
	"time"
)

// Server is one participant's consensus engine: role, term, vote, log,
// node table, and election/lease bookkeeping. It is driven exclusively
// through its exported Recv*/Periodic/RecvEntry methods; every side
// effect flows out through the Host given to NewServer.
//
// A Server is single-threaded: the caller must serialize all calls into
// it. It spawns no goroutines and blocks on nothing.
type Server struct {
	cfg     *Config
	host    Host
	logger  Logger
	metrics Metrics

	log   *Log
	nodes *NodeTable

	role     Role
	prevote  bool
	leaderID NodeID

	currentTerm Term
	votedFor    NodeID

	commitIndex LogIndex
	lastApplied LogIndex

	snapshotLastIndex  LogIndex
	snapshotLastTerm   Term
	snapshotInProgress bool

	electionTimerStart  time.Time
	electionTimeoutRand time.Duration

	votingCfgChangeLogIdx LogIndex

	startTime  time.Time
	firstStart bool

	lastHeartbeat time.Time

	// myLeaseHolder/myLeaseExpiry record the implicit promise this node
	// makes, as a follower, not to vote for anyone but myLeaseHolder
	// until myLeaseExpiry: set whenever an AppendEntries or
	// InstallSnapshot from the current leader is accepted.
	myLeaseHolder NodeID
	myLeaseExpiry time.Time
}

// NewServer constructs a Server in the Follower role with term 0, no
// vote, an empty log, and an empty node table. The host must then add
// self and peers via AddNode/AddNonVotingNode, or replace this wholesale
// with BeginLoadSnapshot/EndLoadSnapshot.
func NewServer(host Host, cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = nullLogger()
	}
	metricsSink := cfg.Metrics
	if metricsSink == nil {
		metricsSink = noopMetrics{}
	}
	s := &Server{
		cfg:                   cfg,
		host:                  host,
		logger:                logger,
		metrics:                metricsSink,
		log:                   NewLog(),
		nodes:                 newNodeTable(),
		role:                  Follower,
		votedFor:              NoNode,
		leaderID:              NoNode,
		votingCfgChangeLogIdx: NoIndex,
		firstStart:            true,
		myLeaseHolder:         NoNode,
	}
	s.startTime = host.Now()
	s.resetElectionTimer()
	return s, nil
}

// Clear resets term, vote, role, commit/applied indices, log, and node
// table to their just-constructed values, without replacing the Host or
// Config. It is the Go analogue of the opaque-pointer library's
// raft_clear().
func (s *Server) Clear() {
	s.log = NewLog()
	s.nodes = newNodeTable()
	s.role = Follower
	s.prevote = false
	s.leaderID = NoNode
	s.currentTerm = 0
	s.votedFor = NoNode
	s.commitIndex = NoIndex
	s.lastApplied = NoIndex
	s.snapshotLastIndex = NoIndex
	s.snapshotLastTerm = 0
	s.snapshotInProgress = false
	s.votingCfgChangeLogIdx = NoIndex
	s.myLeaseHolder = NoNode
	s.myLeaseExpiry = time.Time{}
	s.resetElectionTimer()
}

// SetFirstStart records whether this is the very first time this server
// identity has ever run. When false, the server assumes it may have
// previously granted a lease and, for ElectionTimeout after start,
// refuses to grant votes to anyone.
func (s *Server) SetFirstStart(v bool) { s.firstStart = v }

// SetElectionTimeout, SetRequestTimeout, and SetLeaseMaintenanceGrace
// let a host reconfigure timing after construction, mirroring the
// opaque-pointer library's raft_set_election_timeout and friends.
func (s *Server) SetElectionTimeout(d time.Duration)       { s.cfg.ElectionTimeout = d }
func (s *Server) SetRequestTimeout(d time.Duration)        { s.cfg.RequestTimeout = d }
func (s *Server) SetLeaseMaintenanceGrace(d time.Duration) { s.cfg.LeaseMaintenanceGrace = d }

// --- bootstrap ---

// AddNode registers id as a voting member. isSelf marks this Server's
// own identity; exactly one node in the table should ever be self.
func (s *Server) AddNode(id NodeID, isSelf bool) *Node {
	n := s.nodes.AddNode(id, isSelf)
	if isSelf {
		n.nextIdx = s.log.CurrentIdx() + 1
	}
	return n
}

// AddNonVotingNode registers id as a non-voting, catching-up member.
func (s *Server) AddNonVotingNode(id NodeID, isSelf bool) *Node {
	return s.nodes.AddNonVotingNode(id, isSelf)
}

// RemoveNode drops id from the node table outright. This is a bootstrap
// primitive for hosts assembling initial membership by hand; ordinary
// removal during operation goes through a REMOVE_VOTING/REMOVE_NONVOTING
// entry instead.
func (s *Server) RemoveNode(id NodeID) { s.nodes.RemoveNode(id) }

// --- membershipHook: tie node-table mutation to log identity ---

func (s *Server) offerLog(e IndexedEntry) {
	if !e.Type.isConfigChange() {
		return
	}
	target := s.host.LogGetNodeID(e.Entry)
	s.nodes.applyConfigChange(e.Type, target)
	if e.Type.isVotingChange() {
		s.votingCfgChangeLogIdx = e.Index
	}
	s.host.NotifyMembershipEvent(target, e, MembershipAppended)
}

func (s *Server) popLog(e IndexedEntry) {
	if !e.Type.isConfigChange() {
		return
	}
	target := s.host.LogGetNodeID(e.Entry)
	s.nodes.revertConfigChange(e.Type, target)
	if e.Type.isVotingChange() && s.votingCfgChangeLogIdx == e.Index {
		s.votingCfgChangeLogIdx = NoIndex
	}
	s.host.NotifyMembershipEvent(target, e, MembershipReverted)
}

// --- role transitions ---

func (s *Server) resetElectionTimer() {
	s.electionTimerStart = s.host.Now()
	span := s.cfg.ElectionTimeout
	jitter := time.Duration(s.host.Rand() * float64(span))
	s.electionTimeoutRand = span + jitter
}

func (s *Server) becomeFollower(term Term, leader NodeID) error {
	if term > s.currentTerm {
		if err := s.host.PersistTerm(term); err != nil {
			return wrapf(err, "raft: persist_term")
		}
		s.currentTerm = term
		s.votedFor = NoNode
	}
	s.role = Follower
	s.prevote = false
	s.leaderID = leader
	s.resetElectionTimer()
	s.logger.Debug("became follower", "term", s.currentTerm, "leader", leader)
	return nil
}

func (s *Server) becomePrevoteCandidate() {
	s.role = Candidate
	s.prevote = true
	s.leaderID = NoNode
	s.resetElectionTimer()
	s.clearVotes()
	if me := s.nodes.Self(); me != nil {
		me.votedForMe = true
	}
	s.metrics.IncrCounter([]string{"raft", "election", "start"}, 1)
	s.logger.Debug("entering pre-vote", "term", s.currentTerm+1)
}

func (s *Server) becomeVotedCandidate() error {
	term := s.currentTerm + 1
	if err := s.host.PersistTerm(term); err != nil {
		return wrapf(err, "raft: persist_term")
	}
	s.currentTerm = term
	if me := s.nodes.Self(); me != nil {
		if err := s.host.PersistVote(me.id); err != nil {
			return wrapf(err, "raft: persist_vote")
		}
		s.votedFor = me.id
	}
	s.prevote = false
	s.leaderID = NoNode
	s.resetElectionTimer()
	s.clearVotes()
	if me := s.nodes.Self(); me != nil {
		me.votedForMe = true
	}
	s.logger.Info("starting election", "term", s.currentTerm)
	return nil
}

func (s *Server) clearVotes() {
	s.nodes.Each(func(n *Node) { n.votedForMe = false })
}

func (s *Server) becomeLeader() {
	s.role = Leader
	s.prevote = false
	if me := s.nodes.Self(); me != nil {
		s.leaderID = me.id
	}
	now := s.host.Now()
	s.nodes.Each(func(n *Node) {
		n.nextIdx = s.log.CurrentIdx() + 1
		n.matchIdx = NoIndex
		n.effectiveTime = now
		n.lease = now.Add(s.cfg.ElectionTimeout)
		n.hasSufficientLogs = false
	})
	if me := s.nodes.Self(); me != nil {
		me.matchIdx = s.log.CurrentIdx()
	}
	s.lastHeartbeat = now
	s.metrics.IncrCounter([]string{"raft", "election", "won"}, 1)
	s.logger.Info("became leader", "term", s.currentTerm)
	s.broadcastAppendEntries()
}
