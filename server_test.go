package raft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/daos-stack/raft/internal/testutil"
)

type clusterNode struct {
	id     NodeID
	host   *testutil.Host
	server *Server
}

type cluster struct {
	t     *testing.T
	clock *testutil.Clock
	net   *testutil.Network
	nodes map[NodeID]*clusterNode
}

func newCluster(t *testing.T, ids []NodeID, cfg *Config) *cluster {
	t.Helper()
	clock := testutil.NewClock(time.Unix(0, 0))
	net := testutil.NewNetwork()
	c := &cluster{t: t, clock: clock, net: net, nodes: make(map[NodeID]*clusterNode)}

	for i, id := range ids {
		h := testutil.NewHost(id, clock, testutil.NewRand(int64(i)+1), net)
		nodeCfg := *cfg
		s, err := NewServer(h, &nodeCfg)
		require.NoError(t, err)
		h.SetServer(s)
		for _, peer := range ids {
			s.AddNode(peer, peer == id)
		}
		c.nodes[id] = &clusterNode{id: id, host: h, server: s}
	}
	return c
}

func (c *cluster) tickAll() {
	for _, n := range c.nodes {
		require.NoError(c.t, n.server.Periodic())
	}
}

func (c *cluster) advance(d time.Duration, step time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		c.clock.Advance(step)
		c.tickAll()
	}
}

func (c *cluster) leader() *clusterNode {
	for _, n := range c.nodes {
		if n.server.Role() == Leader {
			return n
		}
	}
	return nil
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.ElectionTimeout = 1000 * time.Millisecond
	cfg.RequestTimeout = 100 * time.Millisecond
	return cfg
}

// Scenario 1: 3-node election.
func TestScenarioThreeNodeElection(t *testing.T) {
	c := newCluster(t, []NodeID{1, 2, 3}, testConfig())

	c.advance(500*time.Millisecond, 50*time.Millisecond)
	require.Nil(t, c.leader(), "no leader should be elected before the timeout window")

	c.advance(2000*time.Millisecond, 50*time.Millisecond)

	leader := c.leader()
	require.NotNil(t, leader, "a leader should have been elected")
	for _, n := range c.nodes {
		require.Equal(t, Term(1), n.server.Term())
	}
}

// Scenario 2: log replication and commit.
func TestScenarioLogReplication(t *testing.T) {
	c := newCluster(t, []NodeID{1, 2, 3}, testConfig())
	c.advance(2000*time.Millisecond, 50*time.Millisecond)
	leader := c.leader()
	require.NotNil(t, leader)

	res, err := leader.server.RecvEntry(EntryRequest{ID: 42, Type: NormalEntry, Data: []byte("x")})
	require.NoError(t, err)
	require.Equal(t, LogIndex(1), res.Index)
	require.Equal(t, leader.server.Term(), res.Term)
	require.Equal(t, EntryID(42), res.ID)

	c.advance(200*time.Millisecond, 50*time.Millisecond)

	require.Equal(t, 1, leader.server.MsgEntryResponseCommitted(res))
	for _, n := range c.nodes {
		require.Len(t, n.host.Applied, 1)
		require.Equal(t, LogIndex(1), n.host.Applied[0].Index)
	}
}

// Scenario 3: leader failure and recovery.
func TestScenarioLeaderFailureAndRecovery(t *testing.T) {
	c := newCluster(t, []NodeID{1, 2, 3}, testConfig())
	c.advance(2000*time.Millisecond, 50*time.Millisecond)
	first := c.leader()
	require.NotNil(t, first)

	c.net.Partition(first.id, true)
	c.advance(2500*time.Millisecond, 50*time.Millisecond)

	var newLeader *clusterNode
	for _, n := range c.nodes {
		if n.id != first.id && n.server.Role() == Leader {
			newLeader = n
		}
	}
	require.NotNil(t, newLeader, "a surviving node should have become leader")
	require.True(t, newLeader.server.Term() > first.server.Term())

	c.net.Partition(first.id, false)
	c.advance(500*time.Millisecond, 50*time.Millisecond)

	require.Equal(t, Follower, first.server.Role())
	require.Equal(t, newLeader.server.Term(), first.server.Term())
}

// Scenario 4: membership add via non-voting catch-up then promote.
func TestScenarioMembershipAdd(t *testing.T) {
	c := newCluster(t, []NodeID{1}, testConfig())
	leader := c.nodes[1]
	require.NoError(t, leader.server.Periodic()) // no election yet: the timeout is at least ElectionTimeout
	// Once its timeout elapses, a single voting node elects itself on its own tick.
	c.advance(2000*time.Millisecond, 50*time.Millisecond)
	require.Equal(t, Leader, leader.server.Role())

	h2 := testutil.NewHost(2, c.clock, testutil.NewRand(99), c.net)
	s2, err := NewServer(h2, testConfig())
	require.NoError(t, err)
	h2.SetServer(s2)
	s2.AddNonVotingNode(2, true)
	c.nodes[2] = &clusterNode{id: 2, host: h2, server: s2}

	// Membership changes during live operation flow exclusively through
	// log entries; the leader learns about node 2 the same way every
	// replica does, via offer_log on the entry below.
	data := testutil.EncodeNodeID(2)
	_, err = leader.server.RecvEntry(EntryRequest{ID: 1, Type: AddNonvoting, Data: data})
	require.NoError(t, err)

	c.advance(500*time.Millisecond, 50*time.Millisecond)

	require.True(t, leader.host.SufficientLogs[2], "leader should observe node 2 catching up")

	res, err := leader.server.RecvEntry(EntryRequest{ID: 2, Type: Promote, Data: data})
	require.NoError(t, err)

	c.advance(500*time.Millisecond, 50*time.Millisecond)
	require.Equal(t, 1, leader.server.MsgEntryResponseCommitted(res))
	require.Equal(t, NoIndex, leader.server.VotingChangePending())
	require.Equal(t, 2, leader.server.NumVotingNodes())
}

// Scenario 6: a single partitioned follower's repeated elections never
// succeed (its RequestVote never even reaches the others, and the
// others keep renewing their lease to the incumbent leader), and the
// leader keeps its majority of leases from the two reachable nodes, so
// it never steps down.
func TestScenarioLeaseRefusal(t *testing.T) {
	cfg := testConfig()
	cfg.LeaseMaintenanceGrace = 0
	c := newCluster(t, []NodeID{1, 2, 3}, cfg)
	c.advance(2000*time.Millisecond, 50*time.Millisecond)
	leaderA := c.leader()
	require.NotNil(t, leaderA)

	var c3 *clusterNode
	for _, n := range c.nodes {
		if n.id != leaderA.id {
			c3 = n
			break
		}
	}
	c.net.Partition(c3.id, true)
	c.advance(2200*time.Millisecond, 50*time.Millisecond)

	require.Equal(t, Candidate, c3.server.Role(), "the isolated node should be campaigning")
	require.Equal(t, Term(1), c3.server.Term(), "an unreachable prevote round never bumps term")
	require.NotNil(t, c.leader())
	require.Equal(t, leaderA.id, c.leader().id, "A keeps its majority of leases from the two reachable nodes")

	c.advance(3000*time.Millisecond, 50*time.Millisecond)
	require.Equal(t, Leader, leaderA.server.Role(), "a single partitioned follower never costs the leader its majority")
}
