package raft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/daos-stack/raft/internal/testutil"
)

func newTestServer(t *testing.T, id NodeID, clock *testutil.Clock, net *testutil.Network) (*Server, *testutil.Host) {
	t.Helper()
	h := testutil.NewHost(id, clock, testutil.NewRand(int64(id)), net)
	s, err := NewServer(h, testConfig())
	require.NoError(t, err)
	h.SetServer(s)
	return s, h
}

// Scenario 5: snapshot install. A follower far behind the leader's
// retained log window receives InstallSnapshot and ends up with its
// commit/applied/base all caught up to the snapshot boundary.
func TestScenarioSnapshotInstall(t *testing.T) {
	clock := testutil.NewClock(time.Unix(0, 0))
	net := testutil.NewNetwork()

	leader, leaderHost := newTestServer(t, 1, clock, net)
	follower, _ := newTestServer(t, 2, clock, net)

	// Node 2 is a non-voting, partitioned peer from the leader's point of
	// view: the leader commits on its own vote and nothing it sends
	// reaches the follower, so the follower's log is only what the test
	// gives it below.
	net.Partition(2, true)
	leader.AddNode(1, true)
	leader.AddNonVotingNode(2, false)
	follower.AddNode(1, false)
	follower.AddNode(2, true)

	// Drive the leader to term 1, leader role, with a 100-entry log.
	require.NoError(t, leader.becomeVotedCandidate())
	leader.becomeLeader()
	for i := 0; i < 100; i++ {
		_, err := leader.RecvEntry(EntryRequest{ID: EntryID(i + 1), Type: NormalEntry, Data: []byte("x")})
		require.NoError(t, err)
	}
	require.Equal(t, LogIndex(100), leader.CurrentIndex())

	// The follower only knows about the first 50 entries.
	for i := 0; i < 50; i++ {
		e, ok := leader.log.GetAt(LogIndex(i + 1))
		require.True(t, ok)
		_, err := follower.log.Append(follower.host, follower, []Entry{e.Entry})
		require.NoError(t, err)
	}
	require.Equal(t, LogIndex(50), follower.CurrentIndex())

	require.NoError(t, leader.BeginSnapshot(80))
	require.NoError(t, leader.EndSnapshot())
	require.Equal(t, LogIndex(80), leader.log.Base())
	require.Len(t, leaderHost.Applied, 80)

	is := InstallSnapshot{Term: leader.Term(), LastIdx: leader.snapshotLastIndex, LastTerm: leader.snapshotLastTerm}
	resp, err := follower.RecvInstallSnapshot(1, is)
	require.NoError(t, err)
	require.True(t, resp.Complete)
	require.Equal(t, LogIndex(80), resp.LastIdx)

	require.Equal(t, LogIndex(79), follower.log.Base())
	require.Equal(t, LogIndex(80), follower.CommitIndex())
	require.Equal(t, LogIndex(80), follower.LastApplied())

	// Leader can now resume ordinary replication past the snapshot.
	ae, err := follower.RecvAppendEntries(1, AppendEntries{
		Term:         leader.Term(),
		LeaderCommit: LogIndex(81),
		PrevLogIndex: LogIndex(80),
		PrevLogTerm:  leader.snapshotLastTerm,
		Entries:      leader.log.GetFrom(81, 1),
	})
	require.NoError(t, err)
	require.True(t, ae.Success)
	require.Equal(t, LogIndex(81), ae.CurrentIdx)
}

func TestBeginSnapshotRejectsUncommittedIndex(t *testing.T) {
	clock := testutil.NewClock(time.Unix(0, 0))
	net := testutil.NewNetwork()
	s, _ := newTestServer(t, 1, clock, net)
	s.AddNode(1, true)
	require.NoError(t, s.becomeVotedCandidate())
	s.becomeLeader()

	_, err := s.RecvEntry(EntryRequest{ID: 1, Type: NormalEntry})
	require.NoError(t, err)

	require.Error(t, s.BeginSnapshot(s.CurrentIndex()+1))
}
