// Package testutil provides a deterministic, in-memory Host
// implementation and a synchronous, single-goroutine network for
// exercising the engine's own test suite: a manual Clock and Rand in
// place of wall-clock time and crypto/math randomness, and a Network
// that wires multiple Hosts together by calling directly into each
// other's Server instead of going over a socket.
package testutil

import (
	"math/rand"
	"sync"
	"time"

	"github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/pkg/errors"

	"github.com/daos-stack/raft"
)

// Clock is a manually-advanced, monotone-by-construction time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock starting at start.
func NewClock(start time.Time) *Clock { return &Clock{now: start} }

// Now returns the clock's current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. d must not be negative.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Rand is a seeded, deterministic stand-in for Host.Rand.
type Rand struct {
	mu  sync.Mutex
	src *rand.Rand
}

// NewRand returns a Rand seeded with seed, reproducible across runs.
func NewRand(seed int64) *Rand { return &Rand{src: rand.New(rand.NewSource(seed))} }

// Float64 returns a uniform float64 in [0, 1).
func (r *Rand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float64()
}

var msgpackHandle = &codec.MsgpackHandle{}

// EncodeNodeID marshals a NodeID as a configuration-change entry's Data
// payload, msgpack-encoded the way a production host would encode its
// log contents for storage.
func EncodeNodeID(id raft.NodeID) []byte {
	var buf []byte
	if err := codec.NewEncoderBytes(&buf, msgpackHandle).Encode(uint64(id)); err != nil {
		panic(err)
	}
	return buf
}

// decodeNodeID is EncodeNodeID's inverse.
func decodeNodeID(data []byte) raft.NodeID {
	var v uint64
	if len(data) == 0 {
		return raft.NoNode
	}
	if err := codec.NewDecoderBytes(data, msgpackHandle).Decode(&v); err != nil {
		return raft.NoNode
	}
	return raft.NodeID(v)
}

// MembershipEventRecord is one call Host.NotifyMembershipEvent made.
type MembershipEventRecord struct {
	Node  raft.NodeID
	Entry raft.IndexedEntry
	Kind  raft.MembershipEvent
}

// LogLine is one call Host.Log made.
type LogLine struct {
	Node    raft.NodeID
	Level   raft.LogLevel
	Message string
}

// Host is a single node's in-memory implementation of raft.Host: log
// storage, stable storage, and a snapshot store are all plain fields,
// and transport fans out through a shared Network.
type Host struct {
	ID    raft.NodeID
	Clock *Clock
	RandSrc *Rand
	Net   *Network

	self *raft.Server

	mu sync.Mutex

	CurrentTerm raft.Term
	VotedFor    raft.NodeID

	entries []raft.IndexedEntry // index 0 corresponds to logical index base+1
	base    raft.LogIndex

	Applied           []raft.IndexedEntry
	MembershipEvents  []MembershipEventRecord
	SufficientLogs    map[raft.NodeID]bool
	Lines             []LogLine
	SnapshotLastIndex raft.LogIndex
	SnapshotLastTerm  raft.Term
}

// NewHost constructs a Host for id. SetServer must be called once the
// corresponding *raft.Server exists, before the Host is driven.
func NewHost(id raft.NodeID, clock *Clock, rnd *Rand, net *Network) *Host {
	h := &Host{
		ID:             id,
		Clock:          clock,
		RandSrc:        rnd,
		Net:            net,
		VotedFor:       raft.NoNode,
		SufficientLogs: make(map[raft.NodeID]bool),
	}
	net.register(id, h)
	return h
}

// SetServer completes construction: a Host is created before its
// Server (NewServer needs a Host), so the back-reference is wired in
// afterward.
func (h *Host) SetServer(s *raft.Server) { h.self = s }

// --- transport ---

func (h *Host) SendRequestVote(node raft.NodeID, msg raft.RequestVote) error {
	return h.Net.sendRequestVote(h.ID, node, msg)
}

func (h *Host) SendAppendEntries(node raft.NodeID, msg raft.AppendEntries) error {
	return h.Net.sendAppendEntries(h.ID, node, msg)
}

func (h *Host) SendInstallSnapshot(node raft.NodeID, msg raft.InstallSnapshot) error {
	return h.Net.sendInstallSnapshot(h.ID, node, msg)
}

// --- snapshot transfer (follower side) ---

// RecvInstallSnapshot completes the transfer immediately: the payload
// itself isn't modeled, so there is nothing to stream in chunks.
func (h *Host) RecvInstallSnapshot(node raft.NodeID, msg raft.InstallSnapshot) (raft.InstallSnapshotStatus, error) {
	return raft.SnapshotComplete, nil
}

func (h *Host) RecvInstallSnapshotResponse(node raft.NodeID, resp raft.InstallSnapshotResponse) error {
	return nil
}

// --- application ---

func (h *Host) ApplyLog(entry raft.IndexedEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Applied = append(h.Applied, entry)
	return nil
}

// --- durable state ---

func (h *Host) PersistVote(nodeID raft.NodeID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.VotedFor = nodeID
	return nil
}

func (h *Host) PersistTerm(term raft.Term) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if term < h.CurrentTerm {
		return errors.Errorf("testutil: persist_term(%d) regresses from %d", term, h.CurrentTerm)
	}
	h.CurrentTerm = term
	return nil
}

// --- log storage ---

func (h *Host) LogOffer(entries []raft.IndexedEntry) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entries...)
	return len(entries), nil
}

func (h *Host) LogPoll(entries []raft.IndexedEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(entries) > len(h.entries) {
		return errors.New("testutil: log_poll batch exceeds stored log")
	}
	h.entries = h.entries[len(entries):]
	h.base += raft.LogIndex(len(entries))
	return nil
}

func (h *Host) LogPop(entries []raft.IndexedEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(entries) > len(h.entries) {
		return errors.New("testutil: log_pop batch exceeds stored log")
	}
	h.entries = h.entries[:len(h.entries)-len(entries)]
	return nil
}

func (h *Host) LogGetNodeID(entry raft.Entry) raft.NodeID {
	return decodeNodeID(entry.Data)
}

// --- membership ---

func (h *Host) NodeHasSufficientLogs(node raft.NodeID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.SufficientLogs[node] = true
	return nil
}

func (h *Host) NotifyMembershipEvent(node raft.NodeID, entry raft.IndexedEntry, kind raft.MembershipEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.MembershipEvents = append(h.MembershipEvents, MembershipEventRecord{Node: node, Entry: entry, Kind: kind})
}

// --- capabilities ---

func (h *Host) Now() time.Time { return h.Clock.Now() }
func (h *Host) Rand() float64 { return h.RandSrc.Float64() }

func (h *Host) Log(node raft.NodeID, level raft.LogLevel, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Lines = append(h.Lines, LogLine{Node: node, Level: level, Message: message})
}
