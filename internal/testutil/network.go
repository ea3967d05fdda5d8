package testutil

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/daos-stack/raft"
)

// Network is a synchronous, in-process transport connecting a set of
// Hosts: a Send* call on one Host's engine turns directly into a Recv*
// call on the target's engine and, for responses, a Recv*Response call
// back on the source's, with no goroutines or channels involved. This
// matches the engine's single-threaded, re-entrancy-free contract
// instead of modeling real concurrency.
type Network struct {
	mu        sync.Mutex
	hosts     map[raft.NodeID]*Host
	partition map[raft.NodeID]bool
}

// NewNetwork returns an empty Network with no partitions.
func NewNetwork() *Network {
	return &Network{
		hosts:     make(map[raft.NodeID]*Host),
		partition: make(map[raft.NodeID]bool),
	}
}

func (n *Network) register(id raft.NodeID, h *Host) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hosts[id] = h
}

// Partition isolates id: messages to or from it are silently dropped,
// simulating a network partition.
func (n *Network) Partition(id raft.NodeID, isolated bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.partition[id] = isolated
}

func (n *Network) reachable(a, b raft.NodeID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.partition[a] && !n.partition[b]
}

func (n *Network) target(id raft.NodeID) (*Host, error) {
	n.mu.Lock()
	h, ok := n.hosts[id]
	n.mu.Unlock()
	if !ok {
		return nil, errors.Errorf("testutil: unknown node %d", id)
	}
	return h, nil
}

func (n *Network) sendRequestVote(from, to raft.NodeID, msg raft.RequestVote) error {
	if !n.reachable(from, to) {
		return nil
	}
	dst, err := n.target(to)
	if err != nil {
		return err
	}
	resp, err := dst.self.RecvRequestVote(from, msg)
	if err != nil && !errors.Is(err, raft.ErrMightViolateLease) {
		return err
	}
	if !n.reachable(from, to) {
		return nil
	}
	src, err := n.target(from)
	if err != nil {
		return err
	}
	return src.self.RecvRequestVoteResponse(to, resp)
}

func (n *Network) sendAppendEntries(from, to raft.NodeID, msg raft.AppendEntries) error {
	if !n.reachable(from, to) {
		return nil
	}
	dst, err := n.target(to)
	if err != nil {
		return err
	}
	resp, err := dst.self.RecvAppendEntries(from, msg)
	if err != nil {
		return err
	}
	if !n.reachable(from, to) {
		return nil
	}
	src, err := n.target(from)
	if err != nil {
		return err
	}
	return src.self.RecvAppendEntriesResponse(to, resp)
}

func (n *Network) sendInstallSnapshot(from, to raft.NodeID, msg raft.InstallSnapshot) error {
	if !n.reachable(from, to) {
		return nil
	}
	dst, err := n.target(to)
	if err != nil {
		return err
	}
	resp, err := dst.self.RecvInstallSnapshot(from, msg)
	if err != nil {
		return err
	}
	if !n.reachable(from, to) {
		return nil
	}
	src, err := n.target(from)
	if err != nil {
		return err
	}
	return src.self.RecvInstallSnapshotResponse(to, resp)
}
