package raft

// NodeTable is the engine's set of known cluster members, keyed by
// NodeID. Mutations happen two ways: bootstrap, before the engine is
// driven at all (AddNode/AddNonVotingNode/RemoveNode called directly by
// the host), and log-identity-tied mutation as configuration-change
// entries are appended or truncated (see Server.offerLog/popLog, which
// implement membershipHook by calling the methods below).
type NodeTable struct {
	nodes map[NodeID]*Node
	self  NodeID
}

func newNodeTable() *NodeTable {
	return &NodeTable{nodes: make(map[NodeID]*Node)}
}

func (t *NodeTable) Get(id NodeID) *Node { return t.nodes[id] }

func (t *NodeTable) Self() *Node {
	if t.self == NoNode {
		return nil
	}
	return t.nodes[t.self]
}

// AddNode adds id as a voting member. isSelf marks this as the local
// server's own identity.
func (t *NodeTable) AddNode(id NodeID, isSelf bool) *Node {
	n := &Node{id: id, isSelf: isSelf, isVoting: true, nextIdx: 1}
	t.nodes[id] = n
	if isSelf {
		t.self = id
	}
	return n
}

// AddNonVotingNode adds id as a non-voting (catching-up) member.
func (t *NodeTable) AddNonVotingNode(id NodeID, isSelf bool) *Node {
	n := &Node{id: id, isSelf: isSelf, isVoting: false, nextIdx: 1}
	t.nodes[id] = n
	if isSelf {
		t.self = id
	}
	return n
}

func (t *NodeTable) RemoveNode(id NodeID) {
	delete(t.nodes, id)
}

func (t *NodeTable) Promote(id NodeID) {
	if n, ok := t.nodes[id]; ok {
		n.isVoting = true
	}
}

func (t *NodeTable) Demote(id NodeID) {
	if n, ok := t.nodes[id]; ok {
		n.isVoting = false
	}
}

// Each calls fn once per node in an unspecified order; fn must not
// mutate the table.
func (t *NodeTable) Each(fn func(*Node)) {
	for _, n := range t.nodes {
		fn(n)
	}
}

func (t *NodeTable) NumVoting() int {
	n := 0
	t.Each(func(node *Node) {
		if node.isVoting {
			n++
		}
	})
	return n
}

// majorityHave reports whether a majority of voting nodes satisfy pred.
func (t *NodeTable) majorityHave(pred func(*Node) bool) bool {
	total := t.NumVoting()
	if total == 0 {
		return false
	}
	have := 0
	t.Each(func(node *Node) {
		if node.isVoting && pred(node) {
			have++
		}
	})
	return have*2 > total
}

// configChangeValidity enforces the validity matrix for single-step
// configuration changes: ADD_* requires absence; PROMOTE requires
// non-voting presence; DEMOTE and REMOVE_VOTING require voting
// presence; REMOVE_NONVOTING requires non-voting presence.
func (t *NodeTable) configChangeValidity(typ EntryType, target NodeID) error {
	existing, present := t.nodes[target]
	switch typ {
	case AddNonvoting, AddVoting:
		if present {
			return ErrInvalidConfigChange
		}
	case Promote:
		if !present || existing.isVoting {
			return ErrInvalidConfigChange
		}
	case Demote, RemoveVoting:
		if !present || !existing.isVoting {
			return ErrInvalidConfigChange
		}
	case RemoveNonvoting:
		if !present || existing.isVoting {
			return ErrInvalidConfigChange
		}
	default:
		// Not a configuration-change type; nothing to validate.
	}
	return nil
}

// applyConfigChange performs the node-table mutation a committed (or
// just-appended, per offer_log) configuration-change entry implies.
func (t *NodeTable) applyConfigChange(typ EntryType, target NodeID) {
	switch typ {
	case AddNonvoting:
		t.AddNonVotingNode(target, target == t.self)
	case AddVoting:
		t.AddNode(target, target == t.self)
	case Promote:
		t.Promote(target)
	case Demote:
		t.Demote(target)
	case RemoveVoting, RemoveNonvoting:
		t.RemoveNode(target)
	}
}

// revertConfigChange undoes applyConfigChange, for pop_log unwinding a
// truncated entry: it reconstructs the node's prior membership state
// (present/absent, voting/non-voting) by applying the inverse mutation
// for typ. It does not restore replication bookkeeping (nextIdx,
// matchIdx, lease) an undone REMOVE_VOTING/REMOVE_NONVOTING entry's
// node had before removal, since offer_log only ever appends one
// configuration-change entry against a target already absent or
// already present in the shape the validity matrix requires; a
// reverted RemoveVoting/RemoveNonvoting node reappears as freshly
// bootstrapped, not with its pre-removal replication state.
func (t *NodeTable) revertConfigChange(typ EntryType, target NodeID) {
	switch typ {
	case AddNonvoting, AddVoting:
		t.RemoveNode(target)
	case Promote:
		t.Demote(target)
	case Demote:
		t.Promote(target)
	case RemoveVoting:
		t.AddNode(target, target == t.self)
	case RemoveNonvoting:
		t.AddNonVotingNode(target, target == t.self)
	}
}
