package raft

import "github.com/pkg/errors"

// membershipHook lets Log tell the node table about entries as they
// become part of (or are reverted out of) the log: every membership
// mutation other than bootstrap happens inside offer_log/pop_log as log
// entries are appended or truncated.
type membershipHook interface {
	offerLog(e IndexedEntry)
	popLog(e IndexedEntry)
}

// Log is the replicated log: a growable ring buffer over entries
// (base, base+count]. base is the index of the last entry covered by
// the latest snapshot prefix; it advances via PollTo and is reset by
// LoadFromSnapshot.
//
// The backing array is grown by doubling, and every host-facing batch
// (Append/Truncate/Poll) is split at the ring's wrap point so a host
// callback always receives a slice that is contiguous in the backing
// array — never one stitched across the wrap.
type Log struct {
	ring      []IndexedEntry
	ringStart int // slot holding logical index base+1, meaningless when count == 0
	count     int

	base     LogIndex
	baseTerm Term
}

// NewLog returns an empty Log with base 0, base term 0.
func NewLog() *Log {
	return &Log{ring: make([]IndexedEntry, 8)}
}

func (l *Log) Base() LogIndex      { return l.base }
func (l *Log) BaseTerm() Term      { return l.baseTerm }
func (l *Log) Count() int          { return l.count }
func (l *Log) CurrentIdx() LogIndex { return l.base + LogIndex(l.count) }

// CurrentTerm returns the term of the last entry, or BaseTerm if the
// log holds no entries beyond the snapshot prefix.
func (l *Log) CurrentTerm() Term {
	if l.count == 0 {
		return l.baseTerm
	}
	e, _ := l.GetAt(l.CurrentIdx())
	return e.Term
}

// Clear empties the log without touching base/baseTerm.
func (l *Log) Clear() {
	l.ring = make([]IndexedEntry, 8)
	l.ringStart = 0
	l.count = 0
}

// LoadFromSnapshot resets the log to represent "everything up to and
// including (idx, term) is covered by a snapshot, nothing beyond it is
// known": the log is cleared and seeded with a single NoopSnapshot
// entry at (idx, term). Afterward CurrentIdx() == idx, Base() == idx-1
// and BaseTerm() == term. No host log callback is invoked.
func (l *Log) LoadFromSnapshot(idx LogIndex, term Term) {
	l.Clear()
	l.base = idx - 1
	l.baseTerm = term
	l.ring[0] = IndexedEntry{Entry: Entry{Term: term, Type: NoopSnapshot}, Index: idx}
	l.count = 1
}

func (l *Log) slot(idx LogIndex) int {
	offset := int(idx - l.base - 1)
	return (l.ringStart + offset) % len(l.ring)
}

func (l *Log) ensureCapacity(need int) error {
	if need <= len(l.ring) {
		return nil
	}
	newCap := len(l.ring)
	if newCap == 0 {
		newCap = 8
	}
	for newCap < need {
		newCap *= 2
	}
	fresh := make([]IndexedEntry, newCap)
	for i := 0; i < l.count; i++ {
		fresh[i] = l.ring[(l.ringStart+i)%len(l.ring)]
	}
	l.ring = fresh
	l.ringStart = 0
	return nil
}

// contiguousFrom returns a slice, contiguous in the backing array, of
// up to maxN entries starting at logical index idx. It never crosses
// the ring's wrap point, so callers must loop until they've covered the
// whole range they want.
func (l *Log) contiguousFrom(idx LogIndex, maxN int) []IndexedEntry {
	if maxN <= 0 {
		return nil
	}
	start := l.slot(idx)
	untilWrap := len(l.ring) - start
	n := maxN
	if untilWrap < n {
		n = untilWrap
	}
	return l.ring[start : start+n]
}

// Append reserves the next len(entries) indices, copies them into the
// ring, and offers them to host and membership one contiguous batch at
// a time. A host that shortens a batch's accepted count causes Append
// to stop there (per-batch atomicity; offers must stay in increasing
// index order): the return value is the number of entries actually
// appended, which may be less than len(entries).
func (l *Log) Append(host Host, hook membershipHook, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	if err := l.ensureCapacity(l.count + len(entries)); err != nil {
		return 0, ErrNoMem
	}
	start := l.CurrentIdx() + 1
	for i, e := range entries {
		idx := start + LogIndex(i)
		l.ring[l.slot(idx)] = IndexedEntry{Entry: e, Index: idx}
	}

	accepted := 0
	for accepted < len(entries) {
		batch := l.contiguousFrom(start+LogIndex(accepted), len(entries)-accepted)
		if len(batch) == 0 {
			break
		}
		n, err := host.LogOffer(batch)
		if n < 0 {
			n = 0
		}
		if n > len(batch) {
			n = len(batch)
		}
		for _, ie := range batch[:n] {
			hook.offerLog(ie)
		}
		accepted += n
		l.count += n
		if err != nil {
			return accepted, wrapf(err, "raft: log_offer")
		}
		if n < len(batch) {
			break
		}
	}
	return accepted, nil
}

// TruncateFrom removes entries with index >= idx from the tail, in
// reverse order, reporting each contiguous batch to host.LogPop (right
// the previous wrap segment first) and reversing their membership
// side effects via hook.popLog, called entry-by-entry in strict reverse
// of the order Append originally offered them.
//
// Batches are derived from the *current* ring geometry, not by
// indexing entries[back-1-k] against a stale wrap boundary — that
// expression underflows for some wrap positions (see design notes open
// question); deriving the slot from idx via Log.slot keeps this correct
// regardless of where the ring has wrapped.
func (l *Log) TruncateFrom(host Host, hook membershipHook, idx LogIndex) error {
	if idx <= l.base || idx > l.CurrentIdx() {
		return errors.Errorf("raft: truncate_from(%d) out of window (base=%d, current=%d)", idx, l.base, l.CurrentIdx())
	}

	last := l.CurrentIdx()
	for last >= idx {
		// Find the contiguous-in-memory run ending at `last`, bounded
		// below by idx and by the ring's wrap point.
		segEnd := last
		segStartSlotOfEnd := l.slot(segEnd)
		runLen := 1
		for LogIndex(runLen) < segEnd-idx+1 {
			prevSlot := segStartSlotOfEnd - runLen
			if prevSlot < 0 {
				break // would cross the wrap going backwards
			}
			runLen++
		}
		segStart := segEnd - LogIndex(runLen) + 1
		batch := l.ring[l.slot(segStart) : l.slot(segStart)+runLen]

		if err := host.LogPop(batch); err != nil {
			return wrapf(err, "raft: log_pop")
		}
		for i := len(batch) - 1; i >= 0; i-- {
			hook.popLog(batch[i])
		}
		l.count -= runLen
		last = segStart - 1
	}
	return nil
}

// PollTo removes the prefix (base, idx] from the head, advancing base
// to idx, reporting each contiguous batch to host.LogPoll in strictly
// increasing index order.
func (l *Log) PollTo(host Host, idx LogIndex) error {
	if idx <= l.base || idx > l.CurrentIdx() {
		return errors.Errorf("raft: poll_to(%d) out of window (base=%d, current=%d)", idx, l.base, l.CurrentIdx())
	}
	newBaseTerm := l.ring[l.slot(idx)].Term

	start := l.base + 1
	for start <= idx {
		batch := l.contiguousFrom(start, int(idx-start+1))
		if len(batch) == 0 {
			break
		}
		if err := host.LogPoll(batch); err != nil {
			return wrapf(err, "raft: log_poll")
		}
		start += LogIndex(len(batch))
	}
	removed := int(idx - l.base)
	l.ringStart = (l.ringStart + removed) % len(l.ring)
	l.count -= removed
	l.base = idx
	l.baseTerm = newBaseTerm
	return nil
}

// GetAt returns the entry at idx, or ok == false if idx is outside the
// current window (base, base+count].
func (l *Log) GetAt(idx LogIndex) (IndexedEntry, bool) {
	if idx <= l.base || idx > l.CurrentIdx() {
		return IndexedEntry{}, false
	}
	return l.ring[l.slot(idx)], true
}

// GetFrom returns a contiguous-in-memory run of entries starting at
// idx. Callers that need entries beyond the returned run must call
// again with idx advanced past it.
func (l *Log) GetFrom(idx LogIndex, maxN int) []IndexedEntry {
	if idx <= l.base || idx > l.CurrentIdx() {
		return nil
	}
	avail := int(l.CurrentIdx() - idx + 1)
	if maxN > avail {
		maxN = avail
	}
	return l.contiguousFrom(idx, maxN)
}

// PeekTail returns the last entry in the log, or ok == false if empty.
func (l *Log) PeekTail() (IndexedEntry, bool) {
	return l.GetAt(l.CurrentIdx())
}
