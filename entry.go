package raft

// Entry is a single, immutable-once-appended record in the replicated
// log. index is not stored on the Entry itself; it is implied by the
// Entry's position in the Log (see log.go) and assigned on append.
type Entry struct {
	Term Term
	ID   EntryID
	Type EntryType
	Data []byte
}

// IndexedEntry pairs an Entry with the log position it occupies. Host
// upcalls that need to know "where" an entry lives (log_offer, log_poll,
// log_pop, applylog) receive this, not a bare Entry.
type IndexedEntry struct {
	Entry
	Index LogIndex
}
