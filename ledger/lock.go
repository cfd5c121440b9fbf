package ledger

import "sync"

// =============================================================================
// PER-ACCOUNT LOCKS - Serializes ledger writes against one account
// =============================================================================

// accountLocks hands out one mutex per account so concurrent ledger
// operations on the same balance cannot interleave their read-then-write.
// Store-level locking (SQLite single writer, Postgres FOR UPDATE) still
// applies underneath; this guard makes the serialization explicit in the
// engine regardless of which store backs it.
type accountLocks struct {
	mu    sync.Mutex
	locks map[AccountID]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[AccountID]*sync.Mutex)}
}

// Lock acquires the mutex for the account, creating it on first use.
// Returns the unlock function.
func (l *accountLocks) Lock(id AccountID) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
