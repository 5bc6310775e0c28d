package lock

import (
	"fmt"
	"sync"
)

// TransactionState is the lifecycle of a TransactionLocker: a transaction
// is a locker that remembers what it owns so it can release everything at
// once.
type TransactionState int

const (
	// TransactionActive indicates the transaction may still acquire locks.
	TransactionActive TransactionState = iota
	// TransactionCommitted indicates the transaction ended successfully; its
	// locks have been released.
	TransactionCommitted
	// TransactionAborted indicates the transaction ended by rollback; its
	// locks have been released.
	TransactionAborted
)

func (s TransactionState) String() string {
	switch s {
	case TransactionActive:
		return "ACTIVE"
	case TransactionCommitted:
		return "COMMITTED"
	case TransactionAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// TransactionLocker is a Locker that tracks every key it comes to own, so
// Commit/Abort can release them all in one call without the caller having
// to remember its own read/write sets.
type TransactionLocker[K comparable] struct {
	LockerBase[K]

	stateMu sync.Mutex
	state   TransactionState
	owned   map[K]bool // true if held for write
}

// NewTransactionLocker builds a TransactionLocker identified by id (e.g. a
// uuid string from the caller). The locker starts Active and unbound from
// any manager; it binds to whichever LockManager first calls Lock on it.
func NewTransactionLocker[K comparable](id string) *TransactionLocker[K] {
	t := &TransactionLocker[K]{
		state: TransactionActive,
		owned: make(map[K]bool),
	}
	t.Init(id)
	return t
}

// NewLockRequest implements Locker; it delegates to LockerBase but passes t
// itself as the dynamic owner so the produced LockRequest.Locker compares
// equal to t rather than to the embedded base.
func (t *TransactionLocker[K]) NewLockRequest(key K, forWrite, upgrade bool) LockRequest[K] {
	return t.newLockRequest(t, key, forWrite, upgrade)
}

// State returns the transaction's current lifecycle state.
func (t *TransactionLocker[K]) State() TransactionState {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.state
}

// Track records that the transaction now owns key in the given mode. Lock
// (below) calls this automatically; it is exported so a caller driving
// LockManager.Lock/WaitForLock directly can keep the read/write set
// accurate too.
func (t *TransactionLocker[K]) Track(key K, forWrite bool) {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	t.owned[key] = forWrite
}

// OwnedKeys returns a snapshot of the keys this transaction currently
// believes it owns, and whether each is held for write.
func (t *TransactionLocker[K]) OwnedKeys() map[K]bool {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	out := make(map[K]bool, len(t.owned))
	for k, w := range t.owned {
		out[k] = w
	}
	return out
}

// Lock is a convenience wrapper around LockManager.Lock that records
// successful grants in the transaction's owned set automatically.
func (t *TransactionLocker[K]) Lock(m *LockManager[K], key K, forWrite bool) (*LockConflict[K], error) {
	if t.State() != TransactionActive {
		return nil, ErrTransactionNotActive
	}
	conflict, err := m.Lock(t, key, forWrite)
	if err != nil {
		return conflict, err
	}
	if conflict != nil {
		// A Deadlock verdict can be reported for a wait whose grant already
		// landed; that lock stays held, so track it for ReleaseAll.
		if conflict.Type == Deadlock {
			for _, o := range m.GetOwners(key) {
				if o.Locker == t {
					t.Track(key, o.ForWrite)
				}
			}
		}
		return conflict, nil
	}
	t.Track(key, forWrite)
	return nil, nil
}

// ReleaseAll releases every key the transaction is tracked as owning,
// against manager m, and clears the tracked set. Safe to call more than
// once; the second call is a no-op.
func (t *TransactionLocker[K]) ReleaseAll(m *LockManager[K]) {
	t.stateMu.Lock()
	keys := make([]K, 0, len(t.owned))
	for k := range t.owned {
		keys = append(keys, k)
	}
	t.owned = make(map[K]bool)
	t.stateMu.Unlock()

	for _, k := range keys {
		m.ReleaseLock(t, k)
	}
}

// Commit transitions the transaction to Committed and releases all of its
// locks against m. It returns ErrTransactionAlreadyCommitted or
// ErrTransactionAlreadyAborted if called more than once.
func (t *TransactionLocker[K]) Commit(m *LockManager[K]) error {
	t.stateMu.Lock()
	switch t.state {
	case TransactionCommitted:
		t.stateMu.Unlock()
		return ErrTransactionAlreadyCommitted
	case TransactionAborted:
		t.stateMu.Unlock()
		return ErrTransactionAlreadyAborted
	}
	t.state = TransactionCommitted
	t.stateMu.Unlock()

	t.ReleaseAll(m)
	return nil
}

// Abort transitions the transaction to Aborted and releases all of its
// locks against m. Aborting an already-committed transaction is an error;
// aborting an already-aborted one is a no-op, so rollback paths may call
// it without tracking whether an earlier error handler got there first.
func (t *TransactionLocker[K]) Abort(m *LockManager[K]) error {
	t.stateMu.Lock()
	switch t.state {
	case TransactionAborted:
		t.stateMu.Unlock()
		return nil
	case TransactionCommitted:
		t.stateMu.Unlock()
		return ErrTransactionAlreadyCommitted
	}
	t.state = TransactionAborted
	t.stateMu.Unlock()

	t.ReleaseAll(m)
	return nil
}

// String implements fmt.Stringer for logging/debugging convenience.
func (t *TransactionLocker[K]) String() string {
	return fmt.Sprintf("txn:%s[%s]", t.ID(), t.State())
}
