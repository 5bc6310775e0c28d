package lock

import (
	"sync"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// maxDeadline is returned by the default GetLockTimeoutTime when adding the
// timeout to now would overflow time.Time's range; it stands in for
// "saturate at the maximum representable instant."
var maxDeadline = time.Unix(1<<62/int64(time.Second), 0)

// Locker is the capability interface the manager calls through. The
// exported methods are override points a concrete locker type may
// customize: GetConflict and ClearConflict let an external
// deadlock-detection collaborator inject and dismiss a verdict,
// GetLockTimeoutTime lets a caller's own deadline override the manager's
// default, and NewLockRequest lets a locker attach itself to the requests
// it produces. The manager's wait loop does not call GetConflict or
// ClearConflict: it reads and clears the conflict stored in LockerBase
// through the unexported accessors, so overriding those two methods does
// not change what the manager sees. The unexported methods are
// manager-only bookkeeping; apart from bindManager, manager and the
// monitor lock/unlock pair, they assume the locker's own monitor is held —
// embedding *LockerBase[K] is how a type outside this package satisfies
// them.
type Locker[K comparable] interface {
	// ID returns an identity string used only for logging/debugging.
	ID() string

	// GetConflict returns the verdict an external arbiter has injected for
	// this locker, or nil if none. Must be non-blocking and side-effect-free
	// beyond the locker's own state.
	GetConflict() *LockConflict[K]

	// ClearConflict dismisses a non-deadlock injected conflict.
	ClearConflict()

	// GetLockTimeoutTime returns the absolute deadline a wait beginning at
	// now should use, given the manager's configured default timeout.
	GetLockTimeoutTime(now time.Time, defaultTimeout time.Duration) time.Time

	// NewLockRequest builds the immutable LockRequest this locker will
	// submit for key.
	NewLockRequest(key K, forWrite, upgrade bool) LockRequest[K]

	bindManager(m any) error
	manager() any

	lockMonitor()
	unlockMonitor()
	waitingForLocked() *LockAttemptResult[K]
	setWaitingForLocked(v *LockAttemptResult[K]) error
	getConflictLocked() *LockConflict[K]
	clearConflictLocked()
	waitUntilLocked(deadline time.Time)
	notifyLocked()
	consumeInterruptLocked() bool
}

// LockerBase is the embeddable state every Locker needs: its own monitor,
// the condition variable the wait loop blocks on, the manager it is bound
// to, the attempt it is currently blocked on (if any), and any injected
// conflict. BasicLocker and TransactionLocker both embed it; an external
// package may embed it too to build its own richer Locker subtype.
type LockerBase[K comparable] struct {
	id   string
	mu   deadlock.Mutex
	cond *sync.Cond

	mgr      any // *LockManager[K], boxed to dodge a self-referential generic cycle
	waiting  *LockAttemptResult[K]
	conflict *LockConflict[K]

	timeoutOverride time.Duration
	interrupted     bool
}

// Init must be called once before a LockerBase is used. Concrete
// constructors (NewBasicLocker, NewTransactionLocker) call it so consumers
// never need to.
func (b *LockerBase[K]) Init(id string) {
	b.id = id
	b.cond = sync.NewCond(&b.mu)
}

// ID implements Locker.
func (b *LockerBase[K]) ID() string { return b.id }

// SetTimeout overrides the manager's default timeout for this locker's
// future waits, e.g. so a transaction's own deadline can take precedence
// over the manager-wide default.
func (b *LockerBase[K]) SetTimeout(d time.Duration) {
	b.mu.Lock()
	b.timeoutOverride = d
	b.mu.Unlock()
}

// GetLockTimeoutTime implements Locker's default timeout policy: now plus
// the override if set, else now plus defaultTimeout, saturating rather than
// wrapping on overflow.
func (b *LockerBase[K]) GetLockTimeoutTime(now time.Time, defaultTimeout time.Duration) time.Time {
	b.mu.Lock()
	d := b.timeoutOverride
	b.mu.Unlock()
	if d <= 0 {
		d = defaultTimeout
	}
	t := now.Add(d)
	if t.Before(now) {
		return maxDeadline
	}
	return t
}

// GetConflict implements Locker.
func (b *LockerBase[K]) GetConflict() *LockConflict[K] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conflict
}

// ClearConflict implements Locker.
func (b *LockerBase[K]) ClearConflict() {
	b.mu.Lock()
	b.conflict = nil
	b.mu.Unlock()
}

// InjectConflict is how an external deadlock-detection collaborator
// reports a verdict for this locker. It is the producer side of
// GetConflict/ClearConflict; the manager reads the same stored conflict
// directly while holding the locker monitor, not through those two methods.
func (b *LockerBase[K]) InjectConflict(c *LockConflict[K]) {
	b.mu.Lock()
	b.conflict = c
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Interrupt wakes a blocked WaitForLock with a transient INTERRUPTED
// signal. Go goroutines have no OS-level interrupt, so a caller (typically
// a context.Context watcher goroutine) calls Interrupt explicitly instead.
// Unlike InjectConflict, this never sets a conflict: the wait loop only
// logs the event and re-evaluates grant/deadlock/timeout, so an
// interrupted locker that has meanwhile become an owner still returns
// success.
func (b *LockerBase[K]) Interrupt() {
	b.mu.Lock()
	b.interrupted = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// consumeInterruptLocked reports and clears whether Interrupt has fired
// since the last check, for the wait loop's transient logging.
func (b *LockerBase[K]) consumeInterruptLocked() bool {
	v := b.interrupted
	b.interrupted = false
	return v
}

// newLockRequest is the shared constructor concrete Locker types call
// through their own NewLockRequest, passing themselves as self so the
// produced LockRequest carries the correct dynamic Locker identity.
func (b *LockerBase[K]) newLockRequest(self Locker[K], key K, forWrite, upgrade bool) LockRequest[K] {
	return LockRequest[K]{Locker: self, Key: key, ForWrite: forWrite, Upgrade: upgrade}
}

func (b *LockerBase[K]) bindManager(m any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mgr == nil {
		b.mgr = m
		return nil
	}
	if b.mgr != m {
		return ErrWrongManager
	}
	return nil
}

func (b *LockerBase[K]) manager() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mgr
}

func (b *LockerBase[K]) lockMonitor() {
	b.mu.Lock()
	disciplineAcquire(monitorLocker)
}

func (b *LockerBase[K]) unlockMonitor() {
	disciplineRelease(monitorLocker)
	b.mu.Unlock()
}

// waitingForLocked, setWaitingForLocked, getConflictLocked, clearConflictLocked,
// waitUntilLocked, and notifyLocked all assume the caller already holds the
// locker monitor via lockMonitor.

func (b *LockerBase[K]) waitingForLocked() *LockAttemptResult[K] {
	return b.waiting
}

func (b *LockerBase[K]) setWaitingForLocked(v *LockAttemptResult[K]) error {
	if v != nil && v.Conflict == nil {
		return ErrInvalidConflict
	}
	b.waiting = v
	return nil
}

func (b *LockerBase[K]) getConflictLocked() *LockConflict[K] {
	return b.conflict
}

func (b *LockerBase[K]) clearConflictLocked() {
	b.conflict = nil
}

// waitUntilLocked blocks on the locker's condition until either another
// goroutine broadcasts it (notifyLocked on a new-owner grant, InjectConflict,
// or Interrupt) or deadline arrives. sync.Cond has no built-in deadline, so a timer is armed
// to broadcast at deadline and disarmed on the way out — the Go rendition
// of a condition variable with an absolute wake time.
func (b *LockerBase[K]) waitUntilLocked(deadline time.Time) {
	timer := time.AfterFunc(time.Until(deadline), func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	b.cond.Wait()
	timer.Stop()
}

func (b *LockerBase[K]) notifyLocked() {
	b.cond.Broadcast()
}
