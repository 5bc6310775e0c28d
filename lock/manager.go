package lock

import (
	"time"

	"go.uber.org/zap"
)

// LockManager mediates concurrent access to a dynamic universe of keys. It
// owns a fixed number of independent key->Lock shards; operations on
// disjoint shards never contend.
type LockManager[K comparable] struct {
	defaultTimeout time.Duration
	shards         []*shardT[K]
	hasher         KeyHasher[K]
	logger         *zap.Logger
}

// Option configures a LockManager at construction time.
type Option[K comparable] func(*LockManager[K])

// WithHasher overrides the default xxh3-backed shard hash with one the
// caller knows is cheaper for their concrete K (an integer RID, say).
func WithHasher[K comparable](h KeyHasher[K]) Option[K] {
	return func(m *LockManager[K]) { m.hasher = h }
}

// WithLogger attaches a *zap.Logger the manager will emit coarse (request
// start/complete, release) and fine (initial attempt, new-owner
// notification, per-wait result) events to. The default is zap.NewNop, so
// a caller who doesn't configure one pays nothing for logging.
func WithLogger[K comparable](z *zap.Logger) Option[K] {
	return func(m *LockManager[K]) { m.logger = z }
}

// NewLockManager constructs a manager with numShards independent shards and
// defaultTimeout as the absolute-deadline fallback for waits whose locker
// does not override GetLockTimeoutTime.
func NewLockManager[K comparable](defaultTimeout time.Duration, numShards int, opts ...Option[K]) (*LockManager[K], error) {
	if defaultTimeout <= 0 {
		return nil, ErrInvalidTimeout
	}
	if numShards <= 0 {
		return nil, ErrInvalidShardCount
	}

	m := &LockManager[K]{
		defaultTimeout: defaultTimeout,
		shards:         make([]*shardT[K], numShards),
		hasher:         defaultHasher[K](),
		logger:         zap.NewNop(),
	}
	for i := range m.shards {
		m.shards[i] = newShard[K]()
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *LockManager[K]) shardFor(key K) *shardT[K] {
	h := m.hasher(key)
	return m.shards[h%uint64(len(m.shards))]
}

func (m *LockManager[K]) bindLocker(locker Locker[K]) error {
	return locker.bindManager(m)
}

// Lock attempts to grant locker a lock of the requested mode on key,
// blocking until either the grant succeeds, the wait times out, a deadlock
// is reported, or an upgrade's base lock is denied. A nil return means the
// lock was acquired.
func (m *LockManager[K]) Lock(locker Locker[K], key K, forWrite bool) (*LockConflict[K], error) {
	conflict, err := m.LockNoWait(locker, key, forWrite)
	if err != nil || conflict == nil {
		return conflict, err
	}
	if conflict.Type != Blocked {
		// A sticky injected conflict (typically Deadlock) short-circuited
		// LockNoWait before it ever queued a waiter, so locker isn't
		// actually waiting — calling WaitForLock would just see a nil
		// waitingFor and report success, losing the verdict entirely.
		return conflict, nil
	}
	return m.WaitForLock(locker), nil
}

// LockNoWait never blocks. If the grant cannot be made immediately it
// returns a Blocked conflict and leaves locker waiting — the caller must
// subsequently call WaitForLock to resolve it.
func (m *LockManager[K]) LockNoWait(locker Locker[K], key K, forWrite bool) (*LockConflict[K], error) {
	start := time.Now()
	if err := m.bindLocker(locker); err != nil {
		return nil, err
	}

	locker.lockMonitor()
	if locker.waitingForLocked() != nil {
		locker.unlockMonitor()
		return nil, ErrAlreadyWaiting
	}
	if sticky := locker.getConflictLocked(); sticky != nil {
		locker.unlockMonitor()
		m.logFine("lock attempt", locker, key, forWrite, time.Since(start), sticky.Type.String())
		return sticky, nil
	}
	locker.unlockMonitor()

	sh := m.shardFor(key)
	sh.lock()
	st := sh.getOrCreate(key)
	attempt := st.requestLock(locker, forWrite)
	if attempt.Conflict == nil {
		sh.unlock()
		m.logFine("lock attempt", locker, key, forWrite, time.Since(start), "GRANTED")
		m.logCoarse("request complete", locker, key, forWrite, time.Since(start), "GRANTED")
		return nil, nil
	}
	sh.unlock()

	locker.lockMonitor()
	_ = locker.setWaitingForLocked(&LockAttemptResult[K]{
		Request:      attempt.Request,
		Conflict:     attempt.Conflict,
		ConflictType: Blocked,
	})
	locker.unlockMonitor()

	conflict := &LockConflict[K]{Type: Blocked, ConflictingRequest: attempt.Conflict}
	m.logFine("lock attempt", locker, key, forWrite, time.Since(start), "BLOCKED")
	m.logCoarse("request start", locker, key, forWrite, time.Since(start), "BLOCKED")
	return conflict, nil
}

// WaitForLock resolves a pending blocked attempt previously recorded by
// LockNoWait. It returns nil immediately if locker isn't currently waiting.
//
// This is the one routine allowed to hold both a locker-monitor and a
// shard-monitor at once: it always takes the locker-monitor first,
// matching the ordering the whole package's synchronization discipline
// assumes.
func (m *LockManager[K]) WaitForLock(locker Locker[K]) *LockConflict[K] {
	start := time.Now()
	// The deadline is fixed at wait start. Recomputing it on each wake would
	// push it forward by a full timeout every time, so the wait could never
	// actually time out. Computed before the monitor is taken: the default
	// GetLockTimeoutTime locks the locker's own mutex.
	deadline := locker.GetLockTimeoutTime(start, m.defaultTimeout)
	for {
		locker.lockMonitor()
		attempt := locker.waitingForLocked()
		if attempt == nil {
			locker.unlockMonitor()
			return nil
		}

		sh := m.shardFor(attempt.Request.Key)
		sh.lock()
		st := sh.locks[attempt.Request.Key]

		if st != nil && st.ownerSatisfies(locker, attempt.Request) {
			// A deadlock verdict takes precedence even when the grant landed
			// first: the arbiter picked this locker as the victim and the
			// transaction must abort, so the grant is reported as DEADLOCK
			// and the (still-held) lock is left for the abort path to release.
			if c := locker.getConflictLocked(); c != nil && c.Type == Deadlock {
				sh.unlock()
				locker.setWaitingForLocked(nil)
				locker.unlockMonitor()
				m.logFine("wait result", locker, attempt.Request.Key, attempt.Request.ForWrite, time.Since(start), "DEADLOCK")
				return c
			}
			sh.unlock()
			locker.setWaitingForLocked(nil)
			locker.clearConflictLocked()
			locker.unlockMonitor()
			m.logFine("wait result", locker, attempt.Request.Key, attempt.Request.ForWrite, time.Since(start), "GRANTED")
			return nil
		}

		if conflict := locker.getConflictLocked(); conflict != nil {
			if st != nil {
				st.removeWaiter(attempt.Request)
				sh.cleanupIfEmpty(attempt.Request.Key)
			}
			sh.unlock()
			locker.setWaitingForLocked(nil)
			if conflict.Type != Deadlock {
				locker.clearConflictLocked()
			}
			locker.unlockMonitor()
			m.logFine("wait result", locker, attempt.Request.Key, attempt.Request.ForWrite, time.Since(start), conflict.Type.String())
			return conflict
		}

		now := time.Now()
		if !now.Before(deadline) {
			if st != nil {
				st.removeWaiter(attempt.Request)
				sh.cleanupIfEmpty(attempt.Request.Key)
			}
			sh.unlock()
			locker.setWaitingForLocked(nil)
			locker.clearConflictLocked()
			locker.unlockMonitor()
			conflict := &LockConflict[K]{Type: Timeout, ConflictingRequest: attempt.Conflict}
			m.logFine("wait result", locker, attempt.Request.Key, attempt.Request.ForWrite, time.Since(start), "TIMEOUT")
			return conflict
		}

		if attempt.Request.Upgrade && (st == nil || st.ownerIndex(locker) < 0) {
			if st != nil {
				st.removeWaiter(attempt.Request)
				sh.cleanupIfEmpty(attempt.Request.Key)
			}
			sh.unlock()
			locker.setWaitingForLocked(nil)
			locker.clearConflictLocked()
			locker.unlockMonitor()
			conflict := &LockConflict[K]{Type: Denied, ConflictingRequest: attempt.Conflict}
			m.logFine("wait result", locker, attempt.Request.Key, attempt.Request.ForWrite, time.Since(start), "DENIED")
			return conflict
		}

		sh.unlock()
		locker.waitUntilLocked(deadline)
		if locker.consumeInterruptLocked() {
			// Transient: log and loop back to the top, which re-checks
			// grant/deadlock/timeout before deciding anything, so an
			// interrupted locker that has meanwhile become an owner still
			// returns success. Interrupt never sets a conflict of its own.
			m.logFine("wait result", locker, attempt.Request.Key, attempt.Request.ForWrite, time.Since(start), "INTERRUPTED")
		}
		locker.unlockMonitor()
	}
}

// ReleaseLock releases whatever mode locker holds on key. It tolerates an
// unknown key or a non-owning locker silently — the release path never
// fails.
func (m *LockManager[K]) ReleaseLock(locker Locker[K], key K) {
	m.releaseInternal(locker, key, false)
}

// Downgrade converts locker's exclusive ownership of key to shared
// ownership in place, for callers implementing their own two-phase
// protocol on top of this manager. It is a no-op if locker doesn't
// currently hold a write lock on key.
func (m *LockManager[K]) Downgrade(locker Locker[K], key K) {
	m.releaseInternal(locker, key, true)
}

func (m *LockManager[K]) releaseInternal(locker Locker[K], key K, downgrade bool) {
	start := time.Now()
	if locker.manager() != any(m) {
		// Never bound to this manager, so it cannot own anything here; the
		// release path tolerates that silently.
		return
	}
	sh := m.shardFor(key)
	sh.lock()
	st := sh.locks[key]
	if st == nil {
		sh.unlock()
		return
	}
	newOwners := st.release(locker, downgrade)
	sh.cleanupIfEmpty(key)
	sh.unlock()

	for _, owner := range newOwners {
		owner.lockMonitor()
		owner.notifyLocked()
		owner.unlockMonitor()
		m.logFine("new owner notified", owner, key, false, 0, "GRANTED")
	}

	outcome := "RELEASED"
	if downgrade {
		outcome = "DOWNGRADED"
	}
	m.logCoarse("release", locker, key, false, time.Since(start), outcome)
}

// GetOwners returns a snapshot of the requests currently granted on key.
func (m *LockManager[K]) GetOwners(key K) []LockRequest[K] {
	sh := m.shardFor(key)
	sh.lock()
	defer sh.unlock()
	st := sh.locks[key]
	if st == nil {
		return nil
	}
	return st.snapshotOwners()
}

// GetWaiters returns a snapshot of the requests currently queued on key.
func (m *LockManager[K]) GetWaiters(key K) []LockRequest[K] {
	sh := m.shardFor(key)
	sh.lock()
	defer sh.unlock()
	st := sh.locks[key]
	if st == nil {
		return nil
	}
	return st.snapshotWaiters()
}

// Stats is a point-in-time observability snapshot. It never participates in
// the grant/wait/release algorithm itself.
type Stats struct {
	Shards  int
	Owners  int
	Waiters int
}

// Stats returns a snapshot of the manager's current occupancy.
func (m *LockManager[K]) Stats() Stats {
	s := Stats{Shards: len(m.shards)}
	for _, sh := range m.shards {
		sh.lock()
		for _, st := range sh.locks {
			s.Owners += len(st.owners)
			s.Waiters += len(st.waiters)
		}
		sh.unlock()
	}
	return s
}
