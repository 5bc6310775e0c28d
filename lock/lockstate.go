package lock

// Lock holds the owners and waiters for exactly one key. It carries no
// monitor of its own; every method here assumes the caller already holds
// the owning shard's monitor.
//
// Invariants maintained by the methods below:
//  1. If any owner is a writer, owners has exactly one element.
//  2. All-reader owners: zero or more, no writer.
//  3. A locker appears at most once in owners.
//  4. A waiting locker is not also an owner, except an upgrade waiter,
//     which is a read-owner waiting to become a write-owner.
//  5. waiters is processed front-to-back when scanning for new grants.
type Lock[K comparable] struct {
	key     K
	owners  []LockRequest[K]
	waiters []LockRequest[K]
}

// Empty reports whether this Lock has no owners and no waiters, the
// condition under which the manager removes it from its shard map.
func (l *Lock[K]) Empty() bool {
	return len(l.owners) == 0 && len(l.waiters) == 0
}

func (l *Lock[K]) ownerIndex(locker Locker[K]) int {
	for i := range l.owners {
		if l.owners[i].Locker == locker {
			return i
		}
	}
	return -1
}

// conflictingOwner returns an owner that conflicts with req, or nil. An
// owner never conflicts with itself (the upgrade case: a read-owner may
// hold a pending write request on the same key).
func (l *Lock[K]) conflictingOwner(req LockRequest[K]) *LockRequest[K] {
	for i := range l.owners {
		o := l.owners[i]
		if o.Locker == req.Locker {
			continue
		}
		if req.ForWrite || o.ForWrite {
			return &o
		}
	}
	return nil
}

// requestLock is the grant rule for one synchronous attempt. It never
// blocks; a request that cannot be granted immediately is appended to
// waiters and returned with ConflictType Blocked.
func (l *Lock[K]) requestLock(locker Locker[K], forWrite bool) LockAttemptResult[K] {
	if idx := l.ownerIndex(locker); idx >= 0 {
		owner := l.owners[idx]
		if !forWrite || owner.ForWrite {
			// Already holds a sufficient mode: no new request recorded.
			return LockAttemptResult[K]{Request: owner}
		}

		// Read owner asking for write: this is an upgrade.
		req := locker.NewLockRequest(l.key, true, true)
		if len(l.owners) == 1 {
			l.owners[idx] = req
			return LockAttemptResult[K]{Request: req}
		}
		l.waiters = append(l.waiters, req)
		conflict := l.conflictingOwner(req)
		return LockAttemptResult[K]{Request: req, Conflict: conflict, ConflictType: Blocked}
	}

	req := locker.NewLockRequest(l.key, forWrite, false)
	if conflict := l.conflictingOwner(req); conflict != nil {
		l.waiters = append(l.waiters, req)
		return LockAttemptResult[K]{Request: req, Conflict: conflict, ConflictType: Blocked}
	}
	if len(l.waiters) > 0 {
		// Fairness: a compatible newcomer only jumps the queue when the
		// queue is empty. Non-empty waiters means somebody — a writer, most
		// often — is already ahead, so this request queues behind them
		// rather than passing.
		rep := l.waiters[0]
		l.waiters = append(l.waiters, req)
		return LockAttemptResult[K]{Request: req, Conflict: &rep, ConflictType: Blocked}
	}
	l.owners = append(l.owners, req)
	return LockAttemptResult[K]{Request: req}
}

func (l *Lock[K]) removeWaiter(req LockRequest[K]) {
	for i := range l.waiters {
		if l.waiters[i].Locker == req.Locker && l.waiters[i].Upgrade == req.Upgrade {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return
		}
	}
}

// release drops locker's ownership of this key (or, if downgrade is true,
// converts a write ownership to a read ownership in place) and then scans
// waiters front-to-back, promoting every request now compatible with the
// remaining owners. It returns the lockers newly promoted to owners, so
// the caller can notify them outside the shard monitor.
func (l *Lock[K]) release(locker Locker[K], downgrade bool) []Locker[K] {
	idx := l.ownerIndex(locker)
	if idx < 0 {
		return nil
	}
	if downgrade && !l.owners[idx].ForWrite {
		// Already a read owner: nothing to downgrade, and a release would
		// be the wrong behavior here per Downgrade's no-op contract.
		return nil
	}
	if downgrade && l.owners[idx].ForWrite {
		l.owners[idx] = LockRequest[K]{Locker: locker, Key: l.key, ForWrite: false}
	} else {
		l.owners = append(l.owners[:idx], l.owners[idx+1:]...)
	}
	return l.grantWaiters()
}

func (l *Lock[K]) grantWaiters() []Locker[K] {
	var granted []Locker[K]
	remaining := l.waiters[:0]

	for i := 0; i < len(l.waiters); i++ {
		req := l.waiters[i]
		if l.conflictingOwner(req) != nil {
			remaining = append(remaining, req)
			if req.ForWrite {
				// A blocked writer blocks everyone behind it too.
				remaining = append(remaining, l.waiters[i+1:]...)
				break
			}
			continue
		}

		if req.Upgrade {
			oi := l.ownerIndex(req.Locker)
			if oi < 0 {
				// Base read lock vanished; leave it queued. The waiting
				// locker itself detects this in its wait loop and resolves
				// to DENIED.
				remaining = append(remaining, req)
				continue
			}
			l.owners[oi] = req
		} else {
			l.owners = append(l.owners, req)
		}
		granted = append(granted, req.Locker)

		if req.ForWrite {
			remaining = append(remaining, l.waiters[i+1:]...)
			break
		}
	}

	l.waiters = remaining
	return granted
}

// ownerSatisfies reports whether locker now owns this key in at least the
// mode req asked for.
func (l *Lock[K]) ownerSatisfies(locker Locker[K], req LockRequest[K]) bool {
	idx := l.ownerIndex(locker)
	if idx < 0 {
		return false
	}
	return l.owners[idx].ForWrite || !req.ForWrite
}

func (l *Lock[K]) snapshotOwners() []LockRequest[K] {
	out := make([]LockRequest[K], len(l.owners))
	copy(out, l.owners)
	return out
}

func (l *Lock[K]) snapshotWaiters() []LockRequest[K] {
	out := make([]LockRequest[K], len(l.waiters))
	copy(out, l.waiters)
	return out
}
