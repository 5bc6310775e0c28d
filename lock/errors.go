package lock

import "errors"

var (
	// ErrWrongManager is returned when a Locker that was already bound to
	// one LockManager is presented to a different one.
	ErrWrongManager = errors.New("lock: locker belongs to a different manager")

	// ErrInvalidConflict is returned by setWaitingForLocked when the supplied
	// LockAttemptResult does not carry a non-nil conflict.
	ErrInvalidConflict = errors.New("lock: waiting result must carry a conflict")

	// ErrAlreadyWaiting is returned by LockNoWait when the locker already
	// has a pending wait outstanding.
	ErrAlreadyWaiting = errors.New("lock: locker is already waiting on a lock")

	// ErrInvalidTimeout is returned by NewLockManager for a non-positive
	// default timeout.
	ErrInvalidTimeout = errors.New("lock: defaultTimeout must be positive")

	// ErrInvalidShardCount is returned by NewLockManager for a non-positive
	// shard count.
	ErrInvalidShardCount = errors.New("lock: numShards must be positive")

	// ErrTransactionNotActive is returned by TransactionLocker.Lock once the
	// transaction has left the Active state.
	ErrTransactionNotActive = errors.New("lock: transaction is not active")

	// ErrTransactionAlreadyCommitted is returned by Commit on a
	// TransactionLocker that has already committed.
	ErrTransactionAlreadyCommitted = errors.New("lock: transaction already committed")

	// ErrTransactionAlreadyAborted is returned by Commit on a
	// TransactionLocker that has already aborted.
	ErrTransactionAlreadyAborted = errors.New("lock: transaction already aborted")
)
