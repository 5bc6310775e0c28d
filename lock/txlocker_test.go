package lock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTransactionLockerCommitReleasesAll(t *testing.T) {
	m, err := NewLockManager[string](time.Second, 4)
	require.NoError(t, err)

	tx := NewTransactionLocker[string]("tx-1")
	require.Equal(t, TransactionActive, tx.State())

	conflict, err := tx.Lock(m, "row1", false)
	require.NoError(t, err)
	require.Nil(t, conflict)

	conflict, err = tx.Lock(m, "row2", true)
	require.NoError(t, err)
	require.Nil(t, conflict)

	require.Len(t, tx.OwnedKeys(), 2)

	require.NoError(t, tx.Commit(m))
	require.Equal(t, TransactionCommitted, tx.State())

	require.Empty(t, m.GetOwners("row1"))
	require.Empty(t, m.GetOwners("row2"))

	require.ErrorIs(t, tx.Commit(m), ErrTransactionAlreadyCommitted)
	require.ErrorIs(t, tx.Abort(m), ErrTransactionAlreadyCommitted)
}

func TestTransactionLockerAbortIsIdempotent(t *testing.T) {
	m, err := NewLockManager[string](time.Second, 4)
	require.NoError(t, err)

	tx := NewTransactionLocker[string]("tx-2")
	_, err = tx.Lock(m, "row1", true)
	require.NoError(t, err)

	require.NoError(t, tx.Abort(m))
	require.Equal(t, TransactionAborted, tx.State())
	require.Empty(t, m.GetOwners("row1"))

	// Aborting twice is a no-op, not an error.
	require.NoError(t, tx.Abort(m))
}

func TestTransactionLockerRejectsLockWhenInactive(t *testing.T) {
	m, err := NewLockManager[string](time.Second, 4)
	require.NoError(t, err)

	tx := NewTransactionLocker[string]("tx-3")
	require.NoError(t, tx.Commit(m))

	_, err = tx.Lock(m, "row1", false)
	require.ErrorIs(t, err, ErrTransactionNotActive)
}
