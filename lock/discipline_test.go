//go:build !lockrelease

package lock

import "testing"

// TestDisciplineRejectsLockerAfterShard confirms the one forbidden
// ordering — acquiring a locker-monitor while a shard-monitor is already
// held — panics rather than silently risking a scheduling deadlock.
func TestDisciplineRejectsLockerAfterShard(t *testing.T) {
	EnableDisciplineChecks(true)
	defer func() {
		setDisciplineEnabled(true)
		r := recover()
		if r == nil {
			t.Fatal("want panic on locker-after-shard acquisition")
		}
	}()

	sh := newShard[string]()
	sh.lock()
	defer sh.unlock()

	b := NewBasicLocker[string]("a")
	b.lockMonitor()
	defer b.unlockMonitor()
}

func TestDisciplineAllowsShardAfterLocker(t *testing.T) {
	EnableDisciplineChecks(true)

	b := NewBasicLocker[string]("a")
	b.lockMonitor()
	sh := newShard[string]()
	sh.lock()
	sh.unlock()
	b.unlockMonitor()
}

func TestDisciplineDisabledSkipsChecks(t *testing.T) {
	EnableDisciplineChecks(false)
	defer EnableDisciplineChecks(true)

	sh := newShard[string]()
	sh.lock()
	b := NewBasicLocker[string]("a")
	b.lockMonitor() // would panic if checks were enabled
	b.unlockMonitor()
	sh.unlock()
}
