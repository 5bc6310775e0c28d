package lock

import (
	"fmt"

	"github.com/sasha-s/go-deadlock"
)

// monitorKind distinguishes the two kinds of monitor the manager takes:
// a per-locker monitor (guarding a Locker's waitingFor/conflict slot) and a
// per-shard monitor (guarding one shard's key->Lock map). The wait loop is
// the only routine that ever holds one of each at the same instant, and it
// always acquires the locker-monitor first — see discipline_checked.go.
type monitorKind int

const (
	monitorLocker monitorKind = iota
	monitorShard
)

func (k monitorKind) String() string {
	if k == monitorLocker {
		return "locker"
	}
	return "shard"
}

func init() {
	deadlock.Opts.DeadlockTimeout = 0 // rely on our own ordering assertions, not a wall-clock heuristic
	prev := deadlock.Opts.OnPotentialDeadlock
	deadlock.Opts.OnPotentialDeadlock = func() {
		if prev != nil {
			prev()
		}
		panic("lock: go-deadlock reported a lock-ordering violation")
	}
}

// EnableDisciplineChecks toggles both the goroutine-local monitor-ordering
// assertions and go-deadlock's cross-goroutine lock-order detector. It is
// on by default. Disable it only once the synchronization discipline has
// been proven out in testing and the bookkeeping overhead is unwelcome on
// a hot path.
func EnableDisciplineChecks(enabled bool) {
	deadlock.Opts.Disable = !enabled
	setDisciplineEnabled(enabled)
}

func disciplineViolation(format string, args ...any) {
	panic(fmt.Sprintf("lock: discipline violation: "+format, args...))
}
