//go:build !lockrelease

package lock

import (
	"sync"

	"github.com/petermattis/goid"
)

// held tracks, per goroutine, which monitor kinds that goroutine currently
// holds. It is debug-only bookkeeping: the lockrelease build tag swaps this
// file for discipline_release.go, a zero-cost no-op, so the checks compile
// out of release builds entirely rather than merely branching around a
// disabled flag.
var (
	disciplineMu      sync.Mutex
	disciplineHeld    = map[int64]map[monitorKind]bool{}
	disciplineEnabled = true
)

func setDisciplineEnabled(enabled bool) {
	disciplineMu.Lock()
	disciplineEnabled = enabled
	disciplineMu.Unlock()
}

// disciplineAcquire records that the calling goroutine now holds a monitor
// of the given kind. It panics (rule: internal assertion failures abort the
// process) if the goroutine already holds a monitor of this kind, or if it
// is acquiring a locker-monitor while already holding a shard-monitor —
// the one ordering forbidden by the discipline (shard monitors are taken
// only after, never before, the locker monitor).
func disciplineAcquire(kind monitorKind) {
	gid := goid.Get()

	disciplineMu.Lock()
	defer disciplineMu.Unlock()
	if !disciplineEnabled {
		return
	}

	set := disciplineHeld[gid]
	if set == nil {
		set = make(map[monitorKind]bool, 2)
		disciplineHeld[gid] = set
	}
	if set[kind] {
		disciplineViolation("goroutine %d re-entered its own %s monitor", gid, kind)
	}
	if kind == monitorLocker && set[monitorShard] {
		disciplineViolation("goroutine %d acquired a locker-monitor while holding a shard-monitor", gid)
	}
	set[kind] = true
}

// disciplineRelease records that the calling goroutine no longer holds a
// monitor of the given kind.
func disciplineRelease(kind monitorKind) {
	gid := goid.Get()

	disciplineMu.Lock()
	defer disciplineMu.Unlock()
	if !disciplineEnabled {
		return
	}

	set := disciplineHeld[gid]
	if set == nil {
		return
	}
	delete(set, kind)
	if len(set) == 0 {
		delete(disciplineHeld, gid)
	}
}
