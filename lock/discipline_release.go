//go:build lockrelease

package lock

// In a lockrelease build the goroutine-local monitor bookkeeping compiles
// out entirely; these are no-ops so call sites need no build tags of their
// own.
func setDisciplineEnabled(enabled bool) {}

func disciplineAcquire(kind monitorKind) {}

func disciplineRelease(kind monitorKind) {}
