package lock

import (
	"time"

	"go.uber.org/zap"
)

// logFine emits a per-attempt/per-wait-result event: the chattier of the
// two log levels, intended for debugging a specific locker's path through
// the manager rather than for dashboards.
func (m *LockManager[K]) logFine(event string, locker Locker[K], key K, forWrite bool, elapsed time.Duration, outcome string) {
	if ce := m.logger.Check(zap.DebugLevel, event); ce != nil {
		ce.Write(
			zap.String("locker", locker.ID()),
			zap.Any("key", key),
			zap.Bool("for_write", forWrite),
			zap.Duration("elapsed", elapsed),
			zap.String("outcome", outcome),
		)
	}
}

// logCoarse emits a request-lifecycle event: start, complete, release. This
// is the level a production deployment would typically keep enabled.
func (m *LockManager[K]) logCoarse(event string, locker Locker[K], key K, forWrite bool, elapsed time.Duration, outcome string) {
	if ce := m.logger.Check(zap.InfoLevel, event); ce != nil {
		ce.Write(
			zap.String("locker", locker.ID()),
			zap.Any("key", key),
			zap.Bool("for_write", forWrite),
			zap.Duration("elapsed", elapsed),
			zap.String("outcome", outcome),
		)
	}
}
