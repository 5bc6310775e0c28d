// Package lock implements a key-based lock manager: a mediator between
// many independent transactional actors ("lockers") and a dynamic universe
// of named resources ("keys"). It supports shared/read and exclusive/write
// modes, upgrade from shared to exclusive, bounded wait with timeout,
// deadlock detection via an externally-injected arbiter, and a
// synchronization discipline that keeps the manager itself free of
// scheduling deadlocks.
//
// The manager is an embeddable library: no wire protocol, no persisted
// state, no CLI, no environment dependency. It never performs I/O.
package lock
