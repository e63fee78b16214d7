// Package locked provides the two synchronization capabilities used by the
// simulation core. Each one owns its lock and the value the lock protects;
// the value is only reachable through a closure run while the lock is held,
// so release happens on every exit path, panics included.
//
//   - [Mutex]: a plain exclusive section, [Mutex.With]
//   - [Cond]: an exclusive section plus a condition variable; [Cond.Mutate]
//     is its single mutate-and-broadcast operation and [Cond.WaitUntil]
//     blocks until a predicate over the value holds
//
// Both detect a second acquisition from the goroutine that already holds the
// lock and return [ErrReentrant] instead of deadlocking.
//
// # Cost
//
// The check identifies the caller by parsing the header of its stack trace,
// which costs on the order of a microsecond per acquisition, reads included
// (see BenchmarkCondLoad). That is negligible at tick and frame rates; do
// not put either type on a path that is entered millions of times a second.
package locked
