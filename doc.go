// Package boardguard authorizes operations on boards and projects with
// bit-mask roles and keeps the positions of steps and roles dense.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// boardguard is the public surface. It exposes [Engine], [Builder], [Config],
// the operation table and the repository interfaces. Mask arithmetic lives in
// permission/, the pure authorization decision in rbac/, position algorithms
// in ordering/, and persistence in store/ (Redis) and store/sqlstore
// (SQLite).
//
// # Guard flow
//
// [Engine.Guard] looks up the operation, returns early for exempt operations,
// reads the resource ID from the arguments, loads the resource and the
// actor's member record, and hands the snapshot to rbac.Authorize. Owners
// always pass; members pass only when their effective mask holds every
// required bit.
//
// # What this package must NOT do
//
//   - Retry a write that lost an optimistic-lock race; the caller sees
//     [ErrConcurrentModification].
//   - Persist a collection whose positions are not 1..N.
//   - Collapse denial reasons into one generic error.
//   - Import any sub-package that re-imports boardguard (no import cycles).
package boardguard
