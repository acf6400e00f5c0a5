// Package store provides Redis-backed repositories for resources, members,
// steps and roles, with compact binary record encoding.
//
// # Collections and optimistic locking
//
// Steps of a board and roles of a board or project are kept in one Redis hash
// per parent, next to a version counter. [Store.ListSteps] and
// [Store.ListRoles] read the hash and the counter in one MULTI block, so
// callers get a consistent snapshot. [Store.PersistSteps] and
// [Store.PersistRoles] apply every upsert and delete of a reorder in a single
// Lua script that first compares the version; a stale snapshot fails with
// [ordering.ErrConcurrentModification] and nothing is written.
//
// # Architecture boundaries
//
// This package owns key layout, record encoding and Redis round-trips. It
// does NOT decide positions, evaluate permissions or emit audit events.
//
// # What this package must NOT do
//
//   - Import boardguard (no upward imports).
//   - Reorder items on its own; positions are written exactly as given.
//   - Retry a failed compare-and-set.
package store
