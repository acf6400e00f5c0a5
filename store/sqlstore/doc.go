// Package sqlstore provides the same repositories as package store on top of
// database/sql and the pure-Go SQLite driver.
//
// Each collection (the steps of a board, the roles of a resource) has a row
// in collection_versions. Persist bumps that row with a compare on the
// expected version inside the same transaction as the item writes, so a
// stale snapshot fails with [ordering.ErrConcurrentModification] and rolls
// back.
package sqlstore
