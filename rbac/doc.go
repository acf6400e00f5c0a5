// Package rbac resolves whether an actor may act on a board or project.
//
// # Decision order
//
//  1. Ownership bypass: the resource owner is always allowed.
//  2. Membership: an actor without a member record is denied.
//  3. Lockout: a resource with zero roles admits only its owner.
//  4. Effective mask: OR of granted &^ denied over the member's roles.
//  5. Comparison: every required bit must be present.
//
// # Architecture boundaries
//
// [Authorize] is a pure function over a snapshot the caller fetched. Loading
// resources, members and role counts is the job of the store packages.
//
// # What this package must NOT do
//
//   - Perform I/O or read clocks.
//   - Treat the owner as a synthetic role.
//   - Fall back to allow when no roles are configured.
package rbac
