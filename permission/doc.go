// Package permission provides the bit-vector permission mask, the per-domain
// flag policies and the mask codec used by boardguard authorization checks.
//
// # Domains
//
// Every resource kind (board, project) owns a [Policy]: a closed, frozen set of
// named flags. Flags never cross domains; a mask is only meaningful together
// with the policy that produced it. The built-in policies are [Board] and
// [Project].
//
// # Semantics
//
//   - effective = granted &^ denied, denial always wins ([Effective]).
//   - an actor satisfies a requirement only when it holds every required bit ([Mask.Has]).
//   - a stored mask is valid for a domain iff it is non-zero and has no bit outside
//     the domain's flags ([Policy.IsValid]).
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import boardguard, rbac, ordering, or store.
//   - Register flags after a policy has been frozen.
package permission
