// Package middleware adapts the boardguard authorization guard to net/http.
//
// # Guards
//
//   - [Authenticate] verifies the bearer token and attaches the actor and
//     client IP to the request context.
//   - [Guard] authenticates (when given a verifier) and then runs
//     Engine.Guard for one named operation before calling the handler.
//
// Arguments for the guard are collected by an [ArgsFunc]; [PathArgs],
// [QueryArgs] and [JSONArgs] cover the common request shapes and
// [MergeArgs] combines them.
//
// # Error mapping
//
// [StatusFor] translates engine errors to HTTP status codes. Denials keep
// their distinct reason in the JSON body so clients can tell "not a member"
// from "no roles configured" from "missing flags".
//
// # What this package must NOT do
//
//   - Make authorization decisions itself (delegates to Engine.Guard).
//   - Access Redis or SQL directly.
//   - Issue or refresh tokens.
package middleware
