// Package jwt verifies bearer access tokens and extracts the acting user.
//
// Tokens are issued by an external identity provider. This package never
// signs, refreshes, or revokes tokens; it only checks the signature
// algorithm, key id, expiry, issuer, and audience, and returns the
// subject claim as the actor id handed to the authorization guard.
package jwt
