// Package tokenstore records revoked session tokens.
//
// Tokens are stored as SHA-256 digests, never in the clear. An entry is kept
// at least until the token's own expiry plus a retention skew, after which
// the signature check rejects the token anyway.
package tokenstore
