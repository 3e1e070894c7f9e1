// Package authcore is the credential and session core of an authentication
// service: registered users, password checks, signed session tokens with
// revocation, and an emailed one-time code as a second factor.
//
// An [Engine] is assembled by [Builder] and sequences three stores, each
// available in memory, on Redis and on SQL through gorm:
//
//   - userstore: accounts keyed by exact email, with Argon2id hashes.
//   - codestore: at most one pending 2FA challenge per email.
//   - tokenstore: revoked session tokens, retained until they expire.
//
// Engine methods are safe to call from multiple goroutines. Password
// hashing runs on a bounded worker pool so that it never starves the
// caller's goroutines.
//
// # Architecture boundaries
//
// The root package is the public surface. Flow orchestration lives in
// internal/flows and audit delivery in internal/audit; neither is exported.
// HTTP routing, cookies and outbound mail transport belong to the host.
package authcore
