// Package codestore holds the pending 2FA challenge of each account: a
// challenge id, a six digit code and an expiry. Each email has at most one
// challenge; issuing a new one replaces the old.
//
// Get is non-destructive. Consume is the only operation that invalidates a
// challenge, and it only removes the challenge whose id the caller names.
package codestore
