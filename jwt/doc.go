// Package jwt issues and parses session tokens: signed JWTs whose subject is
// the account email and whose expiry bounds the session. HS256 and Ed25519
// keys are supported, with optional key ids for rotation.
package jwt
