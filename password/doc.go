// Package password implements password hashing and verification with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The salt is drawn from crypto/rand on every call and travels inside the
// encoded hash, so verification is self-contained. [Argon2.NeedsUpgrade]
// reports hashes produced with weaker parameters.
//
// # Execution
//
// Derivation is deliberately expensive. [Pool] runs Hash and Verify on a
// bounded set of worker goroutines; request handlers block only on their own
// result and never run Argon2 on their own goroutine.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length on input) is enforced by the identity package and the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
