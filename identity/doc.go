// Package identity defines the validated value types that flow through the
// authentication core: email addresses, passwords, one-time codes and
// challenge identifiers.
//
// Every type is constructed through a Parse function and is immutable once
// built. Secret-bearing types ([Password], [OneTimeCode]) refuse default
// formatting and serialization; the plaintext is reachable only through
// Expose at the point of use.
//
// # What this package must NOT do
//
//   - Import any other authcore package.
//   - Perform I/O or hold state.
package identity
