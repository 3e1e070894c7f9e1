// Package flows contains the orchestration behind every Engine operation:
// signup, login, 2FA verification, token validation and logout.
//
// Each Run function takes the Deps struct the root engine builds once and
// returns either a result or one of the host sentinels carried in
// Deps.Errors. Flows hold no state between calls; stores, token signing,
// hashing, metrics and audit all arrive through Deps.
//
// # Architecture boundaries
//
// Flows decide outcomes and error mapping. They do not own stores or the
// hashing pool, and they never import the root package.
package flows
