// Package userstore keeps registered accounts keyed by email and validates
// password attempts against their stored Argon2id hashes.
//
// Three backends share the Store contract: MemoryStore for tests and single
// process deployments, RedisStore over go-redis, and GormStore over any gorm
// dialect. Account creation is atomic in every backend, so concurrent signups
// for one email produce exactly one account.
package userstore
