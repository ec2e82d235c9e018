// Package keyring supplies signing key rings for session cookies.
//
// A ring is ordered newest first: the first key signs, every key verifies.
// [Static] holds keys in memory; [RedisSource] shares a ring between
// processes through a Redis list and rotates it with [RedisSource.Rotate].
// [Derive] turns one long-lived secret into purpose-bound keys.
//
// # Architecture boundaries
//
// Keys are fetched once when the engine is built. Rotation takes effect for
// engines built afterwards.
//
// # What this package must NOT do
//
//   - Log or expose key material.
//   - Import the root package or transport.
package keyring
