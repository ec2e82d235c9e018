// Package transport moves raw session values in and out of HTTP cookies.
//
// Two formats are provided:
//
//   - [Cookies]: the value as-is, with an optional "<name>.sig" companion
//     cookie holding an HMAC-SHA256 signature ([HMACSigner], key rotation).
//   - [JWT]: the value wrapped in an HS256 token with a key id header.
//
// Both enforce browser rules on write: SameSite=None requires Secure, the
// "__Secure-" and "__Host-" prefixes, and the ~4 KiB name+value limit. A
// Write with an empty value deletes the cookie.
//
// # What this package must NOT do
//
//   - Interpret session payloads or decide when to write.
//   - Report bad signatures as errors; they read as an absent cookie.
package transport
