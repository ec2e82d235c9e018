// Package session provides the cookie-carried session entity and its codec.
//
// # Encoding
//
// A session payload travels as base64url (unpadded) JSON. Object keys are
// written in sorted order, so equal payloads always serialize to equal
// strings and change detection can compare strings. Padded standard base64
// from older issuers is accepted on read and rewritten on the next save.
//
// # Lifecycle
//
// [New] creates a fresh session; [Reconstruct] rebuilds one from a cookie
// value and records that value as the baseline. [Session.IsNew],
// [Session.IsPopulated] and [Session.IsChanged] are recomputed on every call.
//
// # What this package must NOT do
//
//   - Read or write cookies, sign, or touch response headers.
//   - Decide whether a cookie is emitted; that belongs to the request binding.
//   - Share Session or Context values across requests.
package session
