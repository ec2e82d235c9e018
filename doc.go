// Package cookiesession keeps the whole session payload in a signed HTTP
// cookie and decides, once per request, whether that cookie has to be
// written, deleted, or left alone.
//
// An [Engine] is built once with [New]. Each request gets a [Binding] from
// [Engine.Bind] (or from the middleware package), which loads the session
// lazily, accepts replacement or clearing through [Binding.SetSession], and
// applies the cookie decision in [Binding.Commit]:
//
//   - never accessed: no Set-Cookie
//   - cleared: the cookie is deleted
//   - present: the cookie is written when the session is not new or holds
//     data, and its canonical serialization differs from the one it was
//     loaded from
//
// # Architecture boundaries
//
// The session package owns the payload, its encoding and change detection.
// The transport package owns cookie bytes and signatures. This package ties
// them together per request and adds logging, metrics and audit events.
//
// # What this package must NOT do
//
//   - Share a Session or Binding between requests.
//   - Return cookie read or write failures to handlers; they are logged and
//     the request continues with a fresh session or an unchanged cookie.
//   - Store session data anywhere but the cookie.
package cookiesession
