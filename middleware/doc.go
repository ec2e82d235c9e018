// Package middleware connects cookiesession to net/http.
//
// [Sessions] creates one Binding per request, stores it in the request
// context, and wraps the ResponseWriter so the binding commits exactly once
// before the response header is finalized. Handlers reach the session with
// [SessionFromRequest].
//
// # Architecture boundaries
//
// This package only decides WHEN to commit. Whether the cookie is written,
// deleted or left alone is decided by Binding.Commit.
//
// # What this package must NOT do
//
//   - Read or write cookies directly.
//   - Commit after the header has been sent.
package middleware
