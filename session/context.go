package session

import "net/http"

// Context records where a Session came from. It is created exactly once per
// Session and never changes afterwards.
type Context struct {
	request        *http.Request
	freshlyCreated bool
	baseline       string
}

// Request returns the request that owns the session.
func (c *Context) Request() *http.Request {
	if c == nil {
		return nil
	}
	return c.request
}

// FreshlyCreated reports whether the session was created without a prior
// valid cookie value.
func (c *Context) FreshlyCreated() bool {
	return c == nil || c.freshlyCreated
}

// Baseline returns the raw cookie value the session was loaded from. The
// second result is false for freshly created sessions.
func (c *Context) Baseline() (string, bool) {
	if c == nil || c.freshlyCreated {
		return "", false
	}
	return c.baseline, true
}
