package session

import (
	"encoding/json"
	"maps"
	"net/http"
	"slices"
)

// Session is a cookie-carried session: a string-keyed payload of
// JSON-compatible values plus the Context it was created from.
//
// Lifecycle flags are derived on every call from the current payload and
// never cached. A Session belongs to a single request and is not safe for
// concurrent use. The zero value is an empty, new session with no request.
type Session struct {
	ctx    *Context
	values map[string]any
}

// New returns a brand-new session owned by r. The initial payload, if any,
// is shallow-copied.
func New(r *http.Request, initial map[string]any) *Session {
	values := make(map[string]any, len(initial))
	maps.Copy(values, initial)
	return &Session{
		ctx:    &Context{request: r, freshlyCreated: true},
		values: values,
	}
}

// Reconstruct rebuilds a session from a previously issued cookie value. The
// raw string becomes the change-detection baseline as-is. On a decode
// failure the error wraps ErrMalformedPayload and the caller is expected to
// fall back to New.
func Reconstruct(r *http.Request, raw string) (*Session, error) {
	values, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return &Session{
		ctx:    &Context{request: r, baseline: raw},
		values: values,
	}, nil
}

// Context returns the provenance record of the session.
func (s *Session) Context() *Context {
	return s.ctx
}

// Request returns the request that owns the session.
func (s *Session) Request() *http.Request {
	return s.ctx.Request()
}

// IsNew reports whether the session did not come from a valid cookie.
func (s *Session) IsNew() bool {
	return s.ctx.FreshlyCreated()
}

// IsPopulated reports whether the payload holds at least one key.
func (s *Session) IsPopulated() bool {
	return len(s.values) > 0
}

// IsChanged reports whether the session must be persisted: it is new, or
// its current serialization differs from the baseline. A payload that no
// longer encodes counts as changed.
func (s *Session) IsChanged() bool {
	baseline, ok := s.ctx.Baseline()
	if !ok {
		return true
	}
	current, err := s.Serialize()
	if err != nil {
		return true
	}
	return current != baseline
}

// Serialize encodes the current payload for transport.
func (s *Session) Serialize() (string, error) {
	return Encode(s.values)
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether key is present.
func (s *Session) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Set stores value under key.
func (s *Session) Set(key string, value any) {
	if s.values == nil {
		s.values = make(map[string]any)
	}
	s.values[key] = value
}

// Delete removes key.
func (s *Session) Delete(key string) {
	delete(s.values, key)
}

// DeleteAll removes every key. The session keeps its provenance, so an
// emptied session loaded from a cookie is still saved, not deleted.
func (s *Session) DeleteAll() {
	clear(s.values)
}

// Len returns the number of keys.
func (s *Session) Len() int {
	return len(s.values)
}

// Keys returns the payload keys in sorted order.
func (s *Session) Keys() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// Range calls fn for each key in sorted order until fn returns false.
func (s *Session) Range(fn func(key string, value any) bool) {
	for _, k := range s.Keys() {
		if !fn(k, s.values[k]) {
			return
		}
	}
}

// Values returns a shallow copy of the payload.
func (s *Session) Values() map[string]any {
	return maps.Clone(s.values)
}

// MarshalJSON renders the payload only.
func (s *Session) MarshalJSON() ([]byte, error) {
	if len(s.values) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(s.values)
}

// GetString returns the string under key, or "" when missing or not a string.
func (s *Session) GetString(key string) string {
	v, _ := s.values[key].(string)
	return v
}

// GetBool returns the bool under key, or false when missing or not a bool.
func (s *Session) GetBool(key string) bool {
	v, _ := s.values[key].(bool)
	return v
}

// GetInt64 returns the integer under key. Values decoded from a cookie are
// json.Number; values set during the request may be any Go integer.
func (s *Session) GetInt64(key string) (int64, bool) {
	switch v := s.values[key].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint32:
		return int64(v), true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

// GetFloat64 returns the number under key as a float64.
func (s *Session) GetFloat64(key string) (float64, bool) {
	switch v := s.values[key].(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
