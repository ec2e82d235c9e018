package cookiesession

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"github.com/fairmanager/fm-cookie-session/session"
)

type slotState uint8

const (
	slotUnresolved slotState = iota
	slotPresent
	slotCleared
)

// Binding is the session accessor for one request. The session is loaded
// from the request cookie on first access, replaced or cleared by
// SetSession, and written back by Commit. A Binding is not safe for
// concurrent use.
type Binding struct {
	engine *Engine
	w      http.ResponseWriter
	r      *http.Request

	state     slotState
	sess      *session.Session
	committed bool
}

// Session returns the request's session, loading it from the cookie on the
// first call. A missing, forged or undecodable cookie yields a fresh empty
// session. After the session has been cleared Session returns nil and the
// cookie is not read again.
func (b *Binding) Session() *session.Session {
	if b == nil || b.engine == nil {
		return nil
	}
	switch b.state {
	case slotPresent:
		return b.sess
	case slotCleared:
		return nil
	}

	b.load()
	return b.sess
}

func (b *Binding) load() {
	e := b.engine
	name := e.config.Cookie.Name

	raw, ok, err := e.transport.Read(b.r, name, e.opts)
	switch {
	case err != nil:
		e.metricInc(MetricSessionReadFailure)
		e.logger.Debug("cookiesession: cookie read failed, starting fresh session",
			slog.String("cookie", name), slog.String("path", requestPath(b.r)), slog.Any("err", err))
		e.emitAudit(b.r, auditEventCookieReadFailed, false, err, nil)
	case ok:
		s, derr := session.Reconstruct(b.r, raw)
		if derr == nil {
			b.sess = s
			b.state = slotPresent
			e.metricInc(MetricSessionLoaded)
			return
		}
		e.metricInc(MetricSessionMalformed)
		e.logger.Warn("cookiesession: malformed session cookie, starting fresh session",
			slog.String("cookie", name), slog.String("path", requestPath(b.r)), slog.Any("err", derr))
		e.emitAudit(b.r, auditEventCookieMalformed, false, derr, func() map[string]string {
			return map[string]string{"length": fmt.Sprint(len(raw))}
		})
	}

	b.sess = session.New(b.r, nil)
	b.state = slotPresent
	e.metricInc(MetricSessionCreated)
}

// SetSession replaces the request's session. A nil value (untyped nil, nil
// map or nil pointer) clears it, so Commit deletes the cookie. Maps with
// string keys, structs, pointers to structs and *session.Session start a
// fresh session holding a copy of the value's fields. Every object must
// serialize when assigned: one holding channels, funcs or NaN is rejected
// here rather than failing at Commit. Any other value returns an error
// wrapping ErrInvalidSessionValue and leaves the session as it was.
func (b *Binding) SetSession(value any) error {
	if b == nil || b.engine == nil {
		return ErrEngineNotReady
	}

	payload, cleared, err := toPayload(value)
	if err != nil {
		b.engine.metricInc(MetricInvalidAssignment)
		return err
	}
	if cleared {
		b.sess = nil
		b.state = slotCleared
		b.engine.metricInc(MetricSessionCleared)
		return nil
	}

	b.sess = session.New(b.r, payload)
	b.state = slotPresent
	b.engine.metricInc(MetricSessionReplaced)
	return nil
}

// ClearSession is SetSession(nil).
func (b *Binding) ClearSession() {
	_ = b.SetSession(nil)
}

// Resolved reports whether the session has been loaded, assigned or
// cleared during this request.
func (b *Binding) Resolved() bool {
	return b != nil && b.state != slotUnresolved
}

// Cleared reports whether the session was cleared.
func (b *Binding) Cleared() bool {
	return b != nil && b.state == slotCleared
}

// Committed reports whether Commit has run.
func (b *Binding) Committed() bool {
	return b != nil && b.committed
}

// Request returns the request the binding was created for.
func (b *Binding) Request() *http.Request {
	if b == nil {
		return nil
	}
	return b.r
}

// Commit decides the cookie action for the request and performs it through
// the transport. It must run before the response header is sent; only the
// first call has an effect.
//
//   - never accessed: nothing
//   - cleared: delete the cookie
//   - present: write it when (not new or populated) and changed
//
// Encode and transport failures are logged, counted and audited. They are
// never returned; the response proceeds without the cookie change.
func (b *Binding) Commit() {
	if b == nil || b.engine == nil || b.committed {
		return
	}
	b.committed = true

	e := b.engine
	start := time.Now()
	defer e.observeLatency(MetricCommitLatency, start)

	name := e.config.Cookie.Name

	switch b.state {
	case slotUnresolved:
		e.metricInc(MetricCookieSkipped)

	case slotCleared:
		if err := e.transport.Write(b.w, name, "", e.opts.Deletion()); err != nil {
			b.writeFailed(err, "delete")
			return
		}
		e.metricInc(MetricCookieDeleted)
		e.emitAudit(b.r, auditEventCookieDeleted, true, nil, nil)

	case slotPresent:
		s := b.sess
		if !shouldWrite(s) {
			e.metricInc(MetricCookieSkipped)
			return
		}
		value, err := s.Serialize()
		if err != nil {
			b.writeFailed(fmt.Errorf("%w: %v", errEncode, err), "write")
			return
		}
		if err := e.transport.Write(b.w, name, value, e.opts); err != nil {
			b.writeFailed(err, "write")
			return
		}
		e.metricInc(MetricCookieWritten)
		e.emitAudit(b.r, auditEventCookieWritten, true, nil, func() map[string]string {
			return map[string]string{
				"new":    fmt.Sprint(s.IsNew()),
				"length": fmt.Sprint(len(value)),
			}
		})
	}
}

// shouldWrite is the emission rule. A new session that was never populated
// is not written; a loaded session that was emptied is written, not
// deleted.
func shouldWrite(s *session.Session) bool {
	if s == nil {
		return false
	}
	return (!s.IsNew() || s.IsPopulated()) && s.IsChanged()
}

func (b *Binding) writeFailed(err error, action string) {
	e := b.engine
	e.metricInc(MetricCookieWriteFailure)
	e.logger.Error("cookiesession: session cookie "+action+" failed",
		slog.String("cookie", e.config.Cookie.Name), slog.String("path", requestPath(b.r)), slog.Any("err", err))
	e.emitAudit(b.r, auditEventCookieWriteFailed, false, err, func() map[string]string {
		return map[string]string{"action": action}
	})
}

func requestPath(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}
	return r.URL.Path
}

// toPayload classifies a SetSession value. cleared is true for nil values.
func toPayload(value any) (payload map[string]any, cleared bool, err error) {
	switch v := value.(type) {
	case nil:
		return nil, true, nil
	case *session.Session:
		if v == nil {
			return nil, true, nil
		}
		return encodable(v.Values())
	case map[string]any:
		if v == nil {
			return nil, true, nil
		}
		return encodable(v)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, true, nil
		}
		if k := rv.Elem().Kind(); k != reflect.Struct && k != reflect.Map {
			return nil, false, invalidValue(value)
		}
		if rv.Elem().Kind() == reflect.Map && rv.Elem().Type().Key().Kind() != reflect.String {
			return nil, false, invalidValue(value)
		}
	case reflect.Map:
		if rv.IsNil() {
			return nil, true, nil
		}
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false, invalidValue(value)
		}
	case reflect.Struct:
	default:
		return nil, false, invalidValue(value)
	}

	payload, err = objectFromJSON(value)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %T: %v", ErrInvalidSessionValue, value, err)
	}
	return payload, false, nil
}

// encodable accepts payload as-is when it serializes.
func encodable(payload map[string]any) (map[string]any, bool, error) {
	if _, err := session.Encode(payload); err != nil {
		return nil, false, fmt.Errorf("%w: %T: %v", ErrInvalidSessionValue, payload, err)
	}
	return payload, false, nil
}

// objectFromJSON converts value through its JSON encoding, which must be a
// JSON object.
func objectFromJSON(value any) (map[string]any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("encodes to %s", data)
	}
	return out, nil
}

func invalidValue(value any) error {
	return fmt.Errorf("%w: got %T", ErrInvalidSessionValue, value)
}
