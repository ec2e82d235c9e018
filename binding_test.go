package cookiesession

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fairmanager/fm-cookie-session/session"
	"github.com/fairmanager/fm-cookie-session/transport"
)

type recordedWrite struct {
	name  string
	value string
	opts  transport.Options
}

func (w recordedWrite) isDelete() bool {
	return w.value == "" && w.opts.MaxAge < 0
}

// recordingTransport serves inbound cookie values from a map and records
// every outbound write.
type recordingTransport struct {
	inbound  map[string]string
	readErr  error
	writeErr error
	reads    int
	writes   []recordedWrite
}

func (t *recordingTransport) Read(_ *http.Request, name string, _ transport.Options) (string, bool, error) {
	t.reads++
	if t.readErr != nil {
		return "", false, t.readErr
	}
	v, ok := t.inbound[name]
	return v, ok, nil
}

func (t *recordingTransport) Write(_ http.ResponseWriter, name, value string, opts transport.Options) error {
	if t.writeErr != nil {
		return t.writeErr
	}
	t.writes = append(t.writes, recordedWrite{name: name, value: value, opts: opts})
	return nil
}

func (t *recordingTransport) deletes() int {
	n := 0
	for _, w := range t.writes {
		if w.isDelete() {
			n++
		}
	}
	return n
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bindingTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Signing.Signed = false
	cfg.Metrics.Enabled = true
	return cfg
}

func buildBindingTestEngine(t *testing.T, tr transport.Transport, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := bindingTestConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	engine, err := New().
		WithConfig(cfg).
		WithTransport(tr).
		WithLogger(discardLogger()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func bindRequest(engine *Engine) *Binding {
	return engine.Bind(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/app", nil))
}

func encodeCookie(t *testing.T, payload map[string]any) string {
	t.Helper()
	raw, err := session.Encode(payload)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return raw
}

func decodeWrite(t *testing.T, w recordedWrite) map[string]any {
	t.Helper()
	payload, err := session.Decode(w.value)
	if err != nil {
		t.Fatalf("written value %q does not decode: %v", w.value, err)
	}
	return payload
}

func TestCommitUntouchedSessionDoesNothing(t *testing.T) {
	tr := &recordingTransport{inbound: map[string]string{"session": "e30"}}
	engine := buildBindingTestEngine(t, tr, nil)

	b := bindRequest(engine)
	b.Commit()

	if tr.reads != 0 {
		t.Fatalf("expected no cookie read without access, got %d", tr.reads)
	}
	if len(tr.writes) != 0 {
		t.Fatalf("expected no writes, got %+v", tr.writes)
	}
	if b.Resolved() {
		t.Fatal("expected slot to stay unresolved")
	}
}

func TestCommitNewEmptySessionIsNotWritten(t *testing.T) {
	tr := &recordingTransport{}
	engine := buildBindingTestEngine(t, tr, nil)

	b := bindRequest(engine)
	s := b.Session()
	if s == nil || !s.IsNew() || s.IsPopulated() {
		t.Fatalf("expected fresh empty session, got %+v", s)
	}
	b.Commit()

	if len(tr.writes) != 0 {
		t.Fatalf("expected no writes for new empty session, got %+v", tr.writes)
	}
	if got := engine.MetricsSnapshot().Counters[MetricCookieSkipped]; got != 1 {
		t.Fatalf("expected skipped=1, got %d", got)
	}
}

func TestCommitNewPopulatedSessionWritesOnce(t *testing.T) {
	tr := &recordingTransport{}
	engine := buildBindingTestEngine(t, tr, nil)

	b := bindRequest(engine)
	b.Session().Set("a", 1)
	b.Commit()
	b.Commit()

	if len(tr.writes) != 1 {
		t.Fatalf("expected exactly one write, got %+v", tr.writes)
	}
	w := tr.writes[0]
	if w.name != "session" || w.isDelete() {
		t.Fatalf("unexpected write %+v", w)
	}
	if w.value != encodeCookie(t, map[string]any{"a": 1}) {
		t.Fatalf("expected {\"a\":1} payload, got %q", w.value)
	}
	if w.opts.MaxAge != int((24*time.Hour).Seconds()) || !w.opts.HTTPOnly || w.opts.Path != "/" {
		t.Fatalf("expected configured options to be forwarded, got %+v", w.opts)
	}
	if !b.Committed() {
		t.Fatal("expected binding to report committed")
	}
}

func TestCommitLoadedUnchangedSessionIsNotWritten(t *testing.T) {
	tr := &recordingTransport{inbound: map[string]string{
		"session": encodeCookie(t, map[string]any{"user": "alice", "n": 3}),
	}}
	engine := buildBindingTestEngine(t, tr, nil)

	b := bindRequest(engine)
	s := b.Session()
	if s.IsNew() || s.GetString("user") != "alice" {
		t.Fatalf("expected loaded session, got new=%v user=%q", s.IsNew(), s.GetString("user"))
	}
	s.Set("user", "alice")
	b.Commit()

	if len(tr.writes) != 0 {
		t.Fatalf("expected no write when value is unchanged, got %+v", tr.writes)
	}
	if got := engine.MetricsSnapshot().Counters[MetricSessionLoaded]; got != 1 {
		t.Fatalf("expected loaded=1, got %d", got)
	}
}

func TestCommitLoadedMutatedSessionIsWritten(t *testing.T) {
	tr := &recordingTransport{inbound: map[string]string{
		"session": encodeCookie(t, map[string]any{"views": 1}),
	}}
	engine := buildBindingTestEngine(t, tr, nil)

	b := bindRequest(engine)
	views, _ := b.Session().GetInt64("views")
	b.Session().Set("views", views+1)
	b.Commit()

	if len(tr.writes) != 1 {
		t.Fatalf("expected one write, got %+v", tr.writes)
	}
	payload := decodeWrite(t, tr.writes[0])
	if payload["views"] != json.Number("2") {
		t.Fatalf("expected views=2, got %#v", payload["views"])
	}
}

func TestCommitClearedSessionDeletesOnce(t *testing.T) {
	tr := &recordingTransport{inbound: map[string]string{
		"session": encodeCookie(t, map[string]any{"user": "alice"}),
	}}
	engine := buildBindingTestEngine(t, tr, nil)

	b := bindRequest(engine)
	if b.Session() == nil {
		t.Fatal("expected loaded session")
	}
	if err := b.SetSession(nil); err != nil {
		t.Fatalf("SetSession(nil) failed: %v", err)
	}
	b.Commit()

	if len(tr.writes) != 1 || tr.deletes() != 1 {
		t.Fatalf("expected exactly one delete and no writes, got %+v", tr.writes)
	}
	if got := engine.MetricsSnapshot().Counters[MetricCookieDeleted]; got != 1 {
		t.Fatalf("expected deleted=1, got %d", got)
	}
}

func TestClearedSessionIsNeverReloaded(t *testing.T) {
	tr := &recordingTransport{inbound: map[string]string{
		"session": encodeCookie(t, map[string]any{"user": "alice"}),
	}}
	engine := buildBindingTestEngine(t, tr, nil)

	b := bindRequest(engine)
	b.ClearSession()
	for i := 0; i < 3; i++ {
		if s := b.Session(); s != nil {
			t.Fatalf("expected nil session after clear, got %+v", s)
		}
	}
	if tr.reads != 0 {
		t.Fatalf("expected no cookie reads after clear, got %d", tr.reads)
	}
	if !b.Resolved() || !b.Cleared() {
		t.Fatal("expected resolved and cleared slot")
	}
	if SessionFromContext(WithBinding(context.Background(), b)) != nil {
		t.Fatal("expected nil session through context after clear")
	}
}

func TestClearedThenReassignedIsWritten(t *testing.T) {
	tr := &recordingTransport{}
	engine := buildBindingTestEngine(t, tr, nil)

	b := bindRequest(engine)
	b.ClearSession()
	if err := b.SetSession(map[string]any{"fresh": true}); err != nil {
		t.Fatalf("SetSession failed: %v", err)
	}
	b.Commit()

	if len(tr.writes) != 1 || tr.deletes() != 0 {
		t.Fatalf("expected a single write, got %+v", tr.writes)
	}
	if decodeWrite(t, tr.writes[0])["fresh"] != true {
		t.Fatalf("unexpected payload in %+v", tr.writes[0])
	}
}

func TestMalformedCookieYieldsFreshSession(t *testing.T) {
	for _, raw := range []string{"%%%not-base64", "bm90IGpzb24", "WzEsMiwzXQ", "bnVsbA"} {
		t.Run(raw, func(t *testing.T) {
			tr := &recordingTransport{inbound: map[string]string{"session": raw}}
			engine := buildBindingTestEngine(t, tr, nil)

			b := bindRequest(engine)
			s := b.Session()
			if s == nil || !s.IsNew() || s.IsPopulated() {
				t.Fatalf("expected fresh empty session, got %+v", s)
			}
			b.Commit()
			if len(tr.writes) != 0 {
				t.Fatalf("expected no writes, got %+v", tr.writes)
			}
			if got := engine.MetricsSnapshot().Counters[MetricSessionMalformed]; got != 1 {
				t.Fatalf("expected malformed=1, got %d", got)
			}
		})
	}
}

func TestReadErrorYieldsFreshSession(t *testing.T) {
	tr := &recordingTransport{readErr: transport.ErrUnsigned}
	engine := buildBindingTestEngine(t, tr, nil)

	b := bindRequest(engine)
	s := b.Session()
	if s == nil || !s.IsNew() {
		t.Fatalf("expected fresh session, got %+v", s)
	}
	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricSessionReadFailure] != 1 || snap.Counters[MetricSessionCreated] != 1 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
}

func TestSetSessionRejectsNonObjects(t *testing.T) {
	tr := &recordingTransport{inbound: map[string]string{
		"session": encodeCookie(t, map[string]any{"user": "alice"}),
	}}
	engine := buildBindingTestEngine(t, tr, nil)

	invalid := []any{42, 3.5, "alice", true, []string{"a"}, [2]int{1, 2}, func() {}, make(chan int), map[int]string{1: "a"}}

	b := bindRequest(engine)
	for _, v := range invalid {
		if err := b.SetSession(v); !errors.Is(err, ErrInvalidSessionValue) {
			t.Fatalf("SetSession(%T): expected ErrInvalidSessionValue, got %v", v, err)
		}
	}
	if b.Resolved() {
		t.Fatal("rejected assignment must leave an unresolved slot untouched")
	}

	s := b.Session()
	if err := b.SetSession(7); err == nil {
		t.Fatal("expected error")
	}
	if b.Session() != s || s.GetString("user") != "alice" {
		t.Fatal("rejected assignment must keep the present session")
	}
	if got := engine.MetricsSnapshot().Counters[MetricInvalidAssignment]; got != uint64(len(invalid)+1) {
		t.Fatalf("expected %d invalid assignments, got %d", len(invalid)+1, got)
	}
}

func TestSetSessionRejectsUnencodableObjects(t *testing.T) {
	engine := buildBindingTestEngine(t, &recordingTransport{}, nil)
	unencodable := session.New(nil, map[string]any{"fn": func() {}})

	for _, v := range []any{
		map[string]any{"c": make(chan int)},
		map[string]chan int{"c": make(chan int)},
		unencodable,
	} {
		b := bindRequest(engine)
		if err := b.SetSession(v); !errors.Is(err, ErrInvalidSessionValue) {
			t.Fatalf("SetSession(%T): expected ErrInvalidSessionValue, got %v", v, err)
		}
		if b.Resolved() {
			t.Fatalf("SetSession(%T): rejected value must leave the slot untouched", v)
		}
	}
}

type profile struct {
	User  string `json:"user"`
	Admin bool   `json:"admin,omitempty"`
	Theme string `json:"-"`
}

func TestSetSessionAcceptsObjects(t *testing.T) {
	existing := session.New(nil, map[string]any{"copied": "yes"})

	tests := []struct {
		name  string
		value any
		want  map[string]any
	}{
		{name: "map any", value: map[string]any{"a": 1}, want: map[string]any{"a": json.Number("1")}},
		{name: "typed map", value: map[string]int{"a": 1}, want: map[string]any{"a": json.Number("1")}},
		{name: "struct", value: profile{User: "alice", Theme: "dark"}, want: map[string]any{"user": "alice"}},
		{name: "struct pointer", value: &profile{User: "bob", Admin: true}, want: map[string]any{"user": "bob", "admin": true}},
		{name: "session", value: existing, want: map[string]any{"copied": "yes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &recordingTransport{}
			engine := buildBindingTestEngine(t, tr, nil)

			b := bindRequest(engine)
			if err := b.SetSession(tt.value); err != nil {
				t.Fatalf("SetSession failed: %v", err)
			}
			s := b.Session()
			if s == nil || !s.IsNew() {
				t.Fatalf("expected a new session, got %+v", s)
			}
			b.Commit()

			if len(tr.writes) != 1 {
				t.Fatalf("expected one write, got %+v", tr.writes)
			}
			got := decodeWrite(t, tr.writes[0])
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Fatalf("key %q: expected %#v, got %#v", k, v, got[k])
				}
			}
		})
	}
}

func TestSetSessionCopiesSourceSession(t *testing.T) {
	engine := buildBindingTestEngine(t, &recordingTransport{}, nil)
	source := session.New(nil, map[string]any{"a": 1})

	b := bindRequest(engine)
	if err := b.SetSession(source); err != nil {
		t.Fatalf("SetSession failed: %v", err)
	}
	source.Set("later", true)

	if b.Session() == source || b.Session().Has("later") {
		t.Fatal("assigned session must not share state with its source")
	}
}

func TestSetSessionNilVariantsClear(t *testing.T) {
	var nilMap map[string]any
	var nilTyped map[string]int
	var nilProfile *profile
	var nilSession *session.Session

	for _, v := range []any{nil, nilMap, nilTyped, nilProfile, nilSession} {
		tr := &recordingTransport{}
		engine := buildBindingTestEngine(t, tr, nil)

		b := bindRequest(engine)
		if err := b.SetSession(v); err != nil {
			t.Fatalf("SetSession(%T) failed: %v", v, err)
		}
		if !b.Cleared() {
			t.Fatalf("SetSession(%T) should clear", v)
		}
		b.Commit()
		if tr.deletes() != 1 {
			t.Fatalf("SetSession(%T): expected delete, got %+v", v, tr.writes)
		}
	}
}

func TestAssigningEmptyObjectOverLoadedSessionIsNotWritten(t *testing.T) {
	tr := &recordingTransport{inbound: map[string]string{
		"session": encodeCookie(t, map[string]any{"user": "alice"}),
	}}
	engine := buildBindingTestEngine(t, tr, nil)

	b := bindRequest(engine)
	_ = b.Session()
	if err := b.SetSession(map[string]any{}); err != nil {
		t.Fatalf("SetSession failed: %v", err)
	}
	if !b.Session().IsNew() {
		t.Fatal("assigned session must be new")
	}
	b.Commit()

	if len(tr.writes) != 0 {
		t.Fatalf("new empty session must not be written, got %+v", tr.writes)
	}
}

func TestEmptiedLoadedSessionIsWrittenNotDeleted(t *testing.T) {
	tr := &recordingTransport{inbound: map[string]string{
		"session": encodeCookie(t, map[string]any{"a": 1, "b": "two"}),
	}}
	engine := buildBindingTestEngine(t, tr, nil)

	b := bindRequest(engine)
	b.Session().DeleteAll()
	b.Commit()

	if len(tr.writes) != 1 || tr.deletes() != 0 {
		t.Fatalf("expected a write and no delete, got %+v", tr.writes)
	}
	if tr.writes[0].value != "e30" {
		t.Fatalf("expected empty-object serialization, got %q", tr.writes[0].value)
	}
}

func TestNonCanonicalCookieIsRewritten(t *testing.T) {
	tr := &recordingTransport{inbound: map[string]string{
		// {"b":1,"a":2}
		"session": "eyJiIjoxLCJhIjoyfQ",
	}}
	engine := buildBindingTestEngine(t, tr, nil)

	b := bindRequest(engine)
	_ = b.Session()
	b.Commit()

	if len(tr.writes) != 1 {
		t.Fatalf("expected canonical rewrite, got %+v", tr.writes)
	}
	if tr.writes[0].value != encodeCookie(t, map[string]any{"a": 2, "b": 1}) {
		t.Fatalf("unexpected rewrite %q", tr.writes[0].value)
	}
}

func TestWriteFailureIsLoggedAndSwallowed(t *testing.T) {
	var logs bytes.Buffer
	tr := &recordingTransport{writeErr: transport.ErrTooLarge}
	cfg := bindingTestConfig()
	cfg.Audit = AuditConfig{Enabled: true, BufferSize: 8, DropIfFull: true}
	sink := NewChannelSink(8)

	engine, err := New().
		WithConfig(cfg).
		WithTransport(tr).
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	b := bindRequest(engine)
	b.Session().Set("blob", strings.Repeat("x", 16))
	b.Commit()

	if got := engine.MetricsSnapshot().Counters[MetricCookieWriteFailure]; got != 1 {
		t.Fatalf("expected write failure counter=1, got %d", got)
	}
	if !strings.Contains(logs.String(), "cookiesession: session cookie write failed") {
		t.Fatalf("expected error log, got %q", logs.String())
	}

	select {
	case ev := <-sink.Events():
		if ev.EventType != auditEventCookieWriteFailed || ev.Error != string(auditErrTooLarge) || ev.Success {
			t.Fatalf("unexpected audit event %+v", ev)
		}
		if ev.Path != "/app" || ev.Cookie != "session" {
			t.Fatalf("expected request fields on event, got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected write failure audit event")
	}
}

func TestEncodeFailureIsSwallowed(t *testing.T) {
	tr := &recordingTransport{}
	engine := buildBindingTestEngine(t, tr, nil)

	b := bindRequest(engine)
	b.Session().Set("fn", func() {})
	b.Commit()

	if len(tr.writes) != 0 {
		t.Fatalf("expected no write for unencodable session, got %+v", tr.writes)
	}
	if got := engine.MetricsSnapshot().Counters[MetricCookieWriteFailure]; got != 1 {
		t.Fatalf("expected write failure counter=1, got %d", got)
	}
}

func TestNilBindingIsSafe(t *testing.T) {
	var engine *Engine
	b := engine.Bind(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if b != nil {
		t.Fatal("expected nil binding from nil engine")
	}
	if b.Session() != nil || b.Resolved() || b.Cleared() || b.Committed() {
		t.Fatal("nil binding must report an empty state")
	}
	if err := b.SetSession(map[string]any{}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	b.Commit()
}

func TestBindingContextHelpers(t *testing.T) {
	tr := &recordingTransport{}
	engine := buildBindingTestEngine(t, tr, nil)
	b := bindRequest(engine)

	if _, ok := BindingFromContext(context.Background()); ok {
		t.Fatal("expected no binding on empty context")
	}
	ctx := WithBinding(context.Background(), b)
	got, ok := BindingFromContext(ctx)
	if !ok || got != b {
		t.Fatal("expected attached binding")
	}
	if s := SessionFromContext(ctx); s == nil || s != b.Session() {
		t.Fatal("expected session through context")
	}
}

func BenchmarkCommitChangedSession(b *testing.B) {
	tr := &recordingTransport{}
	cfg := bindingTestConfig()
	engine, err := New().WithConfig(cfg).WithTransport(tr).WithLogger(discardLogger()).Build()
	if err != nil {
		b.Fatalf("Build failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		tr.writes = tr.writes[:0]
		bind := engine.Bind(nil, req)
		bind.Session().Set("user", "alice")
		bind.Commit()
	}
}
