package cookiesession

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fairmanager/fm-cookie-session/transport"
)

// Engine holds the immutable per-application session settings. It is safe
// for concurrent use; all per-request state lives in the [Binding]s it
// creates.
type Engine struct {
	config    Config
	opts      transport.Options
	transport transport.Transport
	logger    *slog.Logger
	audit     *auditDispatcher
	metrics   *Metrics
}

// Bind creates the session accessor for one request. w receives the
// Set-Cookie header when the binding commits.
func (e *Engine) Bind(w http.ResponseWriter, r *http.Request) *Binding {
	if e == nil {
		return nil
	}
	return &Binding{
		engine: e,
		w:      w,
		r:      r,
	}
}

// CookieName returns the configured session cookie name.
func (e *Engine) CookieName() string {
	if e == nil {
		return ""
	}
	return e.config.Cookie.Name
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events that were not delivered.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeLatency(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}
