package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	cookiesession "github.com/fairmanager/fm-cookie-session"
	"github.com/fairmanager/fm-cookie-session/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() cookiesession.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders engine metrics in Prometheus text exposition
// format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from engine on every scrape.
func NewPrometheusExporter(engine *cookiesession.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource reads from any snapshot source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves Render over HTTP.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics, or "" when metrics are disabled and
// no audit event was dropped.
//
// Counters are grouped into labeled families, for example
//
//	cookiesession_commits_total{outcome="written"} 12
//
// and the commit histogram is only emitted when latency is recorded.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var t textWriter
	t.b.Grow(2048)

	if len(snap.Counters) > 0 {
		for _, f := range internaldefs.Families {
			t.header(f.Name, f.Help, "counter")
			for _, s := range f.Series {
				t.sample(f.Name, f.Label, s.Value, snap.Counters[s.ID])
			}
		}
	}

	if _, ok := snap.Histograms[cookiesession.MetricCommitLatency]; ok {
		name := internaldefs.CommitLatencyName
		buckets := internaldefs.CommitLatency(snap)
		t.header(name, internaldefs.CommitLatencyHelp, "histogram")
		for i, le := range internaldefs.LatencyBounds {
			t.sample(name+"_bucket", "le", le, buckets[i])
		}
		t.sample(name+"_count", "", "", buckets[len(buckets)-1])
		// Snapshots carry bucket counts only.
		t.sample(name+"_sum", "", "", 0)
	}

	t.header(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	t.sample(internaldefs.AuditDroppedName, "", "", dropped)

	return t.b.String()
}

type textWriter struct {
	b strings.Builder
}

func (t *textWriter) header(name, help, kind string) {
	t.b.WriteString("# HELP ")
	t.b.WriteString(name)
	t.b.WriteByte(' ')
	t.b.WriteString(escapeHelp(help))
	t.b.WriteString("\n# TYPE ")
	t.b.WriteString(name)
	t.b.WriteByte(' ')
	t.b.WriteString(kind)
	t.b.WriteByte('\n')
}

// sample writes one line; label is omitted when empty.
func (t *textWriter) sample(name, label, value string, n uint64) {
	t.b.WriteString(name)
	if label != "" {
		t.b.WriteByte('{')
		t.b.WriteString(label)
		t.b.WriteString(`="`)
		t.b.WriteString(value)
		t.b.WriteString(`"}`)
	}
	t.b.WriteByte(' ')
	t.b.WriteString(strconv.FormatUint(n, 10))
	t.b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
