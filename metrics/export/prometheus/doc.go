// Package prometheus renders cookie session engine metrics in Prometheus
// text exposition format.
//
// [NewPrometheusExporter] wraps an engine and exposes an [http.Handler].
// Counters are published as three labeled families:
// cookiesession_loads_total{result}, cookiesession_assignments_total{effect}
// and cookiesession_commits_total{outcome}. The commit histogram is
// cookiesession_commit_latency_seconds. Nothing is registered globally;
// callers mount the handler themselves.
package prometheus
