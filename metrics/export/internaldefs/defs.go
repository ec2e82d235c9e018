package internaldefs

import (
	cookiesession "github.com/fairmanager/fm-cookie-session"
)

// Series is one labeled value of a counter family.
type Series struct {
	ID    cookiesession.MetricID
	Value string
}

// Family groups engine counters that describe alternative outcomes of the
// same step under one metric name, told apart by Label.
type Family struct {
	Name   string
	Help   string
	Label  string
	Series []Series
}

// Families lists every exported counter family in a stable order. Each
// engine counter belongs to exactly one family.
var Families = []Family{
	{
		Name:  "cookiesession_loads_total",
		Help:  "First session accesses per request, by how the session was obtained.",
		Label: "result",
		Series: []Series{
			{ID: cookiesession.MetricSessionLoaded, Value: "loaded"},
			{ID: cookiesession.MetricSessionCreated, Value: "created"},
			{ID: cookiesession.MetricSessionMalformed, Value: "malformed"},
			{ID: cookiesession.MetricSessionReadFailure, Value: "read_failed"},
		},
	},
	{
		Name:  "cookiesession_assignments_total",
		Help:  "Session assignments through SetSession, by effect.",
		Label: "effect",
		Series: []Series{
			{ID: cookiesession.MetricSessionReplaced, Value: "replaced"},
			{ID: cookiesession.MetricSessionCleared, Value: "cleared"},
			{ID: cookiesession.MetricInvalidAssignment, Value: "rejected"},
		},
	},
	{
		Name:  "cookiesession_commits_total",
		Help:  "Cookie decisions taken at commit, by outcome.",
		Label: "outcome",
		Series: []Series{
			{ID: cookiesession.MetricCookieWritten, Value: "written"},
			{ID: cookiesession.MetricCookieDeleted, Value: "deleted"},
			{ID: cookiesession.MetricCookieSkipped, Value: "skipped"},
			{ID: cookiesession.MetricCookieWriteFailure, Value: "failed"},
		},
	},
}

// CommitLatencyName is the commit latency histogram.
const CommitLatencyName = "cookiesession_commit_latency_seconds"

// CommitLatencyHelp describes CommitLatencyName.
const CommitLatencyHelp = "Time spent deciding and writing the session cookie."

// LatencyBounds are the commit histogram upper bounds in seconds, matching
// the engine's 10µs to 1ms buckets.
var LatencyBounds = [8]string{
	"0.00001",
	"0.000025",
	"0.00005",
	"0.0001",
	"0.00025",
	"0.0005",
	"0.001",
	"+Inf",
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "cookiesession_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Audit events dropped by a full dispatcher buffer."

// CommitLatency returns the cumulative bucket counts for the commit
// histogram in snap. Missing or short histograms read as zero.
func CommitLatency(snap cookiesession.MetricsSnapshot) [8]uint64 {
	var out [8]uint64
	var running uint64
	raw := snap.Histograms[cookiesession.MetricCommitLatency]
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
