package otel

import (
	"context"
	"errors"
	"fmt"

	cookiesession "github.com/fairmanager/fm-cookie-session"
	"github.com/fairmanager/fm-cookie-session/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no metrics source is supplied.
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() cookiesession.MetricsSnapshot
	AuditDropped() uint64
}

// labeledSeries is one engine counter bound to the attribute set it is
// observed with.
type labeledSeries struct {
	id    cookiesession.MetricID
	attrs metric.ObserveOption
}

type family struct {
	counter metric.Int64ObservableCounter
	series  []labeledSeries
}

// OTelExporter publishes engine metrics through observable instruments
// read in a single collection callback. Counter families carry their
// outcome as an attribute; commit latency buckets carry an "le" attribute.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	families     []family
	buckets      metric.Int64ObservableGauge
	bucketAttrs  [8]metric.ObserveOption
	latencyCount metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers instruments for engine on meter.
func NewOTelExporter(meter metric.Meter, engine *cookiesession.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments for any snapshot source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.Families {
		counter, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		f := family{counter: counter, series: make([]labeledSeries, 0, len(def.Series))}
		for _, s := range def.Series {
			f.series = append(f.series, labeledSeries{
				id:    s.ID,
				attrs: metric.WithAttributes(attribute.String(def.Label, s.Value)),
			})
		}
		e.families = append(e.families, f)
		observables = append(observables, counter)
	}

	var err error
	e.buckets, err = meter.Int64ObservableGauge(
		internaldefs.CommitLatencyName+"_bucket",
		metric.WithDescription("Cumulative commit latency bucket counts."),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency buckets: %w", err)
	}
	for i, le := range internaldefs.LatencyBounds {
		e.bucketAttrs[i] = metric.WithAttributes(attribute.String("le", le))
	}
	e.latencyCount, err = meter.Int64ObservableGauge(
		internaldefs.CommitLatencyName+"_count",
		metric.WithDescription("Commits observed by the latency histogram."),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency count: %w", err)
	}
	e.auditDropped, err = meter.Int64ObservableCounter(
		internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	observables = append(observables, e.buckets, e.latencyCount, e.auditDropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()

	if len(snap.Counters) > 0 {
		for _, f := range e.families {
			for _, s := range f.series {
				o.ObserveInt64(f.counter, int64(snap.Counters[s.id]), s.attrs)
			}
		}
	}

	if _, ok := snap.Histograms[cookiesession.MetricCommitLatency]; ok {
		buckets := internaldefs.CommitLatency(snap)
		for i, n := range buckets {
			o.ObserveInt64(e.buckets, int64(n), e.bucketAttrs[i])
		}
		o.ObserveInt64(e.latencyCount, int64(buckets[len(buckets)-1]))
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
