// Package otel binds cookie session engine metrics to OpenTelemetry.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter
// family (loads, assignments, commits) with the outcome as an attribute,
// plus gauges for the cumulative commit latency buckets keyed by "le". A
// single callback reads the engine snapshot on each collection. Callers
// own the MeterProvider.
package otel
