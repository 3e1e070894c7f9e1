// Package otel publishes authcore counters and histograms through an
// OpenTelemetry Meter.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter and one
// Int64ObservableGauge per histogram bucket. A single callback reads
// [authcore.Engine.MetricsSnapshot] on each collection. Callers own the
// MeterProvider.
package otel
