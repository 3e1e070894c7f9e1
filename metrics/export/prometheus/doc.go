// Package prometheus renders authcore metrics in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] wraps an [authcore.Engine] and serves the output
// from [PrometheusExporter.Handler]. Counters are named authcore_*_total and
// latency histograms authcore_*_seconds. Nothing is registered globally.
package prometheus
