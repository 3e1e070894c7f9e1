package prometheus

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders engine metrics in text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from engine.
func NewPrometheusExporter(engine *authcore.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource reads from any value with the engine's
// MetricsSnapshot and AuditDropped methods.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves Render.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = p.WriteTo(w)
	})
}

// WriteTo writes Render to w.
func (p *PrometheusExporter) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, p.Render())
	return int64(n), err
}

// Render returns the current metrics, or "" when metrics are disabled and
// no audit event was dropped.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	tw := &textWriter{}
	tw.buf.Grow(4096)
	for _, def := range internaldefs.CounterDefs {
		tw.counter(def.Name, def.Help, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		if raw, ok := snap.Histograms[def.ID]; ok {
			tw.histogram(def.Name, def.Help, internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw)))
		}
	}
	tw.counter(internaldefs.AuditDroppedName, "Audit events dropped by dispatcher backpressure.", dropped)
	return tw.buf.String()
}

// textWriter emits the 0.0.4 text exposition format.
type textWriter struct {
	buf strings.Builder
}

func (tw *textWriter) family(name, help, kind string) {
	help = helpEscaper.Replace(help)
	fmt.Fprintf(&tw.buf, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}

func (tw *textWriter) counter(name, help string, v uint64) {
	tw.family(name, help, "counter")
	fmt.Fprintf(&tw.buf, "%s %d\n", name, v)
}

func (tw *textWriter) histogram(name, help string, cumulative [8]uint64) {
	tw.family(name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		fmt.Fprintf(&tw.buf, "%s_bucket{le=%q} %d\n", name, le, cumulative[i])
	}
	// Buckets carry counts only, so the sum is not tracked.
	fmt.Fprintf(&tw.buf, "%s_count %d\n%s_sum 0\n", name, cumulative[len(cumulative)-1], name)
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)
