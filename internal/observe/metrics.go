// Package observe provides application-wide observability primitives for
// murmur: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all murmur metrics.
const meterName = "github.com/quietloop/murmur"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TickDuration tracks how long a single scheduler tick takes end to
	// end, including any decode it dispatches synchronously triggers.
	TickDuration metric.Float64Histogram

	// DecodeDuration tracks decoder call latency, window and full-session
	// calls alike (distinguished by the "kind" attribute).
	DecodeDuration metric.Float64Histogram

	// --- Counters ---

	// SilentTicks counts ticks skipped because the window was judged
	// silence.
	SilentTicks metric.Int64Counter

	// QueuedTicksDropped counts ticks dropped because a decode was
	// already queued and running (the backpressure bound is at most one
	// in flight, at most one queued).
	QueuedTicksDropped metric.Int64Counter

	// FlickerEvents counts speculative words shown in one update and
	// replaced by the next.
	FlickerEvents metric.Int64Counter

	// DecoderErrors counts decode failures by kind (transient, fatal,
	// finalization).
	DecoderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of currently recording sessions.
	ActiveSessions metric.Int64UpDownCounter

	// CommitCursorLagMs tracks how far behind the live audio edge the
	// commit cursor is trailing, sampled per update.
	CommitCursorLagMs metric.Int64Gauge

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for sub-second pipeline ticks and multi-second decode calls.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TickDuration, err = m.Float64Histogram("murmur.tick.duration",
		metric.WithDescription("Latency of a single scheduler tick."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DecodeDuration, err = m.Float64Histogram("murmur.decode.duration",
		metric.WithDescription("Latency of a decoder call, by kind (window, full)."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.SilentTicks, err = m.Int64Counter("murmur.silent_ticks",
		metric.WithDescription("Total ticks skipped because the window was judged silence."),
	); err != nil {
		return nil, err
	}
	if met.QueuedTicksDropped, err = m.Int64Counter("murmur.queued_ticks_dropped",
		metric.WithDescription("Total ticks dropped because a decode was already queued."),
	); err != nil {
		return nil, err
	}
	if met.FlickerEvents, err = m.Int64Counter("murmur.flicker_events",
		metric.WithDescription("Total speculative words replaced on the very next update."),
	); err != nil {
		return nil, err
	}
	if met.DecoderErrors, err = m.Int64Counter("murmur.decoder.errors",
		metric.WithDescription("Total decode failures by kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("murmur.active_sessions",
		metric.WithDescription("Number of currently recording sessions."),
	); err != nil {
		return nil, err
	}
	if met.CommitCursorLagMs, err = m.Int64Gauge("murmur.commit_cursor_lag_ms",
		metric.WithDescription("Milliseconds the commit cursor trails the live audio edge, sampled per update."),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("murmur.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordDecode is a convenience method that records a decode call's
// duration and, on failure, a decoder error by kind.
func (m *Metrics) RecordDecode(ctx context.Context, kind string, seconds float64, errKind string) {
	m.DecodeDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("kind", kind)))
	if errKind != "" {
		m.DecoderErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", errKind)))
	}
}

// RecordCommitCursorLag records the gap, in milliseconds, between the live
// audio edge and the stabilizer's commit cursor at the time of an update.
func (m *Metrics) RecordCommitCursorLag(ctx context.Context, lagMs int64) {
	m.CommitCursorLagMs.Record(ctx, lagMs)
}
