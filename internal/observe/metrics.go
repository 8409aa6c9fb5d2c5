// Package observe provides application-wide observability primitives for
// Voxgate: OpenTelemetry metrics, distributed tracing, structured logging,
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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Voxgate metrics.
const meterName = "github.com/voxgate/voxgate"

// Metrics holds all OpenTelemetry metric instruments for the gateway.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per upstream kind ---

	// LLMChunkLatency tracks the gap between consecutive LLM stream chunks.
	LLMChunkLatency metric.Float64Histogram

	// TTSSynthesisDuration tracks per-batch speech synthesis latency.
	TTSSynthesisDuration metric.Float64Histogram

	// STTTranscriptionDuration tracks speech-to-text event latency.
	STTTranscriptionDuration metric.Float64Histogram

	// EncodeDuration tracks audio transcoding latency per batch.
	EncodeDuration metric.Float64Histogram

	// --- Counters ---

	// UpstreamRequests counts upstream model-server calls. Use with attributes:
	//   attribute.String("model", ...), attribute.String("kind", ...), attribute.String("status", ...)
	UpstreamRequests metric.Int64Counter

	// BargeIns counts realtime assistant turns cut short by the user.
	BargeIns metric.Int64Counter

	// --- Error counters ---

	// UpstreamErrors counts upstream failures. Use with attributes:
	//   attribute.String("model", ...), attribute.String("kind", ...)
	UpstreamErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live realtime voice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ActiveStreams tracks the number of in-flight streaming HTTP responses.
	ActiveStreams metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.LLMChunkLatency, err = m.Float64Histogram("voxgate.llm.chunk_latency",
		metric.WithDescription("Gap between consecutive LLM stream chunks."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSSynthesisDuration, err = m.Float64Histogram("voxgate.tts.duration",
		metric.WithDescription("Latency of per-batch speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTTranscriptionDuration, err = m.Float64Histogram("voxgate.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription events."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EncodeDuration, err = m.Float64Histogram("voxgate.encode.duration",
		metric.WithDescription("Latency of audio transcoding per batch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.UpstreamRequests, err = m.Int64Counter("voxgate.upstream.requests",
		metric.WithDescription("Total upstream model-server requests by model, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.BargeIns, err = m.Int64Counter("voxgate.realtime.barge_ins",
		metric.WithDescription("Total assistant turns interrupted by the user."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.UpstreamErrors, err = m.Int64Counter("voxgate.upstream.errors",
		metric.WithDescription("Total upstream failures by model and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxgate.active_sessions",
		metric.WithDescription("Number of live realtime voice sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveStreams, err = m.Int64UpDownCounter("voxgate.active_streams",
		metric.WithDescription("Number of in-flight streaming HTTP responses."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxgate.http.request.duration",
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

// RecordUpstreamRequest records an upstream request counter increment with
// the standard attribute set.
func (m *Metrics) RecordUpstreamRequest(ctx context.Context, model, kind, status string) {
	m.UpstreamRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordUpstreamError records an upstream error counter increment.
func (m *Metrics) RecordUpstreamError(ctx context.Context, model, kind string) {
	m.UpstreamErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("kind", kind),
		),
	)
}

// RecordBargeIn records one interrupted assistant turn.
func (m *Metrics) RecordBargeIn(ctx context.Context, model string) {
	m.BargeIns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("model", model)),
	)
}

// RecordLLMChunkGap records the elapsed time between two consecutive chunks
// of one LLM stream.
func (m *Metrics) RecordLLMChunkGap(ctx context.Context, d time.Duration) {
	m.LLMChunkLatency.Record(ctx, d.Seconds())
}

// RecordTTSSynthesis records the wall time one batch spent in speech
// synthesis, from the first request to the last PCM chunk.
func (m *Metrics) RecordTTSSynthesis(ctx context.Context, model string, d time.Duration) {
	m.TTSSynthesisDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("model", model)),
	)
}

// RecordSTTEvent records the elapsed time between consecutive transcription
// events of one STT stream.
func (m *Metrics) RecordSTTEvent(ctx context.Context, model string, d time.Duration) {
	m.STTTranscriptionDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("model", model)),
	)
}

// RecordEncode records the wall time one encoder instance spent over a batch.
func (m *Metrics) RecordEncode(ctx context.Context, format string, d time.Duration) {
	m.EncodeDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("format", format)),
	)
}
