// Package observe provides application-wide observability primitives for
// voxhold: OpenTelemetry metrics, tracing helpers, and structured-logging
// glue.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all voxhold metrics.
const meterName = "github.com/voxhold/voxhold"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// TranscribeDuration tracks offline transcription latency per chunk.
	TranscribeDuration metric.Float64Histogram

	// EnhanceDuration tracks LLM enhancement latency.
	EnhanceDuration metric.Float64Histogram

	// SessionsStarted counts accepted dictation session starts.
	SessionsStarted metric.Int64Counter

	// ChunksFinalized counts chunk boundaries, by trigger. Use with
	// attribute:
	//   attribute.String("trigger", "silence"|"key"|"stop")
	ChunksFinalized metric.Int64Counter

	// RecordingsDiscarded counts recordings dropped by the minimum-hold
	// guard.
	RecordingsDiscarded metric.Int64Counter

	// ProviderErrors counts provider failures. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// DictionaryPromotions counts corrections promoted to the dictionary.
	DictionaryPromotions metric.Int64Counter

	// ActiveSessions tracks the number of live dictation sessions
	// (0 or 1 in practice, but the gauge keeps the invariant observable).
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// transcription and enhancement passes.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscribeDuration, err = m.Float64Histogram("voxhold.transcribe.duration",
		metric.WithDescription("Latency of the offline transcription pass."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EnhanceDuration, err = m.Float64Histogram("voxhold.enhance.duration",
		metric.WithDescription("Latency of LLM text enhancement."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionsStarted, err = m.Int64Counter("voxhold.sessions.started",
		metric.WithDescription("Total accepted dictation session starts."),
	); err != nil {
		return nil, err
	}
	if met.ChunksFinalized, err = m.Int64Counter("voxhold.chunks.finalized",
		metric.WithDescription("Total chunk boundaries by trigger."),
	); err != nil {
		return nil, err
	}
	if met.RecordingsDiscarded, err = m.Int64Counter("voxhold.recordings.discarded",
		metric.WithDescription("Recordings dropped by the minimum-hold guard."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voxhold.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.DictionaryPromotions, err = m.Int64Counter("voxhold.dictionary.promotions",
		metric.WithDescription("Corrections promoted to the custom dictionary."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxhold.active_sessions",
		metric.WithDescription("Number of live dictation sessions."),
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

// RecordTranscribe records one offline transcription pass. A nil Metrics
// receiver is a no-op, so callers without telemetry wiring need no guards.
func (m *Metrics) RecordTranscribe(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.TranscribeDuration.Record(ctx, d.Seconds())
}

// RecordEnhance records one enhancement call.
func (m *Metrics) RecordEnhance(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.EnhanceDuration.Record(ctx, d.Seconds())
}

// RecordChunkFinalized records a chunk boundary with its trigger.
func (m *Metrics) RecordChunkFinalized(ctx context.Context, trigger string) {
	if m == nil {
		return
	}
	m.ChunksFinalized.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}

// RecordSessionStarted records an accepted session start.
func (m *Metrics) RecordSessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.SessionsStarted.Add(ctx, 1)
}

// RecordRecordingDiscarded records a minimum-hold discard.
func (m *Metrics) RecordRecordingDiscarded(ctx context.Context) {
	if m == nil {
		return
	}
	m.RecordingsDiscarded.Add(ctx, 1)
}

// RecordProviderError records a provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	if m == nil {
		return
	}
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordDictionaryPromotion records a learning promotion.
func (m *Metrics) RecordDictionaryPromotion(ctx context.Context) {
	if m == nil {
		return
	}
	m.DictionaryPromotions.Add(ctx, 1)
}

// SessionActive adjusts the active-session gauge by delta.
func (m *Metrics) SessionActive(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, delta)
}
