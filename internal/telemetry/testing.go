package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry records spans and metrics in memory.
type TestTelemetry struct {
	*Telemetry

	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

// NewTestTelemetry creates enabled telemetry backed by a span recorder and a
// manual metric reader. Globals are left alone.
func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	return &TestTelemetry{
		Telemetry: &Telemetry{
			config:         cfg,
			tracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)),
			meterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		},
		spans:  spans,
		reader: reader,
	}
}

func (t *TestTelemetry) span(name string) sdktrace.ReadOnlySpan {
	for _, s := range t.spans.Ended() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// AssertSpanExists fails tb unless a span called name has ended.
func (t *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if t.span(name) == nil {
		var names []string
		for _, s := range t.spans.Ended() {
			names = append(names, s.Name())
		}
		tb.Errorf("span %q not recorded, have %v", name, names)
	}
}

// AssertSpanAttribute fails tb unless span spanName carries key with the
// expected value. Integer attributes compare as int64.
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, spanName, key string, expected interface{}) {
	tb.Helper()
	s := t.span(spanName)
	if s == nil {
		tb.Fatalf("span %q not recorded", spanName)
	}
	for _, kv := range s.Attributes() {
		if string(kv.Key) != key {
			continue
		}
		if got := kv.Value.AsInterface(); got != expected {
			tb.Errorf("span %q attribute %q: got %v (%T), want %v (%T)", spanName, key, got, got, expected, expected)
		}
		return
	}
	tb.Errorf("span %q has no attribute %q", spanName, key)
}

// CounterValue sums every data point of int64 counter name, or returns 0
// if nothing was recorded.
func (t *TestTelemetry) CounterValue(tb testing.TB, name string) int64 {
	tb.Helper()
	var total int64
	if sum, ok := t.find(tb, name).(metricdata.Sum[int64]); ok {
		for _, dp := range sum.DataPoints {
			total += dp.Value
		}
	}
	return total
}

// Histogram returns the first data point of float64 histogram name.
func (t *TestTelemetry) Histogram(tb testing.TB, name string) metricdata.HistogramDataPoint[float64] {
	tb.Helper()
	h, ok := t.find(tb, name).(metricdata.Histogram[float64])
	if !ok || len(h.DataPoints) == 0 {
		tb.Fatalf("histogram %q not recorded", name)
	}
	return h.DataPoints[0]
}

// AttributeCount returns how many data points of counter name carry
// key=value.
func (t *TestTelemetry) AttributeCount(tb testing.TB, name string, kv attribute.KeyValue) int64 {
	tb.Helper()
	var total int64
	if sum, ok := t.find(tb, name).(metricdata.Sum[int64]); ok {
		for _, dp := range sum.DataPoints {
			if v, ok := dp.Attributes.Value(kv.Key); ok && v.Emit() == kv.Value.Emit() {
				total += dp.Value
			}
		}
	}
	return total
}

func (t *TestTelemetry) find(tb testing.TB, name string) metricdata.Aggregation {
	tb.Helper()
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(context.Background(), &rm); err != nil {
		tb.Fatalf("collect metrics: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}
	return nil
}
