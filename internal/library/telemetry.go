package library

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/funclibd/internal/library"

// WriteDurationBuckets are the histogram bounds, in seconds, for a write:
// two small local file operations, rarely slower than a millisecond unless
// the disk is contended.
var WriteDurationBuckets = []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.25, 1}

// Metrics provides OpenTelemetry metrics for the library manager.
type Metrics struct {
	writes        metric.Int64Counter
	deletes       metric.Int64Counter
	errors        metric.Int64Counter
	writeDuration metric.Float64Histogram

	initialized bool
}

// NewMetrics creates library metrics on meter. If meter is nil, uses the
// global meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &Metrics{}
	var err error

	m.writes, err = meter.Int64Counter(
		"funclib.writes",
		metric.WithDescription("Functions written to a library"),
		metric.WithUnit("{function}"),
	)
	if err != nil {
		return nil, err
	}

	m.deletes, err = meter.Int64Counter(
		"funclib.deletes",
		metric.WithDescription("Function files deleted during cleanup"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, err
	}

	m.errors, err = meter.Int64Counter(
		"funclib.errors",
		metric.WithDescription("Library operation failures"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	m.writeDuration, err = meter.Float64Histogram(
		"funclib.write.duration.seconds",
		metric.WithDescription("Time to write a function and its manifest entry"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(WriteDurationBuckets...),
	)
	if err != nil {
		return nil, err
	}

	m.initialized = true
	return m, nil
}

// RecordWrite records a successful write.
func (m *Metrics) RecordWrite(ctx context.Context, duration time.Duration) {
	if m == nil || !m.initialized {
		return
	}
	m.writes.Add(ctx, 1)
	m.writeDuration.Record(ctx, duration.Seconds())
}

// RecordDeletes records files removed by a cleanup.
func (m *Metrics) RecordDeletes(ctx context.Context, n int) {
	if m == nil || !m.initialized || n == 0 {
		return
	}
	m.deletes.Add(ctx, int64(n))
}

// RecordError records a failed operation.
func (m *Metrics) RecordError(ctx context.Context, op string) {
	if m == nil || !m.initialized {
		return
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}
