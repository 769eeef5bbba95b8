package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope used for all metrics.
const MeterName = "github.com/jooooscha/minicaldav"

const (
	attrMethod = "method"
	attrStatus = "status"
	attrReason = "reason"
)

// Reasons passed to RecordResourceError.
const (
	ReasonStatus      = "status"
	ReasonMissingData = "missing_data"
	ReasonParse       = "parse"
	ReasonDecode      = "decode"
)

// Metrics provides methods for recording CalDAV metrics.
type Metrics struct {
	requestsTotal       metric.Int64Counter
	requestDuration     metric.Float64Histogram
	resourceErrorsTotal metric.Int64Counter
	eventsTotal         metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.requestsTotal, err = meter.Int64Counter(
		"caldav_requests_total",
		metric.WithDescription("Total number of CalDAV requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav_requests_total counter: %w", err)
	}

	m.requestDuration, err = meter.Float64Histogram(
		"caldav_request_duration_seconds",
		metric.WithDescription("CalDAV request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav_request_duration_seconds histogram: %w", err)
	}

	m.resourceErrorsTotal, err = meter.Int64Counter(
		"caldav_resource_errors_total",
		metric.WithDescription("Total number of calendar resources that failed to decode"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav_resource_errors_total counter: %w", err)
	}

	m.eventsTotal, err = meter.Int64Counter(
		"caldav_events_decoded_total",
		metric.WithDescription("Total number of events decoded from calendar resources"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav_events_decoded_total counter: %w", err)
	}

	return m, nil
}

// RecordRequest records one HTTP round trip. statusCode is 0 when the
// transport failed before a response arrived.
func (m *Metrics) RecordRequest(ctx context.Context, method string, statusCode int, duration time.Duration) {
	if m == nil || m.requestsTotal == nil || m.requestDuration == nil {
		return
	}

	m.requestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(attrMethod, method),
	))
}

// RecordResourceError records a resource reported back as an error.
func (m *Metrics) RecordResourceError(ctx context.Context, reason string) {
	if m == nil || m.resourceErrorsTotal == nil {
		return
	}
	m.resourceErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// RecordEvents records n decoded events.
func (m *Metrics) RecordEvents(ctx context.Context, n int) {
	if m == nil || m.eventsTotal == nil || n == 0 {
		return
	}
	m.eventsTotal.Add(ctx, int64(n))
}
