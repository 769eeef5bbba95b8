package instrumentation

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Provider owns an SDK meter provider whose metrics are written to a
// writer when the provider shuts down.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	metrics       *Metrics
}

// NewStdoutProvider creates a Provider exporting to w in JSON.
func NewStdoutProvider(w io.Writer) (*Provider, error) {
	exporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(w),
		stdoutmetric.WithPrettyPrint(),
		stdoutmetric.WithoutTimestamps(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
	}

	// The CLI is short-lived; Shutdown performs the final collection.
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)

	meter := mp.Meter(MeterName)
	metrics, err := NewMetrics(meter)
	if err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to create metrics recorder: %w", err)
	}

	return &Provider{meterProvider: mp, meter: meter, metrics: metrics}, nil
}

// Meter returns the meter all instruments of this provider are created on.
func (p *Provider) Meter() metric.Meter {
	return p.meter
}

// Metrics returns the recorder bound to this provider.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// Shutdown flushes pending metrics to the writer.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}
