package observability

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// PrometheusProvider is an OTel MeterProvider whose instruments are collected
// into a private Prometheus registry.
type PrometheusProvider struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider
}

// NewPrometheusProvider creates an independent registry and exporter, so
// several providers never conflict over collectors.
func NewPrometheusProvider() (*PrometheusProvider, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &PrometheusProvider{
		registry: registry,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
	}, nil
}

// Meter returns the named ordtree meter.
func (pp *PrometheusProvider) Meter() metric.Meter {
	return pp.provider.Meter(meterName)
}

// Handler serves the registry in the Prometheus exposition format.
func (pp *PrometheusProvider) Handler() http.Handler {
	return promhttp.HandlerFor(pp.registry, promhttp.HandlerOpts{})
}

// WriteExposition gathers the registry and writes it to w in the text format.
func (pp *PrometheusProvider) WriteExposition(w io.Writer) error {
	families, err := pp.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	for _, family := range families {
		_, err = expfmt.MetricFamilyToText(w, family)
		if err != nil {
			return fmt.Errorf("write metric family %s: %w", family.GetName(), err)
		}
	}

	return nil
}

// Shutdown releases the meter provider.
func (pp *PrometheusProvider) Shutdown(ctx context.Context) error {
	err := pp.provider.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown prometheus provider: %w", err)
	}

	return nil
}
