// Package metrics wires the service's OpenTelemetry instruments to an
// optional OTLP collector.
package metrics

import (
	"context"
	"fmt"
	"time"

	"restohub-be/internal/logger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/zap"
)

const defaultExportInterval = 60 * time.Second

type Config struct {
	Enabled        bool
	Endpoint       string
	ExportInterval time.Duration
	ServiceName    string
	Insecure       bool
}

// Provider owns the meter provider for the process lifetime. A disabled
// provider hands out no-op meters.
type Provider struct {
	sdk      *sdkmetric.MeterProvider
	fallback metric.MeterProvider
}

func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		logger.L().Info("metrics disabled")
		return &Provider{fallback: noop.NewMeterProvider()}, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = defaultExportInterval
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	p := &Provider{
		sdk: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		),
	}

	logger.L().Info("metrics exporter started",
		zap.String("endpoint", cfg.Endpoint),
		zap.Duration("interval", interval),
	)
	return p, nil
}

func (p *Provider) Meter(name string) metric.Meter {
	if p.sdk == nil {
		return p.fallback.Meter(name)
	}
	return p.sdk.Meter(name)
}

// Shutdown flushes pending data points. No-op when disabled.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	if err := p.sdk.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown meter provider: %w", err)
	}
	return nil
}
