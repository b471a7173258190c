package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	dealsCreated    metric.Int64Counter
	dealTransitions metric.Int64Counter
	dealsDeleted    metric.Int64Counter
	forecastRuns    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported metrics exporter protocol %q", protocol)
	}
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "dealdesk"
	}
	meter := provider.Meter(name)

	dealsCreated, err := meter.Int64Counter("dealdesk_deals_created_total")
	if err != nil {
		return nil, err
	}
	dealTransitions, err := meter.Int64Counter("dealdesk_deal_transitions_total")
	if err != nil {
		return nil, err
	}
	dealsDeleted, err := meter.Int64Counter("dealdesk_deals_deleted_total")
	if err != nil {
		return nil, err
	}
	forecastRuns, err := meter.Int64Counter("dealdesk_forecast_runs_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		dealsCreated:    dealsCreated,
		dealTransitions: dealTransitions,
		dealsDeleted:    dealsDeleted,
		forecastRuns:    forecastRuns,
	}, nil
}

// RecordDealCreated increments deal creation counts.
func (m *Metrics) RecordDealCreated(ctx context.Context, pipelineID string) {
	if m == nil {
		return
	}
	m.dealsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("pipeline_id", pipelineID)))
}

// RecordDealTransition increments stage transition counts.
func (m *Metrics) RecordDealTransition(ctx context.Context, pipelineID string) {
	if m == nil {
		return
	}
	m.dealTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("pipeline_id", pipelineID)))
}

// RecordDealDeleted increments deal deletion counts.
func (m *Metrics) RecordDealDeleted(ctx context.Context, pipelineID string) {
	if m == nil {
		return
	}
	m.dealsDeleted.Add(ctx, 1, metric.WithAttributes(attribute.String("pipeline_id", pipelineID)))
}

// RecordForecastRun increments forecast computation counts.
func (m *Metrics) RecordForecastRun(ctx context.Context, window string) {
	if m == nil {
		return
	}
	m.forecastRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("window", window)))
}
