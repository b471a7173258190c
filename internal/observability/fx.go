package observability

import (
	"github.com/smallbiznis/dealdesk/internal/config"
	"github.com/smallbiznis/dealdesk/internal/observability/metrics"
	"go.uber.org/fx"
)

func newMetricsConfig(cfg config.Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.Metrics.Enabled,
		ExporterEndpoint: cfg.Metrics.Endpoint,
		ExporterProtocol: cfg.Metrics.Exporter,
		ServiceName:      cfg.AppName,
	}
}

// Module wires the meter provider and domain instruments.
var Module = fx.Module("observability",
	fx.Provide(newMetricsConfig),
	fx.Provide(metrics.NewProvider),
	fx.Provide(metrics.New),
)
