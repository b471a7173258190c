package forecast

import (
	"github.com/smallbiznis/dealdesk/internal/forecast/service"
	"go.uber.org/fx"
)

var Module = fx.Module("forecast.service",
	fx.Provide(service.New),
)
