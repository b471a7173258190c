package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealdesk/internal/clock"
	"github.com/smallbiznis/dealdesk/internal/config"
	"github.com/smallbiznis/dealdesk/internal/deal"
	"github.com/smallbiznis/dealdesk/internal/event"
	"github.com/smallbiznis/dealdesk/internal/forecast"
	"github.com/smallbiznis/dealdesk/internal/logger"
	"github.com/smallbiznis/dealdesk/internal/migration"
	"github.com/smallbiznis/dealdesk/internal/observability"
	"github.com/smallbiznis/dealdesk/internal/pipeline"
	"github.com/smallbiznis/dealdesk/internal/server"
	"github.com/smallbiznis/dealdesk/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		event.Module,
		pipeline.Module,
		deal.Module,
		forecast.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
