package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/dealdesk/internal/config"
	dealdomain "github.com/smallbiznis/dealdesk/internal/deal/domain"
	forecastdomain "github.com/smallbiznis/dealdesk/internal/forecast/domain"
	pipelinedomain "github.com/smallbiznis/dealdesk/internal/pipeline/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	named := log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		named.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	pipelineSvc pipelinedomain.Service
	dealSvc     dealdomain.Service
	forecastSvc forecastdomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	PipelineSvc pipelinedomain.Service
	DealSvc     dealdomain.Service
	ForecastSvc forecastdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("server"),
		pipelineSvc: p.PipelineSvc,
		dealSvc:     p.DealSvc,
		forecastSvc: p.ForecastSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.TenantContext())

	// -------- Pipelines --------
	api.GET("/pipelines", s.ListPipelines)
	api.POST("/pipelines", s.CreatePipeline)
	api.GET("/pipelines/:id", s.GetPipelineByID)
	api.PATCH("/pipelines/:id", s.UpdatePipeline)
	api.GET("/pipelines/:id/stages", s.ListStages)
	api.POST("/pipelines/:id/stages", s.AddStage)
	api.PATCH("/stages/:id", s.UpdateStage)

	// -------- Deals --------
	api.GET("/deals", s.ListDeals)
	api.POST("/deals", s.CreateDeal)
	api.GET("/deals/:id", s.GetDealByID)
	api.PATCH("/deals/:id", s.UpdateDeal)
	api.DELETE("/deals/:id", s.DeleteDeal)
	api.POST("/deals/:id/move", s.MoveDealToStage)
	api.POST("/deals/bulk-move", s.BulkMoveDeals)
	api.GET("/deals/:id/history", s.ListDealHistory)

	// -------- Forecasts --------
	api.GET("/forecasts/range", s.GetRangeForecast)
	api.GET("/forecasts/quarter", s.GetQuarterForecast)
	api.GET("/forecasts/month", s.GetMonthForecast)
}
