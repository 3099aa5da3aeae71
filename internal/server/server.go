package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/acmehealth/claimsight/internal/claims"
	"github.com/acmehealth/claimsight/internal/config"
	"github.com/acmehealth/claimsight/internal/ingest"
	ingestdomain "github.com/acmehealth/claimsight/internal/ingest/domain"
	"github.com/acmehealth/claimsight/internal/monitoring"
	"github.com/acmehealth/claimsight/internal/observability"
	obsmiddleware "github.com/acmehealth/claimsight/internal/observability/logger"
	obsmetrics "github.com/acmehealth/claimsight/internal/observability/metrics"
	obstracing "github.com/acmehealth/claimsight/internal/observability/tracing"
	"github.com/acmehealth/claimsight/internal/refdata"
	refdatadomain "github.com/acmehealth/claimsight/internal/refdata/domain"
	"github.com/acmehealth/claimsight/internal/reporting/aggregate"
	aggdomain "github.com/acmehealth/claimsight/internal/reporting/aggregate/domain"
	"github.com/acmehealth/claimsight/internal/reporting/query"
	"github.com/acmehealth/claimsight/internal/rollup"
	"github.com/acmehealth/claimsight/internal/scheduler"
	"github.com/acmehealth/claimsight/internal/settlement"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	claims.Module,
	settlement.Module,
	rollup.Module,
	aggregate.Module,
	query.Module,
	ingest.Module,
	refdata.Module,
	monitoring.Module,
	scheduler.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
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

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	db         *gorm.DB
	genID      *snowflake.Node
	querySvc   *query.Service
	aggregates aggdomain.Service
	ingestSvc  ingestdomain.Service
	refdataSvc refdatadomain.Service
	monitor    *monitoring.Monitor
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	DB         *gorm.DB
	GenID      *snowflake.Node
	QuerySvc   *query.Service
	Aggregates aggdomain.Service
	IngestSvc  ingestdomain.Service
	RefdataSvc refdatadomain.Service
	Monitor    *monitoring.Monitor
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("server"),
		db:         p.DB,
		genID:      p.GenID,
		querySvc:   p.QuerySvc,
		aggregates: p.Aggregates,
		ingestSvc:  p.IngestSvc,
		refdataSvc: p.RefdataSvc,
		monitor:    p.Monitor,
	}

	svc.registerHealthRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerHealthRoutes() {
	s.engine.GET("/health", s.GetHealth)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	// -------- Reports --------
	reports := api.Group("/reports")
	reports.GET("/claim-summary", s.GetClaimSummary)
	reports.GET("/rejected-claims", s.GetRejectedClaims)
	reports.GET("/balance", s.GetBalanceAging)
	reports.GET("/doctor-denial", s.GetDoctorDenial)
	reports.GET("/options", s.GetFilterOptions)
	reports.POST("/refresh", s.PostRefresh)
	reports.GET("/refresh/runs", s.GetRefreshRuns)

	// -------- Claims --------
	api.GET("/claims/:claim_id/remittances", s.GetClaimRemittances)

	// -------- Ingest --------
	ingestGroup := api.Group("/ingest")
	ingestGroup.POST("/submissions", s.PostSubmission)
	ingestGroup.POST("/remittances", s.PostRemittance)

	// -------- Reference data --------
	ref := api.Group("/refdata")
	ref.GET("/:kind/:code", s.GetReferenceItem)
	ref.PUT("", s.PutReferenceItem)
	ref.POST("/invalidate", s.PostReferenceInvalidate)
}
