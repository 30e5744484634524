package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wakilihq/paygate/internal/config"
	darajadomain "github.com/wakilihq/paygate/internal/daraja/domain"
	"github.com/wakilihq/paygate/internal/paysession"
	"github.com/wakilihq/paygate/internal/telemetry"
	verificationdomain "github.com/wakilihq/paygate/internal/verification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	log       *zap.Logger
	store     *paysession.Store
	darajaSvc darajadomain.Service
	verifySvc verificationdomain.Service
	metrics   *telemetry.Metrics
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Log       *zap.Logger
	Store     *paysession.Store
	DarajaSvc darajadomain.Service
	VerifySvc verificationdomain.Service
	Metrics   *telemetry.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		log:       p.Log.Named("server"),
		store:     p.Store,
		darajaSvc: p.DarajaSvc,
		verifySvc: p.VerifySvc,
		metrics:   p.Metrics,
	}
}

// NewEngine builds the gin engine with the shared middleware chain.
func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// RegisterRoutes mounts the payment gate API and the gateway callback.
func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api/v1")
	api.Use(SessionContext())
	api.POST("/artifacts", s.CreateArtifact)
	api.POST("/payments", s.InitiatePayment)
	api.GET("/artifacts/:artifact_id/authorization", s.GetDownloadAuthorization)

	s.engine.POST("/callbacks/daraja", s.HandleDarajaCallback)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
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

func registerRoutes(s *Server) {
	s.RegisterRoutes()
}

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)
