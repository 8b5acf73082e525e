package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/colegio/internal/config"
	feerecorddomain "github.com/smallbiznis/colegio/internal/feerecord/domain"
	liquidationdomain "github.com/smallbiznis/colegio/internal/liquidation/domain"
	"github.com/smallbiznis/colegio/internal/observability"
	obsmiddleware "github.com/smallbiznis/colegio/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/colegio/internal/observability/metrics"
	obstracing "github.com/smallbiznis/colegio/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/colegio/internal/payment/domain"
	"github.com/smallbiznis/colegio/internal/providers/pdf"
	ratedomain "github.com/smallbiznis/colegio/internal/rate/domain"
	"github.com/smallbiznis/colegio/internal/ratelimit"
	receiptdomain "github.com/smallbiznis/colegio/internal/receipt/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
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

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine         *gin.Engine
	cfg            config.Config
	paymentSvc     paymentdomain.Service
	receiptSvc     receiptdomain.Service
	feeRecordSvc   feerecorddomain.Service
	rateSvc        ratedomain.Service
	liquidationSvc liquidationdomain.Service
	pdf            pdf.Provider
	webhookLimiter *ratelimit.WebhookLimiter
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	PaymentSvc     paymentdomain.Service
	ReceiptSvc     receiptdomain.Service
	FeeRecordSvc   feerecorddomain.Service
	RateSvc        ratedomain.Service
	LiquidationSvc liquidationdomain.Service
	PDF            pdf.Provider
	WebhookLimiter *ratelimit.WebhookLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics       `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		paymentSvc:     p.PaymentSvc,
		receiptSvc:     p.ReceiptSvc,
		feeRecordSvc:   p.FeeRecordSvc,
		rateSvc:        p.RateSvc,
		liquidationSvc: p.LiquidationSvc,
		pdf:            p.PDF,
		webhookLimiter: p.WebhookLimiter,
		obsMetrics:     p.ObsMetrics,
	}

	svc.RegisterRoutes()
	return svc
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api")

	forms := api.Group("/forms")
	s.registerWebhookRoutes(forms)
	s.registerFormRoutes(forms)

	s.registerRateRoutes(api)
	s.registerFeePriceRoutes(api)

	// Providers configured before the /api prefix still deliver here.
	s.registerWebhookRoutes(s.engine.Group("/forms"))
}

func (s *Server) registerWebhookRoutes(group *gin.RouterGroup) {
	group.POST("/webhook",
		s.WebhookRateLimit(paymentdomain.ProviderMercadoPago),
		s.HandleMercadoPagoWebhook,
	)
	group.POST("/bcm/webhook",
		s.WebhookRateLimit(paymentdomain.ProviderBolsa),
		s.HandleBolsaWebhook,
	)
}

func (s *Server) registerFormRoutes(group *gin.RouterGroup) {
	group.GET("/receipt-status", s.GetReceiptStatus)
	group.GET("/payment_status/:preference_id", s.GetPaymentStatus)
	group.GET("/download_receipt", s.DownloadReceipt)

	group.POST("/derecho_fijo", s.CreateFeeRecord)
	group.GET("/derecho_fijo/:id", s.GetFeeRecord)
	group.DELETE("/derecho_fijo/:id", s.DeleteFeeRecord)

	group.POST("/liquidaciones", s.CreateLiquidation)
}

func (s *Server) registerRateRoutes(group *gin.RouterGroup) {
	rates := group.Group("/rates")
	rates.GET("", s.ListRates)
	rates.POST("", s.CreateRate)
	rates.GET("/:id", s.GetRate)
	rates.PUT("/:id", s.UpdateRate)
	rates.DELETE("/:id", s.DeleteRate)
}

func (s *Server) registerFeePriceRoutes(group *gin.RouterGroup) {
	group.GET("/derecho_fijo/price", s.GetFeePrice)
	group.PUT("/derecho_fijo/price", s.SetFeePrice)
}
