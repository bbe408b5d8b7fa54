package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	analyticsdomain "github.com/smallbiznis/tryon/internal/analytics/domain"
	auditdomain "github.com/smallbiznis/tryon/internal/audit/domain"
	authdomain "github.com/smallbiznis/tryon/internal/auth/domain"
	"github.com/smallbiznis/tryon/internal/authorization"
	"github.com/smallbiznis/tryon/internal/config"
	ledgerdomain "github.com/smallbiznis/tryon/internal/ledger/domain"
	"github.com/smallbiznis/tryon/internal/observability"
	obslogger "github.com/smallbiznis/tryon/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tryon/internal/observability/metrics"
	obstracing "github.com/smallbiznis/tryon/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/tryon/internal/payment/domain"
	productdomain "github.com/smallbiznis/tryon/internal/product/domain"
	"github.com/smallbiznis/tryon/internal/ratelimit"
	receiptdomain "github.com/smallbiznis/tryon/internal/receipt/domain"
	tryondomain "github.com/smallbiznis/tryon/internal/tryon/domain"
	usagereportdomain "github.com/smallbiznis/tryon/internal/usagereport/domain"
	widgetdomain "github.com/smallbiznis/tryon/internal/widget/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	Log         *zap.Logger
	ObsCfg      observability.Config
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
}

func NewEngine(log *zap.Logger, debug bool, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Base:            log,
		Debug:           debug,
		ErrorClassifier: classifyErrorForLog,
		QuietRoutes:     []string{"/health", "/metrics"},
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

func registerGin(p EngineParams) *gin.Engine {
	if !p.ObsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(p.Log, p.ObsCfg.Debug(), p.HTTPMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
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
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	authsvc       authdomain.Service
	ledgerSvc     ledgerdomain.Service
	reportSvc     usagereportdomain.Service
	analyticsSvc  analyticsdomain.Service
	widgetSvc     widgetdomain.Service
	productSvc    productdomain.Service
	tryonSvc      tryondomain.Service
	receiptSvc    receiptdomain.Service
	paymentSvc    paymentdomain.Service
	authzSvc      authorization.Service
	auditSvc      auditdomain.Service
	credits       *config.CreditsConfigHolder
	widgetLimiter *ratelimit.WidgetLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	Authsvc       authdomain.Service
	LedgerSvc     ledgerdomain.Service
	ReportSvc     usagereportdomain.Service
	AnalyticsSvc  analyticsdomain.Service
	WidgetSvc     widgetdomain.Service
	ProductSvc    productdomain.Service
	TryonSvc      tryondomain.Service
	ReceiptSvc    receiptdomain.Service
	PaymentSvc    paymentdomain.Service
	AuthzSvc      authorization.Service
	AuditSvc      auditdomain.Service
	Credits       *config.CreditsConfigHolder
	WidgetLimiter *ratelimit.WidgetLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		authsvc:       p.Authsvc,
		ledgerSvc:     p.LedgerSvc,
		reportSvc:     p.ReportSvc,
		analyticsSvc:  p.AnalyticsSvc,
		widgetSvc:     p.WidgetSvc,
		productSvc:    p.ProductSvc,
		tryonSvc:      p.TryonSvc,
		receiptSvc:    p.ReceiptSvc,
		paymentSvc:    p.PaymentSvc,
		authzSvc:      p.AuthzSvc,
		auditSvc:      p.AuditSvc,
		credits:       p.Credits,
		widgetLimiter: p.WidgetLimiter,
		obsMetrics:    p.ObsMetrics,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// RegisterRoutes mounts every route group on the engine.
func (s *Server) RegisterRoutes() {
	s.registerAuthRoutes()
	s.registerAccountRoutes()
	s.registerWidgetRoutes()
	s.registerAdminRoutes()
	s.registerWebhookRoutes()
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/register", s.Register)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.AuthRequired(), s.Logout)

	// Legacy unprefixed paths used by the dashboard.
	s.engine.POST("/register", s.Register)
	s.engine.POST("/login", s.Login)
}

func (s *Server) registerAccountRoutes() {
	api := s.engine.Group("/", s.AuthRequired())

	api.GET("/me", s.Me)

	// -------- Widget --------
	api.GET("/widget/config", s.GetWidgetConfig)
	api.PUT("/widget/config", s.SaveWidgetConfig)
	api.POST("/widget/config", s.SaveWidgetConfig)
	api.POST("/widget/api-key/rotate", s.RotateWidgetAPIKey)
	api.POST("/widget/regenerate-api-key", s.RotateWidgetAPIKey)
	api.GET("/widget/embed-code", s.GetEmbedCode)

	// -------- Products --------
	api.GET("/products", s.ListProducts)
	api.POST("/products", s.CreateProduct)
	api.GET("/products/:id", s.GetProductByID)
	api.PUT("/products/:id", s.UpdateProduct)
	api.DELETE("/products/:id", s.DeleteProduct)

	// -------- Credits --------
	api.GET("/credits", s.GetCredits)
	api.GET("/credits/packages", s.ListCreditPackages)
	api.GET("/credit-purchases", s.ListCreditPurchases)
	api.GET("/credit-purchases/:id/receipt", s.DownloadReceipt)

	// -------- Reporting --------
	api.GET("/usage/analytics", s.GetUsageReport)
	api.GET("/analytics/summary", s.GetAnalyticsSummary)
}

func (s *Server) registerWidgetRoutes() {
	widget := s.engine.Group("/")

	widget.GET("/widget/config/public", s.WidgetKeyRequired(), s.WidgetRateLimit(), s.GetPublicWidgetConfig)
	widget.GET("/widget/config-by-api-key", s.WidgetKeyRequired(), s.WidgetRateLimit(), s.GetPublicWidgetConfig)
	widget.GET("/product/by-api-key", s.WidgetKeyRequired(), s.WidgetRateLimit(), s.GetPublicProduct)
	widget.POST("/widget-analytics", s.WidgetKeyRequired(), s.WidgetRateLimit(), s.IngestWidgetEvent)
	widget.POST("/generate-virtual-try-on-image", s.WidgetKeyRequired(), s.WidgetRateLimit(), s.GenerateTryOnImage)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.AuthRequired())

	admin.GET("/ledger/verify", s.authorizeAction(authorization.ObjectLedger, authorization.ActionLedgerVerify), s.VerifyAllLedgers)
	admin.GET("/ledger/:accountId/verify", s.authorizeAction(authorization.ObjectLedger, authorization.ActionLedgerVerify), s.VerifyLedger)
	admin.POST("/ledger/:accountId/grant", s.authorizeAction(authorization.ObjectLedger, authorization.ActionLedgerGrant), s.GrantCredits)
	admin.GET("/audit-logs", s.authorizeAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/payments/webhooks/:provider", s.HandlePaymentWebhook)
	s.engine.POST("/stripe/webhook", s.HandleStripeWebhook)
}
