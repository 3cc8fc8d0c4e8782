package api

import (
	"net/http"

	"github.com/Nikita3549/SkyHelp-sub000/internal/api/handlers"
	"github.com/Nikita3549/SkyHelp-sub000/internal/api/middleware"
	"github.com/Nikita3549/SkyHelp-sub000/internal/esign"
	"github.com/Nikita3549/SkyHelp-sub000/internal/services"
	"github.com/Nikita3549/SkyHelp-sub000/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Router struct {
	engine         *gin.Engine
	logger         *zap.Logger
	metrics        *metrics.MetricsCollector
	docHandler     *handlers.DocumentHandler
	signingHandler *handlers.SigningHandler
	webhookHandler *handlers.WebhookHandler
	reqMiddleware  *middleware.RequestMiddleware
}

func NewRouter(
	logger *zap.Logger,
	collector *metrics.MetricsCollector,
	documentService *services.DocumentService,
	discrepancyService *services.DiscrepancyService,
	signingService *services.SigningService,
	pipeline *esign.Pipeline,
	providers map[string]esign.Provider,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	reqMiddleware := middleware.NewRequestMiddleware(logger)
	engine.Use(reqMiddleware.ProcessRequest())
	engine.Use(reqMiddleware.RecoverPanic())

	return &Router{
		engine:         engine,
		logger:         logger,
		metrics:        collector,
		docHandler:     handlers.NewDocumentHandler(documentService, discrepancyService, logger),
		signingHandler: handlers.NewSigningHandler(signingService, logger),
		webhookHandler: handlers.NewWebhookHandler(pipeline, providers, logger),
		reqMiddleware:  reqMiddleware,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "up", "name": "skyhelp-claims"})
	})

	r.engine.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"counters":  r.metrics.GetCounters(),
			"latencies": r.metrics.GetLatencies(),
			"sizes":     r.metrics.GetSizes(),
		})
	})

	// Provider callbacks; raw-body HMAC verification happens inside.
	r.engine.POST("/webhooks/:provider", r.webhookHandler.Receive)

	api := r.engine.Group("/api")
	{
		api.POST("/sign/primary", r.signingHandler.SignPrimary)

		claims := api.Group("/claims/:claimId")
		{
			claims.POST("/documents", r.docHandler.Upload)
			claims.GET("/documents", r.docHandler.List)
			claims.GET("/discrepancies", r.docHandler.Discrepancies)
			claims.POST("/sign/external/:customerId", r.signingHandler.SignExternal)
			claims.POST("/sign/passenger/:passengerId", r.signingHandler.SignOtherPassenger)
			claims.POST("/sign/region", r.signingHandler.SignFromRegion)
			claims.POST("/sign/provider/:provider", r.signingHandler.StartProviderSession)
		}

		api.GET("/documents/:id/url", r.docHandler.DownloadURL)
		api.DELETE("/documents/:id", r.docHandler.Delete)
		api.POST("/discrepancies/:id/refresh", r.docHandler.RefreshDiscrepancy)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

func (r *Router) Run(addr string) error {
	r.logger.Info("Starting HTTP server", zap.String("address", addr))
	return r.engine.Run(addr)
}
