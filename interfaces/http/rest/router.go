package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"reportexport/application/bridge"
	"reportexport/application/orchestrator"
	"reportexport/application/ports"
	"reportexport/application/services"
	"reportexport/infrastructure/config"
	"reportexport/interfaces/http/rest/handlers"
	"reportexport/interfaces/http/rest/middleware"
	"reportexport/pkg/common"
	"reportexport/pkg/observability"
)

// Router creates and configures the HTTP router
type Router struct {
	exports  *services.ExportService
	registry *orchestrator.Registry
	bridge   *bridge.Bridge
	repo     ports.OperationRepository
	metrics  *observability.Collector
	cfg      *config.Config
	logger   *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	exports *services.ExportService,
	registry *orchestrator.Registry,
	statusBridge *bridge.Bridge,
	repo ports.OperationRepository,
	metrics *observability.Collector,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		exports:  exports,
		registry: registry,
		bridge:   statusBridge,
		repo:     repo,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Metrics(rt.metrics))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Location", "Retry-After", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health and observability
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())

	reportHandler := handlers.NewReportHandler(rt.exports, rt.cfg.RetryAfterSeconds, rt.logger)
	asyncHandler := handlers.NewAsyncHandler(rt.registry, rt.bridge, rt.repo, rt.metrics, rt.cfg.RetryAfterSeconds, rt.logger)
	eventHandler := handlers.NewEventHandler(rt.bridge, rt.logger)

	// Report export endpoints
	router.Post("/report", reportHandler.StartReport)
	router.Get("/async/{token}", asyncHandler.GetStatus)

	// Notification intake webhook
	router.Post("/events/report-file", eventHandler.ReportFileCreated)

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
