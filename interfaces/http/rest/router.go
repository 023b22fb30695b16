package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/commands/bus"
	querybus "github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/queries/bus"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/observability"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/interfaces/http/rest/handlers"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/interfaces/http/rest/middleware"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/common"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterConfig holds the HTTP surface switches
type RouterConfig struct {
	EnableCORS     bool
	AllowedOrigins []string
	EnableAuth     bool
	JWTSecret      string
	JWTIssuer      string
	Debug          bool
	ReadyTimeout   time.Duration
}

// ReadyFunc checks downstream dependencies
type ReadyFunc func(ctx context.Context) error

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	collector  *observability.Collector
	ready      ReadyFunc
	cfg        RouterConfig
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewRouter creates a new router instance. collector and ready may be nil.
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	collector *observability.Collector,
	ready ReadyFunc,
	cfg RouterConfig,
	logger *zap.Logger,
) *Router {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 3 * time.Second
	}
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		collector:  collector,
		ready:      ready,
		cfg:        cfg,
		errors:     pkgerrors.NewErrorHandler(logger, cfg.Debug),
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() (*chi.Mux, error) {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errors.Recover)
	router.Use(middleware.Logger(rt.logger))
	if rt.collector != nil {
		router.Use(rt.collector.Middleware)
	}

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	var auth *middleware.Authenticator
	if rt.cfg.EnableAuth {
		a, err := middleware.NewAuthenticator(rt.cfg.JWTSecret, rt.cfg.JWTIssuer, rt.errors)
		if err != nil {
			return nil, err
		}
		auth = a
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.collector != nil {
		router.Method(http.MethodGet, "/metrics", rt.collector.Handler())
	}

	changeHandler := handlers.NewChangeHandler(rt.commandBus, rt.queryBus, rt.errors, rt.logger.Named("changes"))
	graphHandler := handlers.NewGraphHandler(rt.queryBus, rt.errors)

	router.Route("/api/v1", func(r chi.Router) {
		if auth != nil {
			r.Use(auth.Middleware)
		}

		r.Route("/workspaces/{workspaceID}", func(r chi.Router) {
			r.Post("/changes", changeHandler.Propose)
			r.Get("/changes/pending", changeHandler.ListPending)
			r.Get("/changes/history", changeHandler.History)
			r.Get("/graph", graphHandler.Graph)
			r.Get("/layout", graphHandler.Layout)
		})

		r.Route("/changes", func(r chi.Router) {
			r.Post("/resolve", changeHandler.Resolve)
			r.Post("/undo", changeHandler.Undo)
			r.Get("/{changeID}", changeHandler.Get)
		})
	})

	return router, nil
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck pings the change-log backend
func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	if rt.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), rt.cfg.ReadyTimeout)
		defer cancel()
		if err := rt.ready(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			common.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
