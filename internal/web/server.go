// Package web provides the HTTP API for the catalog import pipeline.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/catalog-import/internal/config"
	"github.com/JonMunkholm/catalog-import/internal/core"
	"github.com/JonMunkholm/catalog-import/internal/web/middleware"
)

// Pinger reports whether a dependency is reachable. The database pool
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP server for the import API.
type Server struct {
	service  *core.Service
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
	validate *validator.Validate
	health   Pinger
}

// NewServer builds the router. health may be nil when there is no database.
func NewServer(service *core.Service, cfg *config.Config, health Pinger) *Server {
	s := &Server{
		service:  service,
		cfg:      cfg,
		router:   chi.NewRouter(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		health:   health,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(middleware.SecurityHeaders(s.cfg.Security.EnableCSP))
	s.router.Use(middleware.CORS(s.cfg.CORS.AllowedOrigins))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security))
		if s.cfg.Rate.Enabled {
			r.Use(middleware.RateLimit("api", s.cfg.Rate.RequestsPerMinute))
		}

		// Execution runs past the request timeout and has its own limit.
		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(middleware.RateLimit("execute", s.cfg.Rate.ExecuteLimit))
			}
			r.Post("/batches/{batchID}/execute", s.handleExecuteBatch)
		})

		r.Group(func(r chi.Router) {
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
			}

			r.Get("/catalogs", s.handleListCatalogs)
			r.Get("/catalogs/{elementType}", s.handleGetCatalog)

			r.Post("/parse", s.handleParse)
			r.Post("/mappings/validate", s.handleValidateMappings)
			r.Post("/validate", s.handleValidateRows)
			r.Post("/duplicates", s.handleDetectDuplicates)
			r.Post("/duplicates/strategies", s.handleResolveStrategies)

			r.Get("/batches", s.handleListBatches)
			r.Post("/batches", s.handleCreateBatch)
			r.Get("/batches/{batchID}", s.handleGetBatch)
			r.Get("/batches/{batchID}/errors.csv", s.handleErrorReportCSV)
			r.Get("/batches/{batchID}/errors.xlsx", s.handleErrorReportXLSX)

			r.Get("/elements/{elementID}", s.handleGetElement)

			r.Get("/mapping-templates", s.handleListTemplates)
			r.Post("/mapping-templates", s.handleCreateTemplate)
			r.Post("/mapping-templates/match", s.handleMatchTemplates)
			r.Get("/mapping-templates/{templateID}", s.handleGetTemplate)
			r.Put("/mapping-templates/{templateID}", s.handleUpdateTemplate)
			r.Delete("/mapping-templates/{templateID}", s.handleDeleteTemplate)

			r.Get("/audit", s.handleListAudit)
			r.Get("/executions", s.handleExecutionStatus)
		})
	})
}

// Start begins listening for HTTP requests. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":     "ok",
		"executions": s.service.ExecutionStatus(),
	}
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			slog.Warn("health check failed", "error", err)
			status["status"] = "unavailable"
			writeJSONStatus(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	writeJSON(w, status)
}

// writeJSON encodes v as JSON and writes it to w. Encoding errors are only
// logged since the headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
