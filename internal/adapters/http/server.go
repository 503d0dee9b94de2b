// Package http exposes the dataset actions, the workspace catalog and the
// produced files over HTTP.
package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobrunner/geofix/internal/application"
	"github.com/jobrunner/geofix/internal/config"
	"github.com/jobrunner/geofix/internal/domain"
	"github.com/jobrunner/geofix/internal/ports/input"
)

// DatasetCatalog lists workspace datasets and registers uploaded ones.
type DatasetCatalog interface {
	input.DatasetCatalog
	Register(ctx context.Context, path string) (*domain.DatasetInfo, error)
}

// SyncTrigger runs an on-demand remote sync.
type SyncTrigger interface {
	TriggerSync(ctx context.Context) (application.SyncResult, error)
}

// Metrics instruments the router.
type Metrics interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// Server wraps the HTTP server with application handlers.
type Server struct {
	server      *http.Server
	router      *mux.Router
	actions     input.ActionInvoker
	catalog     DatasetCatalog
	health      input.HealthChecker
	syncService SyncTrigger
	workspace   *application.Workspace
	metrics     Metrics
	logger      *slog.Logger
	config      config.ServerConfig
	metricsPath string
}

// NewServer creates a new HTTP server. syncService and metrics may be nil.
func NewServer(
	cfg config.ServerConfig,
	actions input.ActionInvoker,
	catalog DatasetCatalog,
	health input.HealthChecker,
	syncService SyncTrigger,
	workspace *application.Workspace,
	metrics Metrics,
	metricsPath string,
	logger *slog.Logger,
) *Server {
	s := &Server{
		actions:     actions,
		catalog:     catalog,
		health:      health,
		syncService: syncService,
		workspace:   workspace,
		metrics:     metrics,
		logger:      logger,
		config:      cfg,
		metricsPath: metricsPath,
	}

	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *mux.Router {
	// Match on the escaped path so an encoded "../" reaches the workspace
	// check instead of being cleaned into a redirect.
	r := mux.NewRouter().UseEncodedPath()

	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	if s.config.CORS.Enabled() {
		r.Use(newCORSPolicy(s.config.CORS.AllowedOrigins).middleware)
	}

	// Health endpoints
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)

	// Cross-origin writes need a matching OPTIONS route for the preflight.
	post := []string{http.MethodPost}
	put := []string{http.MethodPut}
	if s.config.CORS.Enabled() {
		post = append(post, http.MethodOptions)
		put = append(put, http.MethodOptions)
	}

	api := r.PathPrefix("/api/v1").Subrouter()

	// Actions
	api.HandleFunc("/actions", s.handleListActions).Methods(http.MethodGet)
	api.HandleFunc("/actions/{name}", s.handleInvokeAction).Methods(post...)

	// Dataset catalog
	api.HandleFunc("/datasets", s.handleListDatasets).Methods(http.MethodGet)
	api.HandleFunc("/datasets/{name}", s.handleGetDataset).Methods(http.MethodGet)

	// Workspace files: produced outputs and uploads
	api.HandleFunc("/files/{path:.+}", s.handleGetFile).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/files/{path:.+}", s.handlePutFile).Methods(put...)

	if s.syncService != nil {
		api.HandleFunc("/sync", s.handleSync).Methods(post...)
	}

	r.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)

	if s.metrics != nil && s.metricsPath != "" {
		r.Handle(s.metricsPath, s.metrics.Handler()).Methods(http.MethodGet)
	}

	return r
}

// Router returns the mux router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.config.Address())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs incoming requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// recoveryMiddleware recovers from panics.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
