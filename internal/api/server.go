// Package api provides the HTTP REST API for recondor. It exposes the
// recon modules (port scan, DNS enumeration, banner grabbing) as
// endpoints, serves scan history when storage is enabled, and streams
// live scan progress over a websocket.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/recondor/recondor/internal/banner"
	"github.com/recondor/recondor/internal/config"
	"github.com/recondor/recondor/internal/dnsenum"
	"github.com/recondor/recondor/internal/errors"
	"github.com/recondor/recondor/internal/logging"
	"github.com/recondor/recondor/internal/metrics"
	"github.com/recondor/recondor/internal/portscan"
	"github.com/recondor/recondor/internal/storage"
)

const (
	serverShutdownTimeout = 30 * time.Second
	healthCheckTimeout    = 5 * time.Second

	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 60 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// Server is the recondor API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     *config.Config
	store      *storage.Store
	logger     *logging.Logger
	registry   *metrics.Registry
	prom       *metrics.PrometheusMetrics
	validate   *validator.Validate
	version    string
	startTime  time.Time

	// Engine entry points, replaceable in tests.
	runScan   func(ctx context.Context, target string, cfg portscan.Config) (*portscan.Result, error)
	runDNS    func(ctx context.Context, domain string, cfg dnsenum.Config) (*dnsenum.Result, error)
	runBanner func(ctx context.Context, target string, cfg banner.Config) (*banner.Result, error)
}

// New creates an API server. store may be nil when history storage is
// disabled.
func New(cfg *config.Config, store *storage.Store, version string) *Server {
	server := &Server{
		router:    mux.NewRouter(),
		config:    cfg,
		store:     store,
		logger:    logging.WithComponent("api"),
		registry:  metrics.NewRegistry(),
		prom:      metrics.GetGlobalMetrics(),
		validate:  validator.New(),
		version:   version,
		startTime: time.Now(),
		runScan:   portscan.Run,
		runDNS: func(ctx context.Context, domain string, c dnsenum.Config) (*dnsenum.Result, error) {
			return dnsenum.NewEnumerator().Run(ctx, domain, c)
		},
		runBanner: func(ctx context.Context, target string, c banner.Config) (*banner.Result, error) {
			return banner.NewGrabber().Run(ctx, target, c)
		},
	}

	server.setupRoutes()
	server.setupMiddleware()

	server.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.API.ListenAddr, strconv.Itoa(cfg.API.Port)),
		Handler:      server.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	return server
}

// Start runs the server until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting API server", "address", s.httpServer.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// Router returns the configured router. Used by tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.healthHandler).Methods("GET")
	api.HandleFunc("/status", s.statusHandler).Methods("GET")
	api.HandleFunc("/version", s.versionHandler).Methods("GET")

	api.HandleFunc("/scan", s.scanHandler).Methods("POST")
	api.HandleFunc("/dns", s.dnsHandler).Methods("POST")
	api.HandleFunc("/banner", s.bannerHandler).Methods("POST")

	api.HandleFunc("/scans", s.listScansHandler).Methods("GET")
	api.HandleFunc("/scans/{id}", s.getScanHandler).Methods("GET")

	api.HandleFunc("/scan/live", s.liveScanHandler).Methods("GET")

	s.router.Handle("/metrics", promhttp.HandlerFor(
		s.prom.GetRegistry(), promhttp.HandlerOpts{})).Methods("GET")
}

func (s *Server) setupMiddleware() {
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.loggingMiddleware)

	if s.config.API.CORS.Enabled {
		s.router.Use(handlers.CORS(
			handlers.AllowedOrigins(s.config.API.CORS.AllowedOrigins),
			handlers.AllowedMethods(s.config.API.CORS.AllowedMethods),
			handlers.AllowedHeaders(s.config.API.CORS.AllowedHeaders),
		))
	}
}

// ErrorResponse is the standard API error shape.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	s.logger.Error("API error",
		"method", r.Method,
		"path", r.URL.Path,
		"status", statusCode,
		"error", err.Error())

	response := ErrorResponse{
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	}
	if code := errors.GetCode(err); code != errors.CodeUnknown {
		response.Code = string(code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// writeEngineError maps engine error codes to HTTP statuses: fatal
// input errors are the client's fault, cancellation maps to 503.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch errors.GetCode(err) {
	case errors.CodeResolution, errors.CodeInvalidPortSpec,
		errors.CodeValidation, errors.CodeConfiguration:
		s.writeError(w, r, http.StatusBadRequest, err)
	case errors.CodeCanceled:
		s.writeError(w, r, http.StatusServiceUnavailable, err)
	default:
		s.writeError(w, r, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response",
			"error", err.Error(), "path", r.URL.Path)
	}
}

func (s *Server) parseJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("empty request body")
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// Middleware.

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("Panic in API handler",
					"error", err, "path", r.URL.Path, "method", r.Method)
				s.writeError(w, r, http.StatusInternalServerError,
					fmt.Errorf("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", duration,
			"remote_addr", r.RemoteAddr)

		s.registry.Counter("http_requests_total", map[string]string{
			"method": r.Method,
			"status": strconv.Itoa(wrapped.statusCode),
		})
		s.registry.Histogram("http_request_duration_seconds", duration.Seconds(), map[string]string{
			"method": r.Method,
		})
		s.prom.IncrementHTTPRequests(r.Method, r.URL.Path, strconv.Itoa(wrapped.statusCode))
		s.prom.RecordHTTPDuration(r.Method, r.URL.Path, duration)
	})
}

// requestTotals folds the middleware's in-process request counters into
// per-method totals for the status endpoint.
func (s *Server) requestTotals() map[string]int {
	totals := make(map[string]int)
	for _, m := range s.registry.GetMetrics() {
		if m.Name == "http_requests_total" {
			totals[m.Labels["method"]] += int(m.Value)
		}
	}
	return totals
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack exposes the underlying connection so the websocket upgrade
// works through the logging middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
