package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/mediview/internal/api"
	"github.com/jackzampolin/mediview/internal/config"
	"github.com/jackzampolin/mediview/internal/dashboard"
	"github.com/jackzampolin/mediview/internal/home"
	"github.com/jackzampolin/mediview/internal/ocrapi"
	"github.com/jackzampolin/mediview/internal/server/endpoints"
	"github.com/jackzampolin/mediview/internal/svcctx"
)

// Server is the mediview dashboard HTTP server.
// It serves immediately and finishes initializing once the OCR service
// answers its health check or the configured wait runs out.
type Server struct {
	httpServer  *http.Server
	ocrClient   *ocrapi.Client
	coordinator *dashboard.Coordinator
	configMgr   *config.Manager
	logger      *slog.Logger
	waitReady   time.Duration

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	initialized atomic.Bool

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host overrides dashboard.host
	Host string
	// Port overrides dashboard.port
	Port string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Home is the mediview home directory
	Home *home.Dir
	// Logger is the structured logger to use
	Logger *slog.Logger
	// OCRClient replaces the client built from configuration
	OCRClient *ocrapi.Client
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := cfg.ConfigManager.Get()
	if cfg.Host == "" {
		cfg.Host = c.Dashboard.Host
	}
	if cfg.Port == "" {
		cfg.Port = strconv.Itoa(c.Dashboard.Port)
	}

	client := cfg.OCRClient
	if client == nil {
		client = ocrapi.NewClient(ocrapi.Config{
			BaseURL:    c.Service.BaseURL,
			Credential: c.Credential(),
			AuthHeader: c.Service.AuthHeader,
			Timeout:    c.Service.Timeout,
			Logger:     cfg.Logger.With("component", "ocrapi"),
		})
	}

	coordinator := dashboard.NewCoordinator(dashboard.CoordinatorConfig{
		API:           client,
		Language:      c.Language(),
		MaxUploadSize: c.MaxUploadBytes(),
		JobsLimit:     c.Dashboard.JobsLimit,
		Logger:        cfg.Logger,
	})

	s := &Server{
		ocrClient:   client,
		coordinator: coordinator,
		configMgr:   cfg.ConfigManager,
		logger:      cfg.Logger,
		waitReady:   c.Service.WaitReady,
	}

	s.services = &svcctx.Services{
		Coordinator: coordinator,
		OCRClient:   client,
		Config:      cfg.ConfigManager,
		Logger:      cfg.Logger,
		Home:        cfg.Home,
	}

	// The client and credential are fixed for the process lifetime.
	service := c.Service
	cfg.ConfigManager.OnChange(func(next *config.Config) {
		if next.Service != service {
			s.logger.Warn("OCR service settings changed; restart mediview to apply",
				"base_url", next.Service.BaseURL)
		}
	})

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{
		Initialized:    s.IsInitialized,
		MaxUploadBytes: c.MaxUploadBytes(),
	}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:     s.withServices(mux),
		ReadTimeout: 60 * time.Second,
		// Uploads block until the service finishes OCR.
		WriteTimeout: c.Service.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start serves HTTP and initializes the dashboard in the background.
// It blocks until the context is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()
	defer s.setNotRunning()

	if !s.ocrClient.CredentialPresent() {
		s.logger.Warn("no API key configured; uploads and listings are disabled until one is set",
			"env", config.EnvPrefix+"_API_KEY")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.initialize(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

// initialize waits for the OCR service when configured and then marks the
// server ready. A service that never answers is logged, not fatal: every
// panel reports its own failures.
func (s *Server) initialize(ctx context.Context) {
	if s.waitReady > 0 {
		s.logger.Info("waiting for OCR service", "url", s.ocrClient.BaseURL(), "timeout", s.waitReady)
		if err := s.ocrClient.WaitReady(ctx, s.waitReady); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("OCR service is not ready; continuing", "url", s.ocrClient.BaseURL(), "error", err)
		} else {
			s.logger.Info("OCR service is ready", "url", s.ocrClient.BaseURL())
		}
	}
	s.markReady()
}

func (s *Server) markReady() {
	s.initialized.Store(true)
	s.logger.Info("dashboard ready")
}

// shutdown gracefully stops the HTTP server.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// IsInitialized reports whether startup finished and the view state
// endpoints accept requests.
func (s *Server) IsInitialized() bool {
	return s.initialized.Load()
}

// Coordinator returns the dashboard view model.
func (s *Server) Coordinator() *dashboard.Coordinator {
	return s.coordinator
}

// OCRClient returns the OCR service client.
func (s *Server) OCRClient() *ocrapi.Client {
	return s.ocrClient
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until startup finishes.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.initialized.Load() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
