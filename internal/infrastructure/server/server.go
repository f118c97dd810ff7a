package server

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nuitester/internal/api/http"
	"github.com/GriffinCanCode/nuitester/internal/api/middleware"
	"github.com/GriffinCanCode/nuitester/internal/api/ws"
	"github.com/GriffinCanCode/nuitester/internal/domain/shim"
	"github.com/GriffinCanCode/nuitester/internal/domain/workspace"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/config"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/storage"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/tracing"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *nethttp.Server
	manager  *workspace.Manager
	store    *storage.Store
	handlers *http.Handlers
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing NUI Tester",
		zap.String("addr", cfg.Addr()),
		zap.String("ui_folder", cfg.Workspace.UIFolder),
		zap.Bool("storage", cfg.Storage.Enabled),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("nuitester", logger.Component("trace"))

	manager := workspace.NewManager(cfg.WorkspaceSettings(), logger.Component("workspace")).WithMetrics(metrics)

	// Snapshot persistence (optional)
	var store *storage.Store
	if cfg.Storage.Enabled {
		store, err = storage.Open(storage.Config{Path: cfg.Storage.Path, WAL: true}, logger.Component("storage"))
		if err != nil {
			tracer.Close()
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		store.WithMetrics(metrics)
		manager.WithRepository(store)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := manager.Restore(ctx)
		cancel()
		if err != nil {
			logger.Warn("Failed to restore workspaces", zap.Error(err))
		}
		logger.Info("Storage opened", zap.String("path", cfg.Storage.Path), zap.Int("restored", n))
	}

	handlers := http.NewHandlers(manager, cfg.Limits(), metrics, logger.Component("http"))
	if cfg.Shim.SelfTest {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Shim.Timeout)
		err := shim.SelfTest(ctx, shim.Options{ResourceName: cfg.Workspace.ResourceName}, cfg.Shim.Timeout)
		cancel()
		if err != nil {
			// previews still load; only the emulated API is suspect
			logger.Error("Bridge shim self-test failed", zap.Error(err))
		} else {
			logger.Info("Bridge shim self-test passed")
		}
		handlers.SetShimStatus(err)
	}
	wsHandler := ws.NewHandler(manager, metrics, tracer, logger.Component("ws"))

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	corsCfg := middleware.DefaultCORSConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.Server.CORSOrigins
	}
	router.Use(middleware.CORS(corsCfg))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	// Register routes
	handlers.Register(router)
	wsHandler.Register(router)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/metrics/json", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, metrics.Snapshot())
	})

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		http:     &nethttp.Server{Addr: cfg.Addr(), Handler: router, ReadHeaderTimeout: 10 * time.Second},
		manager:  manager,
		store:    store,
		handlers: handlers,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Handler returns the router, for embedding and tests.
func (s *Server) Handler() nethttp.Handler {
	return s.router
}

// Manager returns the workspace manager.
func (s *Server) Manager() *workspace.Manager {
	return s.manager
}

// Run starts the HTTP server and blocks until it stops. A shutdown is not
// an error.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.http.Shutdown(ctx)
}

// Close releases every workspace and closes storage. Persisted snapshots
// survive for the next start.
func (s *Server) Close() error {
	s.manager.Close()
	s.manager.Host().Close()
	s.tracer.Close()

	var err error
	if s.store != nil {
		if err = s.store.Close(); err != nil {
			s.logger.Error("Failed to close storage", zap.Error(err))
			err = fmt.Errorf("failed to close storage: %w", err)
		} else {
			s.logger.Info("Closed storage")
		}
	}

	// Sync logger before exit
	_ = s.logger.Sync()
	return err
}
