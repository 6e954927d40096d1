package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/ridopark/chanlun-engine/internal/chanlun/bsp"
	"github.com/ridopark/chanlun-engine/internal/chanlun/candle"
	"github.com/ridopark/chanlun-engine/internal/chanlun/center"
	"github.com/ridopark/chanlun-engine/internal/chanlun/divergence"
	"github.com/ridopark/chanlun-engine/internal/chanlun/engine"
	penpkg "github.com/ridopark/chanlun-engine/internal/chanlun/pen"
	"github.com/ridopark/chanlun-engine/internal/chanlun/segment"
	"github.com/ridopark/chanlun-engine/internal/config"
	"github.com/ridopark/chanlun-engine/internal/database"
	"github.com/ridopark/chanlun-engine/internal/health"
	"github.com/ridopark/chanlun-engine/internal/indicators"
	"github.com/ridopark/chanlun-engine/internal/logger"
	"github.com/ridopark/chanlun-engine/internal/worker"
	"github.com/ridopark/chanlun-engine/pkg/api/handlers"
)

const serverVersion = "1.0.0"

// Server wires the analytical core's collaborators (worker pool, health
// monitor, optional database sink) to an HTTP surface.
type Server struct {
	config  *config.Config
	logger  zerolog.Logger
	db      *database.DB
	bspRepo *database.BSPRepository

	monitor    *health.Monitor
	workerPool *worker.Pool

	httpServer *http.Server
	router     *mux.Router
}

func main() {
	server, err := initializeServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize server: %v\n", err)
		os.Exit(1)
	}

	if err := server.Start(); err != nil {
		server.logger.Fatal().Err(err).Msg("failed to start server")
	}

	server.WaitForShutdown()
}

func initializeServer() (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.New(cfg.Environment, cfg.LogLevel)
	appLogger.Info().
		Str("version", serverVersion).
		Msg("initializing chanlun engine server")

	var db *database.DB
	var bspRepo *database.BSPRepository
	if cfg.Database.Enabled {
		db, err = database.NewConnection(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		bspRepo, err = database.NewBSPRepository(db)
		if err != nil {
			return nil, fmt.Errorf("failed to create bsp repository: %w", err)
		}
	}

	monitor := health.NewMonitor(health.Config{
		CheckIntervalMs: cfg.Health.CheckIntervalMs,
		MaxFailures:     int32(cfg.Health.MaxFailures),
		FailoverEnabled: cfg.Health.FailoverEnabled,
	})

	engineCfg := engineConfigFrom(cfg)
	poolConfig := worker.DefaultPoolConfig()
	workerPool := worker.NewPool(poolConfig, engineCfg, monitor, bspRepo, appLogger)

	router := mux.NewRouter()

	server := &Server{
		config:     cfg,
		logger:     appLogger,
		db:         db,
		bspRepo:    bspRepo,
		monitor:    monitor,
		workerPool: workerPool,
		router:     router,
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:      server.router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return server, nil
}

// engineConfigFrom translates the flat config.Config into the component-local
// configs each chanlun package expects, so the analytical core never reaches
// into config.Config itself.
func engineConfigFrom(cfg *config.Config) engine.Config {
	e := engine.DefaultConfig()

	e.MACD = indicators.Config{Fast: cfg.MACD.Fast, Slow: cfg.MACD.Slow, Signal: cfg.MACD.Signal}

	e.Pen = penpkg.Config{
		UseNewDefinition:       cfg.Pen.UseNewDefinition,
		StrictValidation:       cfg.Pen.StrictValidation,
		MinCandlesBetweenTurns: cfg.Pen.MinCandlesBetweenTurns,
	}

	e.Segment = segment.Config{
		UseFeatureSequence: cfg.Segment.UseFeatureSequence,
		HandleInclusion:    cfg.Segment.HandleInclusion,
		MinFeatures:        cfg.Segment.MinFeatures,
		GapThreshold:       cfg.Segment.GapThreshold,
	}

	e.Divergence = divergence.Config{
		MinPriceChangePct: cfg.Divergence.MinPriceChangePct,
		MinMacdChange:     cfg.Divergence.MinMacdChange,
		EnableSegment:     cfg.Divergence.EnableSegment,
	}

	e.BSP = bsp.Config{
		MinConfidence:     cfg.BSP.MinConfidence,
		PullbackThreshold: cfg.BSP.PullbackThreshold,
		Enable1:           cfg.BSP.Enable1,
		Enable2:           cfg.BSP.Enable2,
		Enable3:           cfg.BSP.Enable3,
	}

	e.Canon = candle.DefaultConfig()
	e.Center = center.DefaultConfig()

	return e
}

func (s *Server) setupRoutes() {
	if s.config.Server.EnableCORS {
		s.router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

				if r.Method == "OPTIONS" {
					w.WriteHeader(http.StatusOK)
					return
				}

				next.ServeHTTP(w, r)
			})
		})
	}

	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			s.logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	})

	apiRouter := s.router.PathPrefix("/api/v1").Subrouter()

	seriesHandler := handlers.NewSeriesHandler(s.workerPool)
	apiRouter.HandleFunc("/series", seriesHandler.ListSeries).Methods("GET")
	apiRouter.HandleFunc("/series/{symbol}/{timeframe}/submit", seriesHandler.Submit).Methods("POST")
	apiRouter.HandleFunc("/series/{symbol}/{timeframe}/pens", seriesHandler.Pens).Methods("GET")
	apiRouter.HandleFunc("/series/{symbol}/{timeframe}/segments", seriesHandler.Segments).Methods("GET")
	apiRouter.HandleFunc("/series/{symbol}/{timeframe}/macd", seriesHandler.MACD).Methods("GET")
	apiRouter.HandleFunc("/series/{symbol}/{timeframe}/divergences", seriesHandler.Divergences).Methods("GET")
	apiRouter.HandleFunc("/series/{symbol}/{timeframe}/bsps", seriesHandler.BSPs).Methods("GET")

	healthHandler := handlers.NewHealthHandler(s.monitor, s.workerPool, s.db, serverVersion)
	apiRouter.HandleFunc("/health", healthHandler.GetHealth).Methods("GET")
	apiRouter.HandleFunc("/status", healthHandler.GetStatus).Methods("GET")

	s.logger.Info().Msg("routes configured")
}

// Start begins all server components.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("starting server")

	s.workerPool.Start()

	go func() {
		s.logger.Info().Msg("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	return nil
}

// WaitForShutdown waits for a shutdown signal and shuts down gracefully.
func (s *Server) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	s.logger.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("http server shutdown error")
	}

	s.workerPool.Stop()

	if s.bspRepo != nil {
		if err := s.bspRepo.Close(); err != nil {
			s.logger.Error().Err(err).Msg("bsp repository close error")
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error().Err(err).Msg("database close error")
		}
	}

	s.logger.Info().Msg("server shutdown complete")
}
