package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"stream-relay/internal/auth"
	"stream-relay/internal/database"
	"stream-relay/internal/handlers"
	"stream-relay/internal/ingest"
	"stream-relay/internal/logging"
	"stream-relay/internal/memory"
	"stream-relay/internal/metrics"
	"stream-relay/internal/middleware"
	"stream-relay/internal/startup"
	"stream-relay/internal/transcoder"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

const (
	collectorInterval = 15 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// app holds every long-lived component of the relay.
type app struct {
	config        *startup.Config
	db            *database.Database
	supervisor    *transcoder.Supervisor
	ingest        *ingest.Handler
	collector     *metrics.Collector
	memory        *memory.Monitor
	server        *http.Server
	metricsServer *http.Server
}

func main() {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	metrics.InitializeMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, config)
	if err != nil {
		startup.LogFatal("Initialization error: %v", err)
	}

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	if err := a.run(ctx); err != nil {
		startup.LogFatal("Server error: %v", err)
	}
}

func newApp(ctx context.Context, config *startup.Config) (*app, error) {
	a := &app{config: config}

	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.db = db

	sessions, runs, err := db.RecoverUnfinished(ctx)
	if err != nil {
		logging.Warn("Failed to close rows left open by a previous run: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart), sessions, runs)

	verifier, err := auth.NewTokenVerifier(config.IngestTokenHash)
	if err != nil {
		db.Close()
		return nil, err
	}

	startup.LogEncoderInit(config)
	args, logArgs := config.EncoderArgs()
	a.supervisor = transcoder.New(transcoder.Options{
		Path:          config.FFmpegPath,
		Args:          args,
		LogArgs:       logArgs,
		WriteTimeout:  config.WriteTimeout,
		ShutdownGrace: config.ShutdownGrace,
		Observer:      newRunJournal(db),
	})

	// The encoder runs from process start whether or not a client connects.
	// A failed spawn leaves the relay up so the restart endpoint can retry.
	startErr := a.supervisor.Start(ctx)
	startup.LogEncoderStarted(a.supervisor.EncoderPID(), startErr)

	a.collector = metrics.NewCollector(a.supervisor, config.DatabasePath, collectorInterval)
	a.collector.Start()

	a.memory = memory.NewMonitor(memory.DefaultConfig())
	a.memory.Start()

	a.ingest = ingest.NewHandler(a.supervisor, db, ingest.Config{
		MaxChunkBytes:  config.MaxChunkBytes,
		IdleTimeout:    config.IdleTimeout,
		AllowedOrigins: config.AllowedOrigins,
		Verifier:       verifier,
		Pressure:       a.memory,
	})

	h := handlers.New(a.supervisor, a.ingest, db)
	router := setupRouter(h, a.ingest, verifier, config.PublicDir)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(
		middleware.Metrics(middleware.DefaultMetricsConfig())(router),
	)

	a.server = &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Ingest sockets are long-lived; the session enforces its own deadlines.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	if config.MetricsEnabled {
		a.metricsServer = newMetricsServer(config.MetricsPort, h)
	}

	return a, nil
}

func setupRouter(h *handlers.Handlers, socket http.Handler, verifier *auth.TokenVerifier, publicDir string) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes (no auth required)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Ingest socket, authenticated by the handler before upgrade
	r.Handle("/socket", socket).Methods("GET")

	// Operations API
	api := r.PathPrefix("/api").Subrouter()
	api.Use(verifier.Middleware)
	api.HandleFunc("/encoder", h.GetEncoderStatus).Methods("GET")
	api.HandleFunc("/encoder/restart", h.RestartEncoder).Methods("POST")
	api.HandleFunc("/sessions", h.ListSessions).Methods("GET")
	api.HandleFunc("/sessions/active", h.GetActiveSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", h.GetSession).Methods("GET")

	// Static client
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(publicDir)))

	return r
}

func newMetricsServer(port string, h *handlers.Handlers) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", h.MetricsHandler())
	metricsMux.HandleFunc("/health", h.LivenessCheck)

	return &http.Server{
		Addr:         ":" + port,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

// run serves until ctx is canceled or a server fails, then shuts down.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.metricsServer != nil {
		g.Go(func() error {
			if err := a.metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		reason := "SIGINT/SIGTERM"
		if ctx.Err() == nil {
			reason = "server error"
		}
		a.shutdown(reason)
		return nil
	})

	return g.Wait()
}

// shutdown stops accepting connections, closes sessions, handles the
// encoder per SHUTDOWN_MODE and releases the remaining resources.
func (a *app) shutdown(reason string) {
	startup.LogShutdownInitiated(reason)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout+a.config.ShutdownGrace)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := a.server.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Closing ingest sessions")
	if err := a.ingest.Shutdown(ctx); err != nil {
		logging.Warn("Ingest shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Ingest sessions closed")
	}

	startup.LogShutdownStep(fmt.Sprintf("Stopping encoder (%s)", a.config.ShutdownMode))
	if err := a.supervisor.Shutdown(ctx, a.config.ShutdownMode); err != nil {
		logging.Warn("Encoder shutdown: %v", err)
	} else {
		startup.LogShutdownStepComplete(fmt.Sprintf("Encoder %s complete", a.config.ShutdownMode))
	}

	startup.LogShutdownStep("Stopping metrics collector")
	a.collector.Stop()
	a.memory.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	if a.metricsServer != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Closing database")
	if err := a.db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
}
