package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfabric/livedata/internal/adapter/wsfeed"
	"github.com/quantfabric/livedata/internal/config"
	"github.com/quantfabric/livedata/internal/database"
	"github.com/quantfabric/livedata/internal/dispatch"
	"github.com/quantfabric/livedata/internal/engine"
	"github.com/quantfabric/livedata/internal/lifecycle"
	"github.com/quantfabric/livedata/internal/model"
	"github.com/quantfabric/livedata/internal/recorder"
	"github.com/quantfabric/livedata/internal/routing"
	"github.com/quantfabric/livedata/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/feedd.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting feedd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"venue", cfg.Venue.Name,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database when recording is enabled
	var db *pgxpool.Pool
	if cfg.Recorder.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Timescale.Host,
			"port", cfg.Database.Timescale.Port,
			"database", cfg.Database.Timescale.Name,
		)

		db, err = database.Connect(ctx, cfg.Database.Timescale)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		logger.Info("database connected")
	}

	// Data engine
	eng := engine.New(engine.Config{
		InputBufferSize:      cfg.Engine.InputBufferSize,
		SubscriberBufferSize: cfg.Engine.SubscriberBufferSize,
	}, logger)

	// Venue adapter
	adapter, err := wsfeed.New(wsfeed.Config{
		Name:           cfg.Instance.ID,
		Venue:          cfg.Venue.Name,
		WSURL:          cfg.Venue.WSURL,
		RestURL:        cfg.Venue.RestURL,
		Token:          cfg.Venue.Token,
		PingTimeout:    cfg.Venue.PingTimeout,
		WriteTimeout:   cfg.Venue.WriteTimeout,
		CommandTimeout: cfg.Venue.CommandTimeout,
		BufferSize:     cfg.Venue.BufferSize,
		MaxRetries:     cfg.Venue.MaxRetries,

		// Session redials follow the same backoff policy as connects.
		ReconnectBaseWait: cfg.Lifecycle.ReconnectBaseWait,
		ReconnectMaxWait:  cfg.Lifecycle.ReconnectMaxWait,
	}, eng.Publisher(), logger)
	if err != nil {
		logger.Error("failed to create adapter", "error", err)
		os.Exit(1)
	}

	// Request dispatcher, fed by the engine's response path
	dispatcher := dispatch.NewDispatcher(adapter, cfg.Dispatch.RequestTimeout, logger)
	eng.SetResponseSink(dispatcher.HandleResponse)

	// Subscription router
	router := routing.NewRouter(adapter, logger)

	// Recorders tap the engine before anything connects
	var recorders []interface {
		Start(context.Context) error
		Stop(context.Context) error
	}
	if cfg.Recorder.Enabled {
		recCfg := recorder.Config{
			BatchSize:     cfg.Recorder.BatchSize,
			FlushInterval: cfg.Recorder.FlushInterval,
		}
		recorders = append(recorders,
			recorder.NewTradeRecorder(recCfg, eng.SubscribeData(model.KindTradeTick), db, logger),
			recorder.NewQuoteRecorder(recCfg, eng.SubscribeData(model.KindQuoteTick), db, logger),
			recorder.NewBarRecorder(recCfg, eng.SubscribeData(model.KindBar), db, logger),
		)
	}

	// Start the engine
	if err := eng.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		eng.Stop(stopCtx)
	}()

	// Start recorders
	for _, rec := range recorders {
		if err := rec.Start(ctx); err != nil {
			logger.Error("failed to start recorder", "error", err)
			os.Exit(1)
		}
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		for _, rec := range recorders {
			rec.Stop(stopCtx)
		}
	}()

	// Lifecycle manager owns adapter connect/disconnect
	manager := lifecycle.NewManager(lifecycle.Config{
		ConnectTimeout:    cfg.Lifecycle.ConnectTimeout,
		ReconnectBaseWait: cfg.Lifecycle.ReconnectBaseWait,
		ReconnectMaxWait:  cfg.Lifecycle.ReconnectMaxWait,
		MaxConnectRetries: cfg.Lifecycle.MaxConnectRetries,
	}, logger)
	if err := manager.Register(adapter); err != nil {
		logger.Error("failed to register adapter", "error", err)
		os.Exit(1)
	}

	// Health server starts early so connects can be observed
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(cfg.Health.Path, db, manager, eng, router, logger),
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Connect adapters
	logger.Info("connecting adapters")
	if err := manager.Start(ctx); err != nil {
		logger.Error("failed to connect adapters", "error", err)
		os.Exit(1)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		manager.Stop(stopCtx)
	}()

	logger.Info("feedd running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d%s", cfg.Health.Port, cfg.Health.Path),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	// Graceful shutdown of health server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("feedd stopped")
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(
	path string,
	db *pgxpool.Pool,
	manager *lifecycle.Manager,
	eng engine.Engine,
	router *routing.Router,
	logger *slog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		// Check database
		if db != nil {
			if err := db.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["timescaledb"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["timescaledb"] = "connected"
			}
		}

		// Check adapters
		adapters := manager.Health()
		health.Components["adapters"] = adapters
		for _, a := range adapters {
			if a.State != lifecycle.StateReady {
				health.Status = "degraded"
			}
		}

		// Engine throughput
		health.Components["engine"] = eng.Stats()

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(health); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})

	mux.HandleFunc("/debug/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		subs := router.Active()

		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]any{
			"count":         len(subs),
			"subscriptions": subs,
		})
		if err != nil {
			logger.Warn("failed to write subscriptions response", "error", err)
		}
	})

	return mux
}
