package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weather-monitor/internal/config"
	"weather-monitor/internal/handlers"
	"weather-monitor/internal/providers"
	"weather-monitor/internal/repository"
	"weather-monitor/internal/scheduler"
	"weather-monitor/internal/services"
	"weather-monitor/pkg/database"
	"weather-monitor/pkg/logging"
	"weather-monitor/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("weather-monitor", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting weather monitor", logging.Fields{
		"version":     version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_driver":   cfg.Database.Driver,
		"cities":      cfg.Provider.Cities,
	})

	metricsCollector := metrics.NewCollector("weather_monitor", prometheus.DefaultRegisterer)

	// Initialize database
	db, err := database.Open(cfg.Database.Connection(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, database.DirectionUp); err != nil {
			db.Close()
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to apply schema", logging.Fields{}, err)
		}
	}

	client := providers.NewOpenWeatherClient(cfg.Provider.Client(), logger, metricsCollector)

	// Scheduler: every job run gets its own session
	sched := scheduler.New(db, logger, metricsCollector, scheduler.Options{
		JobTimeout: cfg.Scheduler.JobTimeout,
	})
	if err := sched.RegisterAll(scheduler.WeatherJobs(cfg.Jobs(client), logger, metricsCollector)); err != nil {
		db.Close()
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to register jobs", logging.Fields{}, err)
	}

	// The API shares the pool
	weatherRepo := repository.NewWeatherRepository(db, logger, metricsCollector)
	weatherHandler := handlers.NewWeatherHandler(handlers.Dependencies{
		Weather:     services.NewWeatherService(weatherRepo, client, logger, metricsCollector),
		Summaries:   services.NewSummaryService(weatherRepo, logger, metricsCollector),
		Alerts:      services.NewAlertService(weatherRepo, logger, metricsCollector),
		Jobs:        sched,
		Health:      db,
		DefaultCity: cfg.DefaultCity(),
	}, logger, metricsCollector)

	router := mux.NewRouter()
	router.Use(handlers.Instrument(logger, metricsCollector))
	weatherHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if err := sched.Start(); err != nil {
		db.Close()
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to start scheduler", logging.Fields{}, err)
	}

	if cfg.Scheduler.RunOnStart {
		go runInitialJobs(ctx, sched, logger)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info(ctx, "[SHUTDOWN] Shutting down...", logging.Fields{"signal": sig.String()})
	case err := <-serverErr:
		logger.Error(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
	}

	// Graceful shutdown with timeout: API first, then jobs, then the pool
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	if err := sched.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Scheduler forced to shutdown", logging.Fields{}, err)
	}

	if err := db.Close(); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Failed to close database", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Weather monitor stopped", logging.Fields{})
}

// runInitialJobs fills the store right after startup instead of waiting for
// the first tick. Fetch goes first so summary and alerts have data.
func runInitialJobs(ctx context.Context, sched *scheduler.Scheduler, logger *logging.StructuredLogger) {
	for _, name := range []string{scheduler.JobFetch, scheduler.JobSummary, scheduler.JobAlerts} {
		if err := sched.Trigger(ctx, name); err != nil {
			logger.Warn(ctx, "[STARTUP_RUN] Initial job run did not succeed", logging.Fields{
				"job":   name,
				"error": err.Error(),
			})
		}
	}
}
