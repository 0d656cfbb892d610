package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"weather-monitor/internal/config"
	"weather-monitor/internal/models"
	"weather-monitor/internal/providers"
	"weather-monitor/internal/scheduler"
	"weather-monitor/pkg/database"
	"weather-monitor/pkg/logging"
	"weather-monitor/pkg/metrics"
)

func main() {
	// Parse command-line flags
	jobName := flag.String("job", scheduler.JobFetch, "Job to run once: fetch, summary, alerts or cleanup")
	migrate := flag.Bool("migrate", false, "Apply the schema before running the job")
	flag.Parse()

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

	logger := logging.NewStructuredLogger("weather-jobrunner", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "[JOBRUNNER_START] Running job once", logging.Fields{
		"job":       *jobName,
		"db_driver": cfg.Database.Driver,
	})

	metricsCollector := metrics.NewCollector("weather_jobrunner", prometheus.NewRegistry())

	db, err := database.Open(cfg.Database.Connection(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[JOBRUNNER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	if *migrate {
		if err := database.Migrate(ctx, db, database.DirectionUp); err != nil {
			logger.Error(ctx, "[JOBRUNNER_ERROR] Failed to apply schema", logging.Fields{}, err)
			db.Close()
			os.Exit(1)
		}
	}

	client := providers.NewOpenWeatherClient(cfg.Provider.Client(), logger, metricsCollector)

	sched := scheduler.New(db, logger, metricsCollector, scheduler.Options{
		JobTimeout: cfg.Scheduler.JobTimeout,
	})
	if err := sched.RegisterAll(scheduler.WeatherJobs(cfg.Jobs(client), logger, metricsCollector)); err != nil {
		logger.Error(ctx, "[JOBRUNNER_ERROR] Failed to register jobs", logging.Fields{}, err)
		db.Close()
		os.Exit(1)
	}

	runErr := sched.Trigger(ctx, *jobName)

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("JOB %s\n", strings.ToUpper(*jobName))
	fmt.Println(strings.Repeat("=", 80))
	for _, st := range sched.Status() {
		if st.Name != *jobName {
			continue
		}
		fmt.Printf("Status:    %s\n", st.LastStatus)
		fmt.Printf("Duration:  %s\n", st.LastDuration)
		fmt.Printf("Schedule:  %s\n", st.Schedule)
		if st.LastError != "" {
			fmt.Printf("Error:     %s\n", st.LastError)
		}
	}

	var noData *models.NoDataError
	switch {
	case runErr == nil, errors.As(runErr, &noData):
		// No data yet is not a failure for a one-off run.
	case errors.Is(runErr, scheduler.ErrUnknownJob):
		fmt.Fprintf(os.Stderr, "%v (expected fetch, summary, alerts or cleanup)\n", runErr)
		db.Close()
		os.Exit(2)
	default:
		db.Close()
		os.Exit(1)
	}

	logger.Info(ctx, "[JOBRUNNER_COMPLETE] Job finished", logging.Fields{"job": *jobName})
}
