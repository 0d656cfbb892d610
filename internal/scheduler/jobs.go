package scheduler

import (
	"context"
	"time"

	"weather-monitor/internal/models"
	"weather-monitor/internal/repository"
	"weather-monitor/internal/services"
	"weather-monitor/pkg/logging"
	"weather-monitor/pkg/metrics"
)

// Job names
const (
	JobFetch   = "fetch"
	JobSummary = "summary"
	JobAlerts  = "alerts"
	JobCleanup = "cleanup"
)

// JobsConfig carries everything the built-in jobs need
type JobsConfig struct {
	Fetcher       services.WeatherFetcher
	Cities        []string
	SummaryWindow time.Duration
	RetentionDays int
	HardDelete    bool
	Thresholds    models.AlertThreshold

	FetchSchedule   Schedule
	SummarySchedule Schedule
	AlertsSchedule  Schedule
	CleanupSchedule Schedule
}

// WeatherJobs builds the fetch, summary, alert and cleanup jobs. Each run
// constructs its services over the repository it is handed.
func WeatherJobs(cfg JobsConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) []Job {
	return []Job{
		{
			Name:     JobFetch,
			Schedule: cfg.FetchSchedule,
			Run: func(ctx context.Context, repo repository.WeatherRepository) error {
				weather := services.NewWeatherService(repo, cfg.Fetcher, logger, metricsCollector)
				_, err := services.NewIngestionService(weather, logger, metricsCollector).IngestCities(ctx, cfg.Cities)
				return err
			},
		},
		{
			Name:     JobSummary,
			Schedule: cfg.SummarySchedule,
			Run: func(ctx context.Context, repo repository.WeatherRepository) error {
				_, err := services.NewSummaryService(repo, logger, metricsCollector).Compute(ctx, cfg.SummaryWindow)
				return err
			},
		},
		{
			Name:     JobAlerts,
			Schedule: cfg.AlertsSchedule,
			Run: func(ctx context.Context, repo repository.WeatherRepository) error {
				_, err := services.NewAlertService(repo, logger, metricsCollector).CheckAlerts(ctx, cfg.Thresholds)
				return err
			},
		},
		{
			Name:     JobCleanup,
			Schedule: cfg.CleanupSchedule,
			Run: func(ctx context.Context, repo repository.WeatherRepository) error {
				weather := services.NewWeatherService(repo, cfg.Fetcher, logger, metricsCollector)
				_, err := weather.Cleanup(ctx, cfg.RetentionDays, cfg.HardDelete)
				return err
			},
		},
	}
}

// RegisterAll registers every job, stopping at the first failure
func (s *Scheduler) RegisterAll(jobs []Job) error {
	for _, job := range jobs {
		if err := s.Register(job); err != nil {
			return err
		}
	}
	return nil
}
