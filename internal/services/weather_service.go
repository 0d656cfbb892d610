package services

import (
	"context"
	"fmt"
	"time"

	"weather-monitor/internal/models"
	"weather-monitor/internal/repository"
	"weather-monitor/pkg/logging"
	"weather-monitor/pkg/metrics"
)

// WeatherFetcher retrieves the current weather for a city
type WeatherFetcher interface {
	Fetch(ctx context.Context, city string) (*models.WeatherReading, error)
}

// WeatherService handles weather reading operations
type WeatherService struct {
	repo    repository.WeatherRepository
	fetcher WeatherFetcher
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewWeatherService creates a new weather service
func NewWeatherService(repo repository.WeatherRepository, fetcher WeatherFetcher, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *WeatherService {
	return &WeatherService{
		repo:    repo,
		fetcher: fetcher,
		logger:  logger,
		metrics: metricsCollector,
		now:     time.Now,
	}
}

// FetchAndStore fetches the current weather for city and persists it.
// Nothing is written when the fetch fails.
func (s *WeatherService) FetchAndStore(ctx context.Context, city string) (*models.WeatherReading, error) {
	reading, err := s.fetcher.Fetch(ctx, city)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateReading(ctx, reading); err != nil {
		return nil, err
	}

	s.metrics.LatestTemperatureC.WithLabelValues(reading.LocationName).Set(reading.Temperature)
	s.logger.Info(ctx, "[WEATHER_FETCH] Weather reading stored", logging.Fields{
		"reading_id":  reading.ID,
		"city":        city,
		"location":    reading.LocationName,
		"temperature": reading.Temperature,
		"humidity":    reading.Humidity,
		"condition":   reading.ConditionLabel,
	})

	return reading, nil
}

// LatestReadings returns the newest live readings
func (s *WeatherService) LatestReadings(ctx context.Context, limit int) ([]*models.WeatherReading, error) {
	return s.repo.LatestReadings(ctx, limit)
}

// ListReadings retrieves readings with filtering
func (s *WeatherService) ListReadings(ctx context.Context, filter repository.ReadingFilter) ([]*models.WeatherReading, int, error) {
	return s.repo.ListReadings(ctx, filter)
}

// Cleanup removes readings fetched more than retentionDays ago, either by
// marking them deleted or by deleting the rows. It returns the affected count.
func (s *WeatherService) Cleanup(ctx context.Context, retentionDays int, hardDelete bool) (int64, error) {
	if retentionDays < 1 {
		return 0, &models.ValidationError{
			Field:   "retention_days",
			Value:   fmt.Sprintf("%d", retentionDays),
			Message: "retention must be at least one day",
		}
	}

	now := s.now().UTC()
	cutoff := now.AddDate(0, 0, -retentionDays)

	mode := "soft"
	var (
		removed int64
		err     error
	)
	if hardDelete {
		mode = "hard"
		removed, err = s.repo.HardDeleteReadingsBefore(ctx, cutoff)
	} else {
		removed, err = s.repo.SoftDeleteReadingsBefore(ctx, cutoff, now)
	}
	if err != nil {
		return 0, err
	}

	s.metrics.CleanupRemovedTotal.WithLabelValues(mode).Add(float64(removed))
	s.logger.Info(ctx, "[CLEANUP_COMPLETE] Old readings cleaned", logging.Fields{
		"mode":           mode,
		"retention_days": retentionDays,
		"cutoff":         cutoff.Format(time.RFC3339),
		"removed":        removed,
	})

	return removed, nil
}
