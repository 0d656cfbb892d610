package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"weather-monitor/pkg/logging"
	"weather-monitor/pkg/metrics"
)

// IngestionService fetches and stores readings for a set of cities
type IngestionService struct {
	weather *WeatherService
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	Requested  int
	Stored     int
	Failed     int
	ReadingIDs []int64
	Duration   time.Duration
	Errors     []string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(weather *WeatherService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		weather: weather,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestCities fetches every city in turn. A failing city does not stop the
// others; the returned error joins every per-city failure.
func (s *IngestionService) IngestCities(ctx context.Context, cities []string) (*IngestionResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting weather ingestion", logging.Fields{
		"cities": cities,
		"stage":  "INITIALIZATION",
	})

	result := &IngestionResult{
		Requested: len(cities),
		Errors:    make([]string, 0),
	}

	var errs []error
	for _, city := range cities {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("ingestion interrupted before %q: %w", city, err))
			result.Failed += len(cities) - result.Stored - result.Failed
			break
		}

		reading, err := s.weather.FetchAndStore(ctx, city)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("failed to ingest %s: %v", city, err))
			errs = append(errs, err)
			continue
		}

		result.Stored++
		result.ReadingIDs = append(result.ReadingIDs, reading.ID)
	}

	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[INGEST_COMPLETE] Weather ingestion completed", logging.Fields{
		"requested":        result.Requested,
		"stored":           result.Stored,
		"failed":           result.Failed,
		"duration_seconds": result.Duration.Seconds(),
		"stage":            "COMPLETE",
	})

	return result, errors.Join(errs...)
}
