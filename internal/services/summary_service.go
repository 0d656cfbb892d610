package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"weather-monitor/internal/models"
	"weather-monitor/internal/repository"
	"weather-monitor/pkg/logging"
	"weather-monitor/pkg/metrics"
)

// SummaryService computes and serves dashboard summaries
type SummaryService struct {
	repo    repository.WeatherRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewSummaryService creates a new summary service
func NewSummaryService(repo repository.WeatherRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *SummaryService {
	return &SummaryService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		now:     time.Now,
	}
}

// Compute aggregates the live readings of the trailing window and appends the
// result as the new current summary.
func (s *SummaryService) Compute(ctx context.Context, window time.Duration) (*models.DashboardSummary, error) {
	if window <= 0 {
		return nil, &models.ValidationError{
			Field:   "window",
			Value:   window.String(),
			Message: "summary window must be positive",
		}
	}

	timer := s.metrics.NewTimer(s.metrics.SummaryDuration)

	now := s.now().UTC()
	windowStart := now.Add(-window)

	s.logger.Info(ctx, "[SUMMARY_CALC_START] Computing dashboard summary", logging.Fields{
		"window_start": windowStart.Format(time.RFC3339),
		"window_end":   now.Format(time.RFC3339),
	})

	readings, err := s.repo.ReadingsSince(ctx, windowStart)
	if err != nil {
		return nil, err
	}

	summary, err := ComputeSummary(readings, windowStart, now)
	if err != nil {
		return nil, err
	}
	summary.ComputedAt = now

	if err := s.repo.CreateSummary(ctx, summary); err != nil {
		return nil, err
	}

	duration := timer.ObserveDuration()

	s.logger.Info(ctx, "[SUMMARY_CALC_COMPLETE] Dashboard summary stored", logging.Fields{
		"summary_id":      summary.ID,
		"reading_count":   summary.ReadingCount,
		"location_count":  summary.LocationCount,
		"avg_temperature": summary.AvgTemperature,
		"duration_ms":     duration.Milliseconds(),
	})

	return summary, nil
}

// Current returns the most recently computed summary
func (s *SummaryService) Current(ctx context.Context) (*models.DashboardSummary, error) {
	return s.repo.LatestSummary(ctx)
}

// ComputeSummary aggregates readings. An empty input is a *models.NoDataError.
func ComputeSummary(readings []*models.WeatherReading, windowStart, windowEnd time.Time) (*models.DashboardSummary, error) {
	if len(readings) == 0 {
		return nil, &models.NoDataError{
			Message: fmt.Sprintf("no weather readings between %s and %s",
				windowStart.Format(time.RFC3339), windowEnd.Format(time.RFC3339)),
		}
	}

	summary := &models.DashboardSummary{
		WindowStart:        windowStart,
		WindowEnd:          windowEnd,
		ReadingCount:       len(readings),
		ConditionFrequency: models.ConditionFrequency{},
	}

	type bucket struct {
		tempSum     float64
		humiditySum float64
		count       int
	}

	locations := make(map[string]struct{})
	buckets := make(map[time.Time]*bucket)

	var tempSum, humiditySum float64
	for i, r := range readings {
		humidity := float64(r.Humidity)

		if i == 0 {
			summary.MinTemperature, summary.MaxTemperature = r.Temperature, r.Temperature
			summary.MinHumidity, summary.MaxHumidity = humidity, humidity
		}
		summary.MinTemperature = min(summary.MinTemperature, r.Temperature)
		summary.MaxTemperature = max(summary.MaxTemperature, r.Temperature)
		summary.MinHumidity = min(summary.MinHumidity, humidity)
		summary.MaxHumidity = max(summary.MaxHumidity, humidity)

		tempSum += r.Temperature
		humiditySum += humidity

		summary.ConditionFrequency[r.ConditionLabel]++
		locations[r.LocationName] = struct{}{}

		hour := r.FetchedAt.UTC().Truncate(time.Hour)
		b, ok := buckets[hour]
		if !ok {
			b = &bucket{}
			buckets[hour] = b
		}
		b.tempSum += r.Temperature
		b.humiditySum += humidity
		b.count++
	}

	n := float64(len(readings))
	summary.AvgTemperature = tempSum / n
	summary.AvgHumidity = humiditySum / n
	summary.LocationCount = len(locations)

	summary.HourlyTrend = make(models.HourlyTrend, 0, len(buckets))
	for hour, b := range buckets {
		summary.HourlyTrend = append(summary.HourlyTrend, models.HourlyPoint{
			Hour:           hour,
			AvgTemperature: b.tempSum / float64(b.count),
			AvgHumidity:    b.humiditySum / float64(b.count),
			Readings:       b.count,
		})
	}
	sort.Slice(summary.HourlyTrend, func(i, j int) bool {
		return summary.HourlyTrend[i].Hour.Before(summary.HourlyTrend[j].Hour)
	})

	return summary, nil
}
