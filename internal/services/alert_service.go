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

// AlertService evaluates thresholds and serves stored alerts
type AlertService struct {
	repo    repository.WeatherRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewAlertService creates a new alert service
func NewAlertService(repo repository.WeatherRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AlertService {
	return &AlertService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		now:     time.Now,
	}
}

// Evaluate returns one alert per breached threshold per reading. Each check is
// independent, so a single reading yields between zero and three alerts.
// Condition matching is exact and case-sensitive. CreatedAt is left unset.
func Evaluate(readings []*models.WeatherReading, thresholds models.AlertThreshold) []*models.WeatherAlert {
	extreme := make(map[string]struct{}, len(thresholds.ExtremeWeatherConditions))
	for _, c := range thresholds.ExtremeWeatherConditions {
		extreme[c] = struct{}{}
	}

	var alerts []*models.WeatherAlert
	for _, r := range readings {
		if r == nil {
			continue
		}

		newAlert := func(alertType, severity, message string) *models.WeatherAlert {
			var readingID *int64
			if r.ID != 0 {
				id := r.ID
				readingID = &id
			}
			return &models.WeatherAlert{
				ReadingID:    readingID,
				LocationName: r.LocationName,
				AlertType:    alertType,
				Severity:     severity,
				Message:      message,
			}
		}

		if r.Temperature > thresholds.HighTemperature {
			alerts = append(alerts, newAlert(models.AlertHighTemperature, models.SeverityMedium,
				fmt.Sprintf("High temperature alert: %.1f°C in %s (threshold %.1f°C)",
					r.Temperature, r.LocationName, thresholds.HighTemperature)))
		}

		if r.Humidity > thresholds.HighHumidity {
			alerts = append(alerts, newAlert(models.AlertHighHumidity, models.SeverityLow,
				fmt.Sprintf("High humidity alert: %d%% in %s (threshold %d%%)",
					r.Humidity, r.LocationName, thresholds.HighHumidity)))
		}

		if _, ok := extreme[r.ConditionLabel]; ok {
			alerts = append(alerts, newAlert(models.AlertExtremeWeather, models.SeverityHigh,
				fmt.Sprintf("Extreme weather alert: %s in %s", r.ConditionLabel, r.LocationName)))
		}
	}

	return alerts
}

// CheckAlerts evaluates the latest reading of every location and stores the
// resulting alerts in one transaction. Breaches alert again on every run.
func (s *AlertService) CheckAlerts(ctx context.Context, thresholds models.AlertThreshold) ([]*models.WeatherAlert, error) {
	readings, err := s.repo.LatestReadingPerLocation(ctx)
	if err != nil {
		return nil, err
	}

	alerts := Evaluate(readings, thresholds)
	if len(alerts) == 0 {
		s.logger.Info(ctx, "[ALERT_CHECK] No alerts triggered", logging.Fields{
			"locations": len(readings),
		})
		return alerts, nil
	}

	now := s.now().UTC()
	for _, a := range alerts {
		a.CreatedAt = now
	}

	if err := s.repo.CreateAlerts(ctx, alerts); err != nil {
		return nil, err
	}

	for _, a := range alerts {
		s.logger.Warn(ctx, "[ALERT] "+a.Message, logging.Fields{
			"alert_id":   a.ID,
			"alert_type": a.AlertType,
			"severity":   a.Severity,
			"location":   a.LocationName,
		})
	}

	s.logger.Info(ctx, "[ALERT_CHECK] Weather alerts created", logging.Fields{
		"locations": len(readings),
		"alerts":    len(alerts),
	})

	return alerts, nil
}

// RecentAlerts returns stored alerts newest first
func (s *AlertService) RecentAlerts(ctx context.Context, limit int) ([]*models.WeatherAlert, error) {
	return s.repo.RecentAlerts(ctx, limit)
}
