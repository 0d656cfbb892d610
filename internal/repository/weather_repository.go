package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"weather-monitor/internal/models"
	"weather-monitor/pkg/database"
	"weather-monitor/pkg/logging"
	"weather-monitor/pkg/metrics"
)

// WeatherRepository provides data access for readings, summaries and alerts.
// Every read skips soft-deleted readings unless a filter asks otherwise.
type WeatherRepository interface {
	// Reading operations
	CreateReading(ctx context.Context, reading *models.WeatherReading) error
	GetReading(ctx context.Context, id int64) (*models.WeatherReading, error)
	LatestReadings(ctx context.Context, limit int) ([]*models.WeatherReading, error)
	LatestReadingPerLocation(ctx context.Context) ([]*models.WeatherReading, error)
	ReadingsSince(ctx context.Context, since time.Time) ([]*models.WeatherReading, error)
	ListReadings(ctx context.Context, filter ReadingFilter) ([]*models.WeatherReading, int, error)
	SoftDeleteReadingsBefore(ctx context.Context, cutoff, deletedAt time.Time) (int64, error)
	HardDeleteReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Summary operations
	CreateSummary(ctx context.Context, summary *models.DashboardSummary) error
	LatestSummary(ctx context.Context) (*models.DashboardSummary, error)

	// Alert operations
	CreateAlerts(ctx context.Context, alerts []*models.WeatherAlert) error
	RecentAlerts(ctx context.Context, limit int) ([]*models.WeatherAlert, error)
}

// ReadingFilter defines filters for listing readings
type ReadingFilter struct {
	Location       *string
	Since          *time.Time
	Until          *time.Time
	IncludeDeleted bool
	Limit          int
	Offset         int
}

const readingColumns = `id, fetched_at, location_name, country, temperature, feels_like,
		humidity, pressure, wind_speed, clouds, condition_label, condition_description,
		raw_payload, deleted_at`

const summaryColumns = `id, computed_at, window_start, window_end, reading_count, location_count,
		min_temperature, max_temperature, avg_temperature,
		min_humidity, max_humidity, avg_humidity,
		condition_frequency, hourly_trend`

const alertColumns = `id, created_at, reading_id, location_name, alert_type, severity, message`

// weatherRepository implements WeatherRepository
type weatherRepository struct {
	db      database.Executor
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewWeatherRepository creates a repository over any executor: the shared
// pool, a job's dedicated session, or a transaction.
func NewWeatherRepository(db database.Executor, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) WeatherRepository {
	return &weatherRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

func storageErr(op string, err error) error {
	return &models.StorageError{Op: op, Cause: err}
}

// CreateReading inserts a reading and sets its ID
func (r *weatherRepository) CreateReading(ctx context.Context, reading *models.WeatherReading) error {
	query := `
		INSERT INTO weather_readings (
			fetched_at, location_name, country, temperature, feels_like,
			humidity, pressure, wind_speed, clouds,
			condition_label, condition_description, raw_payload
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	err := r.db.GetContext(ctx, "insert_reading", &reading.ID, query,
		reading.FetchedAt.UTC(),
		reading.LocationName,
		reading.Country,
		reading.Temperature,
		reading.FeelsLike,
		reading.Humidity,
		reading.Pressure,
		reading.WindSpeed,
		reading.Clouds,
		reading.ConditionLabel,
		reading.ConditionDescription,
		reading.RawPayload,
	)
	if err != nil {
		return storageErr("insert reading", err)
	}

	r.metrics.ReadingsStoredTotal.Inc()
	r.logger.Debug(ctx, "[REPO_CREATE_READING] Reading stored", logging.Fields{
		"id":       reading.ID,
		"location": reading.LocationName,
	})

	return nil
}

// GetReading retrieves a live reading by ID
func (r *weatherRepository) GetReading(ctx context.Context, id int64) (*models.WeatherReading, error) {
	query := `SELECT ` + readingColumns + `
		FROM weather_readings
		WHERE id = ? AND deleted_at IS NULL`

	var reading models.WeatherReading
	err := r.db.GetContext(ctx, "get_reading", &reading, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "weather reading"}
	}
	if err != nil {
		return nil, storageErr("get reading", err)
	}

	return &reading, nil
}

// LatestReadings returns the newest live readings across all locations
func (r *weatherRepository) LatestReadings(ctx context.Context, limit int) ([]*models.WeatherReading, error) {
	query := `SELECT ` + readingColumns + `
		FROM weather_readings
		WHERE deleted_at IS NULL
		ORDER BY fetched_at DESC, id DESC
		LIMIT ?`

	readings := []*models.WeatherReading{}
	if err := r.db.SelectContext(ctx, "latest_readings", &readings, query, limit); err != nil {
		return nil, storageErr("list latest readings", err)
	}

	return readings, nil
}

// LatestReadingPerLocation returns the newest live reading of every location
func (r *weatherRepository) LatestReadingPerLocation(ctx context.Context) ([]*models.WeatherReading, error) {
	query := `SELECT ` + readingColumns + `
		FROM weather_readings r
		WHERE r.deleted_at IS NULL
		  AND r.id = (
			SELECT r2.id FROM weather_readings r2
			WHERE r2.location_name = r.location_name AND r2.deleted_at IS NULL
			ORDER BY r2.fetched_at DESC, r2.id DESC
			LIMIT 1
		  )
		ORDER BY r.location_name`

	readings := []*models.WeatherReading{}
	if err := r.db.SelectContext(ctx, "latest_reading_per_location", &readings, query); err != nil {
		return nil, storageErr("list latest reading per location", err)
	}

	return readings, nil
}

// ReadingsSince returns live readings fetched at or after since, oldest first
func (r *weatherRepository) ReadingsSince(ctx context.Context, since time.Time) ([]*models.WeatherReading, error) {
	query := `SELECT ` + readingColumns + `
		FROM weather_readings
		WHERE deleted_at IS NULL AND fetched_at >= ?
		ORDER BY fetched_at, id`

	readings := []*models.WeatherReading{}
	if err := r.db.SelectContext(ctx, "readings_since", &readings, query, since.UTC()); err != nil {
		return nil, storageErr("list readings in window", err)
	}

	return readings, nil
}

// ListReadings retrieves readings with filtering and pagination
func (r *weatherRepository) ListReadings(ctx context.Context, filter ReadingFilter) ([]*models.WeatherReading, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}

	if !filter.IncludeDeleted {
		where += " AND deleted_at IS NULL"
	}

	if filter.Location != nil {
		where += " AND location_name = ?"
		args = append(args, *filter.Location)
	}

	if filter.Since != nil {
		where += " AND fetched_at >= ?"
		args = append(args, filter.Since.UTC())
	}

	if filter.Until != nil {
		where += " AND fetched_at <= ?"
		args = append(args, filter.Until.UTC())
	}

	// Get total count
	var totalCount int
	err := r.db.GetContext(ctx, "count_readings", &totalCount, "SELECT COUNT(*) FROM weather_readings"+where, args...)
	if err != nil {
		return nil, 0, storageErr("count readings", err)
	}

	// Add ordering and pagination
	query := "SELECT " + readingColumns + " FROM weather_readings" + where +
		" ORDER BY fetched_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	readings := []*models.WeatherReading{}
	if err := r.db.SelectContext(ctx, "list_readings", &readings, query, args...); err != nil {
		return nil, 0, storageErr("list readings", err)
	}

	return readings, totalCount, nil
}

// SoftDeleteReadingsBefore marks live readings older than cutoff as deleted
func (r *weatherRepository) SoftDeleteReadingsBefore(ctx context.Context, cutoff, deletedAt time.Time) (int64, error) {
	query := `
		UPDATE weather_readings
		SET deleted_at = ?
		WHERE fetched_at < ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, "soft_delete_readings", query, deletedAt.UTC(), cutoff.UTC())
	if err != nil {
		return 0, storageErr("soft delete readings", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, storageErr("soft delete readings", err)
	}

	return affected, nil
}

// HardDeleteReadingsBefore removes readings older than cutoff. Alerts that
// referenced them keep their row with a NULL reading_id.
func (r *weatherRepository) HardDeleteReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "hard_delete_readings",
		`DELETE FROM weather_readings WHERE fetched_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, storageErr("hard delete readings", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, storageErr("hard delete readings", err)
	}

	return affected, nil
}

// CreateSummary appends a summary row with a single INSERT
func (r *weatherRepository) CreateSummary(ctx context.Context, summary *models.DashboardSummary) error {
	query := `
		INSERT INTO dashboard_summaries (
			computed_at, window_start, window_end, reading_count, location_count,
			min_temperature, max_temperature, avg_temperature,
			min_humidity, max_humidity, avg_humidity,
			condition_frequency, hourly_trend
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	err := r.db.GetContext(ctx, "insert_summary", &summary.ID, query,
		summary.ComputedAt.UTC(),
		summary.WindowStart.UTC(),
		summary.WindowEnd.UTC(),
		summary.ReadingCount,
		summary.LocationCount,
		summary.MinTemperature,
		summary.MaxTemperature,
		summary.AvgTemperature,
		summary.MinHumidity,
		summary.MaxHumidity,
		summary.AvgHumidity,
		summary.ConditionFrequency,
		summary.HourlyTrend,
	)
	if err != nil {
		return storageErr("insert summary", err)
	}

	return nil
}

// LatestSummary returns the most recently computed summary
func (r *weatherRepository) LatestSummary(ctx context.Context) (*models.DashboardSummary, error) {
	query := `SELECT ` + summaryColumns + `
		FROM dashboard_summaries
		ORDER BY computed_at DESC, id DESC
		LIMIT 1`

	var summary models.DashboardSummary
	err := r.db.GetContext(ctx, "latest_summary", &summary, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "dashboard summary"}
	}
	if err != nil {
		return nil, storageErr("get latest summary", err)
	}

	return &summary, nil
}

// CreateAlerts stores all alerts in one transaction
func (r *weatherRepository) CreateAlerts(ctx context.Context, alerts []*models.WeatherAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	query := `
		INSERT INTO weather_alerts (created_at, reading_id, location_name, alert_type, severity, message)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	err := r.db.WithTx(ctx, func(tx database.Executor) error {
		for _, alert := range alerts {
			if err := tx.GetContext(ctx, "insert_alert", &alert.ID, query,
				alert.CreatedAt.UTC(),
				alert.ReadingID,
				alert.LocationName,
				alert.AlertType,
				alert.Severity,
				alert.Message,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storageErr("insert alerts", err)
	}

	for _, alert := range alerts {
		r.metrics.RecordAlert(alert.AlertType)
	}

	r.logger.Debug(ctx, "[REPO_CREATE_ALERTS] Alerts stored", logging.Fields{
		"count": len(alerts),
	})

	return nil
}

// RecentAlerts returns alerts newest first
func (r *weatherRepository) RecentAlerts(ctx context.Context, limit int) ([]*models.WeatherAlert, error) {
	query := `SELECT ` + alertColumns + `
		FROM weather_alerts
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	alerts := []*models.WeatherAlert{}
	if err := r.db.SelectContext(ctx, "recent_alerts", &alerts, query, limit); err != nil {
		return nil, storageErr("list recent alerts", err)
	}

	return alerts, nil
}
