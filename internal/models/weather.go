package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// WeatherReading is one observation returned by the weather provider.
// Rows are insert-only; DeletedAt is the only field ever written after insert.
type WeatherReading struct {
	ID                   int64      `json:"id" db:"id"`
	FetchedAt            time.Time  `json:"fetched_at" db:"fetched_at"`
	LocationName         string     `json:"location_name" db:"location_name"`
	Country              string     `json:"country" db:"country"`
	Temperature          float64    `json:"temperature" db:"temperature"`
	FeelsLike            float64    `json:"feels_like" db:"feels_like"`
	Humidity             int        `json:"humidity" db:"humidity"`
	Pressure             int        `json:"pressure" db:"pressure"`
	WindSpeed            float64    `json:"wind_speed" db:"wind_speed"`
	Clouds               int        `json:"clouds" db:"clouds"`
	ConditionLabel       string     `json:"condition_label" db:"condition_label"`
	ConditionDescription string     `json:"condition_description" db:"condition_description"`
	RawPayload           string     `json:"-" db:"raw_payload"`
	DeletedAt            *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// ConditionFrequency counts readings per condition label.
// Stored as a JSON object in a text column.
type ConditionFrequency map[string]int

// Value implements driver.Valuer
func (c ConditionFrequency) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]int(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (c *ConditionFrequency) Scan(src interface{}) error {
	return scanJSON(src, c)
}

// HourlyPoint aggregates the readings of one UTC hour.
type HourlyPoint struct {
	Hour           time.Time `json:"hour"`
	AvgTemperature float64   `json:"avg_temperature"`
	AvgHumidity    float64   `json:"avg_humidity"`
	Readings       int       `json:"readings"`
}

// HourlyTrend is the per-hour series of a summary window, oldest first.
type HourlyTrend []HourlyPoint

// Value implements driver.Valuer
func (h HourlyTrend) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]HourlyPoint(h))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (h *HourlyTrend) Scan(src interface{}) error {
	return scanJSON(src, h)
}

func scanJSON(src interface{}, dest interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dest)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

// DashboardSummary holds the aggregates over one trailing window of readings.
// Summaries are append-only; the newest row is the current one.
type DashboardSummary struct {
	ID                 int64              `json:"id" db:"id"`
	ComputedAt         time.Time          `json:"computed_at" db:"computed_at"`
	WindowStart        time.Time          `json:"window_start" db:"window_start"`
	WindowEnd          time.Time          `json:"window_end" db:"window_end"`
	ReadingCount       int                `json:"reading_count" db:"reading_count"`
	LocationCount      int                `json:"location_count" db:"location_count"`
	MinTemperature     float64            `json:"min_temperature" db:"min_temperature"`
	MaxTemperature     float64            `json:"max_temperature" db:"max_temperature"`
	AvgTemperature     float64            `json:"avg_temperature" db:"avg_temperature"`
	MinHumidity        float64            `json:"min_humidity" db:"min_humidity"`
	MaxHumidity        float64            `json:"max_humidity" db:"max_humidity"`
	AvgHumidity        float64            `json:"avg_humidity" db:"avg_humidity"`
	ConditionFrequency ConditionFrequency `json:"condition_frequency" db:"condition_frequency"`
	HourlyTrend        HourlyTrend        `json:"hourly_trend" db:"hourly_trend"`
}

// Alert types
const (
	AlertHighTemperature = "high_temperature"
	AlertHighHumidity    = "high_humidity"
	AlertExtremeWeather  = "extreme_weather"
)

// Alert severities
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// WeatherAlert records one threshold breach. Alerts are never updated.
// ReadingID becomes nil when the reading it points at is hard-deleted.
type WeatherAlert struct {
	ID           int64     `json:"id" db:"id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	ReadingID    *int64    `json:"reading_id" db:"reading_id"`
	LocationName string    `json:"location_name" db:"location_name"`
	AlertType    string    `json:"alert_type" db:"alert_type"`
	Severity     string    `json:"severity" db:"severity"`
	Message      string    `json:"message" db:"message"`
}

// AlertThreshold configures when a reading breaches.
type AlertThreshold struct {
	HighTemperature          float64  `json:"high_temperature"`
	HighHumidity             int      `json:"high_humidity"`
	ExtremeWeatherConditions []string `json:"extreme_weather_conditions"`
}

// DefaultAlertThreshold returns the stock thresholds
func DefaultAlertThreshold() AlertThreshold {
	return AlertThreshold{
		HighTemperature:          35.0,
		HighHumidity:             80,
		ExtremeWeatherConditions: []string{"Thunderstorm", "Heavy Rain", "Storm", "Tornado", "Hurricane"},
	}
}

// Validate checks threshold ranges
func (t AlertThreshold) Validate() error {
	if t.HighTemperature < -100 || t.HighTemperature > 100 {
		return &ValidationError{
			Field:   "high_temperature",
			Value:   fmt.Sprintf("%g", t.HighTemperature),
			Message: "high temperature threshold must be between -100 and 100",
		}
	}

	if t.HighHumidity < 0 || t.HighHumidity > 100 {
		return &ValidationError{
			Field:   "high_humidity",
			Value:   fmt.Sprintf("%d", t.HighHumidity),
			Message: "high humidity threshold must be between 0 and 100",
		}
	}

	for _, c := range t.ExtremeWeatherConditions {
		if strings.TrimSpace(c) == "" {
			return &ValidationError{
				Field:   "extreme_weather_conditions",
				Value:   strings.Join(t.ExtremeWeatherConditions, ","),
				Message: "extreme weather conditions must not contain blank entries",
			}
		}
	}

	return nil
}
