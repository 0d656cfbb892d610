// Package testutils builds the logger, metrics and SQLite databases tests share.
package testutils

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"weather-monitor/internal/models"
	"weather-monitor/pkg/database"
	"weather-monitor/pkg/logging"
	"weather-monitor/pkg/metrics"
)

// Logger returns a logger that discards its output
func Logger() *logging.StructuredLogger {
	logger := logging.NewStructuredLogger("weather-monitor-test", "test", logging.DebugLevel)
	logger.SetOutput(io.Discard)
	return logger
}

// Metrics returns a collector on a private registry
func Metrics() *metrics.Collector {
	return metrics.NewCollector("weather_monitor_test", prometheus.NewRegistry())
}

// NewSQLiteDB opens a migrated temp-file SQLite database closed at test end.
func NewSQLiteDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(&database.Config{
		Driver:          database.DriverSQLite,
		Path:            filepath.Join(t.TempDir(), "weather.db"),
		MaxOpenConns:    8,
		MaxIdleConns:    4,
		ConnMaxLifetime: time.Minute,
	}, Logger(), Metrics())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db, database.DirectionUp))
	return db
}

// Reading builds a valid reading for location fetched at the given time
func Reading(location string, fetchedAt time.Time, temperature float64, humidity int, condition string) *models.WeatherReading {
	return &models.WeatherReading{
		FetchedAt:            fetchedAt.UTC(),
		LocationName:         location,
		Country:              "IN",
		Temperature:          temperature,
		FeelsLike:            temperature,
		Humidity:             humidity,
		Pressure:             1012,
		WindSpeed:            3.5,
		Clouds:               20,
		ConditionLabel:       condition,
		ConditionDescription: condition,
		RawPayload:           `{"name":"` + location + `"}`,
	}
}

// OpenWeatherPayload renders a minimal provider response
func OpenWeatherPayload(name string, temperature float64, humidity int, condition string) string {
	return `{"name":"` + name + `","sys":{"country":"XX"},` +
		`"main":{"temp":` + strconv.FormatFloat(temperature, 'f', -1, 64) + `,"feels_like":` + strconv.FormatFloat(temperature, 'f', -1, 64) +
		`,"humidity":` + strconv.Itoa(humidity) + `,"pressure":1008},` +
		`"wind":{"speed":4.2},"clouds":{"all":75},` +
		`"weather":[{"main":"` + condition + `","description":"` + condition + ` nearby"}]}`
}
