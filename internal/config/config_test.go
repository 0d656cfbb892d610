package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-monitor/internal/models"
	"weather-monitor/internal/scheduler"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "test-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, []string{"Pune"}, cfg.Provider.Cities)
	assert.Equal(t, "Pune", cfg.DefaultCity())
	assert.Equal(t, 10*time.Second, cfg.Provider.Timeout)

	assert.Equal(t, "*/30 * * * *", cfg.Scheduler.Fetch.CronExpr())
	assert.Equal(t, "0 * * * *", cfg.Scheduler.Summary.CronExpr())
	assert.Equal(t, "*/15 * * * *", cfg.Scheduler.Alerts.CronExpr())
	assert.Equal(t, "0 0 * * *", cfg.Scheduler.Cleanup.CronExpr())
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.JobTimeout)

	assert.Equal(t, 24*time.Hour, cfg.Summary.Window)
	assert.Equal(t, 2, cfg.Cleanup.RetentionDays)
	assert.False(t, cfg.Cleanup.HardDelete)
	assert.Equal(t, models.DefaultAlertThreshold(), cfg.Alerts)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "test-key")
	t.Setenv("DB_DRIVER", "SQLITE3")
	t.Setenv("DB_PATH", "/tmp/weather.db")
	t.Setenv("WEATHER_CITIES", "Pune, New York ,,London")
	t.Setenv("FETCH_INTERVAL_MINUTES", "10")
	t.Setenv("CLEANUP_HOUR", "3")
	t.Setenv("CLEANUP_MINUTE", "30")
	t.Setenv("CLEANUP_HARD_DELETE", "true")
	t.Setenv("ALERT_HIGH_TEMPERATURE", "30.5")
	t.Setenv("ALERT_EXTREME_CONDITIONS", "Storm,Tornado")
	t.Setenv("PROVIDER_BASE_URL", "http://localhost:9999/data/2.5/")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, []string{"Pune", "New York", "London"}, cfg.Provider.Cities)
	assert.Equal(t, "http://localhost:9999/data/2.5", cfg.Provider.BaseURL)
	assert.Equal(t, scheduler.EveryMinutes(10), cfg.Scheduler.Fetch)
	assert.Equal(t, "30 3 * * *", cfg.Scheduler.Cleanup.CronExpr())
	assert.True(t, cfg.Cleanup.HardDelete)
	assert.Equal(t, 30.5, cfg.Alerts.HighTemperature)
	assert.Equal(t, []string{"Storm", "Tornado"}, cfg.Alerts.ExtremeWeatherConditions)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantField string
	}{
		{
			name:      "missing api key",
			env:       map[string]string{"OPENWEATHER_API_KEY": ""},
			wantField: "Config.Provider.APIKey",
		},
		{
			name:      "unknown driver",
			env:       map[string]string{"DB_DRIVER": "mysql"},
			wantField: "Config.Database.Driver",
		},
		{
			name:      "retention below one day",
			env:       map[string]string{"CLEANUP_RETENTION_DAYS": "0"},
			wantField: "Config.Cleanup.RetentionDays",
		},
		{
			name:      "no cities",
			env:       map[string]string{"WEATHER_CITIES": " , "},
			wantField: "Config.Provider.Cities",
		},
		{
			name:      "bad schedule",
			env:       map[string]string{"CLEANUP_HOUR": "25"},
			wantField: "Scheduler.Cleanup",
		},
		{
			name:      "humidity threshold out of range",
			env:       map[string]string{"ALERT_HIGH_HUMIDITY": "120"},
			wantField: "high_humidity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENWEATHER_API_KEY", "test-key")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := LoadConfig()
			require.NoError(t, err)

			err = cfg.Validate()
			require.Error(t, err)

			var verr *models.ValidationError
			require.True(t, errors.As(err, &verr), "expected *models.ValidationError, got %T", err)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestConfig_Wiring(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "test-key")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("DB_PATH", "/tmp/weather.db")
	t.Setenv("PROVIDER_FAILURE_THRESHOLD", "3")
	t.Setenv("WEATHER_CITIES", "Pune,Delhi")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	conn := cfg.Database.Connection()
	assert.Equal(t, "sqlite3", conn.Driver)
	assert.Equal(t, "/tmp/weather.db", conn.Path)
	assert.Equal(t, 25, conn.MaxOpenConns)

	client := cfg.Provider.Client()
	assert.Equal(t, "test-key", client.APIKey)
	assert.Equal(t, uint32(3), client.FailureThreshold)
	assert.Equal(t, time.Minute, client.OpenTimeout)

	jobs := cfg.Jobs(nil)
	assert.Equal(t, []string{"Pune", "Delhi"}, jobs.Cities)
	assert.Equal(t, 2, jobs.RetentionDays)
	assert.Equal(t, cfg.Scheduler.Alerts, jobs.AlertsSchedule)
	assert.Equal(t, models.DefaultAlertThreshold(), jobs.Thresholds)
}
