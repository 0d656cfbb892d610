package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"weather-monitor/internal/models"
	"weather-monitor/internal/scheduler"
)

// Config is the complete application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Provider  ProviderConfig
	Scheduler SchedulerConfig
	Summary   SummaryConfig
	Cleanup   CleanupConfig
	Alerts    models.AlertThreshold
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host         string
	Port         int           `validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`
	IdleTimeout  time.Duration `validate:"gt=0"`
}

// DatabaseConfig selects the driver and sizes the pool
type DatabaseConfig struct {
	Driver          string `validate:"required,oneof=postgres pgx sqlite3"`
	Host            string `validate:"required_unless=Driver sqlite3"`
	Port            int    `validate:"required_unless=Driver sqlite3,max=65535"`
	User            string `validate:"required_unless=Driver sqlite3"`
	Password        string
	Database        string `validate:"required_unless=Driver sqlite3"`
	SSLMode         string
	Path            string `validate:"required_if=Driver sqlite3"`
	MaxOpenConns    int    `validate:"min=1"`
	MaxIdleConns    int    `validate:"min=0"`
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AutoMigrate     bool
}

// LoggingConfig controls log verbosity
type LoggingConfig struct {
	Level string `validate:"oneof=debug info warn warning error"`
}

// ProviderConfig points at the weather provider
type ProviderConfig struct {
	BaseURL string        `validate:"required,url"`
	APIKey  string        `validate:"required"`
	Cities  []string      `validate:"min=1,dive,required"`
	Timeout time.Duration `validate:"gt=0"`

	// Circuit breaker
	FailureThreshold uint32        `validate:"min=1"`
	OpenTimeout      time.Duration `validate:"gt=0"`
}

// SchedulerConfig holds the job cadences
type SchedulerConfig struct {
	Fetch      scheduler.Schedule
	Summary    scheduler.Schedule
	Alerts     scheduler.Schedule
	Cleanup    scheduler.Schedule
	JobTimeout time.Duration `validate:"gt=0"`
	RunOnStart bool
}

// SummaryConfig sizes the dashboard window
type SummaryConfig struct {
	Window time.Duration `validate:"gt=0"`
}

// CleanupConfig is the retention policy
type CleanupConfig struct {
	RetentionDays int `validate:"min=1"`
	HardDelete    bool
}

var validate = validator.New()

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	return loadFrom(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8000)
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "60s")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "weather_monitor")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_PATH", "weather.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", "1m")
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("PROVIDER_BASE_URL", "https://api.openweathermap.org/data/2.5")
	v.SetDefault("OPENWEATHER_API_KEY", "")
	v.SetDefault("WEATHER_CITIES", "Pune")
	v.SetDefault("PROVIDER_TIMEOUT", "10s")
	v.SetDefault("PROVIDER_FAILURE_THRESHOLD", 5)
	v.SetDefault("PROVIDER_OPEN_TIMEOUT", "1m")

	v.SetDefault("FETCH_INTERVAL_MINUTES", 30)
	v.SetDefault("SUMMARY_MINUTE", 0)
	v.SetDefault("ALERT_INTERVAL_MINUTES", 15)
	v.SetDefault("CLEANUP_HOUR", 0)
	v.SetDefault("CLEANUP_MINUTE", 0)
	v.SetDefault("SCHEDULER_JOB_TIMEOUT", "5m")
	v.SetDefault("SCHEDULER_RUN_ON_START", false)

	v.SetDefault("SUMMARY_WINDOW", "24h")

	v.SetDefault("CLEANUP_RETENTION_DAYS", 2)
	v.SetDefault("CLEANUP_HARD_DELETE", false)

	defaults := models.DefaultAlertThreshold()
	v.SetDefault("ALERT_HIGH_TEMPERATURE", defaults.HighTemperature)
	v.SetDefault("ALERT_HIGH_HUMIDITY", defaults.HighHumidity)
	v.SetDefault("ALERT_EXTREME_CONDITIONS", strings.Join(defaults.ExtremeWeatherConditions, ","))

	return v
}

func loadFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         v.GetString("SERVER_HOST"),
			Port:         v.GetInt("SERVER_PORT"),
			ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:  v.GetDuration("SERVER_IDLE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("DB_DRIVER")),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Database:        v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			Path:            v.GetString("DB_PATH"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
			AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
		},
		Logging: LoggingConfig{
			Level: strings.ToLower(v.GetString("LOG_LEVEL")),
		},
		Provider: ProviderConfig{
			BaseURL: strings.TrimRight(v.GetString("PROVIDER_BASE_URL"), "/"),
			APIKey:  v.GetString("OPENWEATHER_API_KEY"),
			Cities:  splitList(v.GetString("WEATHER_CITIES")),
			Timeout: v.GetDuration("PROVIDER_TIMEOUT"),

			FailureThreshold: v.GetUint32("PROVIDER_FAILURE_THRESHOLD"),
			OpenTimeout:      v.GetDuration("PROVIDER_OPEN_TIMEOUT"),
		},
		Scheduler: SchedulerConfig{
			Fetch:      scheduler.EveryMinutes(v.GetInt("FETCH_INTERVAL_MINUTES")),
			Summary:    scheduler.Hourly(v.GetInt("SUMMARY_MINUTE")),
			Alerts:     scheduler.EveryMinutes(v.GetInt("ALERT_INTERVAL_MINUTES")),
			Cleanup:    scheduler.Daily(v.GetInt("CLEANUP_HOUR"), v.GetInt("CLEANUP_MINUTE")),
			JobTimeout: v.GetDuration("SCHEDULER_JOB_TIMEOUT"),
			RunOnStart: v.GetBool("SCHEDULER_RUN_ON_START"),
		},
		Summary: SummaryConfig{
			Window: v.GetDuration("SUMMARY_WINDOW"),
		},
		Cleanup: CleanupConfig{
			RetentionDays: v.GetInt("CLEANUP_RETENTION_DAYS"),
			HardDelete:    v.GetBool("CLEANUP_HARD_DELETE"),
		},
		Alerts: models.AlertThreshold{
			HighTemperature:          v.GetFloat64("ALERT_HIGH_TEMPERATURE"),
			HighHumidity:             v.GetInt("ALERT_HIGH_HUMIDITY"),
			ExtremeWeatherConditions: splitList(v.GetString("ALERT_EXTREME_CONDITIONS")),
		},
	}

	return cfg, nil
}

// splitList splits a comma separated value, dropping blanks.
// City names may contain spaces ("New York").
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the configuration, returning *models.ValidationError
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &models.ValidationError{
				Field:   fe.Namespace(),
				Value:   fmt.Sprintf("%v", fe.Value()),
				Message: fmt.Sprintf("invalid configuration: %s failed %q validation", fe.Namespace(), fe.Tag()),
			}
		}
		return &models.ValidationError{Field: "config", Message: err.Error()}
	}

	schedules := []struct {
		name     string
		schedule scheduler.Schedule
	}{
		{"Scheduler.Fetch", c.Scheduler.Fetch},
		{"Scheduler.Summary", c.Scheduler.Summary},
		{"Scheduler.Alerts", c.Scheduler.Alerts},
		{"Scheduler.Cleanup", c.Scheduler.Cleanup},
	}
	for _, s := range schedules {
		if err := s.schedule.Validate(); err != nil {
			return &models.ValidationError{
				Field:   s.name,
				Value:   s.schedule.CronExpr(),
				Message: err.Error(),
			}
		}
	}

	if err := c.Alerts.Validate(); err != nil {
		return err
	}

	return nil
}

// DefaultCity is the city used when a manual fetch names none
func (c *Config) DefaultCity() string {
	if len(c.Provider.Cities) == 0 {
		return ""
	}
	return c.Provider.Cities[0]
}
