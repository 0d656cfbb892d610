package config

import (
	"weather-monitor/internal/providers"
	"weather-monitor/internal/scheduler"
	"weather-monitor/internal/services"
	"weather-monitor/pkg/database"
)

// Connection converts the database settings for database.Open
func (d DatabaseConfig) Connection() *database.Config {
	return &database.Config{
		Driver:          d.Driver,
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		Path:            d.Path,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}

// Client converts the provider settings for providers.NewOpenWeatherClient
func (p ProviderConfig) Client() providers.Config {
	return providers.Config{
		BaseURL:          p.BaseURL,
		APIKey:           p.APIKey,
		Timeout:          p.Timeout,
		FailureThreshold: p.FailureThreshold,
		OpenTimeout:      p.OpenTimeout,
	}
}

// Jobs builds the scheduler job settings around fetcher
func (c *Config) Jobs(fetcher services.WeatherFetcher) scheduler.JobsConfig {
	return scheduler.JobsConfig{
		Fetcher:       fetcher,
		Cities:        c.Provider.Cities,
		SummaryWindow: c.Summary.Window,
		RetentionDays: c.Cleanup.RetentionDays,
		HardDelete:    c.Cleanup.HardDelete,
		Thresholds:    c.Alerts,

		FetchSchedule:   c.Scheduler.Fetch,
		SummarySchedule: c.Scheduler.Summary,
		AlertsSchedule:  c.Scheduler.Alerts,
		CleanupSchedule: c.Scheduler.Cleanup,
	}
}
