package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"weather-monitor/internal/config"
	"weather-monitor/internal/models"
	"weather-monitor/internal/providers"
	"weather-monitor/internal/services"
	"weather-monitor/pkg/logging"
	"weather-monitor/pkg/metrics"
)

const rule = "════════════════════════════════════════════════════════════════"

// preview fetches the current weather once and shows the summary and alerts
// the scheduled jobs would produce, without a database.
func main() {
	cities := flag.String("cities", "", "Comma separated cities (defaults to WEATHER_CITIES)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *cities != "" {
		cfg.Provider.Cities = strings.Split(*cities, ",")
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("weather-preview", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	client := providers.NewOpenWeatherClient(cfg.Provider.Client(), logger,
		metrics.NewCollector("weather_preview", prometheus.NewRegistry()))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.JobTimeout)
	defer cancel()

	fmt.Println(rule)
	fmt.Println("WEATHER MONITOR - PREVIEW")
	fmt.Println(rule)

	var readings []*models.WeatherReading
	for _, city := range cfg.Provider.Cities {
		city = strings.TrimSpace(city)
		reading, err := client.Fetch(ctx, city)
		if err != nil {
			fmt.Printf("  %-20s FAILED: %v\n", city, err)
			continue
		}
		readings = append(readings, reading)
		fmt.Printf("  %-20s %6.1f°C  %3d%%  %s\n",
			reading.LocationName, reading.Temperature, reading.Humidity, reading.ConditionLabel)
	}
	fmt.Println()

	now := time.Now().UTC()
	summary, err := services.ComputeSummary(readings, now.Add(-cfg.Summary.Window), now)
	if err != nil {
		fmt.Printf("No summary: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(rule)
	fmt.Println("SUMMARY")
	fmt.Println(rule)
	fmt.Printf("Locations:          %d\n", summary.LocationCount)
	fmt.Printf("Temperature:        min %.1f°C / avg %.1f°C / max %.1f°C\n",
		summary.MinTemperature, summary.AvgTemperature, summary.MaxTemperature)
	fmt.Printf("Humidity:           min %.0f%% / avg %.0f%% / max %.0f%%\n",
		summary.MinHumidity, summary.AvgHumidity, summary.MaxHumidity)
	for condition, count := range summary.ConditionFrequency {
		fmt.Printf("  %-18s %d\n", condition, count)
	}
	fmt.Println()

	alerts := services.Evaluate(readings, cfg.Alerts)

	fmt.Println(rule)
	fmt.Printf("ALERTS (%d)\n", len(alerts))
	fmt.Println(rule)
	for _, a := range alerts {
		fmt.Printf("  [%s] %s\n", strings.ToUpper(a.Severity), a.Message)
	}
	fmt.Println()
}
