package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"weather-monitor/internal/models"
	"weather-monitor/pkg/logging"
	"weather-monitor/pkg/metrics"
)

const maxResponseBytes = 1 << 20

// Config configures the OpenWeatherMap client
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// Consecutive failures that open the circuit, and how long it stays open.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// OpenWeatherClient fetches current conditions from the OpenWeatherMap API.
// Calls are never retried; a failed call surfaces as *models.ProviderError.
type OpenWeatherClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	circuit    *gobreaker.CircuitBreaker
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
	now        func() time.Time
}

// statusError is a non-2xx provider response
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("unexpected status code %d", e.code)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.code, e.body)
}

// NewOpenWeatherClient creates a client with its own circuit breaker
func NewOpenWeatherClient(cfg Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *OpenWeatherClient {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = time.Minute
	}

	c := &OpenWeatherClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		metrics:    metricsCollector,
		now:        time.Now,
	}

	c.circuit = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// A 4xx means the request was wrong, not that the provider is down.
		IsSuccessful: func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return se.code < 500 && se.code != http.StatusTooManyRequests
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "[PROVIDER_CIRCUIT] Circuit breaker state changed", logging.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return c
}

type currentWeatherResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      *float64 `json:"temp"`
		FeelsLike float64  `json:"feels_like"`
		Humidity  *float64 `json:"humidity"`
		Pressure  float64  `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

// Fetch retrieves the current weather for city and normalizes it into a reading.
func (c *OpenWeatherClient) Fetch(ctx context.Context, city string) (*models.WeatherReading, error) {
	start := time.Now()

	fail := func(status string, code int, cause error) (*models.WeatherReading, error) {
		c.metrics.RecordProviderRequest(status, time.Since(start))
		c.logger.Warn(ctx, "[PROVIDER_ERROR] Weather fetch failed", logging.Fields{
			"city":        city,
			"status_code": code,
			"error":       cause.Error(),
		})
		return nil, &models.ProviderError{City: city, StatusCode: code, Cause: cause}
	}

	if strings.TrimSpace(city) == "" {
		return fail("invalid_request", 0, errors.New("city must not be empty"))
	}
	if c.apiKey == "" {
		return fail("invalid_request", 0, errors.New("openweather api key is not configured"))
	}

	values := url.Values{}
	values.Set("q", city)
	values.Set("appid", c.apiKey)
	values.Set("units", "metric")
	endpoint := fmt.Sprintf("%s/weather?%s", c.baseURL, values.Encode())

	result, err := c.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
		}

		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fail("circuit_open", 0, fmt.Errorf("circuit breaker open: %w", err))
		}
		var se *statusError
		if errors.As(err, &se) {
			return fail("http_error", se.code, se)
		}
		return fail("transport_error", 0, err)
	}

	body := result.([]byte)

	reading, err := c.decode(body)
	if err != nil {
		return fail("decode_error", 0, err)
	}

	c.metrics.RecordProviderRequest("success", time.Since(start))
	c.logger.Debug(ctx, "[PROVIDER_FETCH] Weather fetched", logging.Fields{
		"city":        city,
		"location":    reading.LocationName,
		"temperature": reading.Temperature,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return reading, nil
}

func (c *OpenWeatherClient) decode(body []byte) (*models.WeatherReading, error) {
	var payload currentWeatherResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	switch {
	case payload.Name == "":
		return nil, errors.New("response missing location name")
	case payload.Main.Temp == nil:
		return nil, errors.New("response missing main.temp")
	case payload.Main.Humidity == nil:
		return nil, errors.New("response missing main.humidity")
	case len(payload.Weather) == 0:
		return nil, errors.New("response missing weather conditions")
	}

	return &models.WeatherReading{
		FetchedAt:            c.now().UTC(),
		LocationName:         payload.Name,
		Country:              payload.Sys.Country,
		Temperature:          *payload.Main.Temp,
		FeelsLike:            payload.Main.FeelsLike,
		Humidity:             int(math.Round(*payload.Main.Humidity)),
		Pressure:             int(math.Round(payload.Main.Pressure)),
		WindSpeed:            payload.Wind.Speed,
		Clouds:               payload.Clouds.All,
		ConditionLabel:       payload.Weather[0].Main,
		ConditionDescription: payload.Weather[0].Description,
		RawPayload:           string(body),
	}, nil
}
