package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"weather-monitor/internal/models"
	"weather-monitor/internal/repository"
	"weather-monitor/internal/scheduler"
	"weather-monitor/internal/services"
	"weather-monitor/pkg/logging"
	"weather-monitor/pkg/metrics"
)

const (
	defaultCurrentLimit  = 10
	maxCurrentLimit      = 100
	defaultAlertsLimit   = 50
	maxAlertsLimit       = 500
	defaultReadingsLimit = 100
	maxReadingsLimit     = 1000
)

// JobStatusSource reports scheduler job state
type JobStatusSource interface {
	Status() []scheduler.JobStatus
}

// HealthChecker pings the datastore
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies groups what the weather handler needs
type Dependencies struct {
	Weather     *services.WeatherService
	Summaries   *services.SummaryService
	Alerts      *services.AlertService
	Jobs        JobStatusSource
	Health      HealthChecker
	DefaultCity string
}

// WeatherHandler handles weather API endpoints
type WeatherHandler struct {
	weather     *services.WeatherService
	summaries   *services.SummaryService
	alerts      *services.AlertService
	jobs        JobStatusSource
	health      HealthChecker
	defaultCity string
	logger      *logging.StructuredLogger
	metrics     *metrics.Collector
}

// NewWeatherHandler creates a new weather handler
func NewWeatherHandler(deps Dependencies, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *WeatherHandler {
	return &WeatherHandler{
		weather:     deps.Weather,
		summaries:   deps.Summaries,
		alerts:      deps.Alerts,
		jobs:        deps.Jobs,
		health:      deps.Health,
		defaultCity: deps.DefaultCity,
		logger:      logger,
		metrics:     metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// MessageResponse wraps a payload with a human readable message
type MessageResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// GetCurrent handles GET /api/weather/current
func (h *WeatherHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, err := parseLimit(r, defaultCurrentLimit, maxCurrentLimit)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	readings, err := h.weather.LatestReadings(ctx, limit)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_CURRENT_ERROR] Failed to get latest readings", logging.Fields{
			"limit": limit,
		}, err)
		h.sendError(w, r, err)
		return
	}

	if len(readings) == 0 {
		h.sendError(w, r, &models.NotFoundError{Resource: "weather data"})
		return
	}

	h.sendJSON(w, readings, http.StatusOK)
}

// GetDashboard handles GET /api/weather/dashboard
func (h *WeatherHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.summaries.Current(ctx)
	if err != nil {
		var notFound *models.NotFoundError
		if !errors.As(err, &notFound) {
			h.logger.Error(ctx, "[API_GET_DASHBOARD_ERROR] Failed to get dashboard summary", logging.Fields{}, err)
		}
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, summary, http.StatusOK)
}

// GetAlerts handles GET /api/weather/alerts
func (h *WeatherHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, err := parseLimit(r, defaultAlertsLimit, maxAlertsLimit)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	alerts, err := h.alerts.RecentAlerts(ctx, limit)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_ALERTS_ERROR] Failed to get alerts", logging.Fields{
			"limit": limit,
		}, err)
		h.sendError(w, r, err)
		return
	}

	if alerts == nil {
		alerts = []*models.WeatherAlert{}
	}
	h.sendJSON(w, alerts, http.StatusOK)
}

// FetchNow handles POST /api/weather/fetch-now
func (h *WeatherHandler) FetchNow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	city := r.URL.Query().Get("city")
	if city == "" {
		city = h.defaultCity
	}
	if city == "" {
		h.sendError(w, r, &models.ValidationError{Field: "city", Message: "city is required"})
		return
	}

	reading, err := h.weather.FetchAndStore(ctx, city)
	if err != nil {
		h.logger.Error(ctx, "[API_FETCH_NOW_ERROR] Manual fetch failed", logging.Fields{
			"city": city,
		}, err)
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, MessageResponse{
		Message: fmt.Sprintf("Weather data fetched for %s", reading.LocationName),
		Data:    reading,
	}, http.StatusOK)
}

// ListReadings handles GET /api/weather/readings
func (h *WeatherHandler) ListReadings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	page := 1
	if pageStr := query.Get("page"); pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p < 1 {
			h.sendError(w, r, &models.ValidationError{Field: "page", Value: pageStr, Message: "page must be a positive integer"})
			return
		}
		page = p
	}

	limit, err := parseLimit(r, defaultReadingsLimit, maxReadingsLimit)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	filter := repository.ReadingFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if location := query.Get("location"); location != "" {
		filter.Location = &location
	}

	if filter.Since, err = parseTimeParam(query.Get("since"), "since"); err != nil {
		h.sendError(w, r, err)
		return
	}
	if filter.Until, err = parseTimeParam(query.Get("until"), "until"); err != nil {
		h.sendError(w, r, err)
		return
	}

	if v := query.Get("include_deleted"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			h.sendError(w, r, &models.ValidationError{Field: "include_deleted", Value: v, Message: "include_deleted must be a boolean"})
			return
		}
		filter.IncludeDeleted = include
	}

	readings, total, err := h.weather.ListReadings(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_LIST_READINGS_ERROR] Failed to list readings", logging.Fields{
			"page":  page,
			"limit": limit,
		}, err)
		h.sendError(w, r, err)
		return
	}

	if readings == nil {
		readings = []*models.WeatherReading{}
	}

	h.sendJSON(w, PaginatedResponse{
		Data:       readings,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, http.StatusOK)
}

// GetJobs handles GET /api/jobs
func (h *WeatherHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, h.jobs.Status(), http.StatusOK)
}

// HealthCheck handles GET /health
func (h *WeatherHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"database":  "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.health.HealthCheck(ctx); err != nil {
		h.logger.Error(ctx, "[HEALTH_CHECK_FAILED] Database unreachable", logging.Fields{}, err)
		status["status"] = "unhealthy"
		status["database"] = err.Error()
		h.sendJSON(w, status, http.StatusServiceUnavailable)
		return
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// sendJSON sends a JSON response
func (h *WeatherHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError maps err to a status code and sends an error response
func (h *WeatherHandler) sendError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode, errorType := classify(err)
	if statusCode >= http.StatusInternalServerError {
		h.metrics.RecordAPIError(errorType, routeName(r))
	}

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: err.Error(),
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// classify maps an error kind to an HTTP status and a metrics label
func classify(err error) (int, string) {
	var (
		notFound   *models.NotFoundError
		validation *models.ValidationError
		provider   *models.ProviderError
		storage    *models.StorageError
	)

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &validation):
		return http.StatusBadRequest, "validation_error"
	case errors.As(err, &provider):
		return http.StatusInternalServerError, "provider_error"
	case errors.As(err, &storage):
		return http.StatusInternalServerError, "storage_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		return 0, &models.ValidationError{Field: "limit", Value: limitStr, Message: "limit must be a positive integer"}
	}
	return min(limit, maxLimit), nil
}

// parseTimeParam accepts RFC3339 timestamps or plain YYYY-MM-DD dates
func parseTimeParam(value, field string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}

	return nil, &models.ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("invalid %s, expected RFC3339 or YYYY-MM-DD", field),
	}
}

// RegisterRoutes registers all weather API routes
func (h *WeatherHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/weather/current", h.GetCurrent).Methods("GET")
	router.HandleFunc("/api/weather/dashboard", h.GetDashboard).Methods("GET")
	router.HandleFunc("/api/weather/alerts", h.GetAlerts).Methods("GET")
	router.HandleFunc("/api/weather/fetch-now", h.FetchNow).Methods("POST")
	router.HandleFunc("/api/weather/readings", h.ListReadings).Methods("GET")
	router.HandleFunc("/api/jobs", h.GetJobs).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
}
