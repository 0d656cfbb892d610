package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-monitor/internal/models"
	"weather-monitor/internal/providers"
	"weather-monitor/internal/repository"
	"weather-monitor/internal/scheduler"
	"weather-monitor/internal/services"
	"weather-monitor/internal/testutils"
	"weather-monitor/pkg/database"
)

type staticJobs []scheduler.JobStatus

func (s staticJobs) Status() []scheduler.JobStatus { return s }

type testAPI struct {
	router    *mux.Router
	db        *database.DB
	repo      repository.WeatherRepository
	summaries *services.SummaryService
}

// newTestAPI wires the handler against SQLite and a fake OpenWeatherMap server
// that knows Testville and Pune.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "Testville":
			fmt.Fprint(w, testutils.OpenWeatherPayload("Testville", 36.0, 85, "Thunderstorm"))
		case "Pune":
			fmt.Fprint(w, testutils.OpenWeatherPayload("Pune", 27.5, 60, "Clouds"))
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"cod":"404","message":"city not found"}`)
		}
	}))
	t.Cleanup(provider.Close)

	logger := testutils.Logger()
	metricsCollector := testutils.Metrics()
	db := testutils.NewSQLiteDB(t)
	repo := repository.NewWeatherRepository(db, logger, metricsCollector)

	client := providers.NewOpenWeatherClient(providers.Config{
		BaseURL: provider.URL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	}, logger, metricsCollector)

	summaries := services.NewSummaryService(repo, logger, metricsCollector)
	handler := NewWeatherHandler(Dependencies{
		Weather:   services.NewWeatherService(repo, client, logger, metricsCollector),
		Summaries: summaries,
		Alerts:    services.NewAlertService(repo, logger, metricsCollector),
		Jobs: staticJobs{
			{Name: "fetch", Schedule: "*/30 * * * *", Runs: 3, LastStatus: "success"},
		},
		Health:      db,
		DefaultCity: "Pune",
	}, logger, metricsCollector)

	router := mux.NewRouter()
	router.Use(Instrument(logger, metricsCollector))
	handler.RegisterRoutes(router)

	return &testAPI{router: router, db: db, repo: repo, summaries: summaries}
}

func (a *testAPI) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestEmptyStore(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"dashboard before any summary", "/api/weather/dashboard", http.StatusNotFound},
		{"current with no readings", "/api/weather/current", http.StatusNotFound},
		{"alerts may be empty", "/api/weather/alerts", http.StatusOK},
		{"readings page may be empty", "/api/weather/readings", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodGet, tt.target)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			if tt.wantStatus == http.StatusNotFound {
				body := decode[ErrorResponse](t, rec)
				assert.Equal(t, http.StatusNotFound, body.Code)
				assert.Equal(t, "Not Found", body.Error)
				assert.Contains(t, body.Message, "not found")
			}
		})
	}

	alerts := decode[[]models.WeatherAlert](t, api.do(t, http.MethodGet, "/api/weather/alerts"))
	assert.Empty(t, alerts)
}

type fetchNowBody struct {
	Message string                `json:"message"`
	Data    models.WeatherReading `json:"data"`
}

func TestFetchNowThenDashboard(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/weather/fetch-now?city=Testville")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[fetchNowBody](t, rec)
	assert.Equal(t, "Weather data fetched for Testville", body.Message)
	assert.NotZero(t, body.Data.ID)
	assert.Equal(t, 36.0, body.Data.Temperature)

	_, err := api.summaries.Compute(context.Background(), 24*time.Hour)
	require.NoError(t, err)

	rec = api.do(t, http.MethodGet, "/api/weather/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[models.DashboardSummary](t, rec)
	assert.InDelta(t, body.Data.Temperature, summary.AvgTemperature, 0.0001)
	assert.Equal(t, 1, summary.ReadingCount)
	assert.Equal(t, 1, summary.ConditionFrequency["Thunderstorm"])

	current := decode[[]models.WeatherReading](t, api.do(t, http.MethodGet, "/api/weather/current"))
	require.Len(t, current, 1)
	assert.Equal(t, body.Data.ID, current[0].ID)
}

func TestFetchNow(t *testing.T) {
	api := newTestAPI(t)

	t.Run("defaults to the first configured city", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/weather/fetch-now")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"location_name":"Pune"`)
	})

	t.Run("provider failure is a server error", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/weather/fetch-now?city=Atlantis")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		body := decode[ErrorResponse](t, rec)
		assert.Equal(t, http.StatusInternalServerError, body.Code)
		assert.Contains(t, body.Message, "Atlantis")
	})

	t.Run("GET is not routed", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/weather/fetch-now")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestQueryValidation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		target string
	}{
		{"non-numeric current limit", "/api/weather/current?limit=ten"},
		{"zero alerts limit", "/api/weather/alerts?limit=0"},
		{"bad since", "/api/weather/readings?since=yesterday"},
		{"bad page", "/api/weather/readings?page=-1"},
		{"bad include_deleted", "/api/weather/readings?include_deleted=maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodGet, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, http.StatusBadRequest, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestCurrentAndReadings(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 120; i++ {
		location := "Pune"
		if i%2 == 1 {
			location = "Delhi"
		}
		require.NoError(t, api.repo.CreateReading(ctx,
			testutils.Reading(location, base.Add(time.Duration(i)*time.Minute), 20+float64(i%10), 50, "Clear")))
	}

	current := decode[[]models.WeatherReading](t, api.do(t, http.MethodGet, "/api/weather/current"))
	assert.Len(t, current, 10)
	assert.True(t, current[0].FetchedAt.After(current[1].FetchedAt))

	current = decode[[]models.WeatherReading](t, api.do(t, http.MethodGet, "/api/weather/current?limit=500"))
	assert.Len(t, current, 100)

	rec := api.do(t, http.MethodGet, "/api/weather/readings?location=Delhi&limit=25&page=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Data       []models.WeatherReading `json:"data"`
		Total      int                     `json:"total"`
		Page       int                     `json:"page"`
		Limit      int                     `json:"limit"`
		TotalPages int                     `json:"total_pages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 60, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Data, 25)
	for _, r := range page.Data {
		assert.Equal(t, "Delhi", r.LocationName)
	}

	rec = api.do(t, http.MethodGet, "/api/weather/readings?since=2024-06-01T13:00:00Z")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 60, page.Total)
}

func TestJobsAndDocs(t *testing.T) {
	api := newTestAPI(t)

	jobs := decode[[]scheduler.JobStatus](t, api.do(t, http.MethodGet, "/api/jobs"))
	require.Len(t, jobs, 1)
	assert.Equal(t, "fetch", jobs[0].Name)
	assert.Equal(t, int64(3), jobs[0].Runs)

	doc := decode[map[string]interface{}](t, api.do(t, http.MethodGet, "/api/docs/openapi.json"))
	paths, ok := doc["paths"].(map[string]interface{})
	require.True(t, ok)
	for _, path := range []string{"/api/weather/current", "/api/weather/dashboard", "/api/weather/alerts", "/api/weather/fetch-now"} {
		assert.Contains(t, paths, path)
	}

	rec := api.do(t, http.MethodGet, "/api/docs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")
	assert.Contains(t, rec.Body.String(), "Weather Monitor API")
}

func TestHealthCheck(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])

	api.db.Close()

	rec = api.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decode[map[string]string](t, rec)["status"])
}

func TestInstrument_RequestID(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/health")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}
