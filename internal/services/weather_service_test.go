package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"weather-monitor/internal/models"
	"weather-monitor/internal/repository"
	"weather-monitor/internal/testutils"
)

func TestFetchAndStore(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	fetcher := &mockFetcher{}
	fetcher.On("Fetch", ctx, "Pune").
		Return(testutils.Reading("Pune", time.Now().UTC(), 28, 65, "Haze"), nil).Once()
	fetcher.On("Fetch", ctx, "Nowhere").
		Return(nil, &models.ProviderError{City: "Nowhere", StatusCode: 404, Cause: errors.New("city not found")}).Once()

	svc := NewWeatherService(repo, fetcher, testutils.Logger(), testutils.Metrics())

	reading, err := svc.FetchAndStore(ctx, "Pune")
	require.NoError(t, err)
	assert.NotZero(t, reading.ID)

	_, err = svc.FetchAndStore(ctx, "Nowhere")
	var perr *models.ProviderError
	require.True(t, errors.As(err, &perr))

	latest, err := svc.LatestReadings(ctx, 10)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, reading.ID, latest[0].ID)

	fetcher.AssertExpectations(t)
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	seed := func(t *testing.T, repo repository.WeatherRepository) {
		for _, age := range []time.Duration{time.Hour, 47 * time.Hour, 49 * time.Hour, 10 * 24 * time.Hour} {
			require.NoError(t, repo.CreateReading(ctx, testutils.Reading("Pune", now.Add(-age), 20, 50, "Clear")))
		}
	}

	t.Run("soft delete hides strictly older readings", func(t *testing.T) {
		repo := newTestRepo(t)
		seed(t, repo)

		svc := NewWeatherService(repo, &mockFetcher{}, testutils.Logger(), testutils.Metrics())
		svc.now = func() time.Time { return now }

		removed, err := svc.Cleanup(ctx, 2, false)
		require.NoError(t, err)
		assert.Equal(t, int64(2), removed)

		live, total, err := svc.ListReadings(ctx, repository.ReadingFilter{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		for _, r := range live {
			assert.True(t, r.FetchedAt.After(now.AddDate(0, 0, -2)))
		}

		_, total, err = svc.ListReadings(ctx, repository.ReadingFilter{Limit: 10, IncludeDeleted: true})
		require.NoError(t, err)
		assert.Equal(t, 4, total)

		removed, err = svc.Cleanup(ctx, 2, false)
		require.NoError(t, err)
		assert.Equal(t, int64(0), removed)
	})

	t.Run("hard delete removes rows", func(t *testing.T) {
		repo := newTestRepo(t)
		seed(t, repo)

		svc := NewWeatherService(repo, &mockFetcher{}, testutils.Logger(), testutils.Metrics())
		svc.now = func() time.Time { return now }

		removed, err := svc.Cleanup(ctx, 2, true)
		require.NoError(t, err)
		assert.Equal(t, int64(2), removed)

		_, total, err := svc.ListReadings(ctx, repository.ReadingFilter{Limit: 10, IncludeDeleted: true})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
	})

	t.Run("retention below one day is rejected", func(t *testing.T) {
		svc := NewWeatherService(nil, &mockFetcher{}, testutils.Logger(), testutils.Metrics())

		_, err := svc.Cleanup(ctx, 0, false)
		var verr *models.ValidationError
		assert.True(t, errors.As(err, &verr))
	})
}

func TestIngestCities_PartialFailure(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	fetcher := &mockFetcher{}
	fetcher.On("Fetch", mock.Anything, "Pune").
		Return(testutils.Reading("Pune", time.Now().UTC(), 28, 65, "Clear"), nil)
	fetcher.On("Fetch", mock.Anything, "Atlantis").
		Return(nil, &models.ProviderError{City: "Atlantis", StatusCode: 404, Cause: errors.New("city not found")})
	fetcher.On("Fetch", mock.Anything, "Delhi").
		Return(testutils.Reading("Delhi", time.Now().UTC(), 33, 30, "Haze"), nil)

	weather := NewWeatherService(repo, fetcher, testutils.Logger(), testutils.Metrics())
	ingest := NewIngestionService(weather, testutils.Logger(), testutils.Metrics())

	result, err := ingest.IngestCities(ctx, []string{"Pune", "Atlantis", "Delhi"})
	require.Error(t, err)

	var perr *models.ProviderError
	assert.True(t, errors.As(err, &perr))
	assert.Equal(t, 3, result.Requested)
	assert.Equal(t, 2, result.Stored)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.ReadingIDs, 2)
	assert.Len(t, result.Errors, 1)

	latest, err := weather.LatestReadings(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, latest, 2)
}

func TestIngestCities_AllSucceed(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	fetcher := &mockFetcher{}
	fetcher.On("Fetch", mock.Anything, "Pune").
		Return(testutils.Reading("Pune", time.Now().UTC(), 28, 65, "Clear"), nil)

	weather := NewWeatherService(repo, fetcher, testutils.Logger(), testutils.Metrics())
	result, err := NewIngestionService(weather, testutils.Logger(), testutils.Metrics()).
		IngestCities(ctx, []string{"Pune"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stored)
	assert.Empty(t, result.Errors)
}
