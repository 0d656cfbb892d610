package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"weather-monitor/internal/models"
	"weather-monitor/internal/repository"
	"weather-monitor/internal/testutils"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, city string) (*models.WeatherReading, error) {
	args := m.Called(ctx, city)
	reading, _ := args.Get(0).(*models.WeatherReading)
	return reading, args.Error(1)
}

func newTestRepo(t *testing.T) repository.WeatherRepository {
	t.Helper()
	return repository.NewWeatherRepository(testutils.NewSQLiteDB(t), testutils.Logger(), testutils.Metrics())
}
