package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-monitor/internal/models"
	"weather-monitor/internal/testutils"
)

func newTestRepo(t *testing.T) WeatherRepository {
	t.Helper()
	return NewWeatherRepository(testutils.NewSQLiteDB(t), testutils.Logger(), testutils.Metrics())
}

func TestCreateAndGetReading(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	fetched := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	reading := testutils.Reading("Pune", fetched, 31.2, 55, "Clear")
	require.NoError(t, repo.CreateReading(ctx, reading))
	require.NotZero(t, reading.ID)

	got, err := repo.GetReading(ctx, reading.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pune", got.LocationName)
	assert.Equal(t, 31.2, got.Temperature)
	assert.Equal(t, 55, got.Humidity)
	assert.True(t, fetched.Equal(got.FetchedAt))
	assert.Nil(t, got.DeletedAt)
	assert.Equal(t, reading.RawPayload, got.RawPayload)

	_, err = repo.GetReading(ctx, reading.ID+100)
	var nf *models.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestLatestReadings_OrderAndLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.CreateReading(ctx, testutils.Reading("Pune", base.Add(time.Duration(i)*time.Minute), float64(20+i), 50, "Clear")))
	}

	readings, err := repo.LatestReadings(ctx, 3)
	require.NoError(t, err)
	require.Len(t, readings, 3)
	assert.Equal(t, 24.0, readings[0].Temperature)
	assert.Equal(t, 23.0, readings[1].Temperature)
	assert.Equal(t, 22.0, readings[2].Temperature)
}

func TestLatestReadingPerLocation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.CreateReading(ctx, testutils.Reading("Pune", now.Add(-2*time.Hour), 20, 40, "Clear")))
	require.NoError(t, repo.CreateReading(ctx, testutils.Reading("Pune", now.Add(-time.Hour), 25, 45, "Clouds")))
	require.NoError(t, repo.CreateReading(ctx, testutils.Reading("Mumbai", now.Add(-3*time.Hour), 30, 85, "Rain")))

	readings, err := repo.LatestReadingPerLocation(ctx)
	require.NoError(t, err)
	require.Len(t, readings, 2)

	assert.Equal(t, "Mumbai", readings[0].LocationName)
	assert.Equal(t, "Pune", readings[1].LocationName)
	assert.Equal(t, 25.0, readings[1].Temperature)
}

func TestSoftAndHardDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	old := testutils.Reading("Pune", now.Add(-72*time.Hour), 20, 40, "Clear")
	fresh := testutils.Reading("Pune", now.Add(-time.Hour), 22, 42, "Clear")
	require.NoError(t, repo.CreateReading(ctx, old))
	require.NoError(t, repo.CreateReading(ctx, fresh))

	require.NoError(t, repo.CreateAlerts(ctx, []*models.WeatherAlert{{
		CreatedAt:    now,
		ReadingID:    &old.ID,
		LocationName: "Pune",
		AlertType:    models.AlertHighHumidity,
		Severity:     models.SeverityLow,
		Message:      "humid",
	}}))

	cutoff := now.Add(-48 * time.Hour)

	n, err := repo.SoftDeleteReadingsBefore(ctx, cutoff, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Already soft-deleted rows are not touched again.
	n, err = repo.SoftDeleteReadingsBefore(ctx, cutoff, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	readings, total, err := repo.ListReadings(ctx, ReadingFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, fresh.ID, readings[0].ID)

	all, total, err := repo.ListReadings(ctx, ReadingFilter{Limit: 10, IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.NotNil(t, all[1].DeletedAt)

	n, err = repo.HardDeleteReadingsBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	alerts, err := repo.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Nil(t, alerts[0].ReadingID)
}

func TestListReadings_Filters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 4; i++ {
		require.NoError(t, repo.CreateReading(ctx, testutils.Reading("Pune", now.Add(-time.Duration(i)*time.Hour), 20, 40, "Clear")))
	}
	require.NoError(t, repo.CreateReading(ctx, testutils.Reading("Delhi", now, 35, 20, "Haze")))

	location := "Pune"
	since := now.Add(-150 * time.Minute)

	readings, total, err := repo.ListReadings(ctx, ReadingFilter{Location: &location, Since: &since, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, readings, 2)
	for _, r := range readings {
		assert.Equal(t, "Pune", r.LocationName)
	}

	readings, _, err = repo.ListReadings(ctx, ReadingFilter{Location: &location, Since: &since, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, readings, 1)
}

func TestSummaries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.LatestSummary(ctx)
	var nf *models.NotFoundError
	require.True(t, errors.As(err, &nf))

	now := time.Now().UTC().Truncate(time.Second)
	first := &models.DashboardSummary{
		ComputedAt:         now.Add(-time.Hour),
		WindowStart:        now.Add(-25 * time.Hour),
		WindowEnd:          now.Add(-time.Hour),
		ReadingCount:       1,
		LocationCount:      1,
		AvgTemperature:     10,
		ConditionFrequency: models.ConditionFrequency{"Clear": 1},
	}
	second := &models.DashboardSummary{
		ComputedAt:         now,
		WindowStart:        now.Add(-24 * time.Hour),
		WindowEnd:          now,
		ReadingCount:       2,
		LocationCount:      1,
		AvgTemperature:     12.5,
		ConditionFrequency: models.ConditionFrequency{"Clear": 1, "Rain": 1},
		HourlyTrend: models.HourlyTrend{
			{Hour: now.Truncate(time.Hour), AvgTemperature: 12.5, AvgHumidity: 50, Readings: 2},
		},
	}
	require.NoError(t, repo.CreateSummary(ctx, first))
	require.NoError(t, repo.CreateSummary(ctx, second))
	assert.Greater(t, second.ID, first.ID)

	latest, err := repo.LatestSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, 12.5, latest.AvgTemperature)
	assert.Equal(t, models.ConditionFrequency{"Clear": 1, "Rain": 1}, latest.ConditionFrequency)
	require.Len(t, latest.HourlyTrend, 1)
	assert.Equal(t, 2, latest.HourlyTrend[0].Readings)
}

func TestRecentAlerts_NewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alerts, err := repo.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	now := time.Now().UTC()
	batch := []*models.WeatherAlert{
		{CreatedAt: now.Add(-time.Minute), LocationName: "Pune", AlertType: models.AlertHighTemperature, Severity: models.SeverityMedium, Message: "hot"},
		{CreatedAt: now, LocationName: "Pune", AlertType: models.AlertExtremeWeather, Severity: models.SeverityHigh, Message: "storm"},
	}
	require.NoError(t, repo.CreateAlerts(ctx, batch))
	assert.NotZero(t, batch[0].ID)
	assert.NotZero(t, batch[1].ID)

	alerts, err = repo.RecentAlerts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertExtremeWeather, alerts[0].AlertType)
}
