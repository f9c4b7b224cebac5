package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"toursync/internal/domain"
	"toursync/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) ListTours(ctx context.Context) ([]models.Tour, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Tour), args.Error(1)
}

func (m *mockSource) ListProperties(ctx context.Context) ([]models.Property, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Property), args.Error(1)
}

// Wednesday.
var reportNow = time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)

func newReportService(src *mockSource) *ReportService {
	logger := zerolog.New(io.Discard)
	s := NewReportService(src, time.UTC, &logger)
	s.SetClock(func() time.Time { return reportNow })
	return s
}

func TestDashboardStats(t *testing.T) {
	src := new(mockSource)
	ctx := context.Background()

	var tours []models.Tour
	for i := 1; i <= 7; i++ {
		tours = append(tours, models.Tour{ClientName: "future", TourTime: reportNow.Add(time.Duration(8-i) * time.Hour), Status: models.TourScheduled})
	}
	tours = append(tours,
		models.Tour{ClientName: "no status", TourTime: reportNow.Add(30 * time.Minute)},
		models.Tour{ClientName: "past scheduled", TourTime: reportNow.Add(-time.Hour), Status: models.TourScheduled},
		models.Tour{ClientName: "done", TourTime: reportNow.Add(-time.Hour), Status: models.TourCompleted},
		models.Tour{ClientName: "future cancelled", TourTime: reportNow.Add(time.Hour), Status: models.TourCancelled},
		models.Tour{ClientName: "missed", TourTime: reportNow.Add(-2 * time.Hour), Status: models.TourNoShow},
	)
	src.On("ListTours", ctx).Return(tours, nil).Once()

	stats, err := newReportService(src).DashboardStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 12, stats.TotalTours)
	assert.Equal(t, 8, stats.UpcomingTours)
	assert.Equal(t, 1, stats.CompletedTours)
	assert.Equal(t, 1, stats.CancelledTours)
	assert.Equal(t, 1, stats.NoShowTours)

	require.Len(t, stats.NextTours, models.DashboardNextTours)
	assert.Equal(t, "no status", stats.NextTours[0].ClientName)
	for i := 1; i < len(stats.NextTours); i++ {
		assert.True(t, stats.NextTours[i-1].TourTime.Before(stats.NextTours[i].TourTime))
	}
	src.AssertExpectations(t)
}

func TestDashboardStatsEmpty(t *testing.T) {
	src := new(mockSource)
	ctx := context.Background()
	src.On("ListTours", ctx).Return([]models.Tour{}, nil).Once()

	stats, err := newReportService(src).DashboardStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalTours)
	assert.NotNil(t, stats.NextTours)
}

func TestDashboardStatsSourceError(t *testing.T) {
	src := new(mockSource)
	ctx := context.Background()
	src.On("ListTours", ctx).Return(nil, domain.ErrConnection).Once()

	_, err := newReportService(src).DashboardStats(ctx)
	assert.ErrorIs(t, err, domain.ErrConnection)
}

func TestWeekStart(t *testing.T) {
	got := WeekStart(reportNow, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.Sunday, got.Weekday())

	sunday := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, sunday, WeekStart(sunday, time.UTC))

	saturdayNight := time.Date(2025, 3, 15, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, sunday, WeekStart(saturdayNight, time.UTC))

	// 02:00 UTC Sunday is still Saturday evening in New York.
	ny := time.FixedZone("EST", -5*3600)
	got = WeekStart(time.Date(2025, 3, 16, 2, 0, 0, 0, time.UTC), ny)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, ny), got)
}

func TestWeeklyReport(t *testing.T) {
	src := new(mockSource)
	ctx := context.Background()
	const propID = "65f1c0ffee65f1c0ffee65f1"
	property := models.Property{ID: propID, Address: "1 Main St", Type: models.PropertyHouse}

	currentWeek := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	lastWeek := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	tours := []models.Tour{
		{ClientName: "A", PhoneNumber: "555", PropertyID: propID, TourTime: lastWeek, Status: models.TourCompleted},
		{ClientName: "B", PropertyID: propID, TourTime: lastWeek.Add(time.Hour), Status: models.TourCancelled},
		{ClientName: "C", PropertyID: propID, TourTime: lastWeek.Add(-time.Hour), Status: models.TourNoShow},
		{ClientName: "D", PropertyID: propID, TourTime: lastWeek.Add(2 * time.Hour)},
		{ClientName: "E", PropertyID: propID, TourTime: currentWeek, Status: models.TourScheduled},
		{ClientName: "F", PropertyID: "other", TourTime: lastWeek, Status: models.TourCompleted},
		{ClientName: "G", PropertyID: propID, TourTime: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), Status: models.TourScheduled},
		{ClientName: "H", PropertyID: propID, TourTime: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), Status: models.TourCompleted},
	}
	src.On("ListProperties", ctx).Return([]models.Property{property}, nil)
	src.On("ListTours", ctx).Return(tours, nil)
	svc := newReportService(src)

	t.Run("LastWeek", func(t *testing.T) {
		report, err := svc.WeeklyReport(ctx, propID, models.LastWeek)
		require.NoError(t, err)

		assert.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), report.WeekStart)
		assert.True(t, report.WeekEnd.Before(time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, models.TourCounts{Total: 5, Completed: 2, Cancelled: 1, NoShow: 1, Scheduled: 1}, report.Counts)
		assert.Equal(t, property, report.Property)
		assert.True(t, report.GeneratedAt.Equal(reportNow))

		require.Len(t, report.Tours, 5)
		assert.True(t, report.Tours[0].TourTime.Equal(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, models.TourScheduled, report.Tours[4].Status)
	})

	t.Run("CurrentWeek", func(t *testing.T) {
		report, err := svc.WeeklyReport(ctx, propID, models.CurrentWeek)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), report.WeekStart)
		assert.Equal(t, 2, report.Counts.Total)
		assert.Equal(t, 2, report.Counts.Scheduled)
	})

	t.Run("DefaultsToLastWeek", func(t *testing.T) {
		report, err := svc.WeeklyReport(ctx, propID, "")
		require.NoError(t, err)
		assert.Equal(t, 5, report.Counts.Total)
	})

	t.Run("UnknownProperty", func(t *testing.T) {
		_, err := svc.WeeklyReport(ctx, "65f1c0ffee65f1c0ffee65f2", models.LastWeek)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Validation", func(t *testing.T) {
		_, err := svc.WeeklyReport(ctx, "", models.LastWeek)
		assert.ErrorIs(t, err, domain.ErrValidation)
		_, err = svc.WeeklyReport(ctx, propID, "next")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestWeeklyReportSourceError(t *testing.T) {
	src := new(mockSource)
	ctx := context.Background()
	src.On("ListProperties", ctx).Return(nil, errors.New("boom")).Once()

	_, err := newReportService(src).WeeklyReport(ctx, "x", models.CurrentWeek)
	assert.Error(t, err)
}
