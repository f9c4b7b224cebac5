package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"toursync/internal/domain"
	"toursync/internal/models"

	"github.com/rs/zerolog"
)

var _ domain.ReportService = (*ReportService)(nil)

// ReportService derives dashboard and weekly figures from the full tour list.
type ReportService struct {
	source   domain.TourSource
	location *time.Location
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewReportService(source domain.TourSource, location *time.Location, logger *zerolog.Logger) *ReportService {
	if location == nil {
		location = time.Local
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ReportService{source: source, location: location, now: time.Now, logger: logger}
}

// SetClock replaces the time source.
func (s *ReportService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *ReportService) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	tours, err := s.source.ListTours(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stats := &models.DashboardStats{TotalTours: len(tours), NextTours: []models.Tour{}}
	var upcoming []models.Tour
	for _, t := range tours {
		switch t.Status.Effective() {
		case models.TourScheduled:
			if t.TourTime.After(now) {
				upcoming = append(upcoming, t)
			}
		case models.TourCompleted:
			stats.CompletedTours++
		case models.TourCancelled:
			stats.CancelledTours++
		case models.TourNoShow:
			stats.NoShowTours++
		}
	}
	stats.UpcomingTours = len(upcoming)

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].TourTime.Before(upcoming[j].TourTime)
	})
	if len(upcoming) > models.DashboardNextTours {
		upcoming = upcoming[:models.DashboardNextTours]
	}
	stats.NextTours = append(stats.NextTours, upcoming...)
	return stats, nil
}

// WeeklyReport covers one Sunday-start week for a property. An empty week
// means last week.
func (s *ReportService) WeeklyReport(ctx context.Context, propertyID string, week models.ReportWeek) (*models.WeeklyReport, error) {
	if propertyID == "" {
		return nil, fmt.Errorf("%w: property_id is required", domain.ErrValidation)
	}
	if week == "" {
		week = models.LastWeek
	}
	if week != models.CurrentWeek && week != models.LastWeek {
		return nil, fmt.Errorf("%w: week must be %q or %q", domain.ErrValidation, models.CurrentWeek, models.LastWeek)
	}

	properties, err := s.source.ListProperties(ctx)
	if err != nil {
		return nil, err
	}
	var property *models.Property
	for i := range properties {
		if properties[i].ID == propertyID {
			property = &properties[i]
			break
		}
	}
	if property == nil {
		return nil, fmt.Errorf("property %s: %w", propertyID, domain.ErrNotFound)
	}

	tours, err := s.source.ListTours(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	start := WeekStart(now, s.location)
	if week == models.LastWeek {
		start = start.AddDate(0, 0, -7)
	}
	next := start.AddDate(0, 0, 7)

	report := &models.WeeklyReport{
		Property:    *property,
		WeekStart:   start,
		WeekEnd:     next.Add(-time.Nanosecond),
		Tours:       []models.ReportEntry{},
		GeneratedAt: now.UTC(),
	}

	var entries []models.ReportEntry
	for _, t := range tours {
		if t.PropertyID != propertyID || t.TourTime.Before(start) || !t.TourTime.Before(next) {
			continue
		}
		status := t.Status.Effective()
		report.Counts.Total++
		switch status {
		case models.TourCompleted:
			report.Counts.Completed++
		case models.TourCancelled:
			report.Counts.Cancelled++
		case models.TourNoShow:
			report.Counts.NoShow++
		case models.TourScheduled:
			report.Counts.Scheduled++
		}
		entries = append(entries, models.ReportEntry{TourTime: t.TourTime, Status: status})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TourTime.Before(entries[j].TourTime)
	})
	report.Tours = append(report.Tours, entries...)

	s.logger.Debug().Str("property_id", propertyID).Str("week", string(week)).Int("tours", report.Counts.Total).Msg("weekly report generated")
	return report, nil
}

// WeekStart returns midnight of the Sunday on or before t in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return day.AddDate(0, 0, -int(day.Weekday()))
}
