package models

import "time"

type DashboardStats struct {
	TotalTours     int    `json:"total_tours"`
	UpcomingTours  int    `json:"upcoming_tours"`
	CompletedTours int    `json:"completed_tours"`
	CancelledTours int    `json:"cancelled_tours"`
	NoShowTours    int    `json:"no_show_tours"`
	NextTours      []Tour `json:"next_tours"`
}

// ReportWeek selects which Sunday-start week a report covers.
type ReportWeek string

const (
	CurrentWeek ReportWeek = "current"
	LastWeek    ReportWeek = "last"
)

type TourCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	NoShow    int `json:"no_show"`
	Scheduled int `json:"scheduled"`
}

// ReportEntry never carries client name or phone number.
type ReportEntry struct {
	TourTime time.Time  `json:"tour_time"`
	Status   TourStatus `json:"status"`
}

type WeeklyReport struct {
	Property    Property      `json:"property"`
	WeekStart   time.Time     `json:"week_start"`
	WeekEnd     time.Time     `json:"week_end"`
	Counts      TourCounts    `json:"counts"`
	Tours       []ReportEntry `json:"tours"`
	GeneratedAt time.Time     `json:"generated_at"`
}
