package domain

import (
	"context"

	"toursync/internal/models"
)

// RecordStore is everything the gateway may ask of the persistence layer.
// Implementations never hand out driver handles or connection details.
type RecordStore interface {
	ListTours(ctx context.Context) ([]models.Tour, error)
	CreateTour(ctx context.Context, tour models.Tour) (string, error)
	UpdateTour(ctx context.Context, id string, patch models.Patch) (int64, error)
	DeleteTour(ctx context.Context, id string) (int64, error)
	ListProperties(ctx context.Context) ([]models.Property, error)
	CreateProperty(ctx context.Context, property models.Property) (string, error)
	UpdateProperty(ctx context.Context, id string, patch models.Patch) (int64, error)
	DeleteProperty(ctx context.Context, id string) (int64, error)
	CleanupOldTours(ctx context.Context) (int64, error)
	GetSettings(ctx context.Context) (models.Settings, error)
	UpdateSettings(ctx context.Context, settings models.Settings) error
	Connected() bool
}

// TourSource is the read side the report service needs.
type TourSource interface {
	ListTours(ctx context.Context) ([]models.Tour, error)
	ListProperties(ctx context.Context) ([]models.Property, error)
}

type ReportService interface {
	DashboardStats(ctx context.Context) (*models.DashboardStats, error)
	WeeklyReport(ctx context.Context, propertyID string, week models.ReportWeek) (*models.WeeklyReport, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type UpdateChecker interface {
	Check(ctx context.Context)
}

type WindowController interface {
	Minimize()
	Maximize()
	Close()
}
