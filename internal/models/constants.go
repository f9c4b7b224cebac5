package models

import "time"

const (
	CollectionTours      = "tours"
	CollectionProperties = "properties"
	CollectionSettings   = "settings"
)

const (
	// RetentionAge is how old a finished tour must be before the sweep removes it.
	RetentionAge = 30 * 24 * time.Hour

	// DefaultConnectTimeout bounds dialing and the initial ping.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultRetentionInterval is how often the retention worker runs.
	DefaultRetentionInterval = 24 * time.Hour

	// DashboardNextTours is how many upcoming tours the dashboard lists.
	DashboardNextTours = 5

	DefaultDatabaseName        = "toursync"
	DefaultCompanyName         = "APM"
	DefaultTourDurationMinutes = 60

	// ObjectIDHexLength is the length of a record identifier.
	ObjectIDHexLength = 24
)
