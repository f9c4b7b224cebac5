package models

type BusinessHours struct {
	Start string `json:"start" bson:"start"` // HH:MM
	End   string `json:"end" bson:"end"`
}

type NotificationSettings struct {
	Email   bool `json:"email" bson:"email"`
	Desktop bool `json:"desktop" bson:"desktop"`
}

// Settings has no strict schema; unknown keys travel in Extra.
type Settings struct {
	CompanyName         string               `json:"company_name" bson:"company_name"`
	BusinessHours       BusinessHours        `json:"business_hours" bson:"business_hours"`
	TourDurationMinutes int                  `json:"tour_duration_minutes" bson:"tour_duration_minutes"`
	Notifications       NotificationSettings `json:"notifications" bson:"notifications"`
	AutoUpdate          bool                 `json:"auto_update" bson:"auto_update"`
	Extra               map[string]any       `json:"extra,omitempty" bson:"extra"`
}

func DefaultSettings() Settings {
	return Settings{
		CompanyName:         DefaultCompanyName,
		BusinessHours:       BusinessHours{Start: "09:00", End: "17:00"},
		TourDurationMinutes: DefaultTourDurationMinutes,
		Notifications:       NotificationSettings{Email: true, Desktop: true},
		AutoUpdate:          true,
	}
}
