package models

import "time"

// TourStatus is the lifecycle state of a tour. An empty status is read as scheduled.
type TourStatus string

const (
	TourScheduled TourStatus = "scheduled"
	TourCompleted TourStatus = "completed"
	TourCancelled TourStatus = "cancelled"
	TourNoShow    TourStatus = "no-show"
)

// TourStatuses lists every accepted status in display order.
var TourStatuses = []TourStatus{TourScheduled, TourCompleted, TourCancelled, TourNoShow}

// FinishedTourStatuses are the statuses eligible for the retention sweep.
var FinishedTourStatuses = []TourStatus{TourCompleted, TourCancelled, TourNoShow}

func (s TourStatus) IsValid() bool {
	for _, v := range TourStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Effective returns the status with the empty value mapped to scheduled.
func (s TourStatus) Effective() TourStatus {
	if s == "" {
		return TourScheduled
	}
	return s
}

type Tour struct {
	ID              string     `json:"_id" bson:"-"`
	ClientName      string     `json:"client_name" bson:"client_name"`
	PhoneNumber     string     `json:"phone_number,omitempty" bson:"phone_number,omitempty"`
	PropertyID      string     `json:"property_id" bson:"property_id"`
	PropertyAddress string     `json:"property_address,omitempty" bson:"property_address,omitempty"`
	TourTime        time.Time  `json:"tour_time" bson:"tour_time"`
	Status          TourStatus `json:"status,omitempty" bson:"status,omitempty"`
	Notes           string     `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" bson:"updated_at"`
	Extra           Fields     `json:"-" bson:"-"`
}

// TourFields are the keys Tour declares.
var TourFields = newFieldSet("_id", "client_name", "phone_number", "property_id",
	"property_address", "tour_time", "status", "notes", "created_at", "updated_at")

func (t Tour) MarshalJSON() ([]byte, error) {
	type plain Tour
	return marshalRecord(plain(t), t.Extra)
}

func (t *Tour) UnmarshalJSON(data []byte) error {
	type plain Tour
	var p plain
	extra, err := unmarshalRecord(data, &p, TourFields)
	if err != nil {
		return err
	}
	*t = Tour(p)
	t.Extra = extra
	return nil
}
