package models

// Patch is a partial update keyed by stored field name.
type Patch map[string]any

type InsertAck struct {
	InsertedID string `json:"inserted_id"`
}

type UpdateAck struct {
	ModifiedCount int64 `json:"modified_count"`
}

type DeleteAck struct {
	DeletedCount int64 `json:"deleted_count"`
}
