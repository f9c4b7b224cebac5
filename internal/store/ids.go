package store

import (
	"fmt"

	"toursync/internal/domain"
	"toursync/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// parseID accepts exactly 24 hex characters. It runs before any database call.
func parseID(id string) (primitive.ObjectID, error) {
	if len(id) != models.ObjectIDHexLength {
		return primitive.NilObjectID, fmt.Errorf("%w: invalid id format %q", domain.ErrValidation, id)
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: invalid id format %q", domain.ErrValidation, id)
	}
	return oid, nil
}

// protectedFields are store-owned and never taken from a caller's patch.
var protectedFields = []string{"_id", "id", "created_at", "updated_at"}

func isProtected(key string) bool {
	for _, k := range protectedFields {
		if k == key {
			return true
		}
	}
	return false
}

// hexID renders a stored _id. Records written outside the store may carry
// a non-ObjectID value.
func hexID(v any) string {
	if oid, ok := v.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(v)
}

func stripProtected(patch models.Patch) models.Patch {
	out := make(models.Patch, len(patch))
	for k, v := range patch {
		out[k] = v
	}
	for _, k := range protectedFields {
		delete(out, k)
	}
	return out
}
