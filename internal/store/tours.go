package store

import (
	"context"
	"fmt"
	"time"

	"toursync/internal/domain"
	"toursync/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type tourDocument struct {
	ObjectID    primitive.ObjectID `bson:"_id"`
	models.Tour `bson:",inline"`
}

func (s *Store) ListTours(ctx context.Context) ([]models.Tour, error) {
	coll, err := s.collection(ctx, models.CollectionTours)
	if err != nil {
		return nil, err
	}

	docs, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, s.fail("list tours", err)
	}

	tours := make([]models.Tour, 0, len(docs))
	for _, doc := range docs {
		var tour models.Tour
		tour.Extra = decodeRecord(doc, &tour, models.TourFields)
		tour.ID = hexID(doc["_id"])
		tours = append(tours, tour)
	}
	return tours, nil
}

func (s *Store) CreateTour(ctx context.Context, tour models.Tour) (string, error) {
	tour.Status = tour.Status.Effective()
	if !tour.Status.IsValid() {
		return "", fmt.Errorf("%w: invalid tour status %q", domain.ErrValidation, tour.Status)
	}
	extra, err := extraDocument(tour.Extra, models.TourFields)
	if err != nil {
		return "", err
	}

	coll, err := s.collection(ctx, models.CollectionTours)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	tour.CreatedAt = now
	tour.UpdatedAt = now
	d := tourDocument{ObjectID: primitive.NewObjectID(), Tour: tour}

	doc, err := toDocument(d)
	if err != nil {
		return "", fmt.Errorf("encode tour: %w", err)
	}
	for k, v := range extra {
		doc[k] = v
	}
	if err := coll.InsertOne(ctx, doc); err != nil {
		return "", s.fail("create tour", err)
	}

	s.logger.Debug().Str("tour_id", d.ObjectID.Hex()).Msg("tour created")
	return d.ObjectID.Hex(), nil
}

func (s *Store) UpdateTour(ctx context.Context, id string, patch models.Patch) (int64, error) {
	oid, err := parseID(id)
	if err != nil {
		return 0, err
	}
	set, err := normalizeTourPatch(stripProtected(patch))
	if err != nil {
		return 0, err
	}

	coll, err := s.collection(ctx, models.CollectionTours)
	if err != nil {
		return 0, err
	}

	set["updated_at"] = s.now().UTC()
	matched, modified, err := coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M(set), false)
	if err != nil {
		return 0, s.fail("update tour", err)
	}
	if matched == 0 {
		return 0, fmt.Errorf("tour %s: %w", id, domain.ErrNotFound)
	}
	return modified, nil
}

func (s *Store) DeleteTour(ctx context.Context, id string) (int64, error) {
	oid, err := parseID(id)
	if err != nil {
		return 0, err
	}

	coll, err := s.collection(ctx, models.CollectionTours)
	if err != nil {
		return 0, err
	}

	deleted, err := coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return 0, s.fail("delete tour", err)
	}
	if deleted == 0 {
		return 0, fmt.Errorf("tour %s: %w", id, domain.ErrNotFound)
	}
	return deleted, nil
}

// CleanupOldTours removes finished tours scheduled more than RetentionAge ago.
// Scheduled tours and tours without a status are never removed.
func (s *Store) CleanupOldTours(ctx context.Context) (int64, error) {
	coll, err := s.collection(ctx, models.CollectionTours)
	if err != nil {
		return 0, err
	}

	statuses := make([]string, 0, len(models.FinishedTourStatuses))
	for _, st := range models.FinishedTourStatuses {
		statuses = append(statuses, string(st))
	}
	cutoff := s.now().UTC().Add(-models.RetentionAge)

	removed, err := coll.DeleteMany(ctx, bson.M{
		"tour_time": bson.M{"$lt": cutoff},
		"status":    bson.M{"$in": statuses},
	})
	if err != nil {
		return 0, s.fail("cleanup old tours", err)
	}

	s.logger.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("old tours cleaned up")
	return removed, nil
}

var tourStringFields = []string{"client_name", "phone_number", "property_id", "property_address", "notes"}

// normalizeTourPatch checks the declared fields a patch may carry and
// converts tour_time to a date. An empty status means scheduled. Undeclared
// fields are stored as given.
func normalizeTourPatch(patch models.Patch) (models.Patch, error) {
	if raw, ok := patch["status"]; ok {
		str, isStr := raw.(string)
		if !isStr {
			return nil, fmt.Errorf("%w: status must be a string", domain.ErrValidation)
		}
		status := models.TourStatus(str).Effective()
		if !status.IsValid() {
			return nil, fmt.Errorf("%w: invalid tour status %q", domain.ErrValidation, str)
		}
		patch["status"] = string(status)
	}

	if err := requireStrings(patch, tourStringFields); err != nil {
		return nil, err
	}

	if raw, ok := patch["tour_time"]; ok {
		switch v := raw.(type) {
		case time.Time:
			patch["tour_time"] = v.UTC()
		case string:
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, fmt.Errorf("%w: tour_time must be RFC 3339: %v", domain.ErrValidation, err)
			}
			patch["tour_time"] = t.UTC()
		default:
			return nil, fmt.Errorf("%w: tour_time must be a timestamp", domain.ErrValidation)
		}
	}

	return patch, nil
}
