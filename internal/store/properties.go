package store

import (
	"context"
	"fmt"
	"math"

	"toursync/internal/domain"
	"toursync/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type propertyDocument struct {
	ObjectID        primitive.ObjectID `bson:"_id"`
	models.Property `bson:",inline"`
}

func (s *Store) ListProperties(ctx context.Context) ([]models.Property, error) {
	coll, err := s.collection(ctx, models.CollectionProperties)
	if err != nil {
		return nil, err
	}

	docs, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, s.fail("list properties", err)
	}

	properties := make([]models.Property, 0, len(docs))
	for _, doc := range docs {
		var property models.Property
		property.Extra = decodeRecord(doc, &property, models.PropertyFields)
		property.ID = hexID(doc["_id"])
		properties = append(properties, property)
	}
	return properties, nil
}

func (s *Store) CreateProperty(ctx context.Context, property models.Property) (string, error) {
	if err := validateProperty(&property); err != nil {
		return "", err
	}
	extra, err := extraDocument(property.Extra, models.PropertyFields)
	if err != nil {
		return "", err
	}

	coll, err := s.collection(ctx, models.CollectionProperties)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	property.CreatedAt = now
	property.UpdatedAt = now
	d := propertyDocument{ObjectID: primitive.NewObjectID(), Property: property}

	doc, err := toDocument(d)
	if err != nil {
		return "", fmt.Errorf("encode property: %w", err)
	}
	for k, v := range extra {
		doc[k] = v
	}
	if err := coll.InsertOne(ctx, doc); err != nil {
		return "", s.fail("create property", err)
	}

	s.logger.Debug().Str("property_id", d.ObjectID.Hex()).Msg("property created")
	return d.ObjectID.Hex(), nil
}

func (s *Store) UpdateProperty(ctx context.Context, id string, patch models.Patch) (int64, error) {
	oid, err := parseID(id)
	if err != nil {
		return 0, err
	}
	set, err := normalizePropertyPatch(stripProtected(patch))
	if err != nil {
		return 0, err
	}

	coll, err := s.collection(ctx, models.CollectionProperties)
	if err != nil {
		return 0, err
	}

	set["updated_at"] = s.now().UTC()
	matched, modified, err := coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M(set), false)
	if err != nil {
		return 0, s.fail("update property", err)
	}
	if matched == 0 {
		return 0, fmt.Errorf("property %s: %w", id, domain.ErrNotFound)
	}
	return modified, nil
}

// DeleteProperty refuses to remove a property any tour still points at.
func (s *Store) DeleteProperty(ctx context.Context, id string) (int64, error) {
	oid, err := parseID(id)
	if err != nil {
		return 0, err
	}

	tours, err := s.collection(ctx, models.CollectionTours)
	if err != nil {
		return 0, err
	}
	refs, err := tours.CountDocuments(ctx, bson.M{"property_id": id})
	if err != nil {
		return 0, s.fail("count property references", err)
	}
	if refs > 0 {
		return 0, fmt.Errorf("property %s has %d tours: %w", id, refs, domain.ErrReferentialIntegrity)
	}

	coll, err := s.collection(ctx, models.CollectionProperties)
	if err != nil {
		return 0, err
	}
	deleted, err := coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return 0, s.fail("delete property", err)
	}
	if deleted == 0 {
		return 0, fmt.Errorf("property %s: %w", id, domain.ErrNotFound)
	}
	return deleted, nil
}

func validateProperty(p *models.Property) error {
	t, ok := models.ParsePropertyType(string(p.Type))
	if !ok {
		return fmt.Errorf("%w: invalid property type %q", domain.ErrValidation, p.Type)
	}
	p.Type = t

	if p.Bedrooms < 0 || p.Bathrooms < 0 {
		return fmt.Errorf("%w: bedroom and bathroom counts must not be negative", domain.ErrValidation)
	}
	if p.RentPrice < 0 || math.IsNaN(p.RentPrice) {
		return fmt.Errorf("%w: rent_price must not be negative", domain.ErrValidation)
	}
	if p.Type == models.PropertyCommercial {
		p.Bedrooms = 0
		p.Bathrooms = 0
	}
	return nil
}

func normalizePropertyPatch(patch models.Patch) (models.Patch, error) {
	if err := requireStrings(patch, []string{"address", "description"}); err != nil {
		return nil, err
	}
	if raw, ok := patch["type"]; ok {
		str, _ := raw.(string)
		t, valid := models.ParsePropertyType(str)
		if !valid {
			return nil, fmt.Errorf("%w: invalid property type %v", domain.ErrValidation, raw)
		}
		patch["type"] = string(t)
		if t == models.PropertyCommercial {
			patch["bedrooms"] = 0
			patch["bathrooms"] = 0
		}
	}

	for _, key := range []string{"bedrooms", "bathrooms"} {
		raw, ok := patch[key]
		if !ok {
			continue
		}
		n, valid := wholeNumber(raw)
		if !valid || n < 0 {
			return nil, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrValidation, key)
		}
		patch[key] = n
	}

	if raw, ok := patch["rent_price"]; ok {
		f, valid := number(raw)
		if !valid || f < 0 {
			return nil, fmt.Errorf("%w: rent_price must be a non-negative number", domain.ErrValidation)
		}
		patch["rent_price"] = f
	}

	return patch, nil
}

func requireStrings(patch models.Patch, keys []string) error {
	for _, key := range keys {
		raw, ok := patch[key]
		if !ok {
			continue
		}
		if _, isStr := raw.(string); !isStr {
			return fmt.Errorf("%w: %s must be a string", domain.ErrValidation, key)
		}
	}
	return nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func wholeNumber(v any) (int, bool) {
	f, ok := number(v)
	if !ok || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
