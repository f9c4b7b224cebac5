package store

import (
	"context"
	"fmt"

	"toursync/internal/models"

	"go.mongodb.org/mongo-driver/bson"
)

// settingsKey is the _id of the single settings document.
const settingsKey = "app"

type settingsDocument struct {
	ID              string `bson:"_id"`
	models.Settings `bson:",inline"`
}

// GetSettings returns the stored settings, or the defaults when none were saved.
func (s *Store) GetSettings(ctx context.Context) (models.Settings, error) {
	coll, err := s.collection(ctx, models.CollectionSettings)
	if err != nil {
		return models.Settings{}, err
	}

	docs, err := coll.Find(ctx, bson.M{"_id": settingsKey})
	if err != nil {
		return models.Settings{}, s.fail("get settings", err)
	}
	if len(docs) == 0 {
		return models.DefaultSettings(), nil
	}

	d := settingsDocument{Settings: models.DefaultSettings()}
	if err := fromDocument(docs[0], &d); err != nil {
		return models.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return d.Settings, nil
}

func (s *Store) UpdateSettings(ctx context.Context, settings models.Settings) error {
	coll, err := s.collection(ctx, models.CollectionSettings)
	if err != nil {
		return err
	}

	set, err := toDocument(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	set["updated_at"] = s.now().UTC()

	if _, _, err := coll.UpdateOne(ctx, bson.M{"_id": settingsKey}, set, true); err != nil {
		return s.fail("update settings", err)
	}
	return nil
}
