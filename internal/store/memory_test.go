package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMatches(t *testing.T) {
	when := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	doc, err := normalizeDocument(bson.M{
		"_id":       primitive.NewObjectID(),
		"status":    "completed",
		"tour_time": when,
		"count":     3,
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter bson.M
		want   bool
	}{
		{"empty", bson.M{}, true},
		{"equal", bson.M{"status": "completed"}, true},
		{"not equal", bson.M{"status": "scheduled"}, false},
		{"missing field", bson.M{"notes": "x"}, false},
		{"lt date", bson.M{"tour_time": bson.M{"$lt": when.Add(time.Second)}}, true},
		{"lt date equal", bson.M{"tour_time": bson.M{"$lt": when}}, false},
		{"lt number", bson.M{"count": bson.M{"$lt": 4}}, true},
		{"in", bson.M{"status": bson.M{"$in": []string{"cancelled", "completed"}}}, true},
		{"not in", bson.M{"status": bson.M{"$in": []string{"scheduled"}}}, false},
		{"in missing", bson.M{"other": bson.M{"$in": []string{"x"}}}, false},
		{"unsupported op", bson.M{"count": bson.M{"$gt": 1}}, false},
		{"combined", bson.M{
			"tour_time": bson.M{"$lt": when.Add(time.Hour)},
			"status":    bson.M{"$in": []string{"completed"}},
		}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matches(doc, tt.filter), tt.name)
	}
}

func TestMemoryCollection(t *testing.T) {
	conn := NewMemoryConnector()
	db, err := conn.Connect(context.Background())
	require.NoError(t, err)
	coll := db.Collection("things")
	ctx := context.Background()

	id := primitive.NewObjectID()
	require.NoError(t, coll.InsertOne(ctx, bson.M{"_id": id, "name": "a"}))
	assert.Error(t, coll.InsertOne(ctx, bson.M{"_id": id, "name": "dup"}))
	require.NoError(t, coll.InsertOne(ctx, bson.M{"name": "b"}))

	n, err := coll.CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	matched, modified, err := coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"name": "a"}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), matched)
	assert.Zero(t, modified)

	matched, _, err = coll.UpdateOne(ctx, bson.M{"_id": "fixed"}, bson.M{"name": "c"}, true)
	require.NoError(t, err)
	assert.Zero(t, matched)
	docs, err := coll.Find(ctx, bson.M{"_id": "fixed"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "c", docs[0]["name"])

	docs[0]["name"] = "mutated"
	docs, err = coll.Find(ctx, bson.M{"_id": "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "c", docs[0]["name"])

	removed, err := coll.DeleteMany(ctx, bson.M{"name": bson.M{"$in": []string{"a", "b"}}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	removed, err = coll.DeleteOne(ctx, bson.M{"name": "zzz"})
	require.NoError(t, err)
	assert.Zero(t, removed)
}
