package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"toursync/internal/domain"
	"toursync/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// MongoConnector dials a MongoDB deployment. The URI stays inside the store.
type MongoConnector struct {
	URI      string
	Database string
	Timeout  time.Duration
}

func (c MongoConnector) Connect(ctx context.Context) (Database, error) {
	if c.URI == "" {
		return nil, errors.New("mongodb uri is not configured")
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = models.DefaultConnectTimeout
	}
	name := c.Database
	if name == "" {
		name = models.DefaultDatabaseName
	}

	opts := options.Client().
		ApplyURI(c.URI).
		SetConnectTimeout(timeout).
		SetSocketTimeout(timeout).
		SetServerSelectionTimeout(timeout).
		SetRetryWrites(true).
		SetWriteConcern(writeconcern.Majority())

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &mongoDatabase{client: client, db: client.Database(name)}, nil
}

type mongoDatabase struct {
	client *mongo.Client
	db     *mongo.Database
}

func (d *mongoDatabase) Collection(name string) Collection {
	return &mongoCollection{coll: d.db.Collection(name)}
}

func (d *mongoDatabase) Disconnect(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) Find(ctx context.Context, filter bson.M) ([]bson.M, error) {
	cur, err := c.coll.Find(ctx, filter)
	if err != nil {
		return nil, classify(err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify(err)
	}
	return docs, nil
}

func (c *mongoCollection) InsertOne(ctx context.Context, doc bson.M) error {
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		return classify(err)
	}
	return nil
}

func (c *mongoCollection) UpdateOne(ctx context.Context, filter, set bson.M, upsert bool) (int64, int64, error) {
	res, err := c.coll.UpdateOne(ctx, filter, bson.M{"$set": set}, options.Update().SetUpsert(upsert))
	if err != nil {
		return 0, 0, classify(err)
	}
	return res.MatchedCount, res.ModifiedCount, nil
}

func (c *mongoCollection) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, classify(err)
	}
	return res.DeletedCount, nil
}

func (c *mongoCollection) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, classify(err)
	}
	return res.DeletedCount, nil
}

func (c *mongoCollection) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// classify marks driver errors that mean the connection is gone.
func classify(err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	return err
}
