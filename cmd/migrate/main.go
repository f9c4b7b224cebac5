// Command migrate rewrites legacy tour documents so tour_time is a BSON
// date. Legacy tours carry either a string tour_time or separate date and
// time fields, which are read in the reports timezone.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"toursync/internal/config"
	"toursync/internal/models"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var errNoLegacyTime = errors.New("no legacy time fields")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		configPath = flag.String("config", config.Path(), "path to config.yaml")
		dryRun     = flag.Bool("dry-run", false, "report changes without writing")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Mongo.InMemory {
		return fmt.Errorf("mongo.in_memory is set, nothing to migrate")
	}
	loc, err := cfg.Reports.Location()
	if err != nil {
		return fmt.Errorf("report timezone: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI).SetServerSelectionTimeout(cfg.Mongo.ConnectTimeout))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	tours := client.Database(cfg.Mongo.Database).Collection(models.CollectionTours)
	cur, err := tours.Find(ctx, legacyFilter())
	if err != nil {
		return fmt.Errorf("find legacy tours: %w", err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return fmt.Errorf("read legacy tours: %w", err)
	}

	converted, skipped := 0, 0
	for _, doc := range docs {
		tourTime, err := legacyTourTime(doc, loc)
		if err != nil {
			logger.Warn().Err(err).Interface("id", doc["_id"]).Msg("skipping tour")
			skipped++
			continue
		}
		if *dryRun {
			logger.Info().Interface("id", doc["_id"]).Time("tour_time", tourTime).Msg("would convert")
			converted++
			continue
		}
		update := bson.M{
			"$set":   bson.M{"tour_time": tourTime},
			"$unset": bson.M{"date": "", "time": ""},
		}
		if _, err := tours.UpdateOne(ctx, bson.M{"_id": doc["_id"]}, update); err != nil {
			return fmt.Errorf("update %v: %w", doc["_id"], err)
		}
		converted++
	}

	fmt.Printf("done: converted=%d skipped=%d\n", converted, skipped)
	return nil
}

// legacyFilter matches tours whose tour_time is a string or missing next to
// a legacy date field.
func legacyFilter() bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"tour_time": bson.M{"$type": "string"}},
		bson.M{"tour_time": bson.M{"$exists": false}, "date": bson.M{"$exists": true}},
	}}
}

// legacyTourTime derives the canonical instant of a legacy tour. A string
// tour_time must be RFC 3339; a date ("2006-01-02") and time ("15:04") pair
// is read in loc.
func legacyTourTime(doc bson.M, loc *time.Location) (time.Time, error) {
	if raw, ok := doc["tour_time"].(string); ok {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse tour_time %q: %w", raw, err)
		}
		return t.UTC(), nil
	}

	date, _ := doc["date"].(string)
	clock, _ := doc["time"].(string)
	if date == "" || clock == "" {
		return time.Time{}, errNoLegacyTime
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q time %q: %w", date, clock, err)
	}
	return t.UTC(), nil
}
