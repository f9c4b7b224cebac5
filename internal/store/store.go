// Package store is the record store: the only writer of tours, properties and settings.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"toursync/internal/domain"
	"toursync/internal/models"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
)

// Connector opens a database handle. It is called at most once per
// successful connection; a failed attempt leaves the store disconnected.
type Connector interface {
	Connect(ctx context.Context) (Database, error)
}

type Database interface {
	Collection(name string) Collection
	Disconnect(ctx context.Context) error
}

// Collection is the document subset the store relies on. Filters use the
// MongoDB query language: equality, $lt and $in.
type Collection interface {
	Find(ctx context.Context, filter bson.M) ([]bson.M, error)
	InsertOne(ctx context.Context, doc bson.M) error
	UpdateOne(ctx context.Context, filter, set bson.M, upsert bool) (matched, modified int64, err error)
	DeleteOne(ctx context.Context, filter bson.M) (int64, error)
	DeleteMany(ctx context.Context, filter bson.M) (int64, error)
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
}

var _ domain.RecordStore = (*Store)(nil)

type Store struct {
	connector Connector
	logger    zerolog.Logger
	now       func() time.Time

	mu        sync.Mutex
	connected bool
	db        Database
}

func New(connector Connector, logger *zerolog.Logger) *Store {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "store").Logger()
	}
	return &Store{
		connector: connector,
		logger:    base,
		now:       time.Now,
	}
}

// SetClock replaces the time source used for timestamps and retention.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Connect establishes the database connection. It returns immediately when
// already connected.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}

	db, err := s.connector.Connect(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("database connection failed")
		return fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}

	s.db = db
	s.connected = true
	s.logger.Info().Msg("connected to database")
	return nil
}

func (s *Store) ensureConnected(ctx context.Context) error {
	if s.Connected() {
		return nil
	}
	return s.Connect(ctx)
}

func (s *Store) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Close disconnects. A later operation connects again.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}
	s.connected = false
	db := s.db
	s.db = nil
	return db.Disconnect(ctx)
}

func (s *Store) collection(ctx context.Context, name string) (Collection, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("%w: store closed", domain.ErrConnection)
	}
	return s.db.Collection(name), nil
}

// fail inspects an operation error; connection-class errors drop the
// connection so the next call dials again.
func (s *Store) fail(op string, err error) error {
	if errors.Is(err, domain.ErrConnection) {
		s.markDisconnected()
	}
	s.logger.Error().Err(err).Str("op", op).Msg("store operation failed")
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Store) markDisconnected() {
	s.mu.Lock()
	db := s.db
	wasConnected := s.connected
	s.connected = false
	s.db = nil
	s.mu.Unlock()

	if wasConnected && db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Disconnect(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("disconnect after connection failure")
		}
	}
}

func toDocument(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func fromDocument(doc bson.M, out any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}

// decodeRecord decodes the declared keys of doc that fit T into out. Other
// keys, and declared keys holding a value of another type, come back as
// extras so the record is listed whole.
func decodeRecord[T any](doc bson.M, out *T, known models.FieldSet) models.Fields {
	var extra models.Fields
	keep := func(k string, v any) {
		if extra == nil {
			extra = models.Fields{}
		}
		extra[k] = v
	}

	typed := bson.M{}
	for k, v := range doc {
		switch {
		case k == "_id":
		case known.Has(k):
			typed[k] = v
		default:
			keep(k, v)
		}
	}
	if err := fromDocument(typed, out); err == nil {
		return extra
	}

	for k, v := range typed {
		var probe T
		if err := fromDocument(bson.M{k: v}, &probe); err != nil {
			delete(typed, k)
			keep(k, v)
		}
	}
	*out = *new(T)
	if err := fromDocument(typed, out); err != nil {
		*out = *new(T)
		for k, v := range typed {
			keep(k, v)
		}
	}
	return extra
}

// extraDocument returns the extras a new record may store. Store-owned keys
// are dropped; a declared key means its value had the wrong type.
func extraDocument(extra models.Fields, known models.FieldSet) (bson.M, error) {
	doc := bson.M{}
	for k, v := range extra {
		if isProtected(k) {
			continue
		}
		if known.Has(k) {
			return nil, fmt.Errorf("%w: %s has the wrong type", domain.ErrValidation, k)
		}
		if k == "" {
			return nil, fmt.Errorf("%w: empty field name", domain.ErrValidation)
		}
		doc[k] = v
	}
	return doc, nil
}
