package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryConnector serves an in-process database. Data survives reconnects
// of the same connector. It backs tests and the gateway's dry-run mode.
type MemoryConnector struct {
	mu          sync.Mutex
	db          *memoryDatabase
	connectErr  error
	opErr       error
	connectCall int
}

func NewMemoryConnector() *MemoryConnector {
	c := &MemoryConnector{}
	c.db = &memoryDatabase{owner: c, collections: make(map[string]*memoryCollection)}
	return c
}

func (c *MemoryConnector) Connect(ctx context.Context) (Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectCall++
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	return c.db, nil
}

// SetConnectError makes every Connect fail with err until cleared with nil.
func (c *MemoryConnector) SetConnectError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectErr = err
}

// SetOperationError makes every collection call fail with err until cleared.
func (c *MemoryConnector) SetOperationError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opErr = err
}

// ConnectCalls reports how many times Connect ran.
func (c *MemoryConnector) ConnectCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectCall
}

func (c *MemoryConnector) operationError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opErr
}

type memoryDatabase struct {
	owner       *MemoryConnector
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

func (d *memoryDatabase) Collection(name string) Collection {
	d.mu.Lock()
	defer d.mu.Unlock()
	coll, ok := d.collections[name]
	if !ok {
		coll = &memoryCollection{owner: d.owner}
		d.collections[name] = coll
	}
	return coll
}

func (d *memoryDatabase) Disconnect(ctx context.Context) error { return nil }

type memoryCollection struct {
	owner *MemoryConnector
	mu    sync.RWMutex
	docs  []bson.M
}

func (c *memoryCollection) Find(ctx context.Context, filter bson.M) ([]bson.M, error) {
	if err := c.owner.operationError(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []bson.M
	for _, doc := range c.docs {
		if matches(doc, filter) {
			cp, err := normalizeDocument(doc)
			if err != nil {
				return nil, err
			}
			out = append(out, cp)
		}
	}
	return out, nil
}

func (c *memoryCollection) InsertOne(ctx context.Context, doc bson.M) error {
	if err := c.owner.operationError(); err != nil {
		return err
	}
	stored, err := normalizeDocument(doc)
	if err != nil {
		return err
	}
	if _, ok := stored["_id"]; !ok {
		stored["_id"] = primitive.NewObjectID()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.docs {
		if reflect.DeepEqual(existing["_id"], stored["_id"]) {
			return fmt.Errorf("duplicate key: _id %v", stored["_id"])
		}
	}
	c.docs = append(c.docs, stored)
	return nil
}

func (c *memoryCollection) UpdateOne(ctx context.Context, filter, set bson.M, upsert bool) (int64, int64, error) {
	if err := c.owner.operationError(); err != nil {
		return 0, 0, err
	}
	patch, err := normalizeDocument(set)
	if err != nil {
		return 0, 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, doc := range c.docs {
		if !matches(doc, filter) {
			continue
		}
		var modified int64
		for k, v := range patch {
			if !reflect.DeepEqual(doc[k], v) {
				modified = 1
			}
			c.docs[i][k] = v
		}
		return 1, modified, nil
	}

	if !upsert {
		return 0, 0, nil
	}
	doc := bson.M{}
	for k, cond := range filter {
		if _, isOp := cond.(bson.M); isOp {
			continue
		}
		v, err := normalizeValue(cond)
		if err != nil {
			return 0, 0, err
		}
		doc[k] = v
	}
	for k, v := range patch {
		doc[k] = v
	}
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = primitive.NewObjectID()
	}
	c.docs = append(c.docs, doc)
	return 0, 0, nil
}

func (c *memoryCollection) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	return c.delete(filter, 1)
}

func (c *memoryCollection) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	return c.delete(filter, -1)
}

func (c *memoryCollection) delete(filter bson.M, limit int) (int64, error) {
	if err := c.owner.operationError(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int64
	kept := c.docs[:0]
	for _, doc := range c.docs {
		if (limit < 0 || removed < int64(limit)) && matches(doc, filter) {
			removed++
			continue
		}
		kept = append(kept, doc)
	}
	c.docs = kept
	return removed, nil
}

func (c *memoryCollection) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	if err := c.owner.operationError(); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var n int64
	for _, doc := range c.docs {
		if matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

// matches evaluates the filter subset the store issues: field equality,
// {$lt: v} and {$in: [...]}. A missing field never matches.
func matches(doc, filter bson.M) bool {
	for key, cond := range filter {
		val, present := doc[key]
		if !present {
			return false
		}

		ops, isOp := cond.(bson.M)
		if !isOp {
			want, err := normalizeValue(cond)
			if err != nil || !reflect.DeepEqual(val, want) {
				return false
			}
			continue
		}

		for op, arg := range ops {
			want, err := normalizeValue(arg)
			if err != nil {
				return false
			}
			switch op {
			case "$lt":
				cmp, ok := compare(val, want)
				if !ok || cmp >= 0 {
					return false
				}
			case "$in":
				list, ok := want.(primitive.A)
				if !ok || !contains(list, val) {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}

func contains(list primitive.A, val any) bool {
	for _, item := range list {
		if reflect.DeepEqual(item, val) {
			return true
		}
	}
	return false
}

func compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case primitive.DateTime:
		bv, ok := b.(primitive.DateTime)
		if !ok {
			return 0, false
		}
		return cmpOrdered(av, bv), true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return cmpOrdered(av, bv), true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0, false
	}
	return cmpOrdered(af, bf), true
}

func cmpOrdered[T int64 | float64 | string | primitive.DateTime](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// normalizeDocument copies doc through BSON so stored values have the same
// types the driver would hand back.
func normalizeDocument(doc bson.M) (bson.M, error) {
	return toDocument(doc)
}

func normalizeValue(v any) (any, error) {
	doc, err := toDocument(bson.M{"v": v})
	if err != nil {
		return nil, err
	}
	return doc["v"], nil
}
