// Package mongocache keeps cache entries as documents of one MongoDB
// collection, one document per entry keyed by the entry ID:
//
//	{_id, dataset, flag, frame, written_at}
//
// Administration filters on the dataset and flag fields, which share an
// index.
package mongocache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	datasets "github.com/goliatone/go-datasets"
	"github.com/goliatone/go-datasets/flags"
	"github.com/goliatone/go-datasets/frame"
	"github.com/goliatone/go-datasets/pkg/cache"
)

const (
	DefaultDatabase   = "datasets"
	DefaultCollection = "dataset_cache"
)

type document struct {
	ID        string    `bson:"_id"`
	Dataset   string    `bson:"dataset"`
	Flag      string    `bson:"flag"`
	Frame     []byte    `bson:"frame"`
	WrittenAt time.Time `bson:"written_at"`
}

// Cache is a cache.Backend over a mongo collection.
type Cache struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ cache.Backend = (*Cache)(nil)

// New wraps coll and makes sure the dataset/flag index exists. The caller
// keeps ownership of the client.
func New(ctx context.Context, coll *mongo.Collection) (*Cache, error) {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "dataset", Value: 1}, {Key: "flag", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("mongocache: create index: %w", err)
	}
	return &Cache{coll: coll, now: time.Now}, nil
}

// Dial connects to uri, pings the server and opens database.collection.
// Empty names fall back to DefaultDatabase and DefaultCollection.
func Dial(ctx context.Context, uri, database, collection string) (*Cache, *mongo.Client, error) {
	if uri == "" {
		return nil, nil, errors.New("mongocache: uri must not be empty")
	}
	if database == "" {
		database = DefaultDatabase
	}
	if collection == "" {
		collection = DefaultCollection
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("mongocache: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("mongocache: ping: %w", err)
	}
	c, err := New(ctx, client.Database(database).Collection(collection))
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}
	return c, client, nil
}

func (c *Cache) IsFresh(ctx context.Context, key datasets.CacheKey) (bool, error) {
	n, err := c.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: key.ID()}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongocache: count: %w", err)
	}
	return n > 0, nil
}

func (c *Cache) Read(ctx context.Context, key datasets.CacheKey) (*frame.Frame, error) {
	var doc document
	err := c.coll.FindOne(ctx, bson.D{{Key: "_id", Value: key.ID()}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, cache.Miss(key)
	}
	if err != nil {
		return nil, fmt.Errorf("mongocache: read: %w", err)
	}
	return frame.Decode(doc.Frame)
}

func (c *Cache) Write(ctx context.Context, key datasets.CacheKey, value *frame.Frame) error {
	raw, err := value.MarshalBinary()
	if err != nil {
		return err
	}
	doc := document{
		ID:        key.ID(),
		Dataset:   key.Dataset,
		Flag:      key.Flag.String(),
		Frame:     raw,
		WrittenAt: c.now().UTC(),
	}
	_, err = c.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: doc.ID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongocache: write: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, dataset string, flag flags.Flag) (int, error) {
	res, err := c.coll.DeleteMany(ctx, filter(dataset, flag))
	if err != nil {
		return 0, fmt.Errorf("mongocache: delete: %w", err)
	}
	return int(res.DeletedCount), nil
}

func (c *Cache) ListKeys(ctx context.Context, dataset string) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.D{{Key: "_id", Value: 1}}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := c.coll.Find(ctx, filter(dataset, ""), opts)
	if err != nil {
		return nil, fmt.Errorf("mongocache: list: %w", err)
	}
	defer cur.Close(ctx)

	ids := []string{}
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongocache: list: %w", err)
		}
		ids = append(ids, doc.ID)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongocache: list: %w", err)
	}
	return ids, nil
}

// filter matches dataset and flag exactly; empty values match anything.
func filter(dataset string, flag flags.Flag) bson.D {
	f := bson.D{}
	if dataset != "" {
		f = append(f, bson.E{Key: "dataset", Value: dataset})
	}
	if flag != "" {
		f = append(f, bson.E{Key: "flag", Value: flag.String()})
	}
	return f
}
