package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	visitsCollection   = "agg_visits"
	staysCollection    = "agg_stays"
	countersCollection = "agg_day_counters"
	guardsCollection   = "site_guard"
)

type Client struct {
	DB *mongo.Database
}

func New(uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the query indexes of the aggregate collections.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		visitsCollection: {
			{Keys: bson.D{{Key: "site", Value: 1}, {Key: "state", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		staysCollection: {
			{Keys: bson.D{{Key: "visit_id", Value: 1}, {Key: "occupant_key", Value: 1}, {Key: "site", Value: 1}, {Key: "range.arrival", Value: 1}}},
			{Keys: bson.D{{Key: "site", Value: 1}, {Key: "range.arrival", Value: 1}}},
		},
		countersCollection: {
			{Keys: bson.D{{Key: "site", Value: 1}, {Key: "day", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for name, models := range indexes {
		if _, err := c.DB.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}
