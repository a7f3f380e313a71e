// Package inbox deduplicates event deliveries per consumer group in MongoDB.
package inbox

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const collection = "notification_inbox"

type Store struct {
	col      *mongo.Collection
	consumer string
}

func NewStore(db *mongo.Database, consumer string) *Store {
	return &Store{col: db.Collection(collection), consumer: consumer}
}

func (s *Store) id(eventID string) string {
	return s.consumer + "/" + eventID
}

// Seen claims eventID for this consumer. It reports true when an earlier
// delivery already claimed it.
func (s *Store) Seen(ctx context.Context, eventID string) (bool, error) {
	_, err := s.col.InsertOne(ctx, bson.M{
		"_id":         s.id(eventID),
		"consumer":    s.consumer,
		"event_id":    eventID,
		"received_at": time.Now().UTC(),
	})
	switch {
	case err == nil:
		return false, nil
	case mongo.IsDuplicateKeyError(err):
		return true, nil
	default:
		return false, fmt.Errorf("inbox: claim %s: %w", eventID, err)
	}
}

// Forget releases the claim so a redelivery is handled again.
func (s *Store) Forget(ctx context.Context, eventID string) error {
	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": s.id(eventID)}); err != nil {
		return fmt.Errorf("inbox: forget %s: %w", eventID, err)
	}
	return nil
}
