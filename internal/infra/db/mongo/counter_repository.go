package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainavailability "stationbeds/internal/domain/availability"
	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/site"
)

// CounterRepository stores one document per site and night, keyed
// "<site>|<YYYY-MM-DD>".
type CounterRepository struct {
	col *mongo.Collection
}

func NewCounterRepository(db *mongo.Database) *CounterRepository {
	return &CounterRepository{col: db.Collection(countersCollection)}
}

func (r *CounterRepository) Range(ctx context.Context, s site.Site, dr daterange.DateRange) ([]domainavailability.DailyCounter, error) {
	filter := bson.M{
		"site": string(s),
		"day":  bson.M{"$gte": dr.Arrival.UnixMilli(), "$lt": dr.Departure.UnixMilli()},
	}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "day", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []counterDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domainavailability.DailyCounter, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toCounter())
	}
	return out, nil
}

func (r *CounterRepository) Save(ctx context.Context, c *domainavailability.DailyCounter) error {
	day := daterange.Day(c.Day)
	doc := counterDocument{
		ID:       counterID(c.Site, day),
		Site:     string(c.Site),
		Day:      day.UnixMilli(),
		DayKey:   daterange.FormatDay(day),
		Pending:  c.Pending,
		Approved: c.Approved,
		Version:  c.Version + 1,
	}
	filter := bson.M{"_id": doc.ID, "version": c.Version}
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		return mapWriteError(err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	c.Version = doc.Version
	return nil
}

func counterID(s site.Site, day time.Time) string {
	return string(s) + "|" + daterange.FormatDay(day)
}

type counterDocument struct {
	ID       string `bson:"_id"`
	Site     string `bson:"site"`
	Day      int64  `bson:"day"`
	DayKey   string `bson:"day_key"`
	Pending  int    `bson:"pending"`
	Approved int    `bson:"approved"`
	Version  int64  `bson:"version"`
}

func (d counterDocument) toCounter() domainavailability.DailyCounter {
	return domainavailability.DailyCounter{
		Site:     site.Site(d.Site),
		Day:      daterange.Day(timestampToTime(d.Day)),
		Pending:  d.Pending,
		Approved: d.Approved,
		Version:  d.Version,
	}
}

var _ domainavailability.CounterRepository = (*CounterRepository)(nil)
