package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/site"
	domainstay "stationbeds/internal/domain/stay"
	domainvisit "stationbeds/internal/domain/visit"
)

type StayRepository struct {
	col *mongo.Collection
}

func NewStayRepository(db *mongo.Database) *StayRepository {
	return &StayRepository{col: db.Collection(staysCollection)}
}

func (r *StayRepository) ByID(ctx context.Context, id domainstay.StayID) (*domainstay.Stay, error) {
	var doc stayDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", domainstay.ErrStayNotFound, id)
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Touching uses the inclusive boundary test: a stored stay ending on the
// requested arrival, or starting on its departure, is returned.
func (r *StayRepository) Touching(ctx context.Context, key domainstay.Key, dr daterange.DateRange) ([]*domainstay.Stay, error) {
	return r.find(ctx, bson.M{
		"visit_id":        string(key.VisitID),
		"occupant_key":    key.Occupant,
		"site":            string(key.Site),
		"range.arrival":   bson.M{"$lte": dr.Departure.UnixMilli()},
		"range.departure": bson.M{"$gte": dr.Arrival.UnixMilli()},
	})
}

func (r *StayRepository) ByVisit(ctx context.Context, visitID domainvisit.ID) ([]*domainstay.Stay, error) {
	return r.find(ctx, bson.M{"visit_id": string(visitID)})
}

func (r *StayRepository) BySite(ctx context.Context, s site.Site, dr daterange.DateRange) ([]*domainstay.Stay, error) {
	return r.find(ctx, bson.M{
		"site":            string(s),
		"range.arrival":   bson.M{"$lt": dr.Departure.UnixMilli()},
		"range.departure": bson.M{"$gt": dr.Arrival.UnixMilli()},
	})
}

func (r *StayRepository) find(ctx context.Context, filter bson.M) ([]*domainstay.Stay, error) {
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "range.arrival", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []stayDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainstay.Stay, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

func (r *StayRepository) Save(ctx context.Context, st *domainstay.Stay) error {
	doc := newStayDocument(st)
	filter := bson.M{"_id": doc.ID, "version": st.Version}
	doc.Version = st.Version + 1
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		return mapWriteError(err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	st.Version = doc.Version
	return nil
}

func (r *StayRepository) Delete(ctx context.Context, id domainstay.StayID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return mapWriteError(err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", domainstay.ErrStayNotFound, id)
	}
	return nil
}

type stayDocument struct {
	ID          string              `bson:"_id"`
	VisitID     string              `bson:"visit_id"`
	Occupant    domainstay.Occupant `bson:"occupant"`
	OccupantKey string              `bson:"occupant_key"`
	Site        string              `bson:"site"`
	Range       rangeDocument       `bson:"range"`
	Attributes  site.Attributes     `bson:"attributes"`
	CreatedAt   int64               `bson:"created_at"`
	UpdatedAt   int64               `bson:"updated_at"`
	Version     int64               `bson:"version"`
}

func newStayDocument(st *domainstay.Stay) stayDocument {
	return stayDocument{
		ID:          string(st.ID),
		VisitID:     string(st.VisitID),
		Occupant:    st.Occupant,
		OccupantKey: st.Occupant.Key(),
		Site:        string(st.Site),
		Range:       newRangeDocument(st.Range),
		Attributes:  st.Attributes,
		CreatedAt:   timeToTimestamp(st.CreatedAt),
		UpdatedAt:   timeToTimestamp(st.UpdatedAt),
		Version:     st.Version,
	}
}

func (d stayDocument) toAggregate() *domainstay.Stay {
	return &domainstay.Stay{
		ID:         domainstay.StayID(d.ID),
		VisitID:    domainvisit.ID(d.VisitID),
		Occupant:   d.Occupant,
		Site:       site.Site(d.Site),
		Range:      d.Range.toRange(),
		Attributes: d.Attributes,
		CreatedAt:  optionalTime(d.CreatedAt),
		UpdatedAt:  optionalTime(d.UpdatedAt),
		Version:    d.Version,
	}
}

var _ domainstay.Repository = (*StayRepository)(nil)
