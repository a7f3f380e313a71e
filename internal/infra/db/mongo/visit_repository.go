package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stationbeds/internal/domain/site"
	domainvisit "stationbeds/internal/domain/visit"
)

type VisitRepository struct {
	col *mongo.Collection
}

func NewVisitRepository(db *mongo.Database) *VisitRepository {
	return &VisitRepository{col: db.Collection(visitsCollection)}
}

func (r *VisitRepository) ByID(ctx context.Context, id domainvisit.ID) (*domainvisit.Visit, error) {
	var doc visitDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", domainvisit.ErrVisitNotFound, id)
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *VisitRepository) Save(ctx context.Context, v *domainvisit.Visit) error {
	doc := newVisitDocument(v)
	filter := bson.M{"_id": doc.ID, "version": v.Version}
	doc.Version = v.Version + 1
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		return mapWriteError(err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	v.Version = doc.Version
	return nil
}

func (r *VisitRepository) List(ctx context.Context, filter domainvisit.ListFilter) ([]*domainvisit.Visit, error) {
	q := bson.M{}
	if filter.Site != "" {
		q["site"] = string(filter.Site)
	}
	if filter.State != "" {
		q["state"] = string(filter.State)
	}
	cur, err := r.col.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []visitDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainvisit.Visit, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

type visitDocument struct {
	ID         string          `bson:"_id"`
	Site       string          `bson:"site"`
	Requester  string          `bson:"requester"`
	Window     rangeDocument   `bson:"window"`
	Beds       int             `bson:"beds"`
	Attributes site.Attributes `bson:"attributes"`
	State      string          `bson:"state"`
	Notes      string          `bson:"notes"`
	DecidedBy  string          `bson:"decided_by"`
	DecidedAt  int64           `bson:"decided_at"`
	CreatedAt  int64           `bson:"created_at"`
	UpdatedAt  int64           `bson:"updated_at"`
	Version    int64           `bson:"version"`
}

func newVisitDocument(v *domainvisit.Visit) visitDocument {
	return visitDocument{
		ID:         string(v.ID),
		Site:       string(v.Site),
		Requester:  v.Requester,
		Window:     newRangeDocument(v.Window),
		Beds:       v.Beds,
		Attributes: v.Attributes,
		State:      string(v.State),
		Notes:      v.Notes,
		DecidedBy:  v.DecidedBy,
		DecidedAt:  timeToTimestamp(v.DecidedAt),
		CreatedAt:  timeToTimestamp(v.CreatedAt),
		UpdatedAt:  timeToTimestamp(v.UpdatedAt),
		Version:    v.Version,
	}
}

func (d visitDocument) toAggregate() *domainvisit.Visit {
	return &domainvisit.Visit{
		ID:         domainvisit.ID(d.ID),
		Site:       site.Site(d.Site),
		Requester:  d.Requester,
		Window:     d.Window.toRange(),
		Beds:       d.Beds,
		Attributes: d.Attributes,
		State:      domainvisit.State(d.State),
		Notes:      d.Notes,
		DecidedBy:  d.DecidedBy,
		DecidedAt:  optionalTime(d.DecidedAt),
		CreatedAt:  optionalTime(d.CreatedAt),
		UpdatedAt:  optionalTime(d.UpdatedAt),
		Version:    d.Version,
	}
}

var _ domainvisit.Repository = (*VisitRepository)(nil)
