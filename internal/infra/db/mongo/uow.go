package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"stationbeds/internal/app/uow"
	domainavailability "stationbeds/internal/domain/availability"
	"stationbeds/internal/domain/site"
	domainstay "stationbeds/internal/domain/stay"
	domainvisit "stationbeds/internal/domain/visit"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Begin starts a session with a snapshot transaction. Writers additionally
// bump the guard document of every site they touch, so two transactions
// mutating the same site conflict and the later one fails.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		db:       f.DB,
		session:  session,
		readOnly: opts.ReadOnly,
		visits:   NewVisitRepository(f.DB),
		stays:    NewStayRepository(f.DB),
		counters: NewCounterRepository(f.DB),
	}, nil
}

type Unit struct {
	db       *mongo.Database
	session  mongo.Session
	readOnly bool
	done     bool

	visits   *VisitRepository
	stays    *StayRepository
	counters *CounterRepository
}

func (u *Unit) Visits() domainvisit.Repository {
	return u.visits
}

func (u *Unit) Stays() domainstay.Repository {
	return u.stays
}

func (u *Unit) Counters() domainavailability.CounterRepository {
	return u.counters
}

var ErrReadOnly = errors.New("mongo: guard requested in read-only unit")

func (u *Unit) Guard(ctx context.Context, sites ...site.Site) error {
	if u.readOnly {
		return ErrReadOnly
	}
	col := u.db.Collection(guardsCollection)
	for _, s := range sites {
		_, err := col.UpdateByID(ctx, string(s), bson.M{"$inc": bson.M{"version": 1}}, options.Update().SetUpsert(true))
		if err != nil {
			return mapWriteError(err)
		}
	}
	return nil
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.session.EndSession(ctx)
	return mapWriteError(u.session.CommitTransaction(ctx))
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}
var _ uow.UnitOfWork = (*Unit)(nil)
