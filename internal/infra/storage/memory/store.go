package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"stationbeds/internal/app/uow"
	domainavailability "stationbeds/internal/domain/availability"
	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/shared/events"
	"stationbeds/internal/domain/site"
	domainstay "stationbeds/internal/domain/stay"
	domainvisit "stationbeds/internal/domain/visit"
)

var ErrReadOnly = errors.New("memory: write attempted in read-only unit")

// Store is the committed state shared by every unit of work. Writers hold
// the store lock from Begin until Commit or Rollback, so writes are serialized
// and a check followed by a mutation can never interleave with another writer.
type Store struct {
	mu    sync.RWMutex
	state *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

type counterKey struct {
	site site.Site
	day  time.Time
}

type state struct {
	visits   map[domainvisit.ID]*domainvisit.Visit
	stays    map[domainstay.StayID]*domainstay.Stay
	counters map[counterKey]domainavailability.DailyCounter
}

func newState() *state {
	return &state{
		visits:   make(map[domainvisit.ID]*domainvisit.Visit),
		stays:    make(map[domainstay.StayID]*domainstay.Stay),
		counters: make(map[counterKey]domainavailability.DailyCounter),
	}
}

func (s *state) clone() *state {
	out := &state{
		visits:   make(map[domainvisit.ID]*domainvisit.Visit, len(s.visits)),
		stays:    make(map[domainstay.StayID]*domainstay.Stay, len(s.stays)),
		counters: make(map[counterKey]domainavailability.DailyCounter, len(s.counters)),
	}
	for id, v := range s.visits {
		out.visits[id] = cloneVisit(v)
	}
	for id, st := range s.stays {
		out.stays[id] = st.Clone()
	}
	for k, c := range s.counters {
		out.counters[k] = c
	}
	return out
}

func cloneVisit(v *domainvisit.Visit) *domainvisit.Visit {
	c := *v
	c.Attributes = v.Attributes.Copy()
	c.EventRecorder = events.EventRecorder{}
	return &c
}

func keyOf(s site.Site, day time.Time) counterKey {
	return counterKey{site: s, day: daterange.Day(day)}
}

// Factory opens units of work over one Store.
type Factory struct {
	Store *Store
}

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := f.Store
	if opts.ReadOnly {
		s.mu.RLock()
		return &Unit{store: s, work: s.state, readOnly: true}, nil
	}
	s.mu.Lock()
	return &Unit{store: s, work: s.state.clone()}, nil
}

// Unit stages writes on a private copy of the state and publishes the copy
// on commit. Read-only units read the committed state directly.
type Unit struct {
	store    *Store
	work     *state
	readOnly bool
	done     bool
}

func (u *Unit) Visits() domainvisit.Repository {
	return visitRepository{u: u}
}

func (u *Unit) Stays() domainstay.Repository {
	return stayRepository{u: u}
}

func (u *Unit) Counters() domainavailability.CounterRepository {
	return counterRepository{u: u}
}

// Guard is satisfied by the store lock the unit already holds.
func (u *Unit) Guard(ctx context.Context, sites ...site.Site) error {
	if u.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if u.readOnly {
		u.store.mu.RUnlock()
		return nil
	}
	u.store.state = u.work
	u.store.mu.Unlock()
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if u.readOnly {
		u.store.mu.RUnlock()
		return nil
	}
	u.store.mu.Unlock()
	return nil
}

func (u *Unit) writable() error {
	if u.readOnly {
		return ErrReadOnly
	}
	if u.done {
		return errors.New("memory: unit already finished")
	}
	return nil
}

var _ uow.UoWFactory = Factory{}
var _ uow.UnitOfWork = (*Unit)(nil)
