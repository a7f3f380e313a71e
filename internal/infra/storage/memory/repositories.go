package memory

import (
	"context"
	"fmt"
	"sort"

	domainavailability "stationbeds/internal/domain/availability"
	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/shared/failure"
	"stationbeds/internal/domain/site"
	domainstay "stationbeds/internal/domain/stay"
	domainvisit "stationbeds/internal/domain/visit"
)

// Repositories hand out copies; a change becomes visible to the unit only
// through Save. Save rejects stale versions like the mongo repositories do.

type visitRepository struct {
	u *Unit
}

func (r visitRepository) ByID(ctx context.Context, id domainvisit.ID) (*domainvisit.Visit, error) {
	v, ok := r.u.work.visits[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainvisit.ErrVisitNotFound, id)
	}
	return cloneVisit(v), nil
}

func (r visitRepository) Save(ctx context.Context, v *domainvisit.Visit) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if stored, ok := r.u.work.visits[v.ID]; ok && stored.Version != v.Version {
		return fmt.Errorf("visit %s: %w", v.ID, failure.ErrConcurrencyConflict)
	}
	v.Version++
	r.u.work.visits[v.ID] = cloneVisit(v)
	return nil
}

func (r visitRepository) List(ctx context.Context, filter domainvisit.ListFilter) ([]*domainvisit.Visit, error) {
	out := make([]*domainvisit.Visit, 0)
	for _, v := range r.u.work.visits {
		if filter.Site != "" && v.Site != filter.Site {
			continue
		}
		if filter.State != "" && v.State != filter.State {
			continue
		}
		out = append(out, cloneVisit(v))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type stayRepository struct {
	u *Unit
}

func (r stayRepository) ByID(ctx context.Context, id domainstay.StayID) (*domainstay.Stay, error) {
	st, ok := r.u.work.stays[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainstay.ErrStayNotFound, id)
	}
	return st.Clone(), nil
}

func (r stayRepository) Touching(ctx context.Context, key domainstay.Key, dr daterange.DateRange) ([]*domainstay.Stay, error) {
	return r.collect(func(st *domainstay.Stay) bool {
		return st.Key() == key && st.Range.Touches(dr)
	}), nil
}

func (r stayRepository) ByVisit(ctx context.Context, visitID domainvisit.ID) ([]*domainstay.Stay, error) {
	return r.collect(func(st *domainstay.Stay) bool {
		return st.VisitID == visitID
	}), nil
}

func (r stayRepository) BySite(ctx context.Context, s site.Site, dr daterange.DateRange) ([]*domainstay.Stay, error) {
	return r.collect(func(st *domainstay.Stay) bool {
		return st.Site == s && st.Range.Overlaps(dr)
	}), nil
}

func (r stayRepository) collect(match func(*domainstay.Stay) bool) []*domainstay.Stay {
	out := make([]*domainstay.Stay, 0)
	for _, st := range r.u.work.stays {
		if match(st) {
			out = append(out, st.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Range.Arrival.Equal(out[j].Range.Arrival) {
			return out[i].Range.Arrival.Before(out[j].Range.Arrival)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r stayRepository) Save(ctx context.Context, st *domainstay.Stay) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if stored, ok := r.u.work.stays[st.ID]; ok && stored.Version != st.Version {
		return fmt.Errorf("stay %s: %w", st.ID, failure.ErrConcurrencyConflict)
	}
	st.Version++
	r.u.work.stays[st.ID] = st.Clone()
	return nil
}

func (r stayRepository) Delete(ctx context.Context, id domainstay.StayID) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, ok := r.u.work.stays[id]; !ok {
		return fmt.Errorf("%w: %s", domainstay.ErrStayNotFound, id)
	}
	delete(r.u.work.stays, id)
	return nil
}

type counterRepository struct {
	u *Unit
}

func (r counterRepository) Range(ctx context.Context, s site.Site, dr daterange.DateRange) ([]domainavailability.DailyCounter, error) {
	out := make([]domainavailability.DailyCounter, 0)
	for _, d := range dr.Days() {
		if c, ok := r.u.work.counters[keyOf(s, d)]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r counterRepository) Save(ctx context.Context, c *domainavailability.DailyCounter) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	k := keyOf(c.Site, c.Day)
	if stored, ok := r.u.work.counters[k]; ok && stored.Version != c.Version {
		return fmt.Errorf("counter %s %s: %w", c.Site, daterange.FormatDay(c.Day), failure.ErrConcurrencyConflict)
	}
	if c.Pending < 0 || c.Approved < 0 {
		return domainavailability.ErrNegativeCount
	}
	c.Version++
	c.Day = k.day
	r.u.work.counters[k] = *c
	return nil
}

var (
	_ domainvisit.Repository               = visitRepository{}
	_ domainstay.Repository                = stayRepository{}
	_ domainavailability.CounterRepository = counterRepository{}
)
