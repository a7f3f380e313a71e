package stay

import (
	"sort"
	"time"

	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/site"
	"stationbeds/internal/domain/visit"
)

// IDGenerator mints identifiers for newly inserted stays.
type IDGenerator func() StayID

type BookRequest struct {
	VisitID    visit.ID
	Occupant   Occupant
	Site       site.Site
	Range      daterange.DateRange
	Attributes site.Attributes
}

func (r BookRequest) Key() Key {
	return Key{VisitID: r.VisitID, Occupant: r.Occupant.Key(), Site: r.Site}
}

// BookPlan is the store mutation that books a range: every stay in Remove is
// deleted and Result is inserted.
type BookPlan struct {
	Remove []*Stay
	Result *Stay
}

func (p BookPlan) Merged() bool { return len(p.Remove) > 0 }

// PlanBook merges the request with every stored stay of the same key that
// touches it. Touching uses the inclusive boundary test so back-to-back stays
// collapse into one. The newest request's attributes win.
func PlanBook(stored []*Stay, req BookRequest, newID IDGenerator, now time.Time) BookPlan {
	key := req.Key()
	merged := req.Range
	var remove []*Stay
	for _, st := range stored {
		if st == nil || st.Key() != key || !st.Range.Touches(req.Range) {
			continue
		}
		merged = merged.Span(st.Range)
		remove = append(remove, st)
	}
	createdAt := now.UTC()
	for _, st := range remove {
		if !st.CreatedAt.IsZero() && st.CreatedAt.Before(createdAt) {
			createdAt = st.CreatedAt
		}
	}
	return BookPlan{
		Remove: remove,
		Result: &Stay{
			ID:         newID(),
			VisitID:    req.VisitID,
			Occupant:   req.Occupant,
			Site:       req.Site,
			Range:      merged,
			Attributes: req.Attributes.Copy(),
			CreatedAt:  createdAt,
			UpdatedAt:  now.UTC(),
		},
	}
}

type ChangeKind string

const (
	ChangeDeleted       ChangeKind = "deleted"
	ChangeTruncatedTail ChangeKind = "truncated_tail"
	ChangeTruncatedHead ChangeKind = "truncated_head"
	ChangeSplit         ChangeKind = "split"
	ChangeUnchanged     ChangeKind = "unchanged"
)

// Change describes what a release does to one stored stay. After is empty for
// deletions, holds the shrunk stay for truncations, and both halves for a split.
// The first element of After keeps the original id.
type Change struct {
	Kind   ChangeKind
	Before *Stay
	After  []*Stay
}

// Classify decides how a release window affects one stay.
func Classify(st daterange.DateRange, window daterange.DateRange) ChangeKind {
	rs, re := window.Arrival, window.Departure
	a, d := st.Arrival, st.Departure
	switch {
	case !rs.After(a) && !d.After(re):
		// window covers the whole stay
		return ChangeDeleted
	case a.Before(rs) && re.Before(d):
		return ChangeSplit
	case a.Before(rs) && rs.Before(d) && !re.Before(d):
		return ChangeTruncatedTail
	case !rs.After(a) && a.Before(re) && re.Before(d):
		return ChangeTruncatedHead
	default:
		return ChangeUnchanged
	}
}

// PlanRelease removes the window from every stored stay of key that touches
// it. Stays that only meet the window are left alone. No match yields no changes.
func PlanRelease(stored []*Stay, key Key, window daterange.DateRange, newID IDGenerator, now time.Time) []Change {
	now = now.UTC()
	var changes []Change
	for _, st := range sortedByArrival(stored) {
		if st.Key() != key || !st.Range.Touches(window) {
			continue
		}
		kind := Classify(st.Range, window)
		switch kind {
		case ChangeDeleted:
			changes = append(changes, Change{Kind: kind, Before: st})
		case ChangeTruncatedTail:
			after := st.Clone()
			after.Range.Departure = window.Arrival
			after.UpdatedAt = now
			changes = append(changes, Change{Kind: kind, Before: st, After: []*Stay{after}})
		case ChangeTruncatedHead:
			after := st.Clone()
			after.Range.Arrival = window.Departure
			after.UpdatedAt = now
			changes = append(changes, Change{Kind: kind, Before: st, After: []*Stay{after}})
		case ChangeSplit:
			head := st.Clone()
			head.Range.Departure = window.Arrival
			head.UpdatedAt = now
			tail := st.Clone()
			tail.ID = newID()
			tail.Range.Arrival = window.Departure
			tail.CreatedAt = now
			tail.UpdatedAt = now
			tail.Version = 0
			changes = append(changes, Change{Kind: kind, Before: st, After: []*Stay{head, tail}})
		}
	}
	return changes
}

func sortedByArrival(stays []*Stay) []*Stay {
	out := make([]*Stay, 0, len(stays))
	for _, st := range stays {
		if st != nil {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Range.Arrival.Before(out[j].Range.Arrival) })
	return out
}
