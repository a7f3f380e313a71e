package availability

import (
	"time"

	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/site"
	"stationbeds/internal/domain/stay"
	"stationbeds/internal/domain/visit"
)

// Day is one entry of the availability feed.
type Day struct {
	Day       time.Time
	Pending   int
	Approved  int
	Available int
}

// Series describes how a calendar widget renders one category.
type Series struct {
	Key   string
	Label string
	Color string
	Order int
}

// FeedSeries is emitted once per day per category, in this stacking order.
var FeedSeries = []Series{
	{Key: "available", Label: "Available", Color: "#2e7d32", Order: 1},
	{Key: "pending", Label: "Pending", Color: "#f9a825", Order: 2},
	{Key: "approved", Label: "Confirmed", Color: "#1565c0", Order: 3},
}

// BuildFeed reads the counters for every night in r, treating missing rows as
// zero. Availability is floored at zero: approvals made under admin override
// may push demand past capacity.
func BuildFeed(r daterange.DateRange, counters []DailyCounter, capacity int) []Day {
	byDay := index(counters)
	days := r.Days()
	out := make([]Day, 0, len(days))
	for _, d := range days {
		c := byDay[d]
		out = append(out, Day{Day: d, Pending: c.Pending, Approved: c.Approved, Available: floor(capacity - c.Demand())})
	}
	return out
}

// FromStays derives the same feed by scanning stay intervals, partitioned by
// the state of each stay's visit. Stays of visits that hold nothing are ignored.
func FromStays(s site.Site, r daterange.DateRange, stays []*stay.Stay, stateOf func(visit.ID) visit.State, capacity int) []Day {
	pending := stay.Coverage{}
	approved := stay.Coverage{}
	for _, st := range stays {
		if st == nil || st.Site != s {
			continue
		}
		switch stateOf(st.VisitID) {
		case visit.StatePending:
			pending.Add(st)
		case visit.StateApproved:
			approved.Add(st)
		}
	}
	days := r.Days()
	out := make([]Day, 0, len(days))
	for _, d := range days {
		k := stay.SiteDay{Site: s, Day: d}
		p, a := pending[k], approved[k]
		out = append(out, Day{Day: d, Pending: p, Approved: a, Available: floor(capacity - p - a)})
	}
	return out
}

// Drift is a night where the counters disagree with the stay intervals.
type Drift struct {
	Day             time.Time
	CounterPending  int
	CounterApproved int
	StayPending     int
	StayApproved    int
}

// Reconcile compares two feeds over the same days.
func Reconcile(counters, stays []Day) []Drift {
	byDay := map[time.Time]Day{}
	for _, d := range stays {
		byDay[d.Day] = d
	}
	var out []Drift
	for _, c := range counters {
		s := byDay[c.Day]
		if c.Pending != s.Pending || c.Approved != s.Approved {
			out = append(out, Drift{Day: c.Day, CounterPending: c.Pending, CounterApproved: c.Approved, StayPending: s.Pending, StayApproved: s.Approved})
		}
	}
	return out
}
