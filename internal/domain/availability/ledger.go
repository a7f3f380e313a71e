package availability

import (
	"context"
	"sort"
	"time"

	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/site"
	"stationbeds/internal/domain/stay"
	"stationbeds/internal/domain/visit"
)

// DeltasFor turns a coverage change of a visit's stays into counter deltas
// for the state the visit holds. States that hold no capacity yield nothing.
func DeltasFor(c stay.Coverage, st visit.State) []Delta {
	if !st.Holds() {
		return nil
	}
	out := make([]Delta, 0, len(c))
	for _, k := range c.Keys() {
		n := c[k]
		d := Delta{Site: k.Site, Day: k.Day}
		if st == visit.StateApproved {
			d.Approved = n
		} else {
			d.Pending = n
		}
		out = append(out, d)
	}
	return out
}

// Transfer moves a visit's coverage from one state's counters to another's.
// Moving to a state that holds nothing simply releases the counts.
func Transfer(c stay.Coverage, from, to visit.State) []Delta {
	out := make([]Delta, 0, len(c))
	for _, k := range c.Keys() {
		n := c[k]
		d := Delta{Site: k.Site, Day: k.Day}
		switch from {
		case visit.StatePending:
			d.Pending -= n
		case visit.StateApproved:
			d.Approved -= n
		}
		switch to {
		case visit.StatePending:
			d.Pending += n
		case visit.StateApproved:
			d.Approved += n
		}
		if !d.IsZero() {
			out = append(out, d)
		}
	}
	return out
}

// ApplyDeltas performs the per-day read-modify-write of the counter rows.
// Rows are created lazily; a delta that would drive a count below zero fails
// the whole call.
func ApplyDeltas(ctx context.Context, repo CounterRepository, deltas []Delta) error {
	bySite := map[site.Site][]Delta{}
	for _, d := range deltas {
		if d.IsZero() {
			continue
		}
		d.Day = daterange.Day(d.Day)
		bySite[d.Site] = append(bySite[d.Site], d)
	}
	sites := make([]site.Site, 0, len(bySite))
	for s := range bySite {
		sites = append(sites, s)
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i] < sites[j] })

	for _, s := range sites {
		ds := bySite[s]
		span := spanOf(ds)
		stored, err := repo.Range(ctx, s, span)
		if err != nil {
			return err
		}
		rows := index(stored)
		touched := map[time.Time]bool{}
		for _, d := range ds {
			row, ok := rows[d.Day]
			if !ok {
				row = DailyCounter{Site: s, Day: d.Day}
			}
			if err := row.Apply(d); err != nil {
				return err
			}
			rows[d.Day] = row
			touched[d.Day] = true
		}
		days := make([]time.Time, 0, len(touched))
		for d := range touched {
			days = append(days, d)
		}
		sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
		for _, d := range days {
			row := rows[d]
			if err := repo.Save(ctx, &row); err != nil {
				return err
			}
		}
	}
	return nil
}

func spanOf(ds []Delta) daterange.DateRange {
	first, last := ds[0].Day, ds[0].Day
	for _, d := range ds[1:] {
		if d.Day.Before(first) {
			first = d.Day
		}
		if d.Day.After(last) {
			last = d.Day
		}
	}
	return daterange.DateRange{Arrival: first, Departure: last.AddDate(0, 0, 1)}
}
