package support

import (
	"context"
	"time"

	"stationbeds/internal/app/uow"
	domainavailability "stationbeds/internal/domain/availability"
	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/site"
	domainstay "stationbeds/internal/domain/stay"
	domainvisit "stationbeds/internal/domain/visit"
)

// ApplyCoverage books a change in a visit's stay coverage against the day
// counters of the state the visit holds. Nights that gain beds are admitted
// by the policy first; the counters read for admission are the committed
// ones, so the change under way is never counted against itself.
func ApplyCoverage(ctx context.Context, unit uow.UnitOfWork, policy domainavailability.Policy, state domainvisit.State, diff domainstay.Coverage) error {
	if len(diff) == 0 || !state.Holds() {
		return nil
	}
	for _, g := range gains(diff) {
		span := daterange.DateRange{Arrival: g.days[0], Departure: g.days[len(g.days)-1].AddDate(0, 0, 1)}
		counters, err := unit.Counters().Range(ctx, g.site, span)
		if err != nil {
			return err
		}
		if err := policy.Admit(g.site, g.days, counters, g.beds); err != nil {
			return err
		}
	}
	return domainavailability.ApplyDeltas(ctx, unit.Counters(), domainavailability.DeltasFor(diff, state))
}

type gain struct {
	site site.Site
	beds int
	days []time.Time
}

// gains groups the nights that gain beds by site and amount, in key order.
func gains(diff domainstay.Coverage) []gain {
	type groupKey struct {
		site site.Site
		beds int
	}
	var out []gain
	pos := map[groupKey]int{}
	for _, k := range diff.Keys() {
		n := diff[k]
		if n <= 0 {
			continue
		}
		id := groupKey{site: k.Site, beds: n}
		i, ok := pos[id]
		if !ok {
			i = len(out)
			pos[id] = i
			out = append(out, gain{site: k.Site, beds: n})
		}
		out[i].days = append(out[i].days, k.Day)
	}
	return out
}

// SitesOf lists the sites present in a coverage plus any extra ones, without duplicates.
func SitesOf(c domainstay.Coverage, extra ...site.Site) []site.Site {
	seen := map[site.Site]bool{}
	var out []site.Site
	add := func(s site.Site) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range extra {
		add(s)
	}
	for _, k := range c.Keys() {
		add(k.Site)
	}
	return out
}
