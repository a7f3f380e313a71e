package stay

import (
	"sort"
	"time"

	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/site"
)

type SiteDay struct {
	Site site.Site
	Day  time.Time
}

// Coverage counts occupied beds per site and night.
type Coverage map[SiteDay]int

func CoverageOf(stays ...*Stay) Coverage {
	c := Coverage{}
	c.Add(stays...)
	return c
}

func (c Coverage) Add(stays ...*Stay) {
	for _, st := range stays {
		if st == nil {
			continue
		}
		for _, d := range st.Range.Days() {
			c[SiteDay{Site: st.Site, Day: d}]++
		}
	}
}

// Diff returns after minus c, keeping only non-zero entries.
func (c Coverage) Diff(after Coverage) Coverage {
	out := Coverage{}
	for k, v := range after {
		if delta := v - c[k]; delta != 0 {
			out[k] = delta
		}
	}
	for k, v := range c {
		if _, ok := after[k]; !ok && v != 0 {
			out[k] = -v
		}
	}
	return out
}

// Gained lists, per site, the days whose count increased. Days are sorted.
func (c Coverage) Gained() map[site.Site][]time.Time {
	out := map[site.Site][]time.Time{}
	for k, v := range c {
		if v > 0 {
			out[k.Site] = append(out[k.Site], k.Day)
		}
	}
	for s := range out {
		days := out[s]
		sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	}
	return out
}

// Within restricts the coverage to days inside r at s.
func (c Coverage) Within(s site.Site, r daterange.DateRange) Coverage {
	out := Coverage{}
	for k, v := range c {
		if k.Site == s && r.ContainsDay(k.Day) {
			out[k] = v
		}
	}
	return out
}

// Keys returns the entries ordered by site then day.
func (c Coverage) Keys() []SiteDay {
	keys := make([]SiteDay, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Site != keys[j].Site {
			return keys[i].Site < keys[j].Site
		}
		return keys[i].Day.Before(keys[j].Day)
	})
	return keys
}
