package availability

import (
	"time"

	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/shared/failure"
	"stationbeds/internal/domain/site"
)

const (
	DefaultCapacity     = 25
	DefaultNoticePeriod = 14 * 24 * time.Hour
)

// Settings is the configured, caller-independent part of the capacity policy.
type Settings struct {
	Capacity     map[site.Site]int
	NoticePeriod time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Capacity:     map[site.Site]int{site.Lowland: DefaultCapacity, site.Montane: DefaultCapacity},
		NoticePeriod: DefaultNoticePeriod,
	}
}

// Policy builds the per-request policy; adminOverride comes from the caller's role.
func (s Settings) Policy(adminOverride bool) Policy {
	capacity := make(map[site.Site]int, len(s.Capacity))
	for k, v := range s.Capacity {
		capacity[k] = v
	}
	return Policy{Capacity: capacity, NoticePeriod: s.NoticePeriod, AdminOverride: adminOverride}
}

// Policy is passed explicitly into every engine call. AdminOverride waives the
// notice period, the visit window and capacity, never date ordering.
type Policy struct {
	Capacity      map[site.Site]int
	NoticePeriod  time.Duration
	AdminOverride bool
}

func (p Policy) CapacityFor(s site.Site) int {
	return p.Capacity[s]
}

// NoticeDays is the notice period in whole days.
func (p Policy) NoticeDays() int {
	return int(p.NoticePeriod / (24 * time.Hour))
}

// CheckNotice requires arrival to be at least the notice period after today.
func (p Policy) CheckNotice(arrival, now time.Time) error {
	if p.AdminOverride {
		return nil
	}
	earliest := daterange.Day(now).AddDate(0, 0, p.NoticeDays())
	if daterange.Day(arrival).Before(earliest) {
		return failure.Invalid("arrival", "must be on or after "+daterange.FormatDay(earliest))
	}
	return nil
}

// CheckWindow requires r to lie inside the owning visit's window.
func (p Policy) CheckWindow(r, window daterange.DateRange) error {
	if p.AdminOverride || window.Contains(r) {
		return nil
	}
	return failure.Invalid("departure", "range "+r.String()+" is outside visit window "+window.String())
}

// Admit checks that every listed night still has room for beds more beds,
// given the counters already stored (which never include the request itself).
func (p Policy) Admit(s site.Site, days []time.Time, counters []DailyCounter, beds int) error {
	if beds <= 0 {
		return failure.Invalid("beds", "must be positive")
	}
	if p.AdminOverride || len(days) == 0 {
		return nil
	}
	byDay := index(counters)
	capacity := p.CapacityFor(s)
	minAvail := -1
	var minDay time.Time
	for _, d := range days {
		d = daterange.Day(d)
		avail := floor(capacity - byDay[d].Demand())
		if minAvail < 0 || avail < minAvail {
			minAvail = avail
			minDay = d
		}
	}
	if minAvail < beds {
		return &failure.CapacityExceededError{Site: string(s), Day: minDay, Requested: beds, Available: minAvail}
	}
	return nil
}

func floor(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
