package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/site"
)

var ErrNegativeCount = errors.New("availability: day counter would become negative")

// DailyCounter is the committed demand for one site and night. Rows are
// created on first use and never deleted; counts stay non-negative.
type DailyCounter struct {
	Site     site.Site
	Day      time.Time
	Pending  int
	Approved int
	Version  int64
}

// Demand is the number of beds committed for the night, pending or approved.
func (c DailyCounter) Demand() int {
	return c.Pending + c.Approved
}

// Delta is a signed adjustment to one counter row.
type Delta struct {
	Site     site.Site
	Day      time.Time
	Pending  int
	Approved int
}

func (d Delta) IsZero() bool { return d.Pending == 0 && d.Approved == 0 }

func (c *DailyCounter) Apply(d Delta) error {
	pending := c.Pending + d.Pending
	approved := c.Approved + d.Approved
	if pending < 0 || approved < 0 {
		return fmt.Errorf("%w: %s %s pending=%d approved=%d", ErrNegativeCount, c.Site, daterange.FormatDay(c.Day), pending, approved)
	}
	c.Pending = pending
	c.Approved = approved
	return nil
}

type CounterRepository interface {
	// Range returns the stored rows for nights in r; missing nights are omitted.
	Range(ctx context.Context, s site.Site, r daterange.DateRange) ([]DailyCounter, error)
	Save(ctx context.Context, c *DailyCounter) error
}

// index keys counters by day.
func index(counters []DailyCounter) map[time.Time]DailyCounter {
	out := make(map[time.Time]DailyCounter, len(counters))
	for _, c := range counters {
		out[daterange.Day(c.Day)] = c
	}
	return out
}
