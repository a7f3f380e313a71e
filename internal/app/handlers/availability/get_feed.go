package availability

import (
	"context"

	"stationbeds/internal/app/dto"
	"stationbeds/internal/app/handlers/support"
	"stationbeds/internal/app/queries"
	"stationbeds/internal/app/uow"
	domainavailability "stationbeds/internal/domain/availability"
	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/shared/failure"
	"stationbeds/internal/domain/site"
)

const getFeedKey = "availability.feed"

// MaxFeedDays bounds how many nights one feed request may cover.
const MaxFeedDays = 366

type GetFeedQuery struct {
	Site  site.Site
	Range daterange.DateRange
}

func (q GetFeedQuery) Key() string { return getFeedKey }

func (q GetFeedQuery) Validate() error {
	return validateRange(q.Site, q.Range)
}

func validateRange(s site.Site, r daterange.DateRange) error {
	if !s.Valid() {
		return failure.Invalid("site", "unknown site "+string(s))
	}
	if err := r.Validate(); err != nil {
		return failure.Invalid("to", "must be after from")
	}
	if r.Nights() > MaxFeedDays {
		return failure.Invalid("to", "range longer than 366 days")
	}
	return nil
}

// GetFeedHandler reads the day counters of a site into the calendar feed.
type GetFeedHandler struct {
	UoWFactory uow.UoWFactory
	Settings   domainavailability.Settings
}

func (h *GetFeedHandler) Handle(ctx context.Context, q GetFeedQuery) (*dto.Feed, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	counters, err := unit.Counters().Range(execCtx, q.Site, q.Range)
	if err != nil {
		return nil, err
	}
	capacity := h.Settings.Policy(false).CapacityFor(q.Site)
	feed := dto.FeedFrom(string(q.Site), q.Range, capacity, domainavailability.BuildFeed(q.Range, counters, capacity))
	return &feed, nil
}

var _ queries.Handler[GetFeedQuery, *dto.Feed] = (*GetFeedHandler)(nil)
