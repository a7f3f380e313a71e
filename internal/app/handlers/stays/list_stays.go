package stays

import (
	"context"
	"sort"

	"stationbeds/internal/app/dto"
	"stationbeds/internal/app/handlers/support"
	"stationbeds/internal/app/queries"
	"stationbeds/internal/app/uow"
	"stationbeds/internal/domain/shared/failure"
	domainvisit "stationbeds/internal/domain/visit"
)

const listStaysKey = "stays.list"

type ListStaysQuery struct {
	VisitID domainvisit.ID
}

func (q ListStaysQuery) Key() string { return listStaysKey }

func (q ListStaysQuery) Validate() error {
	if q.VisitID == "" {
		return failure.Invalid("visit_id", "required")
	}
	return nil
}

type ListStaysHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListStaysHandler) Handle(ctx context.Context, q ListStaysQuery) (*dto.StayCollection, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	if _, err := unit.Visits().ByID(execCtx, q.VisitID); err != nil {
		return nil, err
	}
	found, err := unit.Stays().ByVisit(execCtx, q.VisitID)
	if err != nil {
		return nil, err
	}
	items := dto.StaysFrom(found)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Arrival != items[j].Arrival {
			return items[i].Arrival < items[j].Arrival
		}
		return items[i].Occupant < items[j].Occupant
	})
	return &dto.StayCollection{Items: items}, nil
}

var _ queries.Handler[ListStaysQuery, *dto.StayCollection] = (*ListStaysHandler)(nil)
