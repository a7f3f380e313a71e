package visits

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

const (
	getVisitKey   = "visits.get"
	listVisitsKey = "visits.list"
)

type GetVisitQuery struct {
	ID domainvisit.ID
}

func (q GetVisitQuery) Key() string { return getVisitKey }

func (q GetVisitQuery) Validate() error {
	if q.ID == "" {
		return failure.Invalid("id", "required")
	}
	return nil
}

type GetVisitHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetVisitHandler) Handle(ctx context.Context, q GetVisitQuery) (*dto.Visit, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	v, err := unit.Visits().ByID(execCtx, q.ID)
	if err != nil {
		return nil, err
	}
	stays, err := unit.Stays().ByVisit(execCtx, v.ID)
	if err != nil {
		return nil, err
	}
	out := dto.VisitFrom(v)
	out.Stays = dto.StaysFrom(stays)
	return &out, nil
}

type ListVisitsQuery struct {
	Filter domainvisit.ListFilter
}

func (q ListVisitsQuery) Key() string { return listVisitsKey }

type ListVisitsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListVisitsHandler) Handle(ctx context.Context, q ListVisitsQuery) (*dto.VisitCollection, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	found, err := unit.Visits().List(execCtx, q.Filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(found, func(i, j int) bool {
		if !found[i].Window.Arrival.Equal(found[j].Window.Arrival) {
			return found[i].Window.Arrival.Before(found[j].Window.Arrival)
		}
		return found[i].ID < found[j].ID
	})
	items := make([]dto.Visit, 0, len(found))
	for _, v := range found {
		items = append(items, dto.VisitFrom(v))
	}
	return &dto.VisitCollection{Items: items}, nil
}

var _ queries.Handler[GetVisitQuery, *dto.Visit] = (*GetVisitHandler)(nil)
var _ queries.Handler[ListVisitsQuery, *dto.VisitCollection] = (*ListVisitsHandler)(nil)
