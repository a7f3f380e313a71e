package availability

import (
	"context"
	"log/slog"

	"stationbeds/internal/app/dto"
	"stationbeds/internal/app/handlers/support"
	"stationbeds/internal/app/queries"
	"stationbeds/internal/app/uow"
	domainavailability "stationbeds/internal/domain/availability"
	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/site"
	domainvisit "stationbeds/internal/domain/visit"
)

const reconcileKey = "availability.reconcile"

type ReconcileQuery struct {
	Site  site.Site
	Range daterange.DateRange
}

func (q ReconcileQuery) Key() string { return reconcileKey }

func (q ReconcileQuery) AdminOnly() bool { return true }

func (q ReconcileQuery) Validate() error {
	return validateRange(q.Site, q.Range)
}

// ReconcileHandler recomputes demand from the stay intervals and reports the
// nights where the day counters disagree.
type ReconcileHandler struct {
	UoWFactory uow.UoWFactory
	Settings   domainavailability.Settings
	Logger     *slog.Logger
}

func (h *ReconcileHandler) Handle(ctx context.Context, q ReconcileQuery) (*dto.Reconciliation, error) {
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
	stays, err := unit.Stays().BySite(execCtx, q.Site, q.Range)
	if err != nil {
		return nil, err
	}
	states := map[domainvisit.ID]domainvisit.State{}
	for _, st := range stays {
		if _, ok := states[st.VisitID]; ok {
			continue
		}
		v, err := unit.Visits().ByID(execCtx, st.VisitID)
		if err != nil {
			return nil, err
		}
		states[v.ID] = v.State
	}

	capacity := h.Settings.Policy(false).CapacityFor(q.Site)
	fromCounters := domainavailability.BuildFeed(q.Range, counters, capacity)
	fromStays := domainavailability.FromStays(q.Site, q.Range, stays, func(id domainvisit.ID) domainvisit.State { return states[id] }, capacity)
	drift := domainavailability.Reconcile(fromCounters, fromStays)
	if len(drift) > 0 {
		support.Logger(h.Logger).WarnContext(ctx, "counter drift detected",
			slog.String("site", string(q.Site)),
			slog.String("range", q.Range.String()),
			slog.Int("days", len(drift)),
		)
	}
	out := dto.ReconciliationFrom(string(q.Site), q.Range, drift)
	return &out, nil
}

var _ queries.Handler[ReconcileQuery, *dto.Reconciliation] = (*ReconcileHandler)(nil)
