package visits

import (
	"context"
	"log/slog"

	"stationbeds/internal/app/caller"
	"stationbeds/internal/app/commands"
	"stationbeds/internal/app/dto"
	"stationbeds/internal/app/handlers/support"
	"stationbeds/internal/app/outbox"
	domainavailability "stationbeds/internal/domain/availability"
	"stationbeds/internal/domain/shared/failure"
	domainstay "stationbeds/internal/domain/stay"
	domainvisit "stationbeds/internal/domain/visit"
)

const cancelVisitKey = "visits.cancel"

type CancelVisitCommand struct {
	VisitID domainvisit.ID
	Reason  string
}

func (c CancelVisitCommand) Key() string { return cancelVisitKey }

func (c CancelVisitCommand) Validate() error {
	if c.VisitID == "" {
		return failure.Invalid("visit_id", "required")
	}
	return nil
}

// CancelVisitHandler withdraws a pending or approved visit and gives its
// nights back. The stays are kept as history; a cancelled visit's stays no
// longer count anywhere.
type CancelVisitHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Clock   support.Clock
	Logger  *slog.Logger
}

func (h *CancelVisitHandler) Handle(ctx context.Context, cmd CancelVisitCommand) (*dto.Visit, error) {
	unit, err := support.RequireUnit(ctx)
	if err != nil {
		return nil, err
	}
	v, err := unit.Visits().ByID(ctx, cmd.VisitID)
	if err != nil {
		return nil, err
	}
	if who := caller.FromContext(ctx); !who.IsAdmin() && who.Name != v.Requester {
		return nil, caller.ErrForbidden
	}
	stays, err := unit.Stays().ByVisit(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	cov := domainstay.CoverageOf(stays...)
	if err := unit.Guard(ctx, support.SitesOf(cov, v.Site)...); err != nil {
		return nil, err
	}

	prev, err := v.Cancel(cmd.Reason, h.Clock.Now())
	if err != nil {
		return nil, err
	}
	if err := domainavailability.ApplyDeltas(ctx, unit.Counters(), domainavailability.Transfer(cov, prev, v.State)); err != nil {
		return nil, err
	}
	if err := unit.Visits().Save(ctx, v); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, v.Drain()); err != nil {
		return nil, err
	}
	support.Logger(h.Logger).InfoContext(ctx, "visit cancelled",
		slog.String("visit_id", string(v.ID)),
		slog.String("site", string(v.Site)),
		slog.String("previous", string(prev)),
	)
	out := dto.VisitFrom(v)
	out.Stays = dto.StaysFrom(stays)
	return &out, nil
}

var _ commands.Handler[CancelVisitCommand, *dto.Visit] = (*CancelVisitHandler)(nil)
