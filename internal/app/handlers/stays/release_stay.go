package stays

import (
	"context"
	"log/slog"

	"stationbeds/internal/app/caller"
	"stationbeds/internal/app/commands"
	"stationbeds/internal/app/dto"
	"stationbeds/internal/app/handlers/support"
	"stationbeds/internal/app/middleware"
	"stationbeds/internal/app/outbox"
	domainavailability "stationbeds/internal/domain/availability"
	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/shared/events"
	"stationbeds/internal/domain/shared/failure"
	"stationbeds/internal/domain/site"
	domainstay "stationbeds/internal/domain/stay"
	domainvisit "stationbeds/internal/domain/visit"
)

const releaseStayKey = "stays.release"

type ReleaseStayCommand struct {
	VisitID  domainvisit.ID
	Site     site.Site
	Occupant domainstay.Occupant
	Window   daterange.DateRange
}

func (c ReleaseStayCommand) Key() string { return releaseStayKey }

func (c ReleaseStayCommand) Validate() error {
	if c.VisitID == "" {
		return failure.Invalid("visit_id", "required")
	}
	if !c.Site.Valid() {
		return failure.Invalid("site", "unknown site "+string(c.Site))
	}
	if err := c.Occupant.Validate(); err != nil {
		return err
	}
	if err := c.Window.Validate(); err != nil {
		return failure.Invalid("end", "must be after start")
	}
	return nil
}

// ReleaseStayHandler removes a window of nights from an occupant's stays.
// A window that matches nothing is a no-op and returns no changes.
type ReleaseStayHandler struct {
	Settings domainavailability.Settings
	Outbox   outbox.Outbox
	Encoder  outbox.EventEncoder
	Clock    support.Clock
	NewID    domainstay.IDGenerator
	Logger   *slog.Logger
}

func (h *ReleaseStayHandler) Handle(ctx context.Context, cmd ReleaseStayCommand) (*dto.ReleaseResult, error) {
	unit, err := support.RequireUnit(ctx)
	if err != nil {
		return nil, err
	}
	if err := unit.Guard(ctx, cmd.Site); err != nil {
		return nil, err
	}
	v, err := unit.Visits().ByID(ctx, cmd.VisitID)
	if err != nil {
		return nil, err
	}
	if who := caller.FromContext(ctx); !who.IsAdmin() && who.Name != v.Requester {
		return nil, caller.ErrForbidden
	}

	now := h.Clock.Now()
	key := domainstay.Key{VisitID: v.ID, Occupant: cmd.Occupant.Key(), Site: cmd.Site}
	stored, err := unit.Stays().Touching(ctx, key, cmd.Window)
	if err != nil {
		return nil, err
	}
	changes := domainstay.PlanRelease(stored, key, cmd.Window, support.StayIDs(h.NewID), now)
	if len(changes) == 0 {
		return &dto.ReleaseResult{Changes: []dto.StayChange{}}, nil
	}

	before, after := domainstay.Coverage{}, domainstay.Coverage{}
	for _, c := range changes {
		before.Add(c.Before)
		after.Add(c.After...)
	}
	// releases never gain nights, so no admission happens here
	if err := support.ApplyCoverage(ctx, unit, h.Settings.Policy(false), v.State, before.Diff(after)); err != nil {
		return nil, err
	}
	for _, c := range changes {
		if c.Kind == domainstay.ChangeDeleted {
			if err := unit.Stays().Delete(ctx, c.Before.ID); err != nil {
				return nil, err
			}
			continue
		}
		for _, st := range c.After {
			if err := unit.Stays().Save(ctx, st); err != nil {
				return nil, err
			}
		}
	}

	ev := domainstay.ReleasedEvent(key, cmd.Window, changes, now)
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, []events.DomainEvent{ev}); err != nil {
		return nil, err
	}
	support.Logger(h.Logger).InfoContext(ctx, "stay released",
		slog.String("visit_id", string(v.ID)),
		slog.String("site", string(cmd.Site)),
		slog.String("occupant", key.Occupant),
		slog.String("window", cmd.Window.String()),
		slog.Int("changes", len(changes)),
	)
	return &dto.ReleaseResult{Changes: dto.ChangesFrom(changes)}, nil
}

var _ commands.Handler[ReleaseStayCommand, *dto.ReleaseResult] = (*ReleaseStayHandler)(nil)
var _ middleware.SelfValidating = ReleaseStayCommand{}
