package visits

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"stationbeds/internal/app/caller"
	"stationbeds/internal/app/commands"
	"stationbeds/internal/app/dto"
	"stationbeds/internal/app/handlers/support"
	"stationbeds/internal/app/outbox"
	domainavailability "stationbeds/internal/domain/availability"
	"stationbeds/internal/domain/shared/events"
	"stationbeds/internal/domain/shared/failure"
	domainstay "stationbeds/internal/domain/stay"
	domainvisit "stationbeds/internal/domain/visit"
)

const assignOccupantKey = "visits.assign_occupant"

type AssignOccupantCommand struct {
	VisitID     domainvisit.ID
	Placeholder domainstay.Occupant
	Person      string
}

func (c AssignOccupantCommand) Key() string { return assignOccupantKey }

func (c AssignOccupantCommand) Validate() error {
	if c.VisitID == "" {
		return failure.Invalid("visit_id", "required")
	}
	if err := c.Placeholder.Validate(); err != nil {
		return err
	}
	if !c.Placeholder.IsPlaceholder() {
		return failure.Invalid("placeholder", "must reference an unknown occupant")
	}
	if strings.TrimSpace(c.Person) == "" {
		return failure.Invalid("person", "required")
	}
	return nil
}

// AssignOccupantHandler names the person behind a placeholder. Each of the
// placeholder's stays is rebooked under the person and merges with stays the
// person already holds in the same visit.
type AssignOccupantHandler struct {
	Settings domainavailability.Settings
	Outbox   outbox.Outbox
	Encoder  outbox.EventEncoder
	Clock    support.Clock
	NewID    domainstay.IDGenerator
	Logger   *slog.Logger
}

func (h *AssignOccupantHandler) Handle(ctx context.Context, cmd AssignOccupantCommand) (*dto.StayCollection, error) {
	unit, err := support.RequireUnit(ctx)
	if err != nil {
		return nil, err
	}
	v, err := unit.Visits().ByID(ctx, cmd.VisitID)
	if err != nil {
		return nil, err
	}
	if !v.State.Holds() {
		return nil, domainvisit.ErrInvalidState
	}
	who := caller.FromContext(ctx)
	if !who.IsAdmin() && who.Name != v.Requester {
		return nil, caller.ErrForbidden
	}
	before, err := unit.Stays().ByVisit(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	var held []*domainstay.Stay
	for _, st := range before {
		if st.Occupant == cmd.Placeholder {
			held = append(held, st)
		}
	}
	if len(held) == 0 {
		return nil, failure.NotFound("placeholder", cmd.Placeholder.Key())
	}
	sort.Slice(held, func(i, j int) bool { return held[i].Range.Arrival.Before(held[j].Range.Arrival) })
	beforeCov := domainstay.CoverageOf(before...)
	if err := unit.Guard(ctx, support.SitesOf(beforeCov, v.Site)...); err != nil {
		return nil, err
	}

	now := h.Clock.Now()
	person := domainstay.Known(cmd.Person)
	newID := support.StayIDs(h.NewID)
	var evs []events.DomainEvent
	for _, ph := range held {
		if err := unit.Stays().Delete(ctx, ph.ID); err != nil {
			return nil, err
		}
		req := domainstay.BookRequest{VisitID: v.ID, Occupant: person, Site: ph.Site, Range: ph.Range, Attributes: ph.Attributes}
		stored, err := unit.Stays().Touching(ctx, req.Key(), req.Range)
		if err != nil {
			return nil, err
		}
		plan := domainstay.PlanBook(stored, req, newID, now)
		for _, st := range plan.Remove {
			if err := unit.Stays().Delete(ctx, st.ID); err != nil {
				return nil, err
			}
		}
		if err := unit.Stays().Save(ctx, plan.Result); err != nil {
			return nil, err
		}
		evs = append(evs, domainstay.BookedEvent(plan, now))
	}

	after, err := unit.Stays().ByVisit(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	diff := beforeCov.Diff(domainstay.CoverageOf(after...))
	if err := support.ApplyCoverage(ctx, unit, h.Settings.Policy(who.IsAdmin()), v.State, diff); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, evs); err != nil {
		return nil, err
	}
	support.Logger(h.Logger).InfoContext(ctx, "occupant assigned",
		slog.String("visit_id", string(v.ID)),
		slog.String("placeholder", cmd.Placeholder.Key()),
		slog.String("occupant", person.Key()),
		slog.Int("stays", len(held)),
	)

	var mine []*domainstay.Stay
	for _, st := range after {
		if st.Occupant == person {
			mine = append(mine, st)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].Range.Arrival.Before(mine[j].Range.Arrival) })
	return &dto.StayCollection{Items: dto.StaysFrom(mine)}, nil
}

var _ commands.Handler[AssignOccupantCommand, *dto.StayCollection] = (*AssignOccupantHandler)(nil)
