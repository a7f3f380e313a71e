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

const bookStayKey = "stays.book"

type BookStayCommand struct {
	VisitID         domainvisit.ID
	Site            site.Site
	Occupant        domainstay.Occupant
	Range           daterange.DateRange
	Attributes      site.Attributes
	IdempotencyKeyV string
}

func (c BookStayCommand) Key() string { return bookStayKey }

func (c BookStayCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c BookStayCommand) ResultPrototype() any { return &dto.BookResult{} }

func (c BookStayCommand) Validate() error {
	if c.VisitID == "" {
		return failure.Invalid("visit_id", "required")
	}
	if !c.Site.Valid() {
		return failure.Invalid("site", "unknown site "+string(c.Site))
	}
	if err := c.Occupant.Validate(); err != nil {
		return err
	}
	if err := c.Range.Validate(); err != nil {
		return failure.Invalid("departure", "must be after arrival")
	}
	return c.Attributes.Normalize().ValidateFor(c.Site)
}

// BookStayHandler inserts an occupancy interval, merging it with every stay
// of the same occupant, visit and site it overlaps or meets.
type BookStayHandler struct {
	Settings domainavailability.Settings
	Outbox   outbox.Outbox
	Encoder  outbox.EventEncoder
	Clock    support.Clock
	NewID    domainstay.IDGenerator
	Logger   *slog.Logger
}

func (h *BookStayHandler) Handle(ctx context.Context, cmd BookStayCommand) (*dto.BookResult, error) {
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
	if !v.State.Holds() {
		return nil, domainvisit.ErrInvalidState
	}

	now := h.Clock.Now()
	policy := h.Settings.Policy(caller.FromContext(ctx).IsAdmin())
	if err := policy.CheckNotice(cmd.Range.Arrival, now); err != nil {
		return nil, err
	}
	if err := policy.CheckWindow(cmd.Range, v.Window); err != nil {
		return nil, err
	}

	req := domainstay.BookRequest{
		VisitID:    v.ID,
		Occupant:   cmd.Occupant,
		Site:       cmd.Site,
		Range:      cmd.Range,
		Attributes: cmd.Attributes.Normalize(),
	}
	stored, err := unit.Stays().Touching(ctx, req.Key(), req.Range)
	if err != nil {
		return nil, err
	}
	plan := domainstay.PlanBook(stored, req, support.StayIDs(h.NewID), now)

	diff := domainstay.CoverageOf(plan.Remove...).Diff(domainstay.CoverageOf(plan.Result))
	if err := support.ApplyCoverage(ctx, unit, policy, v.State, diff); err != nil {
		return nil, err
	}
	for _, st := range plan.Remove {
		if err := unit.Stays().Delete(ctx, st.ID); err != nil {
			return nil, err
		}
	}
	if err := unit.Stays().Save(ctx, plan.Result); err != nil {
		return nil, err
	}

	ev := domainstay.BookedEvent(plan, now)
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, []events.DomainEvent{ev}); err != nil {
		return nil, err
	}
	support.Logger(h.Logger).InfoContext(ctx, "stay booked",
		slog.String("visit_id", string(v.ID)),
		slog.String("site", string(cmd.Site)),
		slog.String("occupant", cmd.Occupant.Key()),
		slog.String("range", plan.Result.Range.String()),
		slog.Int("merged", len(plan.Remove)),
	)
	return &dto.BookResult{Stay: dto.StayFrom(plan.Result), Merged: len(plan.Remove)}, nil
}

var _ commands.Handler[BookStayCommand, *dto.BookResult] = (*BookStayHandler)(nil)
var _ middleware.IdempotentCommand = BookStayCommand{}
var _ middleware.SelfValidating = BookStayCommand{}
