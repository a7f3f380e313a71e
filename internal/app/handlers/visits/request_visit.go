package visits

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"stationbeds/internal/app/caller"
	"stationbeds/internal/app/commands"
	"stationbeds/internal/app/dto"
	"stationbeds/internal/app/handlers/support"
	"stationbeds/internal/app/middleware"
	"stationbeds/internal/app/outbox"
	domainavailability "stationbeds/internal/domain/availability"
	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/shared/failure"
	"stationbeds/internal/domain/site"
	domainstay "stationbeds/internal/domain/stay"
	domainvisit "stationbeds/internal/domain/visit"
)

const requestVisitKey = "visits.request"

// MaxBeds bounds a single block booking.
const MaxBeds = 200

type RequestVisitCommand struct {
	Site       site.Site
	Requester  string
	Beds       int
	Window     daterange.DateRange
	Attributes site.Attributes
	Notes      string
	// Approve asks for the visit to be approved at creation; admins only.
	Approve         bool
	IdempotencyKeyV string
}

func (c RequestVisitCommand) Key() string { return requestVisitKey }

func (c RequestVisitCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c RequestVisitCommand) ResultPrototype() any { return &dto.Visit{} }

func (c RequestVisitCommand) Validate() error {
	if !c.Site.Valid() {
		return failure.Invalid("site", "unknown site "+string(c.Site))
	}
	if c.Beds <= 0 || c.Beds > MaxBeds {
		return failure.Invalid("beds", "must be between 1 and 200")
	}
	if err := c.Window.Validate(); err != nil {
		return failure.Invalid("departure", "must be after arrival")
	}
	return c.Attributes.Normalize().ValidateFor(c.Site)
}

// RequestVisitHandler creates a block booking: the visit plus one placeholder
// stay per bed across the whole window, counted as pending demand.
type RequestVisitHandler struct {
	Settings domainavailability.Settings
	Outbox   outbox.Outbox
	Encoder  outbox.EventEncoder
	Clock    support.Clock
	NewID    func() domainvisit.ID
	NewStay  domainstay.IDGenerator
	Logger   *slog.Logger
}

func (h *RequestVisitHandler) Handle(ctx context.Context, cmd RequestVisitCommand) (*dto.Visit, error) {
	unit, err := support.RequireUnit(ctx)
	if err != nil {
		return nil, err
	}
	who := caller.FromContext(ctx)
	if cmd.Approve && !who.IsAdmin() {
		return nil, caller.ErrForbidden
	}
	if err := unit.Guard(ctx, cmd.Site); err != nil {
		return nil, err
	}

	now := h.Clock.Now()
	policy := h.Settings.Policy(who.IsAdmin())
	if err := policy.CheckNotice(cmd.Window.Arrival, now); err != nil {
		return nil, err
	}

	requester := strings.TrimSpace(cmd.Requester)
	if requester == "" {
		requester = who.Name
	}
	v, err := domainvisit.NewVisit(domainvisit.CreateParams{
		ID:         h.visitID(),
		Site:       cmd.Site,
		Requester:  requester,
		Window:     cmd.Window,
		Beds:       cmd.Beds,
		Attributes: cmd.Attributes.Normalize(),
		Notes:      cmd.Notes,
		Approved:   cmd.Approve,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, err
	}

	newStay := support.StayIDs(h.NewStay)
	placeholders := make([]*domainstay.Stay, 0, v.Beds)
	for i := 0; i < v.Beds; i++ {
		placeholders = append(placeholders, &domainstay.Stay{
			ID:         newStay(),
			VisitID:    v.ID,
			Occupant:   domainstay.Unknown(uuid.NewString()),
			Site:       v.Site,
			Range:      v.Window,
			Attributes: v.Attributes.Copy(),
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	gained := domainstay.Coverage{}.Diff(domainstay.CoverageOf(placeholders...))
	if err := support.ApplyCoverage(ctx, unit, policy, v.State, gained); err != nil {
		return nil, err
	}
	if err := unit.Visits().Save(ctx, v); err != nil {
		return nil, err
	}
	for _, st := range placeholders {
		if err := unit.Stays().Save(ctx, st); err != nil {
			return nil, err
		}
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, v.Drain()); err != nil {
		return nil, err
	}

	support.Logger(h.Logger).InfoContext(ctx, "visit requested",
		slog.String("visit_id", string(v.ID)),
		slog.String("site", string(v.Site)),
		slog.String("window", v.Window.String()),
		slog.Int("beds", v.Beds),
		slog.String("state", string(v.State)),
	)
	out := dto.VisitFrom(v)
	out.Stays = dto.StaysFrom(placeholders)
	return &out, nil
}

func (h *RequestVisitHandler) visitID() domainvisit.ID {
	if h.NewID != nil {
		return h.NewID()
	}
	return domainvisit.ID(uuid.NewString())
}

var _ commands.Handler[RequestVisitCommand, *dto.Visit] = (*RequestVisitHandler)(nil)
var _ middleware.IdempotentCommand = RequestVisitCommand{}
