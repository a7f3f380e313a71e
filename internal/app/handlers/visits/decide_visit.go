package visits

import (
	"context"
	"log/slog"

	"stationbeds/internal/app/caller"
	"stationbeds/internal/app/commands"
	"stationbeds/internal/app/dto"
	"stationbeds/internal/app/handlers/support"
	"stationbeds/internal/app/outbox"
	"stationbeds/internal/app/policies"
	domainavailability "stationbeds/internal/domain/availability"
	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/shared/failure"
	domainstay "stationbeds/internal/domain/stay"
	domainvisit "stationbeds/internal/domain/visit"
)

const decideVisitKey = "visits.decide"

type DecideVisitCommand struct {
	VisitID  domainvisit.ID
	Decision domainvisit.State
	Notes    string
}

func (c DecideVisitCommand) Key() string { return decideVisitKey }

func (c DecideVisitCommand) AdminOnly() bool { return true }

func (c DecideVisitCommand) Validate() error {
	if c.VisitID == "" {
		return failure.Invalid("visit_id", "required")
	}
	if c.Decision != domainvisit.StateApproved && c.Decision != domainvisit.StateRejected {
		return failure.Invalid("decision", "must be APPROVED or REJECTED")
	}
	return nil
}

// DecideVisitHandler approves or rejects a pending visit. Approval moves the
// visit's nights from pending to approved demand; rejection releases them.
type DecideVisitHandler struct {
	Notifier policies.Notifier
	Outbox   outbox.Outbox
	Encoder  outbox.EventEncoder
	Clock    support.Clock
	Logger   *slog.Logger
}

func (h *DecideVisitHandler) Handle(ctx context.Context, cmd DecideVisitCommand) (*dto.Visit, error) {
	unit, err := support.RequireUnit(ctx)
	if err != nil {
		return nil, err
	}
	v, err := unit.Visits().ByID(ctx, cmd.VisitID)
	if err != nil {
		return nil, err
	}
	stays, err := unit.Stays().ByVisit(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	cov := domainstay.CoverageOf(stays...)
	if err := unit.Guard(ctx, support.SitesOf(cov, v.Site)...); err != nil {
		return nil, err
	}

	now := h.Clock.Now()
	by := caller.FromContext(ctx).Name
	from := v.State
	switch cmd.Decision {
	case domainvisit.StateApproved:
		err = v.Approve(by, cmd.Notes, now)
	default:
		err = v.Reject(by, cmd.Notes, now)
	}
	if err != nil {
		return nil, err
	}
	if err := domainavailability.ApplyDeltas(ctx, unit.Counters(), domainavailability.Transfer(cov, from, v.State)); err != nil {
		return nil, err
	}
	if err := unit.Visits().Save(ctx, v); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, v.Drain()); err != nil {
		return nil, err
	}

	log := support.Logger(h.Logger)
	h.notify(ctx, log, v, stays)
	log.InfoContext(ctx, "visit decided",
		slog.String("visit_id", string(v.ID)),
		slog.String("site", string(v.Site)),
		slog.String("state", string(v.State)),
		slog.String("decided_by", v.DecidedBy),
	)
	out := dto.VisitFrom(v)
	out.Stays = dto.StaysFrom(stays)
	return &out, nil
}

// DecisionNotice is the data handed to the notification templates.
type DecisionNotice struct {
	VisitID   string   `json:"visit_id"`
	Site      string   `json:"site"`
	Arrival   string   `json:"arrival"`
	Departure string   `json:"departure"`
	Beds      int      `json:"beds"`
	Occupants []string `json:"occupants"`
	Notes     string   `json:"notes,omitempty"`
}

// notify is fire-and-forget: a failed notification never undoes a decision.
func (h *DecideVisitHandler) notify(ctx context.Context, log *slog.Logger, v *domainvisit.Visit, stays []*domainstay.Stay) {
	if h.Notifier == nil {
		return
	}
	template := policies.TemplateVisitApproved
	if v.State == domainvisit.StateRejected {
		template = policies.TemplateVisitRejected
	}
	notice := DecisionNotice{
		VisitID:   string(v.ID),
		Site:      string(v.Site),
		Arrival:   daterange.FormatDay(v.Window.Arrival),
		Departure: daterange.FormatDay(v.Window.Departure),
		Beds:      v.Beds,
		Occupants: occupantNames(stays),
		Notes:     v.Notes,
	}
	if err := h.Notifier.Send(ctx, v.Requester, template, notice); err != nil {
		log.WarnContext(ctx, "decision notification failed",
			slog.String("visit_id", string(v.ID)),
			slog.String("template", template),
			slog.Any("error", err),
		)
	}
}

func occupantNames(stays []*domainstay.Stay) []string {
	seen := map[string]bool{}
	names := make([]string, 0, len(stays))
	for _, st := range stays {
		if seen[st.Occupant.Key()] {
			continue
		}
		seen[st.Occupant.Key()] = true
		names = append(names, st.Occupant.Display())
	}
	return names
}

var _ commands.Handler[DecideVisitCommand, *dto.Visit] = (*DecideVisitHandler)(nil)
var _ caller.AdminOnly = DecideVisitCommand{}
