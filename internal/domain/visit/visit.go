package visit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/shared/events"
	"stationbeds/internal/domain/shared/failure"
	"stationbeds/internal/domain/site"
)

var (
	ErrInvalidState  = errors.New("visit: invalid state transition")
	ErrVisitNotFound = fmt.Errorf("visit: %w", failure.ErrNotFound)
)

type ID string

type State string

const (
	StatePending   State = "PENDING"
	StateApproved  State = "APPROVED"
	StateRejected  State = "REJECTED"
	StateCancelled State = "CANCELLED"
)

// Holds reports whether stays of a visit in this state commit capacity.
func (s State) Holds() bool {
	return s == StatePending || s == StateApproved
}

func ParseState(raw string) (State, error) {
	st := State(strings.ToUpper(strings.TrimSpace(raw)))
	switch st {
	case StatePending, StateApproved, StateRejected, StateCancelled:
		return st, nil
	}
	return "", failure.Invalid("state", "unknown state "+raw)
}

// Visit is a block booking: a requested number of beds at a site over a date
// window, admitted in two phases.
type Visit struct {
	ID         ID
	Site       site.Site
	Requester  string
	Window     daterange.DateRange
	Beds       int
	Attributes site.Attributes
	State      State
	Notes      string
	DecidedBy  string
	DecidedAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Version    int64
	events.EventRecorder
}

type ListFilter struct {
	Site  site.Site
	State State
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Visit, error)
	Save(ctx context.Context, v *Visit) error
	List(ctx context.Context, filter ListFilter) ([]*Visit, error)
}

type CreateParams struct {
	ID         ID
	Site       site.Site
	Requester  string
	Window     daterange.DateRange
	Beds       int
	Attributes site.Attributes
	Notes      string
	// Approved skips the pending phase; only administrators may ask for it.
	Approved  bool
	CreatedAt time.Time
}

func NewVisit(p CreateParams) (*Visit, error) {
	if p.ID == "" {
		return nil, errors.New("visit: id required")
	}
	if !p.Site.Valid() {
		return nil, failure.Invalid("site", "unknown site "+string(p.Site))
	}
	if strings.TrimSpace(p.Requester) == "" {
		return nil, failure.Invalid("requester", "required")
	}
	if p.Beds <= 0 {
		return nil, failure.Invalid("beds", "must be positive")
	}
	if err := p.Window.Validate(); err != nil {
		return nil, failure.Invalid("departure", "must be after arrival")
	}
	now := p.CreatedAt.UTC()
	v := &Visit{
		ID:         p.ID,
		Site:       p.Site,
		Requester:  strings.TrimSpace(p.Requester),
		Window:     p.Window,
		Beds:       p.Beds,
		Attributes: p.Attributes.Copy(),
		State:      StatePending,
		Notes:      strings.TrimSpace(p.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if p.Approved {
		v.State = StateApproved
		v.DecidedBy = v.Requester
		v.DecidedAt = now
	}
	v.Record(VisitRequested{VisitID: v.ID, Site: v.Site, Requester: v.Requester, Window: v.Window, Beds: v.Beds, State: v.State, At: now})
	return v, nil
}

func (v *Visit) Approve(by, notes string, now time.Time) error {
	if v.State != StatePending {
		return ErrInvalidState
	}
	v.decide(StateApproved, by, notes, now)
	v.Record(VisitApproved{VisitID: v.ID, Site: v.Site, Window: v.Window, By: v.DecidedBy, Notes: v.Notes, At: v.UpdatedAt})
	return nil
}

func (v *Visit) Reject(by, notes string, now time.Time) error {
	if v.State != StatePending {
		return ErrInvalidState
	}
	v.decide(StateRejected, by, notes, now)
	v.Record(VisitRejected{VisitID: v.ID, Site: v.Site, Window: v.Window, By: v.DecidedBy, Notes: v.Notes, At: v.UpdatedAt})
	return nil
}

// Cancel withdraws a visit that still holds capacity. It returns the state
// the visit held so the caller knows which counters to release.
func (v *Visit) Cancel(reason string, now time.Time) (State, error) {
	if !v.State.Holds() {
		return "", ErrInvalidState
	}
	prev := v.State
	v.State = StateCancelled
	v.UpdatedAt = now.UTC()
	v.Record(VisitCancelled{VisitID: v.ID, Previous: prev, Reason: strings.TrimSpace(reason), At: v.UpdatedAt})
	return prev, nil
}

func (v *Visit) decide(to State, by, notes string, now time.Time) {
	v.State = to
	v.DecidedBy = strings.TrimSpace(by)
	v.DecidedAt = now.UTC()
	v.UpdatedAt = v.DecidedAt
	if n := strings.TrimSpace(notes); n != "" {
		v.Notes = n
	}
}
