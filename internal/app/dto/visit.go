package dto

import (
	"time"

	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/site"
	domainvisit "stationbeds/internal/domain/visit"
)

type Visit struct {
	ID         string          `json:"id"`
	Site       string          `json:"site"`
	Requester  string          `json:"requester"`
	Arrival    string          `json:"arrival"`
	Departure  string          `json:"departure"`
	Beds       int             `json:"beds"`
	Attributes site.Attributes `json:"attributes"`
	State      string          `json:"state"`
	Notes      string          `json:"notes,omitempty"`
	DecidedBy  string          `json:"decided_by,omitempty"`
	DecidedAt  *time.Time      `json:"decided_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Stays      []Stay          `json:"stays,omitempty"`
}

type VisitCollection struct {
	Items []Visit `json:"items"`
}

func VisitFrom(v *domainvisit.Visit) Visit {
	out := Visit{
		ID:         string(v.ID),
		Site:       string(v.Site),
		Requester:  v.Requester,
		Arrival:    daterange.FormatDay(v.Window.Arrival),
		Departure:  daterange.FormatDay(v.Window.Departure),
		Beds:       v.Beds,
		Attributes: v.Attributes.Copy(),
		State:      string(v.State),
		Notes:      v.Notes,
		DecidedBy:  v.DecidedBy,
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
	}
	if !v.DecidedAt.IsZero() {
		at := v.DecidedAt
		out.DecidedAt = &at
	}
	return out
}
