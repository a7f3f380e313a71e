package dto

import (
	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/site"
	domainstay "stationbeds/internal/domain/stay"
)

type Stay struct {
	ID          string          `json:"id"`
	VisitID     string          `json:"visit_id"`
	Occupant    string          `json:"occupant"`
	DisplayName string          `json:"display_name"`
	Placeholder bool            `json:"placeholder"`
	Site        string          `json:"site"`
	Arrival     string          `json:"arrival"`
	Departure   string          `json:"departure"`
	Nights      int             `json:"nights"`
	Attributes  site.Attributes `json:"attributes"`
}

type StayCollection struct {
	Items []Stay `json:"items"`
}

// BookResult is the interval a booking left in the store.
type BookResult struct {
	Stay   Stay `json:"stay"`
	Merged int  `json:"merged"`
}

type StayChange struct {
	Kind   string `json:"kind"`
	Before Stay   `json:"before"`
	After  []Stay `json:"after"`
}

type ReleaseResult struct {
	Changes []StayChange `json:"changes"`
}

func StayFrom(st *domainstay.Stay) Stay {
	return Stay{
		ID:          string(st.ID),
		VisitID:     string(st.VisitID),
		Occupant:    st.Occupant.Key(),
		DisplayName: st.Occupant.Display(),
		Placeholder: st.Occupant.IsPlaceholder(),
		Site:        string(st.Site),
		Arrival:     daterange.FormatDay(st.Range.Arrival),
		Departure:   daterange.FormatDay(st.Range.Departure),
		Nights:      st.Range.Nights(),
		Attributes:  st.Attributes.Copy(),
	}
}

func StaysFrom(stays []*domainstay.Stay) []Stay {
	out := make([]Stay, 0, len(stays))
	for _, st := range stays {
		out = append(out, StayFrom(st))
	}
	return out
}

func ChangesFrom(changes []domainstay.Change) []StayChange {
	out := make([]StayChange, 0, len(changes))
	for _, c := range changes {
		out = append(out, StayChange{Kind: string(c.Kind), Before: StayFrom(c.Before), After: StaysFrom(c.After)})
	}
	return out
}
