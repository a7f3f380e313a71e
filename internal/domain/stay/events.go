package stay

import (
	"time"

	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/site"
	"stationbeds/internal/domain/visit"
)

type StayBooked struct {
	StayID   StayID
	VisitID  visit.ID
	Occupant string
	Site     site.Site
	Range    daterange.DateRange
	Merged   int
	At       time.Time
}

func (e StayBooked) EventName() string     { return "stay.booked" }
func (e StayBooked) AggregateID() string   { return string(e.VisitID) }
func (e StayBooked) OccurredAt() time.Time { return e.At }

type StayReleased struct {
	VisitID  visit.ID
	Occupant string
	Site     site.Site
	Window   daterange.DateRange
	Changes  []ChangeKind
	At       time.Time
}

func (e StayReleased) EventName() string     { return "stay.released" }
func (e StayReleased) AggregateID() string   { return string(e.VisitID) }
func (e StayReleased) OccurredAt() time.Time { return e.At }

func BookedEvent(plan BookPlan, at time.Time) StayBooked {
	r := plan.Result
	return StayBooked{StayID: r.ID, VisitID: r.VisitID, Occupant: r.Occupant.Key(), Site: r.Site, Range: r.Range, Merged: len(plan.Remove), At: at}
}

func ReleasedEvent(key Key, window daterange.DateRange, changes []Change, at time.Time) StayReleased {
	kinds := make([]ChangeKind, 0, len(changes))
	for _, c := range changes {
		kinds = append(kinds, c.Kind)
	}
	return StayReleased{VisitID: key.VisitID, Occupant: key.Occupant, Site: key.Site, Window: window, Changes: kinds, At: at}
}
