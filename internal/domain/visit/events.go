package visit

import (
	"time"

	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/site"
)

type VisitRequested struct {
	VisitID   ID
	Site      site.Site
	Requester string
	Window    daterange.DateRange
	Beds      int
	State     State
	At        time.Time
}

func (e VisitRequested) EventName() string     { return "visit.requested" }
func (e VisitRequested) AggregateID() string   { return string(e.VisitID) }
func (e VisitRequested) OccurredAt() time.Time { return e.At }

type VisitApproved struct {
	VisitID ID
	Site    site.Site
	Window  daterange.DateRange
	By      string
	Notes   string
	At      time.Time
}

func (e VisitApproved) EventName() string     { return "visit.approved" }
func (e VisitApproved) AggregateID() string   { return string(e.VisitID) }
func (e VisitApproved) OccurredAt() time.Time { return e.At }

type VisitRejected struct {
	VisitID ID
	Site    site.Site
	Window  daterange.DateRange
	By      string
	Notes   string
	At      time.Time
}

func (e VisitRejected) EventName() string     { return "visit.rejected" }
func (e VisitRejected) AggregateID() string   { return string(e.VisitID) }
func (e VisitRejected) OccurredAt() time.Time { return e.At }

type VisitCancelled struct {
	VisitID  ID
	Previous State
	Reason   string
	At       time.Time
}

func (e VisitCancelled) EventName() string     { return "visit.cancelled" }
func (e VisitCancelled) AggregateID() string   { return string(e.VisitID) }
func (e VisitCancelled) OccurredAt() time.Time { return e.At }
