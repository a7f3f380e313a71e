package mongo

import (
	"time"

	"stationbeds/internal/domain/shared/daterange"
)

type rangeDocument struct {
	Arrival   int64 `bson:"arrival"`
	Departure int64 `bson:"departure"`
}

func newRangeDocument(r daterange.DateRange) rangeDocument {
	return rangeDocument{Arrival: r.Arrival.UnixMilli(), Departure: r.Departure.UnixMilli()}
}

func (d rangeDocument) toRange() daterange.DateRange {
	return daterange.DateRange{Arrival: daterange.Day(timestampToTime(d.Arrival)), Departure: daterange.Day(timestampToTime(d.Departure))}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func timeToTimestamp(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func optionalTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return timestampToTime(ms)
}
