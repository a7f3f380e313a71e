package dto

import (
	domainavailability "stationbeds/internal/domain/availability"
	"stationbeds/internal/domain/shared/daterange"
)

type FeedSeries struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Color string `json:"color"`
	Order int    `json:"order"`
}

type FeedPoint struct {
	Day    string `json:"day"`
	Series string `json:"series"`
	Count  int    `json:"count"`
}

type FeedDay struct {
	Day       string `json:"day"`
	Pending   int    `json:"pending"`
	Approved  int    `json:"approved"`
	Available int    `json:"available"`
}

// Feed is the availability calendar of one site. Points carry one entry per
// day per series, in series order.
type Feed struct {
	Site     string       `json:"site"`
	From     string       `json:"from"`
	To       string       `json:"to"`
	Capacity int          `json:"capacity"`
	Series   []FeedSeries `json:"series"`
	Days     []FeedDay    `json:"days"`
	Points   []FeedPoint  `json:"points"`
}

func FeedFrom(site string, r daterange.DateRange, capacity int, days []domainavailability.Day) Feed {
	out := Feed{
		Site:     site,
		From:     daterange.FormatDay(r.Arrival),
		To:       daterange.FormatDay(r.Departure),
		Capacity: capacity,
		Days:     make([]FeedDay, 0, len(days)),
		Points:   make([]FeedPoint, 0, len(days)*len(domainavailability.FeedSeries)),
	}
	for _, s := range domainavailability.FeedSeries {
		out.Series = append(out.Series, FeedSeries{Key: s.Key, Label: s.Label, Color: s.Color, Order: s.Order})
	}
	for _, d := range days {
		day := daterange.FormatDay(d.Day)
		out.Days = append(out.Days, FeedDay{Day: day, Pending: d.Pending, Approved: d.Approved, Available: d.Available})
		for _, s := range domainavailability.FeedSeries {
			out.Points = append(out.Points, FeedPoint{Day: day, Series: s.Key, Count: seriesCount(s.Key, d)})
		}
	}
	return out
}

func seriesCount(key string, d domainavailability.Day) int {
	switch key {
	case "available":
		return d.Available
	case "pending":
		return d.Pending
	case "approved":
		return d.Approved
	}
	return 0
}

type DriftDay struct {
	Day             string `json:"day"`
	CounterPending  int    `json:"counter_pending"`
	CounterApproved int    `json:"counter_approved"`
	StayPending     int    `json:"stay_pending"`
	StayApproved    int    `json:"stay_approved"`
}

type Reconciliation struct {
	Site    string     `json:"site"`
	From    string     `json:"from"`
	To      string     `json:"to"`
	InSync  bool       `json:"in_sync"`
	Drifted []DriftDay `json:"drifted"`
}

func ReconciliationFrom(site string, r daterange.DateRange, drift []domainavailability.Drift) Reconciliation {
	out := Reconciliation{
		Site:    site,
		From:    daterange.FormatDay(r.Arrival),
		To:      daterange.FormatDay(r.Departure),
		InSync:  len(drift) == 0,
		Drifted: make([]DriftDay, 0, len(drift)),
	}
	for _, d := range drift {
		out.Drifted = append(out.Drifted, DriftDay{
			Day:             daterange.FormatDay(d.Day),
			CounterPending:  d.CounterPending,
			CounterApproved: d.CounterApproved,
			StayPending:     d.StayPending,
			StayApproved:    d.StayApproved,
		})
	}
	return out
}
