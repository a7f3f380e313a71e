package daterange

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DayLayout is the wire format of calendar dates.
const DayLayout = "2006-01-02"

var (
	ErrInvalidRange = errors.New("daterange: departure must be after arrival")
	ErrInvalidDay   = errors.New("daterange: invalid calendar date")
)

// DateRange represents a half-open interval of calendar days [Arrival, Departure).
// Both bounds are normalized to midnight UTC; the departure day is the first day
// that is not occupied.
type DateRange struct {
	Arrival   time.Time
	Departure time.Time
}

// Day truncates t to its calendar date at midnight UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses an ISO YYYY-MM-DD date.
func ParseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse(DayLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDay, raw)
	}
	return t, nil
}

// FormatDay renders a day in the wire format.
func FormatDay(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

func New(arrival, departure time.Time) (DateRange, error) {
	dr := DateRange{Arrival: Day(arrival), Departure: Day(departure)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// MustNew is New for literals in fixtures and tests.
func MustNew(arrival, departure string) DateRange {
	a, err := ParseDay(arrival)
	if err != nil {
		panic(err)
	}
	d, err := ParseDay(departure)
	if err != nil {
		panic(err)
	}
	dr, err := New(a, d)
	if err != nil {
		panic(err)
	}
	return dr
}

func (dr DateRange) Validate() error {
	if dr.Arrival.IsZero() || dr.Departure.IsZero() {
		return ErrInvalidRange
	}
	if !dr.Departure.After(dr.Arrival) {
		return ErrInvalidRange
	}
	return nil
}

func (dr DateRange) Nights() int {
	return int(dr.Departure.Sub(dr.Arrival).Hours() / 24)
}

// Days lists every occupied day, arrival included and departure excluded.
func (dr DateRange) Days() []time.Time {
	n := dr.Nights()
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	for d := dr.Arrival; d.Before(dr.Departure); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Overlaps reports whether the two ranges share at least one night.
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.Arrival.Before(other.Departure) && other.Arrival.Before(dr.Departure)
}

// Touches is the inclusive boundary test: ranges that overlap or merely meet
// (one departs on the day the other arrives) both touch.
func (dr DateRange) Touches(other DateRange) bool {
	return !dr.Departure.Before(other.Arrival) && !dr.Arrival.After(other.Departure)
}

func (dr DateRange) Contains(other DateRange) bool {
	return !other.Arrival.Before(dr.Arrival) && !other.Departure.After(dr.Departure)
}

func (dr DateRange) ContainsDay(t time.Time) bool {
	t = Day(t)
	return !t.Before(dr.Arrival) && t.Before(dr.Departure)
}

func (dr DateRange) Adjacent(other DateRange) bool {
	return dr.Departure.Equal(other.Arrival) || dr.Arrival.Equal(other.Departure)
}

// Span returns the smallest range covering both.
func (dr DateRange) Span(other DateRange) DateRange {
	start := dr.Arrival
	if other.Arrival.Before(start) {
		start = other.Arrival
	}
	end := dr.Departure
	if other.Departure.After(end) {
		end = other.Departure
	}
	return DateRange{Arrival: start, Departure: end}
}

func (dr DateRange) Equal(other DateRange) bool {
	return dr.Arrival.Equal(other.Arrival) && dr.Departure.Equal(other.Departure)
}

func (dr DateRange) String() string {
	return "[" + FormatDay(dr.Arrival) + ", " + FormatDay(dr.Departure) + ")"
}
