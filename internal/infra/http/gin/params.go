package ginserver

import (
	"strings"
	"time"

	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/shared/failure"
	"stationbeds/internal/domain/site"
	domainstay "stationbeds/internal/domain/stay"
)

type attributesRequest struct {
	Lodging string   `json:"lodging"`
	Meals   []string `json:"meals"`
}

func (a attributesRequest) toDomain() site.Attributes {
	out := site.Attributes{Lodging: site.Lodging(a.Lodging)}
	for _, m := range a.Meals {
		out.Meals = append(out.Meals, site.Meal(m))
	}
	return out.Normalize()
}

func parseDay(field, raw string) (time.Time, error) {
	d, err := daterange.ParseDay(raw)
	if err != nil {
		return time.Time{}, failure.Invalid(field, "expected YYYY-MM-DD")
	}
	return d, nil
}

// parseRange reads two ISO days. Ordering is left to the engine so the
// error names the right field.
func parseRange(fromField, from, toField, to string) (daterange.DateRange, error) {
	start, err := parseDay(fromField, from)
	if err != nil {
		return daterange.DateRange{}, err
	}
	end, err := parseDay(toField, to)
	if err != nil {
		return daterange.DateRange{}, err
	}
	return daterange.DateRange{Arrival: start, Departure: end}, nil
}

// parseOccupant accepts "known:<id>", "unknown:<id>" or a bare person id.
func parseOccupant(field, raw string) (domainstay.Occupant, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domainstay.Occupant{}, failure.Invalid(field, "required")
	}
	if !strings.Contains(raw, ":") {
		return domainstay.Known(raw), nil
	}
	o, err := domainstay.ParseOccupant(raw)
	if err != nil {
		return domainstay.Occupant{}, failure.Invalid(field, "expected known:<id> or unknown:<id>")
	}
	return o, nil
}
