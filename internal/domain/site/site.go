package site

import (
	"sort"
	"strings"

	"stationbeds/internal/domain/shared/failure"
)

// Site identifies a fixed-capacity accommodation location.
type Site string

const (
	Lowland Site = "lowland"
	Montane Site = "montane"
)

// All lists the known sites in display order.
func All() []Site { return []Site{Lowland, Montane} }

func Parse(raw string) (Site, error) {
	s := Site(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", failure.Invalid("site", "unknown site "+strings.TrimSpace(raw))
	}
	return s, nil
}

func (s Site) Valid() bool {
	return s == Lowland || s == Montane
}

// HasNightAttributes reports whether the site records lodging and meals.
func (s Site) HasNightAttributes() bool {
	return s == Montane
}

type Lodging string

const (
	LodgingNone  Lodging = ""
	LodgingDorm  Lodging = "dorm"
	LodgingCabin Lodging = "cabin"
	LodgingTent  Lodging = "tent"
)

type Meal string

const (
	Breakfast Meal = "breakfast"
	Lunch     Meal = "lunch"
	Dinner    Meal = "dinner"
)

// Attributes are the per-night extras of a stay. A merge replaces them wholesale.
type Attributes struct {
	Lodging Lodging `json:"lodging,omitempty" bson:"lodging,omitempty"`
	Meals   []Meal  `json:"meals,omitempty" bson:"meals,omitempty"`
}

func (a Attributes) IsZero() bool {
	return a.Lodging == LodgingNone && len(a.Meals) == 0
}

// Normalize lower-cases, deduplicates and sorts meals.
func (a Attributes) Normalize() Attributes {
	out := Attributes{Lodging: Lodging(strings.ToLower(strings.TrimSpace(string(a.Lodging))))}
	seen := map[Meal]bool{}
	for _, m := range a.Meals {
		m = Meal(strings.ToLower(strings.TrimSpace(string(m))))
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out.Meals = append(out.Meals, m)
	}
	sort.Slice(out.Meals, func(i, j int) bool { return mealOrder(out.Meals[i]) < mealOrder(out.Meals[j]) })
	return out
}

func (a Attributes) Copy() Attributes {
	return Attributes{Lodging: a.Lodging, Meals: append([]Meal(nil), a.Meals...)}
}

// ValidateFor checks the attributes against what the site records.
func (a Attributes) ValidateFor(s Site) error {
	if !s.HasNightAttributes() {
		if !a.IsZero() {
			return failure.Invalid("attributes", "site "+string(s)+" does not take lodging or meals")
		}
		return nil
	}
	switch a.Lodging {
	case LodgingNone, LodgingDorm, LodgingCabin, LodgingTent:
	default:
		return failure.Invalid("attributes.lodging", "unknown lodging "+string(a.Lodging))
	}
	for _, m := range a.Meals {
		if mealOrder(m) < 0 {
			return failure.Invalid("attributes.meals", "unknown meal "+string(m))
		}
	}
	return nil
}

func mealOrder(m Meal) int {
	switch m {
	case Breakfast:
		return 0
	case Lunch:
		return 1
	case Dinner:
		return 2
	}
	return -1
}
