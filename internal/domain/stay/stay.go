package stay

import (
	"context"
	"fmt"
	"time"

	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/shared/failure"
	"stationbeds/internal/domain/site"
	"stationbeds/internal/domain/visit"
)

var ErrStayNotFound = fmt.Errorf("stay: %w", failure.ErrNotFound)

type StayID string

// Key is the merge identity of a stay: the occupant within its visit at one site.
type Key struct {
	VisitID  visit.ID
	Occupant string
	Site     site.Site
}

// Stay is one stored interval of occupancy. At most one stay exists per Key
// for any contiguous run of days: stays of the same key never overlap or touch.
type Stay struct {
	ID         StayID
	VisitID    visit.ID
	Occupant   Occupant
	Site       site.Site
	Range      daterange.DateRange
	Attributes site.Attributes
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Version    int64
}

type Repository interface {
	ByID(ctx context.Context, id StayID) (*Stay, error)
	// Touching returns stays of key whose range overlaps or meets r.
	Touching(ctx context.Context, key Key, r daterange.DateRange) ([]*Stay, error)
	ByVisit(ctx context.Context, visitID visit.ID) ([]*Stay, error)
	// BySite returns stays at s sharing at least one night with r.
	BySite(ctx context.Context, s site.Site, r daterange.DateRange) ([]*Stay, error)
	Save(ctx context.Context, st *Stay) error
	Delete(ctx context.Context, id StayID) error
}

func (s *Stay) Key() Key {
	return Key{VisitID: s.VisitID, Occupant: s.Occupant.Key(), Site: s.Site}
}

func (s *Stay) Clone() *Stay {
	if s == nil {
		return nil
	}
	c := *s
	c.Attributes = s.Attributes.Copy()
	return &c
}

// FilterKey keeps the stays belonging to key.
func FilterKey(stays []*Stay, key Key) []*Stay {
	out := make([]*Stay, 0, len(stays))
	for _, st := range stays {
		if st != nil && st.Key() == key {
			out = append(out, st)
		}
	}
	return out
}
