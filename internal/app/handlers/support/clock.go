package support

import (
	"time"

	"github.com/google/uuid"

	domainstay "stationbeds/internal/domain/stay"
)

// Clock returns the current instant; tests pin it.
type Clock func() time.Time

func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

func NewStayID() domainstay.StayID {
	return domainstay.StayID(uuid.NewString())
}

// StayIDs falls back to random uuids when gen is nil.
func StayIDs(gen domainstay.IDGenerator) domainstay.IDGenerator {
	if gen == nil {
		return NewStayID
	}
	return gen
}
