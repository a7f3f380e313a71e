package visit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/shared/failure"
	"stationbeds/internal/domain/site"
)

var now = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

func newPending(t *testing.T) *Visit {
	t.Helper()
	v, err := NewVisit(CreateParams{
		ID:        "v-1",
		Site:      site.Lowland,
		Requester: "ada",
		Window:    daterange.MustNew("2024-03-01", "2024-03-04"),
		Beds:      4,
		CreatedAt: now,
	})
	require.NoError(t, err)
	return v
}

func TestNewVisit_Validation(t *testing.T) {
	_, err := NewVisit(CreateParams{ID: "v", Site: site.Lowland, Requester: "ada", Window: daterange.MustNew("2024-03-01", "2024-03-02"), Beds: 0})
	ve, ok := failure.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "beds", ve.Field)

	_, err = NewVisit(CreateParams{ID: "v", Site: site.Lowland, Requester: "ada", Beds: 1})
	ve, ok = failure.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "departure", ve.Field)
}

func TestNewVisit_RecordsRequest(t *testing.T) {
	v := newPending(t)
	assert.Equal(t, StatePending, v.State)
	evs := v.Drain()
	require.Len(t, evs, 1)
	assert.Equal(t, "visit.requested", evs[0].EventName())
	assert.Empty(t, v.PendingEvents())
}

func TestNewVisit_ApprovedFromCreation(t *testing.T) {
	v, err := NewVisit(CreateParams{ID: "v-2", Site: site.Montane, Requester: "admin", Window: daterange.MustNew("2024-03-01", "2024-03-02"), Beds: 2, Approved: true, CreatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, StateApproved, v.State)
	assert.Equal(t, "admin", v.DecidedBy)
}

func TestApprove_IsTerminal(t *testing.T) {
	v := newPending(t)
	require.NoError(t, v.Approve("boss", "ok", now))
	assert.Equal(t, StateApproved, v.State)
	assert.Equal(t, "ok", v.Notes)

	assert.ErrorIs(t, v.Approve("boss", "", now), ErrInvalidState)
	assert.ErrorIs(t, v.Reject("boss", "", now), ErrInvalidState)
}

func TestCancel_ReturnsHeldState(t *testing.T) {
	v := newPending(t)
	require.NoError(t, v.Approve("boss", "", now))
	prev, err := v.Cancel("plans changed", now)
	require.NoError(t, err)
	assert.Equal(t, StateApproved, prev)
	assert.Equal(t, StateCancelled, v.State)

	_, err = v.Cancel("again", now)
	assert.ErrorIs(t, err, ErrInvalidState)

	rejected := newPending(t)
	require.NoError(t, rejected.Reject("boss", "full", now))
	_, err = rejected.Cancel("", now)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestParseState(t *testing.T) {
	st, err := ParseState("approved")
	require.NoError(t, err)
	assert.Equal(t, StateApproved, st)
	_, err = ParseState("maybe")
	assert.True(t, failure.IsValidation(err))
}
