package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stationbeds/internal/app/caller"
	"stationbeds/internal/app/commands"
	"stationbeds/internal/app/dto"
	"stationbeds/internal/app/engine"
	availabilityapp "stationbeds/internal/app/handlers/availability"
	staysapp "stationbeds/internal/app/handlers/stays"
	visitsapp "stationbeds/internal/app/handlers/visits"
	"stationbeds/internal/app/policies"
	"stationbeds/internal/app/queries"
	domainavailability "stationbeds/internal/domain/availability"
	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/shared/failure"
	"stationbeds/internal/domain/site"
	domainstay "stationbeds/internal/domain/stay"
	domainvisit "stationbeds/internal/domain/visit"
	"stationbeds/internal/infra/storage/memory"
)

var now = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

type sentNotice struct {
	to       string
	template string
	data     any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
}

func (n *recordingNotifier) Send(_ context.Context, to, template string, data any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotice{to: to, template: template, data: data})
	return nil
}

var _ policies.Notifier = (*recordingNotifier)(nil)

type fixture struct {
	buses    engine.Buses
	outbox   *memory.Outbox
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	seq := 0
	stayIDs := 0
	box := memory.NewOutbox(nil, nil)
	notifier := &recordingNotifier{}
	buses := engine.Build(engine.Deps{
		UoW:         memory.Factory{Store: memory.NewStore()},
		Outbox:      box,
		Idempotency: memory.NewIdempotencyStore(time.Hour),
		Notifier:    notifier,
		Settings: domainavailability.Settings{
			Capacity:     map[site.Site]int{site.Lowland: 3, site.Montane: 4},
			NoticePeriod: 14 * 24 * time.Hour,
		},
		Clock: func() time.Time { return now },
		NewVisitID: func() domainvisit.ID {
			seq++
			return domainvisit.ID(fmt.Sprintf("v-%d", seq))
		},
		NewStayID: func() domainstay.StayID {
			stayIDs++
			return domainstay.StayID(fmt.Sprintf("s-%d", stayIDs))
		},
	})
	return &fixture{buses: buses, outbox: box, notifier: notifier}
}

func as(name, role string) context.Context {
	return caller.WithCaller(context.Background(), caller.Caller{ID: name, Name: name, Role: role})
}

var (
	member = as("ana", caller.RoleMember)
	other  = as("ben", caller.RoleMember)
	admin  = as("root", caller.RoleAdmin)
)

func (f *fixture) request(t *testing.T, ctx context.Context, cmd visitsapp.RequestVisitCommand) *dto.Visit {
	t.Helper()
	v, err := commands.Dispatch[visitsapp.RequestVisitCommand, *dto.Visit](ctx, f.buses.Commands, cmd)
	require.NoError(t, err)
	return v
}

func (f *fixture) feed(t *testing.T, s site.Site, from, to string) *dto.Feed {
	t.Helper()
	feed, err := queries.Ask[availabilityapp.GetFeedQuery, *dto.Feed](member, f.buses.Queries, availabilityapp.GetFeedQuery{
		Site:  s,
		Range: daterange.MustNew(from, to),
	})
	require.NoError(t, err)
	return feed
}

func (f *fixture) reconcile(t *testing.T, s site.Site, from, to string) *dto.Reconciliation {
	t.Helper()
	rec, err := queries.Ask[availabilityapp.ReconcileQuery, *dto.Reconciliation](admin, f.buses.Queries, availabilityapp.ReconcileQuery{
		Site:  s,
		Range: daterange.MustNew(from, to),
	})
	require.NoError(t, err)
	return rec
}

func lowlandVisit(beds int, from, to string) visitsapp.RequestVisitCommand {
	return visitsapp.RequestVisitCommand{Site: site.Lowland, Beds: beds, Window: daterange.MustNew(from, to)}
}

func mustDay(raw string) time.Time {
	d, err := daterange.ParseDay(raw)
	if err != nil {
		panic(err)
	}
	return d
}

func day(feed *dto.Feed, d string) dto.FeedDay {
	for _, fd := range feed.Days {
		if fd.Day == d {
			return fd
		}
	}
	return dto.FeedDay{}
}

func TestRequestVisit_CountsPlaceholdersAsPending(t *testing.T) {
	f := newFixture(t)
	v := f.request(t, member, lowlandVisit(2, "2024-02-01", "2024-02-04"))

	assert.Equal(t, "PENDING", v.State)
	assert.Equal(t, "ana", v.Requester)
	require.Len(t, v.Stays, 2)
	for _, st := range v.Stays {
		assert.True(t, st.Placeholder)
		assert.Equal(t, 3, st.Nights)
	}

	feed := f.feed(t, site.Lowland, "2024-01-31", "2024-02-05")
	assert.Equal(t, 3, feed.Capacity)
	assert.Equal(t, dto.FeedDay{Day: "2024-01-31", Available: 3}, day(feed, "2024-01-31"))
	assert.Equal(t, dto.FeedDay{Day: "2024-02-01", Pending: 2, Available: 1}, day(feed, "2024-02-01"))
	assert.Equal(t, dto.FeedDay{Day: "2024-02-03", Pending: 2, Available: 1}, day(feed, "2024-02-03"))
	assert.Equal(t, dto.FeedDay{Day: "2024-02-04", Available: 3}, day(feed, "2024-02-04"))
	assert.Len(t, feed.Points, len(feed.Days)*len(feed.Series))

	published := f.outbox.Published()
	require.NotEmpty(t, published)
	assert.Equal(t, "visit.requested", published[0].Name)
}

func TestRequestVisit_RejectsOverCapacity(t *testing.T) {
	f := newFixture(t)
	f.request(t, member, lowlandVisit(2, "2024-02-01", "2024-02-04"))

	_, err := commands.Dispatch[visitsapp.RequestVisitCommand, *dto.Visit](other, f.buses.Commands, lowlandVisit(2, "2024-02-03", "2024-02-06"))
	capErr, ok := failure.AsCapacity(err)
	require.True(t, ok, "expected capacity error, got %v", err)
	assert.Equal(t, "lowland", capErr.Site)
	assert.Equal(t, 2, capErr.Requested)
	assert.Equal(t, 1, capErr.Available)
	assert.Equal(t, "2024-02-03", daterange.FormatDay(capErr.Day))

	// nothing of the rejected request was stored
	feed := f.feed(t, site.Lowland, "2024-02-04", "2024-02-06")
	assert.Equal(t, 0, day(feed, "2024-02-04").Pending)
	assert.True(t, f.reconcile(t, site.Lowland, "2024-01-25", "2024-02-10").InSync)
}

func TestRequestVisit_AdminOverridesCapacityAndNotice(t *testing.T) {
	f := newFixture(t)
	v := f.request(t, admin, lowlandVisit(5, "2024-01-03", "2024-01-05"))
	assert.Equal(t, 5, v.Beds)

	feed := f.feed(t, site.Lowland, "2024-01-03", "2024-01-04")
	assert.Equal(t, dto.FeedDay{Day: "2024-01-03", Pending: 5, Available: 0}, day(feed, "2024-01-03"))
}

func TestRequestVisit_EnforcesNoticePeriod(t *testing.T) {
	f := newFixture(t)
	_, err := commands.Dispatch[visitsapp.RequestVisitCommand, *dto.Visit](member, f.buses.Commands, lowlandVisit(1, "2024-01-10", "2024-01-12"))
	verr, ok := failure.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "arrival", verr.Field)

	f.request(t, member, lowlandVisit(1, "2024-01-15", "2024-01-16"))
}

func TestRequestVisit_ApproveAtCreationIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	cmd := lowlandVisit(1, "2024-02-01", "2024-02-02")
	cmd.Approve = true

	_, err := commands.Dispatch[visitsapp.RequestVisitCommand, *dto.Visit](member, f.buses.Commands, cmd)
	assert.ErrorIs(t, err, caller.ErrForbidden)

	v := f.request(t, admin, cmd)
	assert.Equal(t, "APPROVED", v.State)
	feed := f.feed(t, site.Lowland, "2024-02-01", "2024-02-02")
	assert.Equal(t, 1, day(feed, "2024-02-01").Approved)
	assert.Equal(t, 0, day(feed, "2024-02-01").Pending)
}

func TestRequestVisit_RejectsMalformedCommands(t *testing.T) {
	f := newFixture(t)
	cases := map[string]visitsapp.RequestVisitCommand{
		"beds":       lowlandVisit(0, "2024-02-01", "2024-02-02"),
		"departure":  {Site: site.Lowland, Beds: 1, Window: daterange.DateRange{Arrival: mustDay("2024-02-02"), Departure: mustDay("2024-02-02")}},
		"attributes": {Site: site.Lowland, Beds: 1, Window: daterange.MustNew("2024-02-01", "2024-02-02"), Attributes: site.Attributes{Lodging: site.LodgingDorm}},
	}
	for field, cmd := range cases {
		t.Run(field, func(t *testing.T) {
			_, err := commands.Dispatch[visitsapp.RequestVisitCommand, *dto.Visit](member, f.buses.Commands, cmd)
			verr, ok := failure.AsValidation(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, field, verr.Field)
		})
	}
}

func TestCommands_RequireKnownCaller(t *testing.T) {
	f := newFixture(t)
	_, err := commands.Dispatch[visitsapp.RequestVisitCommand, *dto.Visit](context.Background(), f.buses.Commands, lowlandVisit(1, "2024-02-01", "2024-02-02"))
	assert.ErrorIs(t, err, caller.ErrAnonymous)

	_, err = queries.Ask[visitsapp.ListVisitsQuery, *dto.VisitCollection](context.Background(), f.buses.Queries, visitsapp.ListVisitsQuery{})
	assert.ErrorIs(t, err, caller.ErrAnonymous)
}

func TestRequestVisit_IdempotencyKeyReplaysResult(t *testing.T) {
	f := newFixture(t)
	cmd := lowlandVisit(1, "2024-02-01", "2024-02-03")
	cmd.IdempotencyKeyV = "req-1"

	first := f.request(t, member, cmd)
	second := f.request(t, member, cmd)
	assert.Equal(t, first.ID, second.ID)

	// another caller reusing the key gets its own visit
	third := f.request(t, other, cmd)
	assert.NotEqual(t, first.ID, third.ID)

	list, err := queries.Ask[visitsapp.ListVisitsQuery, *dto.VisitCollection](admin, f.buses.Queries, visitsapp.ListVisitsQuery{})
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
	assert.Equal(t, 2, day(f.feed(t, site.Lowland, "2024-02-01", "2024-02-02"), "2024-02-01").Pending)
}

func TestDecideVisit_ApprovalMovesDemandAndNotifies(t *testing.T) {
	f := newFixture(t)
	v := f.request(t, member, lowlandVisit(2, "2024-02-01", "2024-02-03"))

	_, err := commands.Dispatch[visitsapp.DecideVisitCommand, *dto.Visit](member, f.buses.Commands, visitsapp.DecideVisitCommand{
		VisitID: domainvisit.ID(v.ID), Decision: domainvisit.StateApproved,
	})
	assert.ErrorIs(t, err, caller.ErrForbidden)

	decided, err := commands.Dispatch[visitsapp.DecideVisitCommand, *dto.Visit](admin, f.buses.Commands, visitsapp.DecideVisitCommand{
		VisitID: domainvisit.ID(v.ID), Decision: domainvisit.StateApproved, Notes: "welcome",
	})
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", decided.State)
	assert.Equal(t, "root", decided.DecidedBy)
	require.NotNil(t, decided.DecidedAt)

	feed := f.feed(t, site.Lowland, "2024-02-01", "2024-02-03")
	assert.Equal(t, dto.FeedDay{Day: "2024-02-01", Approved: 2, Available: 1}, day(feed, "2024-02-01"))
	assert.Equal(t, dto.FeedDay{Day: "2024-02-02", Approved: 2, Available: 1}, day(feed, "2024-02-02"))

	require.Len(t, f.notifier.sent, 1)
	sent := f.notifier.sent[0]
	assert.Equal(t, "ana", sent.to)
	assert.Equal(t, policies.TemplateVisitApproved, sent.template)
	notice, ok := sent.data.(visitsapp.DecisionNotice)
	require.True(t, ok)
	assert.Equal(t, 2, notice.Beds)
	assert.Equal(t, "2024-02-01", notice.Arrival)

	_, err = commands.Dispatch[visitsapp.DecideVisitCommand, *dto.Visit](admin, f.buses.Commands, visitsapp.DecideVisitCommand{
		VisitID: domainvisit.ID(v.ID), Decision: domainvisit.StateRejected,
	})
	assert.ErrorIs(t, err, domainvisit.ErrInvalidState)
	assert.True(t, f.reconcile(t, site.Lowland, "2024-01-30", "2024-02-05").InSync)
}

func TestDecideVisit_RejectionFreesNights(t *testing.T) {
	f := newFixture(t)
	v := f.request(t, member, lowlandVisit(3, "2024-02-01", "2024-02-03"))

	decided, err := commands.Dispatch[visitsapp.DecideVisitCommand, *dto.Visit](admin, f.buses.Commands, visitsapp.DecideVisitCommand{
		VisitID: domainvisit.ID(v.ID), Decision: domainvisit.StateRejected,
	})
	require.NoError(t, err)
	assert.Equal(t, "REJECTED", decided.State)
	assert.Equal(t, dto.FeedDay{Day: "2024-02-01", Available: 3}, day(f.feed(t, site.Lowland, "2024-02-01", "2024-02-02"), "2024-02-01"))
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, policies.TemplateVisitRejected, f.notifier.sent[0].template)

	// freed nights can be requested again
	f.request(t, other, lowlandVisit(3, "2024-02-01", "2024-02-03"))
}

func TestDecideVisit_UnknownVisit(t *testing.T) {
	f := newFixture(t)
	_, err := commands.Dispatch[visitsapp.DecideVisitCommand, *dto.Visit](admin, f.buses.Commands, visitsapp.DecideVisitCommand{
		VisitID: "missing", Decision: domainvisit.StateApproved,
	})
	assert.True(t, failure.IsNotFound(err))
}

func TestCancelVisit_ReleasesNightsAndKeepsStays(t *testing.T) {
	f := newFixture(t)
	v := f.request(t, member, lowlandVisit(2, "2024-02-01", "2024-02-03"))

	_, err := commands.Dispatch[visitsapp.CancelVisitCommand, *dto.Visit](other, f.buses.Commands, visitsapp.CancelVisitCommand{VisitID: domainvisit.ID(v.ID)})
	assert.ErrorIs(t, err, caller.ErrForbidden)

	cancelled, err := commands.Dispatch[visitsapp.CancelVisitCommand, *dto.Visit](member, f.buses.Commands, visitsapp.CancelVisitCommand{
		VisitID: domainvisit.ID(v.ID), Reason: "plans changed",
	})
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", cancelled.State)

	feed := f.feed(t, site.Lowland, "2024-02-01", "2024-02-03")
	assert.Equal(t, dto.FeedDay{Day: "2024-02-01", Available: 3}, day(feed, "2024-02-01"))

	stays, err := queries.Ask[staysapp.ListStaysQuery, *dto.StayCollection](member, f.buses.Queries, staysapp.ListStaysQuery{VisitID: domainvisit.ID(v.ID)})
	require.NoError(t, err)
	assert.Len(t, stays.Items, 2)

	_, err = commands.Dispatch[visitsapp.CancelVisitCommand, *dto.Visit](member, f.buses.Commands, visitsapp.CancelVisitCommand{VisitID: domainvisit.ID(v.ID)})
	assert.ErrorIs(t, err, domainvisit.ErrInvalidState)
	assert.True(t, f.reconcile(t, site.Lowland, "2024-01-30", "2024-02-05").InSync)
}

func montaneVisit(t *testing.T, f *fixture) *dto.Visit {
	t.Helper()
	return f.request(t, member, visitsapp.RequestVisitCommand{
		Site:       site.Montane,
		Beds:       1,
		Window:     daterange.MustNew("2024-03-01", "2024-03-10"),
		Attributes: site.Attributes{Lodging: site.LodgingCabin},
	})
}

func book(ctx context.Context, f *fixture, visitID, person, from, to string) (*dto.BookResult, error) {
	return commands.Dispatch[staysapp.BookStayCommand, *dto.BookResult](ctx, f.buses.Commands, staysapp.BookStayCommand{
		VisitID:    domainvisit.ID(visitID),
		Site:       site.Montane,
		Occupant:   domainstay.Known(person),
		Range:      daterange.MustNew(from, to),
		Attributes: site.Attributes{Lodging: site.LodgingDorm, Meals: []site.Meal{site.Dinner, site.Breakfast}},
	})
}

func TestBookStay_MergesAdjacentIntervals(t *testing.T) {
	f := newFixture(t)
	v := montaneVisit(t, f)

	first, err := book(member, f, v.ID, "ada", "2024-03-01", "2024-03-03")
	require.NoError(t, err)
	assert.Equal(t, 0, first.Merged)

	second, err := book(member, f, v.ID, "ada", "2024-03-03", "2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Merged)
	assert.Equal(t, "2024-03-01", second.Stay.Arrival)
	assert.Equal(t, "2024-03-05", second.Stay.Departure)
	assert.Equal(t, []site.Meal{site.Breakfast, site.Dinner}, second.Stay.Attributes.Meals)

	// booking the same range again changes nothing
	again, err := book(member, f, v.ID, "ada", "2024-03-02", "2024-03-04")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", again.Stay.Arrival)
	assert.Equal(t, "2024-03-05", again.Stay.Departure)

	feed := f.feed(t, site.Montane, "2024-03-01", "2024-03-06")
	assert.Equal(t, 2, day(feed, "2024-03-01").Pending)
	assert.Equal(t, 2, day(feed, "2024-03-04").Pending)
	assert.Equal(t, 1, day(feed, "2024-03-05").Pending)
	assert.True(t, f.reconcile(t, site.Montane, "2024-02-25", "2024-03-15").InSync)
}

func TestBookStay_StaysInsideVisitWindowUnlessAdmin(t *testing.T) {
	f := newFixture(t)
	v := montaneVisit(t, f)

	_, err := book(member, f, v.ID, "ada", "2024-03-08", "2024-03-12")
	verr, ok := failure.AsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "departure", verr.Field)

	res, err := book(admin, f, v.ID, "ada", "2024-03-08", "2024-03-12")
	require.NoError(t, err)
	assert.Equal(t, 4, res.Stay.Nights)
}

func TestBookStay_RespectsCapacity(t *testing.T) {
	f := newFixture(t)
	v := f.request(t, member, visitsapp.RequestVisitCommand{Site: site.Montane, Beds: 3, Window: daterange.MustNew("2024-03-01", "2024-03-10")})

	_, err := book(member, f, v.ID, "ada", "2024-03-01", "2024-03-03")
	require.NoError(t, err)
	_, err = book(member, f, v.ID, "bob", "2024-03-02", "2024-03-04")
	capErr, ok := failure.AsCapacity(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, 0, capErr.Available)
	assert.Equal(t, "2024-03-02", daterange.FormatDay(capErr.Day))

	// rebooking nights ada already holds needs no extra room
	_, err = book(member, f, v.ID, "ada", "2024-03-01", "2024-03-02")
	require.NoError(t, err)
}

func TestBookStay_RejectsClosedVisit(t *testing.T) {
	f := newFixture(t)
	v := montaneVisit(t, f)
	_, err := commands.Dispatch[visitsapp.CancelVisitCommand, *dto.Visit](member, f.buses.Commands, visitsapp.CancelVisitCommand{VisitID: domainvisit.ID(v.ID)})
	require.NoError(t, err)

	_, err = book(member, f, v.ID, "ada", "2024-03-01", "2024-03-03")
	assert.ErrorIs(t, err, domainvisit.ErrInvalidState)
}

func release(f *fixture, visitID, person, from, to string) (*dto.ReleaseResult, error) {
	return commands.Dispatch[staysapp.ReleaseStayCommand, *dto.ReleaseResult](member, f.buses.Commands, staysapp.ReleaseStayCommand{
		VisitID:  domainvisit.ID(visitID),
		Site:     site.Montane,
		Occupant: domainstay.Known(person),
		Window:   daterange.MustNew(from, to),
	})
}

func TestReleaseStay_SplitsAndTruncates(t *testing.T) {
	f := newFixture(t)
	v := montaneVisit(t, f)
	_, err := book(member, f, v.ID, "ada", "2024-03-01", "2024-03-06")
	require.NoError(t, err)

	res, err := release(f, v.ID, "ada", "2024-03-02", "2024-03-04")
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)
	change := res.Changes[0]
	assert.Equal(t, string(domainstay.ChangeSplit), change.Kind)
	require.Len(t, change.After, 2)
	assert.Equal(t, "2024-03-02", change.After[0].Departure)
	assert.Equal(t, "2024-03-04", change.After[1].Arrival)

	res, err = release(f, v.ID, "ada", "2024-03-05", "2024-03-09")
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, string(domainstay.ChangeTruncatedTail), res.Changes[0].Kind)

	feed := f.feed(t, site.Montane, "2024-03-01", "2024-03-07")
	assert.Equal(t, 2, day(feed, "2024-03-01").Pending)
	assert.Equal(t, 1, day(feed, "2024-03-02").Pending)
	assert.Equal(t, 1, day(feed, "2024-03-03").Pending)
	assert.Equal(t, 2, day(feed, "2024-03-04").Pending)
	assert.Equal(t, 1, day(feed, "2024-03-05").Pending)
	assert.True(t, f.reconcile(t, site.Montane, "2024-02-25", "2024-03-15").InSync)
}

func TestReleaseStay_NoMatchIsNoop(t *testing.T) {
	f := newFixture(t)
	v := montaneVisit(t, f)
	_, err := book(member, f, v.ID, "ada", "2024-03-01", "2024-03-03")
	require.NoError(t, err)

	// the window only meets the stay
	res, err := release(f, v.ID, "ada", "2024-03-03", "2024-03-05")
	require.NoError(t, err)
	assert.Empty(t, res.Changes)

	res, err = release(f, v.ID, "nobody", "2024-03-01", "2024-03-05")
	require.NoError(t, err)
	assert.Empty(t, res.Changes)
}

func TestAssignOccupant_ReplacesPlaceholder(t *testing.T) {
	f := newFixture(t)
	v := montaneVisit(t, f)
	require.Len(t, v.Stays, 1)
	placeholder, err := domainstay.ParseOccupant(v.Stays[0].Occupant)
	require.NoError(t, err)

	_, err = book(member, f, v.ID, "ada", "2024-03-09", "2024-03-12")
	require.Error(t, err, "outside the window")
	_, err = book(member, f, v.ID, "ada", "2024-03-08", "2024-03-10")
	require.NoError(t, err)

	mine, err := commands.Dispatch[visitsapp.AssignOccupantCommand, *dto.StayCollection](member, f.buses.Commands, visitsapp.AssignOccupantCommand{
		VisitID: domainvisit.ID(v.ID), Placeholder: placeholder, Person: "ada",
	})
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, "2024-03-01", mine.Items[0].Arrival)
	assert.Equal(t, "2024-03-10", mine.Items[0].Departure)
	assert.False(t, mine.Items[0].Placeholder)

	feed := f.feed(t, site.Montane, "2024-03-01", "2024-03-10")
	assert.Equal(t, 1, day(feed, "2024-03-01").Pending)
	assert.Equal(t, 1, day(feed, "2024-03-08").Pending)
	assert.True(t, f.reconcile(t, site.Montane, "2024-02-25", "2024-03-15").InSync)

	_, err = commands.Dispatch[visitsapp.AssignOccupantCommand, *dto.StayCollection](member, f.buses.Commands, visitsapp.AssignOccupantCommand{
		VisitID: domainvisit.ID(v.ID), Placeholder: placeholder, Person: "ada",
	})
	assert.True(t, failure.IsNotFound(err))
}

func TestListVisits_FiltersBySiteAndState(t *testing.T) {
	f := newFixture(t)
	low := f.request(t, member, lowlandVisit(1, "2024-02-01", "2024-02-02"))
	montaneVisit(t, f)
	_, err := commands.Dispatch[visitsapp.DecideVisitCommand, *dto.Visit](admin, f.buses.Commands, visitsapp.DecideVisitCommand{
		VisitID: domainvisit.ID(low.ID), Decision: domainvisit.StateApproved,
	})
	require.NoError(t, err)

	list, err := queries.Ask[visitsapp.ListVisitsQuery, *dto.VisitCollection](member, f.buses.Queries, visitsapp.ListVisitsQuery{
		Filter: domainvisit.ListFilter{State: domainvisit.StateApproved},
	})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, low.ID, list.Items[0].ID)

	list, err = queries.Ask[visitsapp.ListVisitsQuery, *dto.VisitCollection](member, f.buses.Queries, visitsapp.ListVisitsQuery{
		Filter: domainvisit.ListFilter{Site: site.Montane},
	})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "montane", list.Items[0].Site)

	got, err := queries.Ask[visitsapp.GetVisitQuery, *dto.Visit](member, f.buses.Queries, visitsapp.GetVisitQuery{ID: domainvisit.ID(low.ID)})
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", got.State)
	assert.Len(t, got.Stays, 1)
}

func TestReconcile_IsAdminOnly(t *testing.T) {
	f := newFixture(t)
	_, err := queries.Ask[availabilityapp.ReconcileQuery, *dto.Reconciliation](member, f.buses.Queries, availabilityapp.ReconcileQuery{
		Site:  site.Lowland,
		Range: daterange.MustNew("2024-02-01", "2024-02-02"),
	})
	assert.True(t, errors.Is(err, caller.ErrForbidden))
}

func TestGetFeed_RejectsOversizedRange(t *testing.T) {
	f := newFixture(t)
	_, err := queries.Ask[availabilityapp.GetFeedQuery, *dto.Feed](member, f.buses.Queries, availabilityapp.GetFeedQuery{
		Site:  site.Lowland,
		Range: daterange.MustNew("2024-01-01", "2025-06-01"),
	})
	verr, ok := failure.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "to", verr.Field)
}

func TestStays_OnlyRequesterOrAdminMayChangeThem(t *testing.T) {
	f := newFixture(t)
	v := montaneVisit(t, f)
	_, err := book(member, f, v.ID, "ada", "2024-03-01", "2024-03-03")
	require.NoError(t, err)

	_, err = book(other, f, v.ID, "ben", "2024-03-02", "2024-03-04")
	assert.ErrorIs(t, err, caller.ErrForbidden)

	_, err = commands.Dispatch[staysapp.ReleaseStayCommand, *dto.ReleaseResult](other, f.buses.Commands, staysapp.ReleaseStayCommand{
		VisitID:  domainvisit.ID(v.ID),
		Site:     site.Montane,
		Occupant: domainstay.Known("ada"),
		Window:   daterange.MustNew("2024-03-01", "2024-03-03"),
	})
	assert.ErrorIs(t, err, caller.ErrForbidden)

	stays, err := queries.Ask[staysapp.ListStaysQuery, *dto.StayCollection](member, f.buses.Queries, staysapp.ListStaysQuery{VisitID: domainvisit.ID(v.ID)})
	require.NoError(t, err)
	assert.Len(t, stays.Items, 2)
	assert.Equal(t, 2, day(f.feed(t, site.Montane, "2024-03-01", "2024-03-05"), "2024-03-02").Pending)

	_, err = book(admin, f, v.ID, "ben", "2024-03-02", "2024-03-04")
	assert.NoError(t, err)
}

func TestRequestVisit_ConcurrentRequestsNeverOverbook(t *testing.T) {
	f := newFixture(t)
	const workers = 20

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		failures []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := as(fmt.Sprintf("member-%d", i), caller.RoleMember)
			_, err := commands.Dispatch[visitsapp.RequestVisitCommand, *dto.Visit](ctx, f.buses.Commands, lowlandVisit(1, "2024-02-01", "2024-02-03"))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			accepted++
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)
	require.Len(t, failures, workers-3)
	for _, err := range failures {
		assert.True(t, errors.Is(err, failure.ErrCapacityExceeded), err)
	}
	feed := f.feed(t, site.Lowland, "2024-02-01", "2024-02-03")
	for _, d := range feed.Days {
		assert.Equal(t, dto.FeedDay{Day: d.Day, Pending: 3, Approved: 0, Available: 0}, d)
	}
	assert.True(t, f.reconcile(t, site.Lowland, "2024-01-25", "2024-02-10").InSync)
}

func TestReleaseStay_UndoesBooking(t *testing.T) {
	f := newFixture(t)
	v := montaneVisit(t, f)
	before := f.feed(t, site.Montane, "2024-03-01", "2024-03-10")

	_, err := book(member, f, v.ID, "ada", "2024-03-02", "2024-03-06")
	require.NoError(t, err)
	booked := f.feed(t, site.Montane, "2024-03-01", "2024-03-10")
	assert.Equal(t, 2, day(booked, "2024-03-03").Pending)

	res, err := release(f, v.ID, "ada", "2024-03-02", "2024-03-06")
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, "deleted", res.Changes[0].Kind)

	assert.Equal(t, before, f.feed(t, site.Montane, "2024-03-01", "2024-03-10"))
	assert.True(t, f.reconcile(t, site.Montane, "2024-02-25", "2024-03-15").InSync)
	stays, err := queries.Ask[staysapp.ListStaysQuery, *dto.StayCollection](member, f.buses.Queries, staysapp.ListStaysQuery{VisitID: domainvisit.ID(v.ID)})
	require.NoError(t, err)
	require.Len(t, stays.Items, 1)
	assert.True(t, stays.Items[0].Placeholder)
}
