package ginserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stationbeds/internal/app/caller"
	"stationbeds/internal/app/dto"
	"stationbeds/internal/app/engine"
	domainavailability "stationbeds/internal/domain/availability"
	"stationbeds/internal/domain/site"
	"stationbeds/internal/infra/config"
	"stationbeds/internal/infra/obs"
	"stationbeds/internal/infra/security"
	"stationbeds/internal/infra/storage/memory"
)

type staticKeys map[string]caller.Caller

func (k staticKeys) Authenticate(token string) (caller.Caller, error) {
	c, ok := k[token]
	if !ok {
		return caller.Caller{}, security.ErrUnknownKey
	}
	return c, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	buses := engine.Build(engine.Deps{
		UoW:         memory.Factory{Store: memory.NewStore()},
		Outbox:      memory.NewOutbox(nil, nil),
		Idempotency: memory.NewIdempotencyStore(time.Hour),
		Settings: domainavailability.Settings{
			Capacity:     map[site.Site]int{site.Lowland: 2, site.Montane: 2},
			NoticePeriod: 14 * 24 * time.Hour,
		},
		Clock: func() time.Time { return time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC) },
	})
	keys := staticKeys{
		"ana.secret":  {ID: "ana", Name: "ana", Role: caller.RoleMember},
		"root.secret": {ID: "root", Name: "root", Role: caller.RoleAdmin},
	}
	return NewRouter(config.Config{Env: "test"}, obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Visits:         VisitHandler{Commands: buses.Commands, Queries: buses.Queries},
		Stays:          StayHandler{Commands: buses.Commands, Queries: buses.Queries},
		Availability:   AvailabilityHandler{Queries: buses.Queries},
		AuthMiddleware: AuthMiddleware{Keys: keys}.Handle,
	})
}

func do(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestServer_HealthIsPublic(t *testing.T) {
	router := newTestRouter(t)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/livez", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/readyz", "", nil).Code)
}

func TestServer_RequiresBearerToken(t *testing.T) {
	router := newTestRouter(t)
	assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/api/v1/visits", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/api/v1/visits", "ana.wrong", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/api/v1/visits", "ana.secret", nil).Code)
}

func TestServer_VisitLifecycle(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/visits", "ana.secret", map[string]any{
		"site":       "montane",
		"beds":       1,
		"arrival":    "2024-03-01",
		"departure":  "2024-03-05",
		"attributes": map[string]any{"lodging": "tent", "meals": []string{"dinner"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	visit := decode[dto.Visit](t, rec)
	assert.Equal(t, "PENDING", visit.State)
	require.Len(t, visit.Stays, 1)

	rec = do(t, router, http.MethodPost, "/api/v1/visits/"+visit.ID+"/decision", "ana.secret", map[string]any{"decision": "approved"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/v1/visits/"+visit.ID+"/decision", "root.secret", map[string]any{"decision": "approved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "APPROVED", decode[dto.Visit](t, rec).State)

	rec = do(t, router, http.MethodPost, "/api/v1/stays", "ana.secret", map[string]any{
		"visit_id":  visit.ID,
		"site":      "montane",
		"occupant":  "ada",
		"arrival":   "2024-03-02",
		"departure": "2024-03-04",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	booked := decode[dto.BookResult](t, rec)
	assert.Equal(t, "known:ada", booked.Stay.Occupant)

	rec = do(t, router, http.MethodGet, "/api/v1/sites/montane/availability?from=2024-03-01&to=2024-03-05", "ana.secret", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	feed := decode[dto.Feed](t, rec)
	require.Len(t, feed.Days, 4)
	assert.Equal(t, dto.FeedDay{Day: "2024-03-01", Approved: 1, Available: 1}, feed.Days[0])
	assert.Equal(t, dto.FeedDay{Day: "2024-03-02", Approved: 2, Available: 0}, feed.Days[1])

	rec = do(t, router, http.MethodPost, "/api/v1/stays/release", "ana.secret", map[string]any{
		"visit_id": visit.ID,
		"site":     "montane",
		"occupant": "known:ada",
		"start":    "2024-03-01",
		"end":      "2024-03-03",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	released := decode[dto.ReleaseResult](t, rec)
	require.Len(t, released.Changes, 1)
	assert.Equal(t, "truncated_head", released.Changes[0].Kind)

	rec = do(t, router, http.MethodPost, "/api/v1/visits/"+visit.ID+"/occupants", "ana.secret", map[string]any{
		"placeholder": visit.Stays[0].Occupant,
		"person":      "bea",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[dto.StayCollection](t, rec).Items, 1)

	rec = do(t, router, http.MethodGet, "/api/v1/stays?visit_id="+visit.ID, "ana.secret", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[dto.StayCollection](t, rec).Items, 2)

	rec = do(t, router, http.MethodGet, "/api/v1/sites/montane/reconcile?from=2024-02-20&to=2024-03-20", "root.secret", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[dto.Reconciliation](t, rec).InSync)

	rec = do(t, router, http.MethodPost, "/api/v1/visits/"+visit.ID+"/cancel", "ana.secret", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CANCELLED", decode[dto.Visit](t, rec).State)

	rec = do(t, router, http.MethodGet, "/api/v1/visits?state=cancelled", "ana.secret", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[dto.VisitCollection](t, rec).Items, 1)
}

func TestServer_CapacityConflict(t *testing.T) {
	router := newTestRouter(t)
	rec := do(t, router, http.MethodPost, "/api/v1/visits", "ana.secret", map[string]any{
		"site": "lowland", "beds": 3, "arrival": "2024-03-01", "departure": "2024-03-03",
	})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "lowland", body["site"])
	assert.Equal(t, "2024-03-01", body["day"])
	assert.EqualValues(t, 2, body["available"])
}

func TestServer_ValidationErrorsNameTheField(t *testing.T) {
	router := newTestRouter(t)
	cases := []struct {
		name  string
		path  string
		body  map[string]any
		field string
	}{
		{"bad date", "/api/v1/visits", map[string]any{"site": "lowland", "beds": 1, "arrival": "03/01/2024", "departure": "2024-03-03"}, "arrival"},
		{"unknown site", "/api/v1/visits", map[string]any{"site": "coastal", "beds": 1, "arrival": "2024-03-01", "departure": "2024-03-03"}, "site"},
		{"reversed dates", "/api/v1/visits", map[string]any{"site": "lowland", "beds": 1, "arrival": "2024-03-03", "departure": "2024-03-01"}, "departure"},
		{"short notice", "/api/v1/visits", map[string]any{"site": "lowland", "beds": 1, "arrival": "2024-01-02", "departure": "2024-01-03"}, "arrival"},
		{"bad occupant", "/api/v1/stays", map[string]any{"visit_id": "v", "site": "lowland", "occupant": "someone:x", "arrival": "2024-03-01", "departure": "2024-03-03"}, "occupant"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, tc.path, "ana.secret", tc.body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			assert.Equal(t, tc.field, decode[map[string]any](t, rec)["field"])
		})
	}
}

func TestServer_UnknownVisitIsNotFound(t *testing.T) {
	router := newTestRouter(t)
	rec := do(t, router, http.MethodGet, "/api/v1/visits/missing", "ana.secret", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_IdempotencyKeyReplaysCreation(t *testing.T) {
	router := newTestRouter(t)
	send := func() dto.Visit {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{
			"site": "lowland", "beds": 1, "arrival": "2024-03-01", "departure": "2024-03-02",
		}))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/visits", &buf)
		req.Header.Set("Authorization", "Bearer ana.secret")
		req.Header.Set("Idempotency-Key", "abc")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return decode[dto.Visit](t, rec)
	}
	assert.Equal(t, send().ID, send().ID)
}
