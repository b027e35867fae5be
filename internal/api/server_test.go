package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tapajos/internal/economy"
	"github.com/talgya/tapajos/internal/engine"
	"github.com/talgya/tapajos/internal/entropy"
	"github.com/talgya/tapajos/internal/persistence"
)

type testServer struct {
	*Server
	handler http.Handler
}

func newTestServer(t *testing.T, withDB bool) *testServer {
	t.Helper()
	g := engine.NewGame(engine.DefaultOptions(), entropy.NewSeeded(3))
	g.MarketPool = []engine.Offer{
		{ID: "cheap", Type: economy.TypeGovernor, Condition: economy.ConditionWorn, Price: 4_000_000, Units: 8},
		{ID: "dear", Type: economy.TypeOldTown, Condition: economy.ConditionNew, Central: true, Price: 40_000_000, Units: 14},
	}
	g.MarketPoolTurn = g.Turn

	s := New(g, engine.DefaultOptions())
	s.AdminKey = "sekret"
	s.NewSource = func() entropy.Source { return entropy.NewSeeded(9) }
	if withDB {
		db, err := persistence.Open(filepath.Join(t.TempDir(), "api.db"))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		s.DB = db
	}
	return &testServer{Server: s, handler: s.Handler()}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	st := decode[map[string]any](t, rec)
	assert.Equal(t, float64(1), st["turn"])
	assert.Equal(t, float64(10_000_000), st["cash"])
	assert.Equal(t, false, st["over"])
}

func TestBuyAndAct(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodGet, "/api/v1/market", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	offers := decode[[]map[string]any](t, rec)
	require.Len(t, offers, 2)
	assert.Equal(t, "cheap", offers[0]["id"])

	rec = ts.do(t, http.MethodPost, "/api/v1/market/cheap/buy", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	b := decode[map[string]any](t, rec)
	id := b["id"].(string)
	assert.Equal(t, "fragile", b["status"])
	assert.Equal(t, float64(8), b["units"])
	assert.Equal(t, int64(6_000_000), ts.Game().Cash)

	rec = ts.do(t, http.MethodPost, "/api/v1/buildings/"+id+"/renovate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, economy.ConditionNew, ts.Game().Buildings[0].Condition)

	// second renovation within the cooldown
	rec = ts.do(t, http.MethodPost, "/api/v1/buildings/"+id+"/renovate", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", decode[map[string]string](t, rec)["kind"])

	rec = ts.do(t, http.MethodGet, "/api/v1/buildings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)
}

func TestBuy_Unaffordable(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodPost, "/api/v1/market/dear/buy", map[string]bool{"financed": false})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_funds", decode[map[string]string](t, rec)["kind"])

	rec = ts.do(t, http.MethodPost, "/api/v1/market/nope/buy", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActions_Errors(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodPost, "/api/v1/buildings/missing/renovate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/buildings/x/paint", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/buildings/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNegotiation(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodPost, "/api/v1/market/cheap/buy", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := ts.Game().Buildings[0].ID

	rec = ts.do(t, http.MethodGet, "/api/v1/buildings/"+id+"/odds?raise=3&comp=1000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	odds := decode[map[string]float64](t, rec)
	assert.Equal(t, float64(8_000), odds["cost"])
	assert.Greater(t, odds["odds"], float64(0))

	rec = ts.do(t, http.MethodGet, "/api/v1/buildings/"+id+"/odds?raise=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/buildings/"+id+"/negotiate", map[string]int{"raise_pct": -2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/buildings/"+id+"/negotiate", map[string]int{"raise_pct": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/buildings/"+id+"/negotiate", map[string]int{"raise_pct": 2})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestIncidentFlow(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodGet, "/api/v1/incident", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	g := ts.Game()
	g.Incident = &engine.Incident{Kind: engine.IncidentPolicyChange, Turn: g.Turn, Shift: 0.005}

	rec = ts.do(t, http.MethodGet, "/api/v1/incident", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[incidentView](t, rec)
	require.NotEmpty(t, v.Choices)
	assert.NotEmpty(t, v.Description)

	rec = ts.do(t, http.MethodPost, "/api/v1/incident/resolve", map[string]string{"resolution": "fix_now"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/incident/resolve", map[string]string{"resolution": string(v.Choices[0].Resolution)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.InDelta(t, 0.05, g.Market.CapRate, 1e-12)

	rec = ts.do(t, http.MethodPost, "/api/v1/incident/dismiss", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTurn_AutoSaves(t *testing.T) {
	ts := newTestServer(t, true)
	rec := ts.do(t, http.MethodPost, "/api/v1/market/cheap/buy", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/turn", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, ts.Game().Turn)

	st, err := ts.DB.LoadGame()
	require.NoError(t, err)
	assert.Equal(t, 2, st.Turn)
	assert.Len(t, st.Buildings, 1)

	events, err := ts.DB.RecentEvents(100)
	require.NoError(t, err)
	assert.Len(t, events, len(ts.Game().Events))

	rec = ts.do(t, http.MethodGet, "/api/v1/events?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]engine.Event](t, rec), 1)
}

func TestSubmit_RequiresFinishedGame(t *testing.T) {
	ts := newTestServer(t, true)
	ts.Version = "3"
	rec := ts.do(t, http.MethodPost, "/api/v1/leaderboard", map[string]string{"name": "Ada"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	for !ts.Game().Over {
		rec = ts.do(t, http.MethodPost, "/api/v1/turn", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec = ts.do(t, http.MethodPost, "/api/v1/turn", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/leaderboard", map[string]string{"name": "  Ada "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Ada", decode[map[string]any](t, rec)["name"])

	rec = ts.do(t, http.MethodGet, "/api/v1/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	results := decode[[]persistence.Result](t, rec)
	require.Len(t, results, 1)
	assert.Equal(t, 15, results[0].Year)
	assert.Equal(t, "3", results[0].Version)

	rec = ts.do(t, http.MethodGet, "/api/v1/leaderboard", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdmin(t *testing.T) {
	ts := newTestServer(t, true)
	rec := ts.do(t, http.MethodPost, "/api/v1/admin/snapshot", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/admin/snapshot", nil, "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/admin/snapshot", nil, "Authorization", "Bearer sekret")
	require.Equal(t, http.StatusOK, rec.Code)
	has, err := ts.DB.HasGame()
	require.NoError(t, err)
	assert.True(t, has)

	ts.do(t, http.MethodPost, "/api/v1/turn", nil)
	rec = ts.do(t, http.MethodPost, "/api/v1/admin/reset", nil, "Authorization", "Bearer sekret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.Game().Turn)
	st, err := ts.DB.LoadGame()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Turn)

	ts.AdminKey = ""
	rec = ts.do(t, http.MethodPost, "/api/v1/admin/reset", nil, "Authorization", "Bearer ")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, false)
	ts.Limiter = NewRateLimiter(0.001, 2)
	h := ts.Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", clientIP(req))
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(req))
}
