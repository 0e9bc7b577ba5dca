//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/countingbot/internal/counting"
	"github.com/ashureev/countingbot/internal/domain"
)

type testServer struct {
	repo    *fakeRepo
	counter *fakeCounter
	goals   *fakeGoals
	handler http.Handler
}

func newTestServer(t *testing.T, opts RouterOptions) *testServer {
	t.Helper()
	ts := &testServer{
		repo:    newFakeRepo(),
		counter: &fakeCounter{state: counting.State{Delay: 3 * time.Second}},
		goals:   &fakeGoals{},
	}
	ach := &fakeAchievements{held: map[string][]string{"alice": {"count_1", "streak_10"}}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(ts.repo, ts.counter, ts.goals, ach, logger)
	ts.handler = NewRouter(h, NewHealthHandler(ts.repo, fakeGateway{up: true}), opts)
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, map[string]string{"foo": "bar"})

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
	var got map[string]string
	decode(t, w, &got)
	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	rr := ts.do(http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decode(t, rr, &body)
	if body.Status != "healthy" || body.Checks["gateway"] != "connected" {
		t.Errorf("unexpected health body: %+v", body)
	}

	ts.repo.pingErr = errBoom
	rr = ts.do(http.MethodGet, "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the database is down, got %d", rr.Code)
	}
}

func TestPingAndMetrics(t *testing.T) {
	ts := newTestServer(t, RouterOptions{AdminToken: "s3cret"})

	if rr := ts.do(http.MethodGet, "/ping", ""); rr.Code != http.StatusOK {
		t.Errorf("expected /ping 200, got %d", rr.Code)
	}
	rr := ts.do(http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected /metrics 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Errorf("expected prometheus exposition")
	}
}

func TestAPIRequiresTokenWhenConfigured(t *testing.T) {
	ts := newTestServer(t, RouterOptions{AdminToken: "s3cret"})

	if rr := ts.do(http.MethodGet, "/api/state", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
}

func TestGetState(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	var unset map[string]any
	decode(t, ts.do(http.MethodGet, "/api/state", ""), &unset)
	if unset["last_number"] != nil {
		t.Errorf("expected null last_number, got %v", unset["last_number"])
	}
	if unset["delay_ms"] != float64(3000) {
		t.Errorf("expected delay 3000, got %v", unset["delay_ms"])
	}

	ts.counter.state.Baseline = domain.Baseline{Number: 42, AuthorID: "alice", MessageID: "m1", Set: true}
	var set stateResponse
	decode(t, ts.do(http.MethodGet, "/api/state", ""), &set)
	if set.LastNumber == nil || *set.LastNumber != 42 || set.LastUser != "alice" {
		t.Errorf("unexpected state: %+v", set)
	}
}

func TestSetCountDelay(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	for _, body := range []string{`{}`, `{"delay_ms":-1}`, `{"delay_ms":3600001}`, `not json`} {
		if rr := ts.do(http.MethodPut, "/api/settings/count-delay", body); rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, rr.Code)
		}
	}
	if ts.counter.setCalls != 0 {
		t.Fatalf("invalid requests reached the engine")
	}

	rr := ts.do(http.MethodPut, "/api/settings/count-delay", `{"delay_ms":0}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ts.counter.Snapshot().Delay != 0 {
		t.Errorf("expected delay 0, got %v", ts.counter.Snapshot().Delay)
	}

	ts.counter.setErr = errBoom
	if rr := ts.do(http.MethodPut, "/api/settings/count-delay", `{"delay_ms":1000}`); rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 on persist failure, got %d", rr.Code)
	}
}

func TestLeaderboardAndUser(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	ts.repo.users["alice"] = &domain.UserStats{UserID: "alice", Fame: 12}
	ts.repo.users["bob"] = &domain.UserStats{UserID: "bob", Fame: 30}

	if rr := ts.do(http.MethodGet, "/api/leaderboard?limit=abc", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rr.Code)
	}

	var board struct {
		Users []domain.UserStats `json:"users"`
	}
	decode(t, ts.do(http.MethodGet, "/api/leaderboard?limit=1", ""), &board)
	if len(board.Users) != 1 || board.Users[0].UserID != "bob" {
		t.Fatalf("unexpected leaderboard: %+v", board.Users)
	}

	if rr := ts.do(http.MethodGet, "/api/users/nobody", ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown user, got %d", rr.Code)
	}

	var user struct {
		Stats        domain.UserStats  `json:"stats"`
		Achievements []achievementView `json:"achievements"`
	}
	decode(t, ts.do(http.MethodGet, "/api/users/alice", ""), &user)
	if user.Stats.Fame != 12 || len(user.Achievements) != 2 || user.Achievements[0].ID != "count_1" {
		t.Errorf("unexpected user view: %+v", user)
	}
}

func TestDaily(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	ts.repo.daily = []domain.DailyCount{{Day: "2026-03-02", Count: 4}, {Day: "2026-03-01", Count: 9}}

	var body struct {
		Days []domain.DailyCount `json:"days"`
	}
	decode(t, ts.do(http.MethodGet, "/api/daily?days=1", ""), &body)
	if len(body.Days) != 1 || body.Days[0].Count != 4 {
		t.Errorf("unexpected daily counts: %+v", body.Days)
	}
}

func TestGoals(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	var empty goalResponse
	decode(t, ts.do(http.MethodGet, "/api/goals/current", ""), &empty)
	if empty.Goal != nil {
		t.Fatalf("expected no goal, got %+v", empty.Goal)
	}

	if rr := ts.do(http.MethodPost, "/api/goals", `{"text":"   "}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank text, got %d", rr.Code)
	}

	ts.counter.state.Baseline = domain.Baseline{Number: 25, Set: true}
	rr := ts.do(http.MethodPost, "/api/goals", `{"text":"reach 100","target":100}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if ts.goals.lastReq.SetBy != "anonymous" {
		t.Errorf("expected set_by to default to the actor, got %q", ts.goals.lastReq.SetBy)
	}
	if ts.goals.lastBase.Number != 25 {
		t.Errorf("expected baseline 25 passed to the tracker, got %+v", ts.goals.lastBase)
	}

	if rr := ts.do(http.MethodPost, "/api/goals", `{"text":"again","set_by":"op"}`); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 with an active goal, got %d", rr.Code)
	}
	if rr := ts.do(http.MethodPost, "/api/goals", `{"text":"again","set_by":"op","replace":true}`); rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 on replace, got %d", rr.Code)
	}

	target := int64(100)
	ts.repo.goal = &domain.Goal{ID: "g1", Text: "reach 100", Target: &target}
	var current goalResponse
	decode(t, ts.do(http.MethodGet, "/api/goals/current", ""), &current)
	if current.Percent == nil || *current.Percent != 25 {
		t.Errorf("expected 25%%, got %v", current.Percent)
	}
}

func TestSuggestions(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	if rr := ts.do(http.MethodPost, "/api/suggestions", `{"user_id":"u1"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without text, got %d", rr.Code)
	}
	rr := ts.do(http.MethodPost, "/api/suggestions", `{"user_id":"u1","text":" more goals "}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	var created domain.Suggestion
	decode(t, rr, &created)
	if created.ID == "" || created.Status != "open" || created.Text != "more goals" {
		t.Errorf("unexpected suggestion: %+v", created)
	}

	if rr := ts.do(http.MethodGet, "/api/suggestions?status=bogus", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", rr.Code)
	}
	var list struct {
		Suggestions []domain.Suggestion `json:"suggestions"`
	}
	decode(t, ts.do(http.MethodGet, "/api/suggestions?status=open", ""), &list)
	if len(list.Suggestions) != 1 {
		t.Errorf("expected one open suggestion, got %d", len(list.Suggestions))
	}
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, RouterOptions{RateLimit: 2})

	for i := 0; i < 2; i++ {
		if rr := ts.do(http.MethodGet, "/api/state", ""); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}
	if rr := ts.do(http.MethodGet, "/api/state", ""); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
}
