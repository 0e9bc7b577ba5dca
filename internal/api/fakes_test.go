//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ashureev/countingbot/internal/achievements"
	"github.com/ashureev/countingbot/internal/counting"
	"github.com/ashureev/countingbot/internal/domain"
	"github.com/ashureev/countingbot/internal/goals"
)

type fakeRepo struct {
	mu          sync.Mutex
	pingErr     error
	users       map[string]*domain.UserStats
	goal        *domain.Goal
	suggestions []*domain.Suggestion
	daily       []domain.DailyCount
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[string]*domain.UserStats)}
}

func (f *fakeRepo) Ping(context.Context) error { return f.pingErr }
func (f *fakeRepo) Close() error               { return nil }

func (f *fakeRepo) GetRuntimeKV(context.Context, string) (string, bool, error) { return "", false, nil }
func (f *fakeRepo) SetRuntimeKV(context.Context, string, string) error         { return nil }
func (f *fakeRepo) SetRuntimeKVs(context.Context, map[string]string) error     { return nil }

func (f *fakeRepo) GetUserStats(_ context.Context, userID string) (*domain.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[userID]
	if u == nil {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) UpsertUserStats(_ context.Context, u *domain.UserStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.UserID] = &cp
	return nil
}

func (f *fakeRepo) TopUsers(_ context.Context, limit int) ([]*domain.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.UserStats, 0, len(f.users))
	for _, u := range f.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fame > out[j].Fame })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) GetCurrentGoal(context.Context) (*domain.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.goal == nil {
		return nil, nil
	}
	cp := *f.goal
	return &cp, nil
}

func (f *fakeRepo) UpsertGoal(context.Context, *domain.Goal) error { return nil }

func (f *fakeRepo) InsertMessageAudit(context.Context, *domain.MessageAudit) error { return nil }
func (f *fakeRepo) MarkMessageDeleted(context.Context, string) error                { return nil }
func (f *fakeRepo) RecentMessages(context.Context, int) ([]*domain.MessageAudit, error) {
	return nil, nil
}

func (f *fakeRepo) IncrementDailyCount(context.Context, string) error { return nil }

func (f *fakeRepo) DailyCounts(_ context.Context, days int) ([]domain.DailyCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.daily) > days {
		return f.daily[:days], nil
	}
	return f.daily, nil
}

func (f *fakeRepo) InsertSuggestion(_ context.Context, s *domain.Suggestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.suggestions = append(f.suggestions, &cp)
	return nil
}

func (f *fakeRepo) ListSuggestions(_ context.Context, status string, limit int) ([]*domain.Suggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Suggestion
	for _, s := range f.suggestions {
		if status == "" || s.Status == status {
			out = append(out, s)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) AwardAchievement(context.Context, string, string, time.Time) (bool, error) {
	return false, nil
}
func (f *fakeRepo) ListAchievements(context.Context, string) ([]domain.Achievement, error) {
	return nil, nil
}

func (f *fakeRepo) RecordDisconnect(context.Context, string, time.Time) error { return nil }
func (f *fakeRepo) RecordReconnect(context.Context, string, time.Time) error  { return nil }
func (f *fakeRepo) GetDisconnectDay(context.Context, string) (*domain.DisconnectDay, error) {
	return nil, nil
}
func (f *fakeRepo) SetDisconnectReportMessage(context.Context, string, string) error { return nil }

func (f *fakeRepo) Inspect(context.Context) (*domain.Report, error) { return &domain.Report{}, nil }

type fakeCounter struct {
	mu       sync.Mutex
	state    counting.State
	setErr   error
	setCalls int
}

func (f *fakeCounter) Snapshot() counting.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeCounter) SetDelay(_ context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	f.state.Delay = d
	return nil
}

type fakeGoals struct {
	mu       sync.Mutex
	active   bool
	lastReq  goals.CreateRequest
	lastBase domain.Baseline
}

func (f *fakeGoals) Create(_ context.Context, req goals.CreateRequest, baseline domain.Baseline) (*domain.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastReq, f.lastBase = req, baseline
	if f.active && !req.Replace {
		return nil, goals.ErrActiveGoal
	}
	f.active = true
	return &domain.Goal{ID: "g-new", Text: req.Text, Target: req.Target, SetBy: req.SetBy}, nil
}

type fakeAchievements struct {
	held map[string][]string
	err  error
}

func (f *fakeAchievements) Earned(_ context.Context, userID string) ([]achievements.Definition, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []achievements.Definition
	for _, id := range f.held[userID] {
		if d, ok := achievements.Lookup(id); ok {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeGateway struct{ up bool }

func (f fakeGateway) Connected() bool { return f.up }

var errBoom = errors.New("boom")
