// Package goals tracks progress of the current counting goal and keeps its
// pinned announcement up to date.
package goals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ashureev/countingbot/internal/domain"
	"github.com/ashureev/countingbot/internal/ids"
	"github.com/ashureev/countingbot/internal/metrics"
	"github.com/ashureev/countingbot/internal/notifier"
	"github.com/ashureev/countingbot/internal/store"
)

// ErrActiveGoal is returned by Create when a goal is already in progress.
var ErrActiveGoal = errors.New("a goal is already active")

// GoalWinner is the achievement awarded to whoever completes a goal.
const GoalWinner = "goal_winner"

// Store is the goal persistence the tracker needs.
type Store interface {
	GetCurrentGoal(ctx context.Context) (*domain.Goal, error)
	UpsertGoal(ctx context.Context, goal *domain.Goal) error
	SetRuntimeKV(ctx context.Context, key, value string) error
	SetRuntimeKVs(ctx context.Context, values map[string]string) error
}

// Messenger posts and edits the pinned announcement synchronously.
type Messenger interface {
	SendMessage(ctx context.Context, channelID, content string) (string, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	PinMessage(ctx context.Context, channelID, messageID string) error
}

// Announcer queues a fire-and-forget message.
type Announcer interface {
	Announce(ctx context.Context, channelID, content string) error
}

// Awarder grants an achievement.
type Awarder interface {
	Award(ctx context.Context, userID, achievementID string)
}

// Config holds tracker settings.
type Config struct {
	ChannelID        string
	LogChannelID     string
	ThresholdPercent int
}

// Deps are the tracker's collaborators. Announcer and Awarder may be nil.
type Deps struct {
	Store     Store
	Messenger Messenger
	Announcer Announcer
	Awarder   Awarder
}

// CreateRequest describes a new goal.
type CreateRequest struct {
	Text     string `json:"text" validate:"required,max=500"`
	Target   *int64 `json:"target,omitempty"`
	Deadline string `json:"deadline,omitempty" validate:"max=100"`
	SetBy    string `json:"set_by" validate:"required"`
	Replace  bool   `json:"replace"`
}

// Tracker evaluates goal progress after accepted numbers.
type Tracker struct {
	// mu serializes Evaluate and Create so a replaced goal is never
	// edited or completed after it was closed.
	mu     sync.Mutex
	cfg    Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates a Tracker.
func NewTracker(cfg Config, deps Deps, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ThresholdPercent <= 0 {
		cfg.ThresholdPercent = 1
	}
	return &Tracker{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("component", "goals"),
		now:    time.Now,
	}
}

// Current returns the active goal, or nil.
func (t *Tracker) Current(ctx context.Context) (*domain.Goal, error) {
	return t.deps.Store.GetCurrentGoal(ctx)
}

// Evaluate updates the current goal for a newly accepted number.
func (t *Tracker) Evaluate(ctx context.Context, current int64, authorID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, err := t.deps.Store.GetCurrentGoal(ctx)
	if err != nil {
		t.logger.Error("Failed to load current goal", "error", err)
		return
	}
	if g == nil || g.Target == nil {
		return
	}
	target := *g.Target

	if Reached(current, target) {
		t.complete(ctx, g, authorID)
		return
	}

	percent := Percent(current, target)
	metrics.GoalProgress.Set(float64(percent))
	if percent-g.LastReportedPercent < t.cfg.ThresholdPercent || g.PinnedMessageID == "" {
		return
	}

	if err := t.deps.Messenger.EditMessage(ctx, t.cfg.ChannelID, g.PinnedMessageID, Render(g, &current)); err != nil {
		t.logEditError(err, g)
		return
	}

	g.LastReportedPercent = percent
	if err := t.deps.Store.UpsertGoal(ctx, g); err != nil {
		t.logger.Error("Failed to persist goal progress", "goal_id", g.ID, "error", err)
	}
	if err := t.deps.Store.SetRuntimeKV(ctx, store.KeyGoalLastPercent, strconv.Itoa(percent)); err != nil {
		t.logger.Error("Failed to persist goal percent", "goal_id", g.ID, "error", err)
	}
	t.logger.Debug("Goal progress updated", "goal_id", g.ID, "percent", percent)
}

func (t *Tracker) complete(ctx context.Context, g *domain.Goal, authorID string) {
	now := t.now().UTC()
	g.CompletedAt = &now
	g.CompletedBy = authorID
	g.LastReportedPercent = 100

	if err := t.deps.Store.UpsertGoal(ctx, g); err != nil {
		t.logger.Error("Failed to persist goal completion", "goal_id", g.ID, "error", err)
	}
	if err := t.deps.Store.SetRuntimeKVs(ctx, map[string]string{
		store.KeyGoalLastCompletedAt: now.Format(time.RFC3339),
		store.KeyGoalLastCompletedBy: authorID,
		store.KeyGoalLastPercent:     "100",
	}); err != nil {
		t.logger.Error("Failed to persist goal completion keys", "goal_id", g.ID, "error", err)
	}
	metrics.GoalsCompleted.Inc()
	metrics.GoalProgress.Set(100)
	t.logger.Info("Goal completed", "goal_id", g.ID, "user_id", authorID)

	if g.PinnedMessageID != "" {
		if err := t.deps.Messenger.EditMessage(ctx, t.cfg.ChannelID, g.PinnedMessageID, Render(g, nil)); err != nil {
			t.logEditError(err, g)
		}
	}

	if t.deps.Announcer != nil && t.cfg.LogChannelID != "" {
		msg := fmt.Sprintf("Goal reached! <@%s> completed the goal: **%s**", authorID, g.Text)
		if err := t.deps.Announcer.Announce(ctx, t.cfg.LogChannelID, msg); err != nil {
			t.logger.Error("Failed to queue goal announcement", "goal_id", g.ID, "error", err)
		}
	}
	if t.deps.Awarder != nil {
		t.deps.Awarder.Award(ctx, authorID, GoalWinner)
	}
}

func (t *Tracker) logEditError(err error, g *domain.Goal) {
	if errors.Is(err, notifier.ErrNotFound) {
		t.logger.Warn("Pinned goal message is gone", "goal_id", g.ID, "message_id", g.PinnedMessageID)
		return
	}
	t.logger.Error("Failed to edit pinned goal message", "goal_id", g.ID, "message_id", g.PinnedMessageID, "error", err)
}

// Create starts a new goal, posting and pinning its announcement. An active
// goal is closed first when req.Replace is set, otherwise ErrActiveGoal is
// returned.
func (t *Tracker) Create(ctx context.Context, req CreateRequest, baseline domain.Baseline) (*domain.Goal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, err := t.deps.Store.GetCurrentGoal(ctx)
	if err != nil {
		return nil, fmt.Errorf("load current goal: %w", err)
	}
	now := t.now().UTC()

	if existing != nil {
		if !req.Replace {
			return nil, ErrActiveGoal
		}
		existing.CompletedAt = &now
		existing.CompletedBy = ReplacedBy
		if err := t.deps.Store.UpsertGoal(ctx, existing); err != nil {
			return nil, fmt.Errorf("close current goal: %w", err)
		}
		if existing.PinnedMessageID != "" {
			if err := t.deps.Messenger.EditMessage(ctx, t.cfg.ChannelID, existing.PinnedMessageID, Render(existing, nil)); err != nil {
				t.logEditError(err, existing)
			}
		}
		t.logger.Info("Goal replaced", "goal_id", existing.ID)
	}

	g := &domain.Goal{
		ID:        ids.NewAt(now),
		Text:      req.Text,
		Target:    req.Target,
		SetBy:     req.SetBy,
		Deadline:  req.Deadline,
		CreatedAt: now,
	}

	var current *int64
	if baseline.Set {
		n := baseline.Number
		current = &n
		if g.Target != nil {
			g.LastReportedPercent = Percent(n, *g.Target)
		}
	}

	msgID, err := t.deps.Messenger.SendMessage(ctx, t.cfg.ChannelID, Render(g, current))
	if err != nil {
		t.logger.Error("Failed to post goal announcement", "goal_id", g.ID, "error", err)
	} else {
		g.PinnedMessageID = msgID
		if err := t.deps.Messenger.PinMessage(ctx, t.cfg.ChannelID, msgID); err != nil {
			t.logger.Warn("Failed to pin goal announcement", "goal_id", g.ID, "message_id", msgID, "error", err)
		}
	}

	if err := t.deps.Store.UpsertGoal(ctx, g); err != nil {
		return nil, fmt.Errorf("save goal: %w", err)
	}
	if err := t.deps.Store.SetRuntimeKV(ctx, store.KeyGoalLastPercent, strconv.Itoa(g.LastReportedPercent)); err != nil {
		t.logger.Error("Failed to persist goal percent", "goal_id", g.ID, "error", err)
	}
	metrics.GoalProgress.Set(float64(g.LastReportedPercent))
	t.logger.Info("Goal created", "goal_id", g.ID, "set_by", g.SetBy)
	return g, nil
}
