// Package achievements awards achievements after counting submissions and
// announces first-time awards.
package achievements

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/countingbot/internal/domain"
	"github.com/ashureev/countingbot/internal/metrics"
)

// Store persists awards. AwardAchievement reports false when already held.
type Store interface {
	AwardAchievement(ctx context.Context, userID, achievementID string, at time.Time) (bool, error)
	ListAchievements(ctx context.Context, userID string) ([]domain.Achievement, error)
}

// Announcer queues a fire-and-forget message.
type Announcer interface {
	Announce(ctx context.Context, channelID, content string) error
}

// Service evaluates the catalog and records awards.
type Service struct {
	store        Store
	announcer    Announcer
	logChannelID string
	logger       *slog.Logger
	now          func() time.Time
}

// New creates a Service. announcer may be nil.
func New(store Store, announcer Announcer, logChannelID string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        store,
		announcer:    announcer,
		logChannelID: logChannelID,
		logger:       logger.With("component", "achievements"),
		now:          time.Now,
	}
}

// Check awards every rule-based achievement the event satisfies. A rejected
// repeat of the last number earns the previous counter the saboteur award.
func (s *Service) Check(ctx context.Context, ev domain.CountEvent) {
	if ev.Verdict.Rejected() {
		prev := ev.Previous
		if ev.HasNumber && prev.Set && ev.Number == prev.Number && prev.AuthorID != "" && prev.AuthorID != ev.UserID {
			s.Award(ctx, prev.AuthorID, CauseFail)
		}
		return
	}
	if ev.Verdict != domain.VerdictAccepted {
		return
	}

	for _, def := range catalog {
		if def.Rule != nil && def.Rule(ev) {
			s.Award(ctx, ev.UserID, def.ID)
		}
	}
}

// Award grants achievementID to userID, logging failures.
func (s *Service) Award(ctx context.Context, userID, achievementID string) {
	if _, err := s.Grant(ctx, userID, achievementID); err != nil {
		s.logger.Error("Failed to award achievement", "user_id", userID, "achievement", achievementID, "error", err)
	}
}

// Grant records an award and announces it the first time. It reports whether
// the award was new.
func (s *Service) Grant(ctx context.Context, userID, achievementID string) (bool, error) {
	def, ok := Lookup(achievementID)
	if !ok {
		return false, fmt.Errorf("unknown achievement %q", achievementID)
	}

	first, err := s.store.AwardAchievement(ctx, userID, achievementID, s.now())
	if err != nil {
		return false, fmt.Errorf("award %s: %w", achievementID, err)
	}
	if !first {
		return false, nil
	}

	metrics.AchievementsAwarded.WithLabelValues(achievementID).Inc()
	s.logger.Info("Achievement awarded", "user_id", userID, "achievement", achievementID)

	if s.announcer != nil && s.logChannelID != "" {
		msg := fmt.Sprintf("<@%s> earned the achievement: **%s**!\n%s", userID, def.Title, def.Description)
		if err := s.announcer.Announce(ctx, s.logChannelID, msg); err != nil {
			s.logger.Error("Failed to queue achievement announcement", "user_id", userID, "achievement", achievementID, "error", err)
		}
	}
	return true, nil
}

// Earned returns the definitions a user holds, in catalog order.
func (s *Service) Earned(ctx context.Context, userID string) ([]Definition, error) {
	rows, err := s.store.ListAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	held := make(map[string]bool, len(rows))
	for _, r := range rows {
		held[r.AchievementID] = true
	}
	var out []Definition
	for _, d := range catalog {
		if held[d.ID] {
			out = append(out, d)
		}
	}
	return out, nil
}
