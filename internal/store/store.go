// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/countingbot/internal/domain"
)

// Runtime KV keys.
const (
	KeyLastNumber          = "last_number"
	KeyLastUser            = "last_user"
	KeyLastMessageID       = "last_message_id"
	KeyCountDelayMS        = "count_delay_ms"
	KeyGoalLastPercent     = "goal_current_last_percent"
	KeyGoalLastCompletedAt = "goal_last_completed_at"
	KeyGoalLastCompletedBy = "goal_last_completed_by"
	KeyLegacyImportedAt    = "legacy_imported_at"
)

// Repository defines the interface for persisting counting state.
type Repository interface {
	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// GetRuntimeKV returns the value stored under key; ok is false when absent.
	GetRuntimeKV(ctx context.Context, key string) (value string, ok bool, err error)

	// SetRuntimeKV stores value under key.
	SetRuntimeKV(ctx context.Context, key, value string) error

	// SetRuntimeKVs stores several keys in one transaction.
	SetRuntimeKVs(ctx context.Context, values map[string]string) error

	// GetUserStats retrieves the aggregate for a user, or nil if none exists.
	GetUserStats(ctx context.Context, userID string) (*domain.UserStats, error)

	// UpsertUserStats creates or replaces a user aggregate.
	UpsertUserStats(ctx context.Context, stats *domain.UserStats) error

	// TopUsers returns users ordered by fame, highest first.
	TopUsers(ctx context.Context, limit int) ([]*domain.UserStats, error)

	// GetCurrentGoal returns the most recently created goal that is not completed, or nil.
	GetCurrentGoal(ctx context.Context) (*domain.Goal, error)

	// UpsertGoal creates or updates a goal. Completed goals are never modified.
	UpsertGoal(ctx context.Context, goal *domain.Goal) error

	// InsertMessageAudit records a processed message. Re-inserting the same
	// message id replaces the row.
	InsertMessageAudit(ctx context.Context, record *domain.MessageAudit) error

	// MarkMessageDeleted flags an audit row as deleted.
	MarkMessageDeleted(ctx context.Context, messageID string) error

	// RecentMessages returns the newest audit rows.
	RecentMessages(ctx context.Context, limit int) ([]*domain.MessageAudit, error)

	// IncrementDailyCount adds one accepted submission to the given day.
	IncrementDailyCount(ctx context.Context, day string) error

	// DailyCounts returns the most recent days, newest first.
	DailyCounts(ctx context.Context, days int) ([]domain.DailyCount, error)

	// InsertSuggestion stores a new suggestion.
	InsertSuggestion(ctx context.Context, s *domain.Suggestion) error

	// ListSuggestions returns suggestions, newest first. An empty status lists all.
	ListSuggestions(ctx context.Context, status string, limit int) ([]*domain.Suggestion, error)

	// AwardAchievement records an achievement. It returns false if the user already had it.
	AwardAchievement(ctx context.Context, userID, achievementID string, at time.Time) (bool, error)

	// ListAchievements returns the achievements earned by a user.
	ListAchievements(ctx context.Context, userID string) ([]domain.Achievement, error)

	// RecordDisconnect increments the disconnect tally for a day.
	RecordDisconnect(ctx context.Context, day string, at time.Time) error

	// RecordReconnect stores the reconnect time for a day.
	RecordReconnect(ctx context.Context, day string, at time.Time) error

	// GetDisconnectDay returns the tally for a day, or nil.
	GetDisconnectDay(ctx context.Context, day string) (*domain.DisconnectDay, error)

	// SetDisconnectReportMessage stores the id of the status message for a day.
	SetDisconnectReportMessage(ctx context.Context, day, messageID string) error

	// Inspect builds the integrity and summary report.
	Inspect(ctx context.Context) (*domain.Report, error)
}
