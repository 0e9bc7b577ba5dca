// Package domain contains core domain types for the counting bot.
package domain

import (
	"time"
)

// UserStats is the per-author aggregate kept by the counting engine.
type UserStats struct {
	UserID        string    `json:"user_id"`
	Fame          int64     `json:"fame"`
	Shame         int64     `json:"shame"`
	CurrentStreak int64     `json:"current_streak"`
	BestStreak    int64     `json:"best_streak"`
	PosCounts     int64     `json:"pos_counts"`
	NegCounts     int64     `json:"neg_counts"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RecordCorrect applies an accepted submission. ascending is true when the
// number was one above the previous baseline.
func (u *UserStats) RecordCorrect(ascending bool, at time.Time) {
	u.Fame++
	if ascending {
		u.PosCounts++
	} else {
		u.NegCounts++
	}
	u.CurrentStreak++
	if u.CurrentStreak > u.BestStreak {
		u.BestStreak = u.CurrentStreak
	}
	u.UpdatedAt = at
}

// RecordIncorrect applies a rejected submission: one shame, streak reset.
func (u *UserStats) RecordIncorrect(at time.Time) {
	u.CurrentStreak = 0
	u.Shame++
	u.UpdatedAt = at
}

// Achievement is an earned achievement row.
type Achievement struct {
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	EarnedAt      time.Time `json:"earned_at"`
}
