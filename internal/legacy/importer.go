// Package legacy imports the JSON snapshot files written by the previous
// version of the bot. Running an import twice leaves the store unchanged.
package legacy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/ashureev/countingbot/internal/domain"
	"github.com/ashureev/countingbot/internal/jsoncodec"
	"github.com/ashureev/countingbot/internal/store"
)

// ErrCountingStarted is returned by Run when the store already holds a
// counting baseline. A running bot keeps user aggregates cached and would
// overwrite imported rows on its next accepted number.
var ErrCountingStarted = errors.New("counting has already started in this database; stop the bot and rerun with force")

// Store is the subset of the repository the importer reads and writes.
type Store interface {
	GetRuntimeKV(ctx context.Context, key string) (value string, ok bool, err error)
	UpsertUserStats(ctx context.Context, stats *domain.UserStats) error
	AwardAchievement(ctx context.Context, userID, achievementID string, at time.Time) (bool, error)
	SetRuntimeKV(ctx context.Context, key, value string) error
}

// Result summarizes one import run.
type Result struct {
	Users        int
	Awarded      int
	AlreadyHeld  int
	SkippedItems int
}

// statsFile is countingStats.json. Every field is a list of [userId, n] pairs.
type statsFile struct {
	Fame           []json.RawMessage `json:"fame"`
	Shame          []json.RawMessage `json:"shame"`
	CurrentStreak  []json.RawMessage `json:"currentStreak"`
	BestStreak     []json.RawMessage `json:"bestStreak"`
	PositiveCounts []json.RawMessage `json:"positiveCounts"`
	NegativeCounts []json.RawMessage `json:"negativeCounts"`
}

type achievementItem struct {
	ID            string          `json:"id"`
	AchievementID string          `json:"achievement_id"`
	EarnedAt      json.RawMessage `json:"earned_at"`
}

// Importer loads legacy snapshots into the store.
type Importer struct {
	// Force imports even when a counting baseline already exists. The bot
	// must not be running.
	Force bool

	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewImporter creates an Importer.
func NewImporter(s Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: s, logger: logger.With("component", "legacy"), now: time.Now}
}

// Run imports both files. An empty path or a missing file is skipped. On
// success the import time is recorded under the legacy_imported_at key.
func (im *Importer) Run(ctx context.Context, statsPath, achievementsPath string) (Result, error) {
	var res Result

	if !im.Force {
		_, started, err := im.store.GetRuntimeKV(ctx, store.KeyLastNumber)
		if err != nil {
			return res, fmt.Errorf("check baseline: %w", err)
		}
		if started {
			return res, ErrCountingStarted
		}
	}

	if err := im.withFile(statsPath, func(r io.Reader) error {
		n, skipped, err := im.ImportStats(ctx, r)
		res.Users, res.SkippedItems = n, res.SkippedItems+skipped
		return err
	}); err != nil {
		return res, fmt.Errorf("import stats: %w", err)
	}

	if err := im.withFile(achievementsPath, func(r io.Reader) error {
		awarded, held, skipped, err := im.ImportAchievements(ctx, r)
		res.Awarded, res.AlreadyHeld = awarded, held
		res.SkippedItems += skipped
		return err
	}); err != nil {
		return res, fmt.Errorf("import achievements: %w", err)
	}

	if err := im.store.SetRuntimeKV(ctx, store.KeyLegacyImportedAt, strconv.FormatInt(im.now().UnixMilli(), 10)); err != nil {
		return res, fmt.Errorf("record import time: %w", err)
	}
	im.logger.Info("Legacy import finished",
		"users", res.Users, "awarded", res.Awarded, "already_held", res.AlreadyHeld, "skipped", res.SkippedItems)
	return res, nil
}

func (im *Importer) withFile(path string, fn func(io.Reader) error) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		im.logger.Warn("Legacy file not found, skipping", "path", path)
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

// ImportStats reads countingStats.json and upserts one aggregate per user.
// Malformed pairs are skipped and counted.
func (im *Importer) ImportStats(ctx context.Context, r io.Reader) (users, skipped int, err error) {
	var sf statsFile
	if err := jsoncodec.Decode(r, &sf); err != nil {
		return 0, 0, fmt.Errorf("decode stats: %w", err)
	}

	byUser := make(map[string]*domain.UserStats)
	var order []string
	apply := func(pairs []json.RawMessage, set func(*domain.UserStats, int64)) {
		for _, raw := range pairs {
			userID, n, ok := decodePair(raw)
			if !ok {
				skipped++
				continue
			}
			u, exists := byUser[userID]
			if !exists {
				u = &domain.UserStats{UserID: userID}
				byUser[userID] = u
				order = append(order, userID)
			}
			set(u, n)
		}
	}
	apply(sf.Fame, func(u *domain.UserStats, n int64) { u.Fame = n })
	apply(sf.Shame, func(u *domain.UserStats, n int64) { u.Shame = n })
	apply(sf.CurrentStreak, func(u *domain.UserStats, n int64) { u.CurrentStreak = n })
	apply(sf.BestStreak, func(u *domain.UserStats, n int64) { u.BestStreak = n })
	apply(sf.PositiveCounts, func(u *domain.UserStats, n int64) { u.PosCounts = n })
	apply(sf.NegativeCounts, func(u *domain.UserStats, n int64) { u.NegCounts = n })

	now := im.now()
	for _, id := range order {
		u := byUser[id]
		u.BestStreak = max(u.BestStreak, u.CurrentStreak)
		u.UpdatedAt = now
		if err := im.store.UpsertUserStats(ctx, u); err != nil {
			return users, skipped, fmt.Errorf("upsert user %s: %w", id, err)
		}
		users++
	}
	return users, skipped, nil
}

// ImportAchievements reads userAchievements.json. Items are either a bare id
// or an object with id and earned_at in epoch milliseconds.
func (im *Importer) ImportAchievements(ctx context.Context, r io.Reader) (awarded, held, skipped int, err error) {
	var byUser map[string][]json.RawMessage
	if err := jsoncodec.Decode(r, &byUser); err != nil {
		return 0, 0, 0, fmt.Errorf("decode achievements: %w", err)
	}

	for userID, items := range byUser {
		for _, raw := range items {
			id, at, ok := im.decodeAchievement(raw)
			if !ok {
				skipped++
				continue
			}
			first, err := im.store.AwardAchievement(ctx, userID, id, at)
			if err != nil {
				return awarded, held, skipped, fmt.Errorf("award %s to %s: %w", id, userID, err)
			}
			if first {
				awarded++
			} else {
				held++
			}
		}
	}
	return awarded, held, skipped, nil
}

func (im *Importer) decodeAchievement(raw json.RawMessage) (string, time.Time, bool) {
	if s, ok := scalar(raw); ok {
		return s, im.now(), s != ""
	}
	var item achievementItem
	if err := jsoncodec.Unmarshal(raw, &item); err != nil {
		return "", time.Time{}, false
	}
	id := item.ID
	if id == "" {
		id = item.AchievementID
	}
	if id == "" {
		return "", time.Time{}, false
	}
	at := im.now()
	if s, ok := scalar(item.EarnedAt); ok {
		if ms, err := parseInt(s); err == nil && ms > 0 {
			at = time.UnixMilli(ms).UTC()
		}
	}
	return id, at, true
}

func decodePair(raw json.RawMessage) (string, int64, bool) {
	var pair []json.RawMessage
	if err := jsoncodec.Unmarshal(raw, &pair); err != nil || len(pair) < 2 {
		return "", 0, false
	}
	userID, ok := scalar(pair[0])
	if !ok || userID == "" {
		return "", 0, false
	}
	s, ok := scalar(pair[1])
	if !ok {
		return "", 0, false
	}
	n, err := parseInt(s)
	if err != nil {
		return "", 0, false
	}
	return userID, n, true
}

// scalar returns a JSON string or number as text.
func scalar(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := jsoncodec.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return string(raw), true
	}
	return "", false
}

func parseInt(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
