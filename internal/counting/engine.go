// Package counting implements the counting game state machine.
package counting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/countingbot/internal/domain"
	"github.com/ashureev/countingbot/internal/metrics"
	"github.com/ashureev/countingbot/internal/store"
)

// Defaults.
const (
	DefaultDelay       = 3 * time.Second
	DefaultResyncDepth = 10
	defaultRecentIDs   = 512
)

// Store is the persistence the engine writes through.
type Store interface {
	GetRuntimeKV(ctx context.Context, key string) (string, bool, error)
	SetRuntimeKV(ctx context.Context, key, value string) error
	SetRuntimeKVs(ctx context.Context, values map[string]string) error
	GetUserStats(ctx context.Context, userID string) (*domain.UserStats, error)
	UpsertUserStats(ctx context.Context, stats *domain.UserStats) error
	InsertMessageAudit(ctx context.Context, record *domain.MessageAudit) error
	MarkMessageDeleted(ctx context.Context, messageID string) error
	IncrementDailyCount(ctx context.Context, day string) error
}

// History reads recent channel messages, newest first.
type History interface {
	RecentMessages(ctx context.Context, channelID string, limit int) ([]domain.Message, error)
}

// Effects queues side effects the engine does not wait on.
type Effects interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// GoalTracker is told about every accepted number.
type GoalTracker interface {
	Evaluate(ctx context.Context, current int64, authorID string)
}

// AchievementTrigger runs after every judged submission.
type AchievementTrigger interface {
	Check(ctx context.Context, ev domain.CountEvent)
}

// Config holds engine settings.
type Config struct {
	ChannelID     string
	Delay         time.Duration
	ResyncDepth   int
	EnforceDelete bool
	RecentIDs     int
}

// Deps are the collaborators of the engine. Goals and Achievements may be nil.
type Deps struct {
	Store        Store
	History      History
	Effects      Effects
	Goals        GoalTracker
	Achievements AchievementTrigger
}

// State is a point-in-time view of the engine.
type State struct {
	Baseline domain.Baseline `json:"baseline"`
	Delay    time.Duration   `json:"delay"`
	SelfID   string          `json:"self_id"`
}

// Engine judges counting submissions. All mutations are serialized by mu, so
// one message is fully resolved before the next starts.
type Engine struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
	delay  atomic.Int64

	mu           sync.Mutex
	baseline     domain.Baseline
	selfID       string
	lastAccepted map[string]time.Time
	users        map[string]*domain.UserStats
	dirtyUsers   map[string]struct{}
	dirtyBase    bool
	recent       *recentSet
}

// New creates an Engine with an unset baseline. Call Hydrate before use.
func New(cfg Config, deps Deps, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.ResyncDepth <= 0 {
		cfg.ResyncDepth = DefaultResyncDepth
	}
	if cfg.RecentIDs <= 0 {
		cfg.RecentIDs = defaultRecentIDs
	}
	e := &Engine{
		cfg:          cfg,
		deps:         deps,
		logger:       logger.With("component", "counting"),
		now:          time.Now,
		lastAccepted: make(map[string]time.Time),
		users:        make(map[string]*domain.UserStats),
		dirtyUsers:   make(map[string]struct{}),
		recent:       newRecentSet(cfg.RecentIDs),
	}
	e.delay.Store(int64(cfg.Delay))
	return e
}

// Hydrate loads the baseline and the runtime delay from the store. A missing
// baseline is not an error; the engine adopts the next number instead.
func (e *Engine) Hydrate(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if raw, ok, err := e.deps.Store.GetRuntimeKV(ctx, store.KeyCountDelayMS); err != nil {
		return fmt.Errorf("load count delay: %w", err)
	} else if ok && raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms < 0 {
			e.logger.Warn("Ignoring invalid persisted count delay", "value", raw)
		} else {
			e.delay.Store(int64(time.Duration(ms) * time.Millisecond))
		}
	}

	raw, ok, err := e.deps.Store.GetRuntimeKV(ctx, store.KeyLastNumber)
	if err != nil {
		return fmt.Errorf("load baseline: %w", err)
	}
	if !ok || raw == "" {
		e.logger.Warn("No persisted baseline, next number will be adopted")
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		e.logger.Warn("Ignoring invalid persisted baseline", "value", raw)
		return nil
	}

	b := domain.Baseline{Number: n, Set: true}
	if b.AuthorID, _, err = e.deps.Store.GetRuntimeKV(ctx, store.KeyLastUser); err != nil {
		return fmt.Errorf("load baseline author: %w", err)
	}
	if b.MessageID, _, err = e.deps.Store.GetRuntimeKV(ctx, store.KeyLastMessageID); err != nil {
		return fmt.Errorf("load baseline message: %w", err)
	}
	e.baseline = b
	metrics.CountingBaseline.Set(float64(n))
	e.logger.Info("Baseline hydrated", "last_number", n, "last_user", b.AuthorID)
	return nil
}

// SetSelfID records the bot's own user id.
func (e *Engine) SetSelfID(id string) {
	e.mu.Lock()
	e.selfID = id
	e.mu.Unlock()
}

// Delay returns the current per-author cooldown.
func (e *Engine) Delay() time.Duration {
	return time.Duration(e.delay.Load())
}

// SetDelay changes the cooldown at runtime and persists it.
func (e *Engine) SetDelay(ctx context.Context, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("count delay must not be negative")
	}
	e.delay.Store(int64(d))
	if err := e.deps.Store.SetRuntimeKV(ctx, store.KeyCountDelayMS, strconv.FormatInt(d.Milliseconds(), 10)); err != nil {
		return fmt.Errorf("persist count delay: %w", err)
	}
	e.logger.Info("Count delay changed", "delay", d)
	return nil
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{Baseline: e.baseline, Delay: e.Delay(), SelfID: e.selfID}
}

// Process judges one message and applies its side effects.
func (e *Engine) Process(ctx context.Context, msg domain.Message) domain.Verdict {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, seen := e.recent.get(msg.ID); seen || (e.baseline.Set && msg.ID == e.baseline.MessageID) {
		metrics.CountingMessages.WithLabelValues(string(domain.VerdictDuplicate)).Inc()
		e.logger.Debug("Skipping redelivered message", "message_id", msg.ID)
		return domain.VerdictDuplicate
	}

	at := msg.Timestamp
	if at.IsZero() {
		at = e.now()
	}
	parsed := Parse(msg.Content)
	prev := e.baseline
	self := e.selfID != "" && msg.AuthorID == e.selfID

	verdict := e.judge(parsed, msg.AuthorID, at, prev)
	e.recent.put(msg.ID, verdict)

	var stats *domain.UserStats
	switch verdict {
	case domain.VerdictAdopted:
		e.logger.Warn("Baseline unset, adopting submission as new baseline",
			"message_id", msg.ID, "user_id", msg.AuthorID, "number", parsed.Value)
		e.lastAccepted[msg.AuthorID] = at
		e.setBaseline(ctx, domain.Baseline{Number: parsed.Value, AuthorID: msg.AuthorID, MessageID: msg.ID, Set: true})
	case domain.VerdictAccepted:
		stats = e.accept(ctx, msg, parsed.Value, prev, at)
	default:
		stats = e.reject(ctx, msg, verdict, self, at)
	}

	e.audit(ctx, msg, parsed, prev, verdict, at)
	metrics.CountingMessages.WithLabelValues(string(verdict)).Inc()

	if verdict == domain.VerdictAccepted && e.deps.Goals != nil {
		e.deps.Goals.Evaluate(ctx, parsed.Value, msg.AuthorID)
	}
	if stats != nil && e.deps.Achievements != nil {
		e.deps.Achievements.Check(ctx, domain.CountEvent{
			UserID:    msg.AuthorID,
			Stats:     *stats,
			Verdict:   verdict,
			Number:    parsed.Value,
			HasNumber: parsed.HasValue,
			Previous:  prev,
		})
	}
	return verdict
}

func (e *Engine) judge(p Parsed, authorID string, at time.Time, prev domain.Baseline) domain.Verdict {
	switch p.Kind {
	case KindNonNumeric:
		return domain.VerdictRejectedFormat
	case KindLeadingZero:
		return domain.VerdictRejectedLeadingZero
	}

	if last, ok := e.lastAccepted[authorID]; ok && at.Sub(last) < e.Delay() {
		return domain.VerdictRejectedRate
	}

	if !prev.Set {
		return domain.VerdictAdopted
	}
	if authorID == prev.AuthorID {
		return domain.VerdictRejectedSameAuthor
	}
	if p.Value != prev.Number+1 && p.Value != prev.Number-1 {
		return domain.VerdictRejectedSequence
	}
	return domain.VerdictAccepted
}

func (e *Engine) accept(ctx context.Context, msg domain.Message, n int64, prev domain.Baseline, at time.Time) *domain.UserStats {
	e.lastAccepted[msg.AuthorID] = at
	e.setBaseline(ctx, domain.Baseline{Number: n, AuthorID: msg.AuthorID, MessageID: msg.ID, Set: true})

	stats := e.loadUser(ctx, msg.AuthorID)
	if stats != nil {
		stats.RecordCorrect(n == prev.Number+1, at)
		e.saveUser(ctx, stats)
	}

	if err := e.deps.Store.IncrementDailyCount(ctx, domain.DayKey(at)); err != nil {
		metrics.CountingPersistErrors.WithLabelValues("daily_count").Inc()
		e.logger.Error("Failed to increment daily count", "error", err)
	}
	e.logger.Debug("Count accepted", "message_id", msg.ID, "user_id", msg.AuthorID, "number", n)
	return stats
}

func (e *Engine) reject(ctx context.Context, msg domain.Message, verdict domain.Verdict, self bool, at time.Time) *domain.UserStats {
	if self {
		e.logger.Debug("Ignoring own message in counting channel", "message_id", msg.ID, "verdict", verdict)
		return nil
	}

	e.logger.Info("Count rejected", "message_id", msg.ID, "user_id", msg.AuthorID, "verdict", verdict, "content", msg.Content)

	if e.cfg.EnforceDelete && e.deps.Effects != nil {
		channelID := msg.ChannelID
		if channelID == "" {
			channelID = e.cfg.ChannelID
		}
		if err := e.deps.Effects.DeleteMessage(ctx, channelID, msg.ID); err != nil {
			e.logger.Error("Failed to queue message deletion", "message_id", msg.ID, "error", err)
		}
	}

	stats := e.loadUser(ctx, msg.AuthorID)
	if stats != nil {
		stats.RecordIncorrect(at)
		e.saveUser(ctx, stats)
	}
	return stats
}

func (e *Engine) setBaseline(ctx context.Context, b domain.Baseline) {
	e.baseline = b
	if b.Set {
		metrics.CountingBaseline.Set(float64(b.Number))
	}
	e.persistBaseline(ctx)
}

func (e *Engine) persistBaseline(ctx context.Context) {
	values := map[string]string{
		store.KeyLastNumber:    "",
		store.KeyLastUser:      e.baseline.AuthorID,
		store.KeyLastMessageID: e.baseline.MessageID,
	}
	if e.baseline.Set {
		values[store.KeyLastNumber] = strconv.FormatInt(e.baseline.Number, 10)
	}
	if err := e.deps.Store.SetRuntimeKVs(ctx, values); err != nil {
		e.dirtyBase = true
		metrics.CountingPersistErrors.WithLabelValues("baseline").Inc()
		e.logger.Error("Failed to persist baseline", "error", err)
		return
	}
	e.dirtyBase = false
}

func (e *Engine) loadUser(ctx context.Context, userID string) *domain.UserStats {
	if u, ok := e.users[userID]; ok {
		return u
	}
	u, err := e.deps.Store.GetUserStats(ctx, userID)
	if err != nil {
		metrics.CountingPersistErrors.WithLabelValues("load_user").Inc()
		e.logger.Error("Failed to load user stats, skipping aggregate update", "user_id", userID, "error", err)
		return nil
	}
	if u == nil {
		u = &domain.UserStats{UserID: userID}
	}
	e.users[userID] = u
	return u
}

func (e *Engine) saveUser(ctx context.Context, u *domain.UserStats) {
	if err := e.deps.Store.UpsertUserStats(ctx, u); err != nil {
		e.dirtyUsers[u.UserID] = struct{}{}
		metrics.CountingPersistErrors.WithLabelValues("user_stats").Inc()
		e.logger.Error("Failed to persist user stats", "user_id", u.UserID, "error", err)
		return
	}
	delete(e.dirtyUsers, u.UserID)
}

func (e *Engine) audit(ctx context.Context, msg domain.Message, p Parsed, prev domain.Baseline, verdict domain.Verdict, at time.Time) {
	utc := at.UTC()
	rec := &domain.MessageAudit{
		MessageID:      msg.ID,
		AuthorID:       msg.AuthorID,
		GuildID:        msg.GuildID,
		ChannelID:      msg.ChannelID,
		Timestamp:      at,
		Content:        msg.Content,
		MessageLength:  len([]rune(msg.Content)),
		IsNumeric:      p.Numeric,
		HasLeadingZero: p.Kind == KindLeadingZero,
		Hour:           utc.Hour(),
		Weekday:        int(utc.Weekday()),
	}
	if p.HasValue {
		n := p.Value
		rec.ParsedNumber = &n
		if prev.Set {
			delta := n - prev.Number
			rec.NumberDelta = &delta
		}
	}
	if verdict != domain.VerdictAdopted {
		correct := verdict == domain.VerdictAccepted
		rec.IsCorrect = &correct
	}
	if err := e.deps.Store.InsertMessageAudit(ctx, rec); err != nil {
		metrics.CountingPersistErrors.WithLabelValues("audit").Inc()
		e.logger.Error("Failed to write message audit", "message_id", msg.ID, "error", err)
	}
}

// HandleDeletion marks a deleted message and recovers the baseline when the
// deleted message was the last accepted one.
func (e *Engine) HandleDeletion(ctx context.Context, del domain.MessageDeletion) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.deps.Store.MarkMessageDeleted(ctx, del.ID); err != nil {
		metrics.CountingPersistErrors.WithLabelValues("mark_deleted").Inc()
		e.logger.Error("Failed to mark message deleted", "message_id", del.ID, "error", err)
	}

	if !e.baseline.Set {
		return
	}
	if e.baseline.MessageID != "" && e.baseline.MessageID != del.ID {
		return
	}
	e.logger.Info("Last accepted message deleted, resyncing baseline", "message_id", del.ID)
	if err := e.resyncLocked(ctx); err != nil {
		e.logger.Error("Baseline resync failed", "error", err)
	}
}

// Bootstrap recovers the baseline from channel history when hydration found none.
func (e *Engine) Bootstrap(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.baseline.Set {
		return nil
	}
	return e.resyncLocked(ctx)
}

// Resync rebuilds the baseline from channel history.
func (e *Engine) Resync(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resyncLocked(ctx)
}

func (e *Engine) resyncLocked(ctx context.Context) error {
	if e.deps.History == nil {
		return errors.New("no channel history available")
	}
	msgs, err := e.deps.History.RecentMessages(ctx, e.cfg.ChannelID, e.cfg.ResyncDepth)
	if err != nil {
		return fmt.Errorf("read channel history: %w", err)
	}

	for _, m := range msgs {
		if v, ok := e.recent.get(m.ID); ok && v.Rejected() {
			continue
		}
		p := Parse(m.Content)
		if p.Kind != KindNumber {
			continue
		}
		e.setBaseline(ctx, domain.Baseline{Number: p.Value, AuthorID: m.AuthorID, MessageID: m.ID, Set: true})
		e.logger.Info("Baseline resynced from history", "last_number", p.Value, "last_user", m.AuthorID, "message_id", m.ID)
		return nil
	}

	e.setBaseline(ctx, domain.Baseline{})
	e.logger.Warn("No number found in recent history, baseline unset", "depth", e.cfg.ResyncDepth)
	return nil
}

// Flush re-persists the baseline and any aggregates whose writes failed.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if e.baseline.Set || e.dirtyBase {
		e.persistBaseline(ctx)
		if e.dirtyBase {
			errs = append(errs, errors.New("baseline not persisted"))
		}
	}
	for id := range e.dirtyUsers {
		if u, ok := e.users[id]; ok {
			e.saveUser(ctx, u)
		}
	}
	if n := len(e.dirtyUsers); n > 0 {
		errs = append(errs, fmt.Errorf("%d user aggregates not persisted", n))
	}
	return errors.Join(errs...)
}
