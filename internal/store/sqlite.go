package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/countingbot/internal/domain"
	"github.com/ashureev/countingbot/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

var _ Repository = (*SQLiteStore)(nil)

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL keeps readers (ops API, inspect) off the writer's back.
	dsn := "file:" + dbPath +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: shared.DefaultRetryPolicy}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT
	);

	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		fame INTEGER NOT NULL DEFAULT 0,
		shame INTEGER NOT NULL DEFAULT 0,
		best_streak INTEGER NOT NULL DEFAULT 0,
		current_streak INTEGER NOT NULL DEFAULT 0,
		pos_counts INTEGER NOT NULL DEFAULT 0,
		neg_counts INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_fame ON users(fame DESC);

	CREATE TABLE IF NOT EXISTS goals (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		target INTEGER,
		pinned_message_id TEXT,
		created_at INTEGER NOT NULL,
		completed_at INTEGER,
		set_by TEXT,
		deadline TEXT,
		last_reported_percent INTEGER NOT NULL DEFAULT 0,
		completed_by TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_goals_open ON goals(created_at) WHERE completed_at IS NULL;

	CREATE TABLE IF NOT EXISTS messages (
		message_id TEXT PRIMARY KEY,
		author_id TEXT,
		guild_id TEXT,
		channel_id TEXT,
		timestamp INTEGER,
		content TEXT,
		message_length INTEGER,
		is_numeric INTEGER,
		parsed_number INTEGER,
		has_leading_zero INTEGER,
		number_delta INTEGER,
		is_correct INTEGER,
		hour INTEGER,
		weekday INTEGER,
		deleted INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(timestamp);
	CREATE INDEX IF NOT EXISTS idx_messages_author_ts ON messages(author_id, timestamp);

	CREATE TABLE IF NOT EXISTS daily_counts (
		day TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS suggestions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		text TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS achievements (
		user_id TEXT NOT NULL,
		achievement_id TEXT NOT NULL,
		earned_at INTEGER,
		PRIMARY KEY (user_id, achievement_id)
	);

	CREATE TABLE IF NOT EXISTS disconnects (
		day TEXT PRIMARY KEY,
		disconnects INTEGER NOT NULL DEFAULT 0,
		last_disconnect_at INTEGER,
		last_reconnect_at INTEGER,
		message_id TEXT
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// exec runs a write statement, retrying on SQLITE_BUSY / locked.
func (s *SQLiteStore) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := shared.RetryOnConflict(ctx, s.retry, op, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetRuntimeKV returns the value stored under key.
func (s *SQLiteStore) GetRuntimeKV(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get kv %s: %w", key, err)
	}
	return value.String, true, nil
}

// SetRuntimeKV stores value under key.
func (s *SQLiteStore) SetRuntimeKV(ctx context.Context, key, value string) error {
	_, err := s.exec(ctx, "set kv",
		`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// SetRuntimeKVs stores several keys atomically.
func (s *SQLiteStore) SetRuntimeKVs(ctx context.Context, values map[string]string) error {
	return shared.RetryOnConflict(ctx, s.retry, "set kv batch", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin kv batch: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for key, value := range values {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO kv (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
				return fmt.Errorf("set kv %s: %w", key, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit kv batch: %w", err)
		}
		return nil
	})
}

const userColumns = `user_id, fame, shame, best_streak, current_streak, pos_counts, neg_counts, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.UserStats, error) {
	var u domain.UserStats
	var updatedAt int64
	if err := row.Scan(&u.UserID, &u.Fame, &u.Shame, &u.BestStreak, &u.CurrentStreak,
		&u.PosCounts, &u.NegCounts, &updatedAt); err != nil {
		return nil, err
	}
	u.UpdatedAt = time.UnixMilli(updatedAt)
	return &u, nil
}

// GetUserStats retrieves the aggregate for a user.
func (s *SQLiteStore) GetUserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}
	return u, nil
}

// UpsertUserStats creates or replaces a user aggregate.
func (s *SQLiteStore) UpsertUserStats(ctx context.Context, u *domain.UserStats) error {
	updatedAt := u.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.exec(ctx, "upsert user", `
	INSERT INTO users (`+userColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		fame = excluded.fame,
		shame = excluded.shame,
		best_streak = excluded.best_streak,
		current_streak = excluded.current_streak,
		pos_counts = excluded.pos_counts,
		neg_counts = excluded.neg_counts,
		updated_at = excluded.updated_at`,
		u.UserID, u.Fame, u.Shame, u.BestStreak, u.CurrentStreak,
		u.PosCounts, u.NegCounts, updatedAt.UnixMilli(),
	)
	return err
}

// TopUsers returns users ordered by fame.
func (s *SQLiteStore) TopUsers(ctx context.Context, limit int) ([]*domain.UserStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY fame DESC, user_id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top users: %w", err)
	}
	defer closeRows(rows, "top users")

	var users []*domain.UserStats
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top users: %w", err)
	}
	return users, nil
}

const goalColumns = `id, text, target, pinned_message_id, created_at, completed_at,
	set_by, deadline, last_reported_percent, completed_by`

// GetCurrentGoal returns the newest goal without a completion time.
func (s *SQLiteStore) GetCurrentGoal(ctx context.Context) (*domain.Goal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+goalColumns+`
		FROM goals WHERE completed_at IS NULL
		ORDER BY created_at DESC, id DESC LIMIT 1`)

	var g domain.Goal
	var target, completedAt sql.NullInt64
	var pinned, setBy, deadline, completedBy sql.NullString
	var createdAt int64

	err := row.Scan(&g.ID, &g.Text, &target, &pinned, &createdAt, &completedAt,
		&setBy, &deadline, &g.LastReportedPercent, &completedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan goal row: %w", err)
	}

	if target.Valid {
		t := target.Int64
		g.Target = &t
	}
	if completedAt.Valid {
		ts := time.UnixMilli(completedAt.Int64)
		g.CompletedAt = &ts
	}
	g.PinnedMessageID = pinned.String
	g.SetBy = setBy.String
	g.Deadline = deadline.String
	g.CompletedBy = completedBy.String
	g.CreatedAt = time.UnixMilli(createdAt)

	return &g, nil
}

// UpsertGoal creates or updates a goal. The update is skipped once the stored
// row has a completion time.
func (s *SQLiteStore) UpsertGoal(ctx context.Context, g *domain.Goal) error {
	var target, completedAt any
	if g.Target != nil {
		target = *g.Target
	}
	if g.CompletedAt != nil {
		completedAt = g.CompletedAt.UnixMilli()
	}

	_, err := s.exec(ctx, "upsert goal", `
	INSERT INTO goals (`+goalColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		text = excluded.text,
		target = excluded.target,
		pinned_message_id = excluded.pinned_message_id,
		completed_at = excluded.completed_at,
		set_by = excluded.set_by,
		deadline = excluded.deadline,
		last_reported_percent = excluded.last_reported_percent,
		completed_by = excluded.completed_by
	WHERE goals.completed_at IS NULL`,
		g.ID, g.Text, target, nullString(g.PinnedMessageID), g.CreatedAt.UnixMilli(), completedAt,
		nullString(g.SetBy), nullString(g.Deadline), g.LastReportedPercent, nullString(g.CompletedBy),
	)
	return err
}

// InsertMessageAudit records a processed message.
func (s *SQLiteStore) InsertMessageAudit(ctx context.Context, m *domain.MessageAudit) error {
	var parsed, delta, correct any
	if m.ParsedNumber != nil {
		parsed = *m.ParsedNumber
	}
	if m.NumberDelta != nil {
		delta = *m.NumberDelta
	}
	if m.IsCorrect != nil {
		correct = boolInt(*m.IsCorrect)
	}

	_, err := s.exec(ctx, "insert message audit", `
	INSERT OR REPLACE INTO messages (
		message_id, author_id, guild_id, channel_id, timestamp, content, message_length,
		is_numeric, parsed_number, has_leading_zero, number_delta, is_correct,
		hour, weekday, deleted
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MessageID, m.AuthorID, m.GuildID, m.ChannelID, m.Timestamp.UnixMilli(), m.Content, m.MessageLength,
		boolInt(m.IsNumeric), parsed, boolInt(m.HasLeadingZero), delta, correct,
		m.Hour, m.Weekday, boolInt(m.Deleted),
	)
	return err
}

// MarkMessageDeleted flags an audit row as deleted.
func (s *SQLiteStore) MarkMessageDeleted(ctx context.Context, messageID string) error {
	res, err := s.exec(ctx, "mark message deleted",
		`UPDATE messages SET deleted = 1 WHERE message_id = ?`, messageID)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		slog.Debug("MarkMessageDeleted affected 0 rows", "message_id", messageID)
	}
	return nil
}

// RecentMessages returns the newest audit rows.
func (s *SQLiteStore) RecentMessages(ctx context.Context, limit int) ([]*domain.MessageAudit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, author_id, guild_id, channel_id, timestamp, content, message_length,
		       is_numeric, parsed_number, has_leading_zero, number_delta, is_correct,
		       hour, weekday, deleted
		FROM messages ORDER BY timestamp DESC, message_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer closeRows(rows, "recent messages")

	var out []*domain.MessageAudit
	for rows.Next() {
		var m domain.MessageAudit
		var author, guild, channel, content sql.NullString
		var ts, length, hour, weekday sql.NullInt64
		var isNumeric, leadingZero, deleted int64
		var parsed, delta, correct sql.NullInt64

		if err := rows.Scan(&m.MessageID, &author, &guild, &channel, &ts, &content, &length,
			&isNumeric, &parsed, &leadingZero, &delta, &correct, &hour, &weekday, &deleted); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}

		m.AuthorID = author.String
		m.GuildID = guild.String
		m.ChannelID = channel.String
		m.Content = content.String
		m.Timestamp = time.UnixMilli(ts.Int64)
		m.MessageLength = int(length.Int64)
		m.IsNumeric = isNumeric != 0
		m.HasLeadingZero = leadingZero != 0
		m.Hour = int(hour.Int64)
		m.Weekday = int(weekday.Int64)
		m.Deleted = deleted != 0
		if parsed.Valid {
			n := parsed.Int64
			m.ParsedNumber = &n
		}
		if delta.Valid {
			d := delta.Int64
			m.NumberDelta = &d
		}
		if correct.Valid {
			c := correct.Int64 != 0
			m.IsCorrect = &c
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent messages: %w", err)
	}
	return out, nil
}

// IncrementDailyCount adds one accepted submission to day.
func (s *SQLiteStore) IncrementDailyCount(ctx context.Context, day string) error {
	_, err := s.exec(ctx, "increment daily count", `
	INSERT INTO daily_counts (day, count) VALUES (?, 1)
	ON CONFLICT(day) DO UPDATE SET count = daily_counts.count + 1`, day)
	return err
}

// DailyCounts returns the most recent days, newest first.
func (s *SQLiteStore) DailyCounts(ctx context.Context, days int) ([]domain.DailyCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, count FROM daily_counts ORDER BY day DESC LIMIT ?`, days)
	if err != nil {
		return nil, fmt.Errorf("query daily counts: %w", err)
	}
	defer closeRows(rows, "daily counts")

	var out []domain.DailyCount
	for rows.Next() {
		var d domain.DailyCount
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			return nil, fmt.Errorf("scan daily count: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily counts: %w", err)
	}
	return out, nil
}

// InsertSuggestion stores a new suggestion.
func (s *SQLiteStore) InsertSuggestion(ctx context.Context, sg *domain.Suggestion) error {
	_, err := s.exec(ctx, "insert suggestion",
		`INSERT INTO suggestions (id, user_id, text, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		sg.ID, sg.UserID, sg.Text, sg.Status, sg.CreatedAt.UnixMilli())
	return err
}

// ListSuggestions returns suggestions, newest first.
func (s *SQLiteStore) ListSuggestions(ctx context.Context, status string, limit int) ([]*domain.Suggestion, error) {
	query := `SELECT id, user_id, text, status, created_at FROM suggestions`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}
	defer closeRows(rows, "suggestions")

	var out []*domain.Suggestion
	for rows.Next() {
		var sg domain.Suggestion
		var createdAt int64
		if err := rows.Scan(&sg.ID, &sg.UserID, &sg.Text, &sg.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		sg.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, &sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return out, nil
}

// AwardAchievement records an achievement unless the user already has it.
func (s *SQLiteStore) AwardAchievement(ctx context.Context, userID, achievementID string, at time.Time) (bool, error) {
	res, err := s.exec(ctx, "award achievement",
		`INSERT OR IGNORE INTO achievements (user_id, achievement_id, earned_at) VALUES (?, ?, ?)`,
		userID, achievementID, at.UnixMilli())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ListAchievements returns the achievements earned by a user.
func (s *SQLiteStore) ListAchievements(ctx context.Context, userID string) ([]domain.Achievement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, achievement_id, earned_at FROM achievements
		WHERE user_id = ? ORDER BY earned_at ASC, achievement_id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer closeRows(rows, "achievements")

	var out []domain.Achievement
	for rows.Next() {
		var a domain.Achievement
		var earnedAt sql.NullInt64
		if err := rows.Scan(&a.UserID, &a.AchievementID, &earnedAt); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		a.EarnedAt = time.UnixMilli(earnedAt.Int64)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate achievements: %w", err)
	}
	return out, nil
}

// RecordDisconnect increments the disconnect tally for day.
func (s *SQLiteStore) RecordDisconnect(ctx context.Context, day string, at time.Time) error {
	_, err := s.exec(ctx, "record disconnect", `
	INSERT INTO disconnects (day, disconnects, last_disconnect_at) VALUES (?, 1, ?)
	ON CONFLICT(day) DO UPDATE SET
		disconnects = disconnects.disconnects + 1,
		last_disconnect_at = excluded.last_disconnect_at`, day, at.UnixMilli())
	return err
}

// RecordReconnect stores the reconnect time for day.
func (s *SQLiteStore) RecordReconnect(ctx context.Context, day string, at time.Time) error {
	_, err := s.exec(ctx, "record reconnect", `
	INSERT INTO disconnects (day, disconnects, last_reconnect_at) VALUES (?, 0, ?)
	ON CONFLICT(day) DO UPDATE SET last_reconnect_at = excluded.last_reconnect_at`, day, at.UnixMilli())
	return err
}

// GetDisconnectDay returns the tally for day.
func (s *SQLiteStore) GetDisconnectDay(ctx context.Context, day string) (*domain.DisconnectDay, error) {
	var d domain.DisconnectDay
	var lastDisconnect, lastReconnect sql.NullInt64
	var messageID sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT day, disconnects, last_disconnect_at, last_reconnect_at, message_id
		FROM disconnects WHERE day = ?`, day).
		Scan(&d.Day, &d.Disconnects, &lastDisconnect, &lastReconnect, &messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan disconnect day: %w", err)
	}

	if lastDisconnect.Valid {
		ts := time.UnixMilli(lastDisconnect.Int64)
		d.LastDisconnect = &ts
	}
	if lastReconnect.Valid {
		ts := time.UnixMilli(lastReconnect.Int64)
		d.LastReconnect = &ts
	}
	d.ReportMessageID = messageID.String
	return &d, nil
}

// SetDisconnectReportMessage stores the status message id for day.
func (s *SQLiteStore) SetDisconnectReportMessage(ctx context.Context, day, messageID string) error {
	_, err := s.exec(ctx, "set disconnect report message", `
	INSERT INTO disconnects (day, disconnects, message_id) VALUES (?, 0, ?)
	ON CONFLICT(day) DO UPDATE SET message_id = excluded.message_id`, day, messageID)
	return err
}

var inspectedTables = []string{"users", "messages", "achievements", "goals", "suggestions"}

// Inspect builds the integrity and summary report.
func (s *SQLiteStore) Inspect(ctx context.Context) (*domain.Report, error) {
	report := &domain.Report{}

	if err := s.db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&report.Integrity); err != nil {
		return nil, fmt.Errorf("integrity check: %w", err)
	}

	for _, table := range inspectedTables {
		tc := domain.TableCount{Table: table}

		var name string
		err := s.db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			tc.Missing = true
			report.TableCounts = append(report.TableCounts, tc)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lookup table %s: %w", table, err)
		}

		// table names come from the fixed list above
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&tc.Rows); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		report.TableCounts = append(report.TableCounts, tc)
	}

	top, err := s.TopUsers(ctx, 10)
	if err != nil {
		return nil, err
	}
	report.TopUsers = top

	recent, err := s.RecentMessages(ctx, 5)
	if err != nil {
		return nil, err
	}
	report.RecentMessages = recent

	return report, nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "query", what, "error", err)
	}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
