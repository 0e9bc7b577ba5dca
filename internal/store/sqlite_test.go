package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/countingbot/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "counting.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestRuntimeKV(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetRuntimeKV(ctx, KeyLastNumber); err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}

	if err := s.SetRuntimeKVs(ctx, map[string]string{KeyLastNumber: "41", KeyLastUser: "alice"}); err != nil {
		t.Fatalf("SetRuntimeKVs: %v", err)
	}
	if err := s.SetRuntimeKV(ctx, KeyLastNumber, "42"); err != nil {
		t.Fatalf("SetRuntimeKV: %v", err)
	}

	v, ok, err := s.GetRuntimeKV(ctx, KeyLastNumber)
	if err != nil || !ok || v != "42" {
		t.Fatalf("expected 42, got %q ok=%v err=%v", v, ok, err)
	}
	v, _, _ = s.GetRuntimeKV(ctx, KeyLastUser)
	if v != "alice" {
		t.Errorf("expected alice, got %q", v)
	}
}

func TestUserStatsUpsertIsIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if got, err := s.GetUserStats(ctx, "bob"); err != nil || got != nil {
		t.Fatalf("expected nil user, got %v err=%v", got, err)
	}

	u := &domain.UserStats{UserID: "bob", Fame: 3, Shame: 1, CurrentStreak: 2, BestStreak: 5, PosCounts: 2, NegCounts: 1, UpdatedAt: time.Now()}
	for i := 0; i < 2; i++ {
		if err := s.UpsertUserStats(ctx, u); err != nil {
			t.Fatalf("UpsertUserStats: %v", err)
		}
	}
	if err := s.UpsertUserStats(ctx, &domain.UserStats{UserID: "carol", Fame: 10}); err != nil {
		t.Fatalf("UpsertUserStats: %v", err)
	}

	got, err := s.GetUserStats(ctx, "bob")
	if err != nil || got == nil {
		t.Fatalf("GetUserStats: %v", err)
	}
	if got.Fame != 3 || got.BestStreak != 5 || got.NegCounts != 1 {
		t.Errorf("unexpected stats: %+v", got)
	}

	top, err := s.TopUsers(ctx, 10)
	if err != nil {
		t.Fatalf("TopUsers: %v", err)
	}
	if len(top) != 2 || top[0].UserID != "carol" {
		t.Fatalf("expected carol first, got %+v", top)
	}
}

func TestCompletedGoalIsImmutable(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	target := int64(100)
	g := &domain.Goal{ID: "g1", Text: "reach 100", Target: &target, SetBy: "op", CreatedAt: time.Now()}
	if err := s.UpsertGoal(ctx, g); err != nil {
		t.Fatalf("UpsertGoal: %v", err)
	}

	current, err := s.GetCurrentGoal(ctx)
	if err != nil || current == nil || current.ID != "g1" {
		t.Fatalf("expected g1 current, got %+v err=%v", current, err)
	}
	if current.Target == nil || *current.Target != 100 {
		t.Fatalf("expected target 100, got %v", current.Target)
	}

	done := time.Now()
	g.CompletedAt = &done
	g.CompletedBy = "alice"
	if err := s.UpsertGoal(ctx, g); err != nil {
		t.Fatalf("complete goal: %v", err)
	}

	current, err = s.GetCurrentGoal(ctx)
	if err != nil || current != nil {
		t.Fatalf("expected no current goal after completion, got %+v err=%v", current, err)
	}

	// Later writes against the completed row are ignored.
	changed := int64(5)
	g.Target = &changed
	g.CompletedAt = nil
	if err := s.UpsertGoal(ctx, g); err != nil {
		t.Fatalf("UpsertGoal after completion: %v", err)
	}
	current, _ = s.GetCurrentGoal(ctx)
	if current != nil {
		t.Fatalf("completed goal was reopened: %+v", current)
	}
}

func TestMessageAuditAndDeletion(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	n := int64(7)
	correct := true
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"m1", "m2"} {
		rec := &domain.MessageAudit{
			MessageID: id, AuthorID: "a", ChannelID: "c", Timestamp: base.Add(time.Duration(i) * time.Second),
			Content: "7", MessageLength: 1, IsNumeric: true, ParsedNumber: &n, IsCorrect: &correct,
		}
		if err := s.InsertMessageAudit(ctx, rec); err != nil {
			t.Fatalf("InsertMessageAudit: %v", err)
		}
	}
	if err := s.MarkMessageDeleted(ctx, "m2"); err != nil {
		t.Fatalf("MarkMessageDeleted: %v", err)
	}
	if err := s.MarkMessageDeleted(ctx, "unknown"); err != nil {
		t.Fatalf("MarkMessageDeleted unknown: %v", err)
	}

	recent, err := s.RecentMessages(ctx, 5)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(recent) != 2 || recent[0].MessageID != "m2" {
		t.Fatalf("expected m2 first, got %+v", recent)
	}
	if !recent[0].Deleted || recent[1].Deleted {
		t.Errorf("unexpected deleted flags: %v %v", recent[0].Deleted, recent[1].Deleted)
	}
	if recent[1].IsCorrect == nil || !*recent[1].IsCorrect || recent[1].ParsedNumber == nil || *recent[1].ParsedNumber != 7 {
		t.Errorf("unexpected audit row: %+v", recent[1])
	}
}

func TestDailyCountsAndAchievements(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.IncrementDailyCount(ctx, "2026-03-01"); err != nil {
			t.Fatalf("IncrementDailyCount: %v", err)
		}
	}
	if err := s.IncrementDailyCount(ctx, "2026-03-02"); err != nil {
		t.Fatalf("IncrementDailyCount: %v", err)
	}
	days, err := s.DailyCounts(ctx, 7)
	if err != nil {
		t.Fatalf("DailyCounts: %v", err)
	}
	if len(days) != 2 || days[0].Day != "2026-03-02" || days[1].Count != 3 {
		t.Fatalf("unexpected daily counts: %+v", days)
	}

	first, err := s.AwardAchievement(ctx, "a", "count_1", time.Now())
	if err != nil || !first {
		t.Fatalf("expected first award, got %v err=%v", first, err)
	}
	again, err := s.AwardAchievement(ctx, "a", "count_1", time.Now())
	if err != nil || again {
		t.Fatalf("expected duplicate award to be ignored, got %v err=%v", again, err)
	}
	list, err := s.ListAchievements(ctx, "a")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one achievement, got %v err=%v", list, err)
	}
}

func TestDisconnectTally(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	if d, err := s.GetDisconnectDay(ctx, "2026-03-01"); err != nil || d != nil {
		t.Fatalf("expected no tally, got %+v err=%v", d, err)
	}
	if err := s.SetDisconnectReportMessage(ctx, "2026-03-01", "msg-1"); err != nil {
		t.Fatalf("SetDisconnectReportMessage: %v", err)
	}
	if err := s.RecordDisconnect(ctx, "2026-03-01", at); err != nil {
		t.Fatalf("RecordDisconnect: %v", err)
	}
	if err := s.RecordDisconnect(ctx, "2026-03-01", at.Add(time.Hour)); err != nil {
		t.Fatalf("RecordDisconnect: %v", err)
	}
	if err := s.RecordReconnect(ctx, "2026-03-01", at.Add(2*time.Hour)); err != nil {
		t.Fatalf("RecordReconnect: %v", err)
	}

	d, err := s.GetDisconnectDay(ctx, "2026-03-01")
	if err != nil || d == nil {
		t.Fatalf("GetDisconnectDay: %v", err)
	}
	if d.Disconnects != 2 || d.ReportMessageID != "msg-1" {
		t.Errorf("unexpected tally: %+v", d)
	}
	if d.LastReconnect == nil || !d.LastReconnect.Equal(at.Add(2*time.Hour)) {
		t.Errorf("unexpected reconnect time: %v", d.LastReconnect)
	}
}

func TestSuggestionsAndInspect(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	for i, status := range []string{"open", "done"} {
		sg := &domain.Suggestion{ID: "s" + string(rune('1'+i)), UserID: "u", Text: "more goals", Status: status, CreatedAt: now.Add(time.Duration(i) * time.Second)}
		if err := s.InsertSuggestion(ctx, sg); err != nil {
			t.Fatalf("InsertSuggestion: %v", err)
		}
	}
	open, err := s.ListSuggestions(ctx, "open", 10)
	if err != nil || len(open) != 1 || open[0].ID != "s1" {
		t.Fatalf("unexpected open suggestions: %+v err=%v", open, err)
	}
	all, err := s.ListSuggestions(ctx, "", 10)
	if err != nil || len(all) != 2 {
		t.Fatalf("unexpected suggestions: %+v err=%v", all, err)
	}

	report, err := s.Inspect(ctx)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if report.Integrity != "ok" {
		t.Errorf("expected integrity ok, got %q", report.Integrity)
	}
	if len(report.TableCounts) != len(inspectedTables) {
		t.Fatalf("expected %d table counts, got %d", len(inspectedTables), len(report.TableCounts))
	}
	for _, tc := range report.TableCounts {
		if tc.Table == "suggestions" && tc.Rows != 2 {
			t.Errorf("expected 2 suggestions, got %d", tc.Rows)
		}
	}
}
