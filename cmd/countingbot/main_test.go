package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/countingbot/internal/domain"
	"github.com/ashureev/countingbot/internal/store"
)

func TestWriteReport(t *testing.T) {
	correct := true
	r := &domain.Report{
		Integrity:   "ok",
		TableCounts: []domain.TableCount{{Table: "users", Rows: 2}, {Table: "suggestions", Missing: true}},
		TopUsers:    []*domain.UserStats{{UserID: "alice", Fame: 10, BestStreak: 4}},
		RecentMessages: []*domain.MessageAudit{
			{MessageID: "m1", AuthorID: "alice", Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), Content: "42", IsCorrect: &correct},
		},
	}

	var buf bytes.Buffer
	if err := writeReport(&buf, "counting.db", r); err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Integrity:  ok", "suggestions  missing", "alice", "2026-03-01T12:00:00Z", "yes"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("0123456789abc", 10); got != "0123456789…" {
		t.Errorf("truncate long = %q", got)
	}
}

func TestMigrateCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "counting.db")
	stats := filepath.Join(dir, "countingStats.json")
	if err := os.WriteFile(stats, []byte(`{"fame":[["u1",5]],"bestStreak":[["u1",3]]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"migrate", "--db", dbPath, "--stats", stats, "--achievements", filepath.Join(dir, "none.json")})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out.String(), "users: 1") {
		t.Errorf("unexpected output: %s", out.String())
	}

	repo, err := store.NewSQLite(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	u, err := repo.GetUserStats(context.Background(), "u1")
	if err != nil || u == nil || u.Fame != 5 || u.BestStreak != 3 {
		t.Fatalf("unexpected imported user: %+v err=%v", u, err)
	}
}
