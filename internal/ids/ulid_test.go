package ids

import (
	"testing"
	"time"
)

func TestNewIsSortable(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := NewAt(at)
	b := NewAt(at)

	if len(a) != 26 {
		t.Fatalf("expected 26 characters, got %d", len(a))
	}
	if a >= b {
		t.Fatalf("expected monotonic ids, got %s then %s", a, b)
	}
}
