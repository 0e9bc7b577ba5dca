package goals

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/countingbot/internal/domain"
)

// BarWidth is the number of cells in a progress bar.
const BarWidth = 16

// ReplacedBy marks a goal closed by the creation of a new one.
const ReplacedBy = "replaced"

// Percent returns progress toward target in [0, 100]. Negative targets are
// measured as descent below zero. A zero target always reports 0.
func Percent(current, target int64) int {
	if target == 0 {
		return 0
	}
	var p float64
	if target > 0 {
		p = math.Round(100 * float64(current) / float64(target))
	} else {
		p = math.Round(100 * -float64(current) / -float64(target))
	}
	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return int(p)
	}
}

// Reached reports whether current has crossed target in the goal's direction.
func Reached(current, target int64) bool {
	if target >= 0 {
		return current >= target
	}
	return current <= target
}

// ProgressBar renders percent as a fixed-width bar.
func ProgressBar(percent int) string {
	percent = max(0, min(100, percent))
	fill := int(math.Round(float64(percent) / 100 * BarWidth))
	return strings.Repeat("█", fill) + strings.Repeat("░", BarWidth-fill)
}

// Render builds the pinned announcement for g. current is the latest accepted
// number, or nil when unknown.
func Render(g *domain.Goal, current *int64) string {
	var b strings.Builder
	b.WriteString("**Counting Goal**\n")
	b.WriteString(g.Text)
	b.WriteString("\n")

	target := "None"
	if g.Target != nil {
		target = strconv.FormatInt(*g.Target, 10)
	}
	deadline := g.Deadline
	if deadline == "" {
		deadline = "None"
	}
	fmt.Fprintf(&b, "Set by: <@%s> | Target: %s | Deadline: %s\n", g.SetBy, target, deadline)

	switch {
	case g.Completed() && g.CompletedBy == ReplacedBy:
		fmt.Fprintf(&b, "Closed: replaced by a new goal at %s", formatTime(*g.CompletedAt))
	case g.Completed():
		fmt.Fprintf(&b, "Completed: yes, by <@%s> at %s", g.CompletedBy, formatTime(*g.CompletedAt))
	case g.Target == nil:
		b.WriteString("Progress: no numeric target")
	default:
		p, shown := 0, "?"
		if current != nil {
			p = Percent(*current, *g.Target)
			shown = strconv.FormatInt(*current, 10)
		}
		fmt.Fprintf(&b, "Progress: %s %d%%\n%s / %d", ProgressBar(p), p, shown, *g.Target)
	}
	return b.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
