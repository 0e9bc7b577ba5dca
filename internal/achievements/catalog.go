package achievements

import (
	"fmt"

	"github.com/ashureev/countingbot/internal/domain"
)

// Manually awarded achievements.
const (
	CauseFail  = "cause_fail"
	GoalWinner = "goal_winner"
)

// Definition describes one achievement. Rule is nil for achievements that are
// only awarded explicitly.
type Definition struct {
	ID          string
	Title       string
	Description string
	Rule        func(ev domain.CountEvent) bool
}

var catalog = buildCatalog()

func buildCatalog() []Definition {
	var defs []Definition

	for _, n := range []int64{1, 10, 100, 1000, 10000} {
		defs = append(defs, Definition{
			ID:          fmt.Sprintf("count_%d", n),
			Title:       fmt.Sprintf("Count to %s", withCommas(n)),
			Description: fmt.Sprintf("Successfully counted to %s.", withCommas(n)),
			Rule:        numberIs(n),
		})
	}
	for _, n := range []int64{10, 50, 100, 500, 1000} {
		defs = append(defs, Definition{
			ID:          fmt.Sprintf("streak_%d", n),
			Title:       fmt.Sprintf("%d Streak", n),
			Description: fmt.Sprintf("Reached a streak of %d without failing.", n),
			Rule:        statAtLeast(func(u domain.UserStats) int64 { return u.BestStreak }, n),
		})
	}
	for _, n := range []int64{1, 10, 100, 1000} {
		defs = append(defs, Definition{
			ID:          fmt.Sprintf("increasing_count_%d", n),
			Title:       fmt.Sprintf("Increasing Counter %d", n),
			Description: fmt.Sprintf("Sent %d increasing numbers in the count.", n),
			Rule:        statAtLeast(func(u domain.UserStats) int64 { return u.PosCounts }, n),
		})
	}
	for _, n := range []int64{1, 10, 100, 1000} {
		defs = append(defs, Definition{
			ID:          fmt.Sprintf("decreasing_count_%d", n),
			Title:       fmt.Sprintf("Decreasing Counter %d", n),
			Description: fmt.Sprintf("Sent %d decreasing numbers in the count.", n),
			Rule:        statAtLeast(func(u domain.UserStats) int64 { return u.NegCounts }, n),
		})
	}

	return append(defs,
		Definition{ID: CauseFail, Title: "Saboteur", Description: "Another user repeated a number you sent, causing them to incorrectly count."},
		Definition{ID: GoalWinner, Title: "Goal Winner", Description: "Was the final counter when a goal was reached."},
	)
}

func numberIs(n int64) func(domain.CountEvent) bool {
	return func(ev domain.CountEvent) bool {
		return ev.HasNumber && ev.Number == n
	}
}

func statAtLeast(stat func(domain.UserStats) int64, n int64) func(domain.CountEvent) bool {
	return func(ev domain.CountEvent) bool {
		return stat(ev.Stats) >= n
	}
}

func withCommas(n int64) string {
	if n < 10000 {
		return fmt.Sprint(n)
	}
	return fmt.Sprintf("%d,%03d", n/1000, n%1000)
}

// Catalog returns every known achievement.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a definition by id.
func Lookup(id string) (Definition, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}
