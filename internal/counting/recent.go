package counting

import "github.com/ashureev/countingbot/internal/domain"

// recentSet remembers the verdicts of the last limit message ids.
type recentSet struct {
	ring     []string
	next     int
	verdicts map[string]domain.Verdict
}

func newRecentSet(limit int) *recentSet {
	if limit <= 0 {
		limit = 1
	}
	return &recentSet{
		ring:     make([]string, limit),
		verdicts: make(map[string]domain.Verdict, limit),
	}
}

func (r *recentSet) get(id string) (domain.Verdict, bool) {
	v, ok := r.verdicts[id]
	return v, ok
}

func (r *recentSet) put(id string, v domain.Verdict) {
	if _, ok := r.verdicts[id]; ok {
		r.verdicts[id] = v
		return
	}
	if old := r.ring[r.next]; old != "" {
		delete(r.verdicts, old)
	}
	r.ring[r.next] = id
	r.verdicts[id] = v
	r.next = (r.next + 1) % len(r.ring)
}
