// Package ids generates identifiers for rows the bot creates itself.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a time-sortable ULID string.
func New() string {
	return NewAt(time.Now())
}

// NewAt returns a ULID whose timestamp component is t.
func NewAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
