package domain

import "time"

// Goal is an operator-configured numeric target.
type Goal struct {
	ID                  string     `json:"id"`
	Text                string     `json:"text"`
	Target              *int64     `json:"target,omitempty"`
	SetBy               string     `json:"set_by"`
	Deadline            string     `json:"deadline,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	CompletedBy         string     `json:"completed_by,omitempty"`
	PinnedMessageID     string     `json:"pinned_message_id,omitempty"`
	LastReportedPercent int        `json:"last_reported_percent"`
}

// Completed reports whether the goal has reached its terminal state.
func (g *Goal) Completed() bool {
	return g.CompletedAt != nil
}

// Suggestion is a free-text suggestion submitted by a participant.
type Suggestion struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// DisconnectDay is the gateway disconnect tally for one UTC day.
type DisconnectDay struct {
	Day             string
	Disconnects     int64
	LastDisconnect  *time.Time
	LastReconnect   *time.Time
	ReportMessageID string
}

// Report is the summary printed by the inspect command.
type Report struct {
	Integrity      string
	TableCounts    []TableCount
	TopUsers       []*UserStats
	RecentMessages []*MessageAudit
}

// TableCount is a row count for one table; Missing is set when the table
// does not exist.
type TableCount struct {
	Table   string
	Rows    int64
	Missing bool
}
