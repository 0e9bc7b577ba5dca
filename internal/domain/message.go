package domain

import "time"

// Message is a chat message as delivered by the gateway or read back from
// channel history.
type Message struct {
	ID        string
	GuildID   string
	ChannelID string
	AuthorID  string
	AuthorBot bool
	Content   string
	Timestamp time.Time
}

// MessageDeletion identifies a deleted message.
type MessageDeletion struct {
	ID        string
	GuildID   string
	ChannelID string
}

// MessageAudit is one row of the per-message audit log.
type MessageAudit struct {
	MessageID      string
	AuthorID       string
	GuildID        string
	ChannelID      string
	Timestamp      time.Time
	Content        string
	MessageLength  int
	IsNumeric      bool
	ParsedNumber   *int64
	HasLeadingZero bool
	NumberDelta    *int64
	// IsCorrect is nil when the message was adopted as a baseline without
	// being judged.
	IsCorrect *bool
	Hour      int
	Weekday   int
	Deleted   bool
}

// DailyCount is the number of accepted submissions on one UTC day.
type DailyCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// DayKey formats t as a UTC calendar day key.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
