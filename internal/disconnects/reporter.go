// Package disconnects keeps a per-day tally of gateway disconnects and one
// status message per day summarizing it.
package disconnects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ashureev/countingbot/internal/domain"
	"github.com/ashureev/countingbot/internal/metrics"
	"github.com/ashureev/countingbot/internal/notifier"
)

// DefaultInterval is how often the day's message is checked for rollover.
const DefaultInterval = 30 * time.Second

const eventBuffer = 64

// Store persists the daily tally.
type Store interface {
	RecordDisconnect(ctx context.Context, day string, at time.Time) error
	RecordReconnect(ctx context.Context, day string, at time.Time) error
	GetDisconnectDay(ctx context.Context, day string) (*domain.DisconnectDay, error)
	SetDisconnectReportMessage(ctx context.Context, day, messageID string) error
}

// Messenger posts and edits the status message.
type Messenger interface {
	SendMessage(ctx context.Context, channelID, content string) (string, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
}

type eventKind int

const (
	disconnected eventKind = iota
	reconnected
)

type event struct {
	kind eventKind
	at   time.Time
}

// Reporter receives gateway hooks and updates the daily report. Hooks never
// block; the work happens in Serve.
type Reporter struct {
	store     Store
	messenger Messenger
	channelID string
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time

	events       chan event
	inDisconnect atomic.Bool
}

// New creates a Reporter. An empty channelID keeps the tally without posting.
func New(store Store, messenger Messenger, channelID string, interval time.Duration, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reporter{
		store:     store,
		messenger: messenger,
		channelID: channelID,
		interval:  interval,
		logger:    logger.With("component", "disconnects"),
		now:       time.Now,
		events:    make(chan event, eventBuffer),
	}
}

// String implements fmt.Stringer for supervisor logging.
func (r *Reporter) String() string {
	return "disconnect-reporter"
}

// OnDisconnect records the start of a disconnect cycle. Repeated calls before
// the next reconnect are ignored.
func (r *Reporter) OnDisconnect(error) {
	if !r.inDisconnect.CompareAndSwap(false, true) {
		return
	}
	r.push(event{kind: disconnected, at: r.now()})
}

// OnReconnect closes the current disconnect cycle.
func (r *Reporter) OnReconnect() {
	if !r.inDisconnect.CompareAndSwap(true, false) {
		return
	}
	r.push(event{kind: reconnected, at: r.now()})
}

func (r *Reporter) push(ev event) {
	select {
	case r.events <- ev:
	default:
		r.logger.Warn("Disconnect event dropped, queue full")
	}
}

// Serve processes hook events and periodically ensures today's message exists.
func (r *Reporter) Serve(ctx context.Context) error {
	r.ensureToday(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-r.events:
			r.handle(ctx, ev)
		case <-ticker.C:
			r.ensureToday(ctx)
		}
	}
}

func (r *Reporter) handle(ctx context.Context, ev event) {
	day := domain.DayKey(ev.at)
	var err error
	switch ev.kind {
	case disconnected:
		err = r.store.RecordDisconnect(ctx, day, ev.at)
		r.logger.Warn("Gateway disconnect recorded", "day", day)
	case reconnected:
		err = r.store.RecordReconnect(ctx, day, ev.at)
		r.logger.Info("Gateway reconnect recorded", "day", day)
	}
	if err != nil {
		r.logger.Error("Failed to record disconnect event", "day", day, "error", err)
		return
	}
	r.refresh(ctx, day)
}

func (r *Reporter) ensureToday(ctx context.Context) {
	day := domain.DayKey(r.now())
	d, err := r.store.GetDisconnectDay(ctx, day)
	if err != nil {
		r.logger.Error("Failed to load disconnect tally", "day", day, "error", err)
		return
	}
	if d != nil {
		metrics.DisconnectsToday.Set(float64(d.Disconnects))
		if d.ReportMessageID != "" {
			return
		}
	} else {
		metrics.DisconnectsToday.Set(0)
	}
	r.refresh(ctx, day)
}

func (r *Reporter) refresh(ctx context.Context, day string) {
	d, err := r.store.GetDisconnectDay(ctx, day)
	if err != nil {
		r.logger.Error("Failed to load disconnect tally", "day", day, "error", err)
		return
	}
	if d == nil {
		d = &domain.DisconnectDay{Day: day}
	}
	if day == domain.DayKey(r.now()) {
		metrics.DisconnectsToday.Set(float64(d.Disconnects))
	}
	if r.channelID == "" || r.messenger == nil {
		return
	}

	content := Render(d)
	if d.ReportMessageID != "" {
		err := r.messenger.EditMessage(ctx, r.channelID, d.ReportMessageID, content)
		if err == nil {
			return
		}
		if !errors.Is(err, notifier.ErrNotFound) {
			r.logger.Error("Failed to edit disconnect report", "day", day, "error", err)
			return
		}
		r.logger.Warn("Disconnect report was deleted, recreating", "day", day)
	}

	id, err := r.messenger.SendMessage(ctx, r.channelID, content)
	if err != nil {
		r.logger.Error("Failed to post disconnect report", "day", day, "error", err)
		return
	}
	if err := r.store.SetDisconnectReportMessage(ctx, day, id); err != nil {
		r.logger.Error("Failed to save disconnect report id", "day", day, "error", err)
	}
}

// Render formats the status message for one day.
func Render(d *domain.DisconnectDay) string {
	title := d.Day
	if t, err := time.Parse("2006-01-02", d.Day); err == nil {
		title = t.Format("02/01/2006")
	}
	return fmt.Sprintf("**Gateway disconnects for %s**\nDisconnects: **%d**\nLast disconnect: **%s**\nLast reconnect: **%s**",
		title, d.Disconnects, formatStamp(d.LastDisconnect), formatStamp(d.LastReconnect))
}

func formatStamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "none"
	}
	return t.UTC().Format("02/01 15:04")
}
