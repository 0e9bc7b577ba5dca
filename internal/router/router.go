// Package router forwards gateway events for the counting channel to the
// counting engine, in arrival order.
package router

import (
	"context"
	"iter"
	"log/slog"

	"github.com/ashureev/countingbot/internal/domain"
	"github.com/ashureev/countingbot/internal/gateway"
)

// Handler consumes the events the router forwards.
type Handler interface {
	SetSelfID(id string)
	Bootstrap(ctx context.Context) error
	Process(ctx context.Context, msg domain.Message) domain.Verdict
	HandleDeletion(ctx context.Context, del domain.MessageDeletion)
}

// Source produces decoded gateway events.
type Source interface {
	Stream(ctx context.Context) iter.Seq[gateway.Event]
}

// Router filters events down to one guild and channel.
type Router struct {
	guildID      string
	channelID    string
	source       Source
	handler      Handler
	logger       *slog.Logger
	bootstrapped bool
}

// New creates a Router.
func New(guildID, channelID string, source Source, handler Handler, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		guildID:   guildID,
		channelID: channelID,
		source:    source,
		handler:   handler,
		logger:    logger.With("component", "router"),
	}
}

// String implements fmt.Stringer for supervisor logging.
func (r *Router) String() string {
	return "event-router"
}

// Serve routes events from the source until ctx is cancelled.
func (r *Router) Serve(ctx context.Context) error {
	return r.Run(ctx, r.source.Stream(ctx))
}

// Run routes every event of events sequentially.
func (r *Router) Run(ctx context.Context, events iter.Seq[gateway.Event]) error {
	for ev := range events {
		r.Route(ctx, ev)
	}
	return ctx.Err()
}

// Matches reports whether a guild and channel pair is the counting channel.
func (r *Router) Matches(guildID, channelID string) bool {
	return guildID == r.guildID && channelID == r.channelID
}

// Route handles a single event.
func (r *Router) Route(ctx context.Context, ev gateway.Event) {
	switch ev.Type {
	case gateway.EventReady:
		if ev.Ready == nil {
			return
		}
		r.handler.SetSelfID(ev.Ready.SelfID)
		if r.bootstrapped {
			return
		}
		if err := r.handler.Bootstrap(ctx); err != nil {
			r.logger.Error("Baseline bootstrap failed, will retry on next ready", "error", err)
			return
		}
		r.bootstrapped = true

	case gateway.EventMessageCreate:
		if ev.Message == nil || !r.Matches(ev.Message.GuildID, ev.Message.ChannelID) {
			return
		}
		r.handler.Process(ctx, *ev.Message)

	case gateway.EventMessageDelete:
		if ev.Deletion == nil || !r.Matches(ev.Deletion.GuildID, ev.Deletion.ChannelID) {
			return
		}
		r.handler.HandleDeletion(ctx, *ev.Deletion)
	}
}
