package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/ashureev/countingbot/internal/jsoncodec"
	"github.com/ashureev/countingbot/internal/metrics"
)

// Queue topics.
const (
	TopicDelete   = "notifier.delete"
	TopicAnnounce = "notifier.announce"
)

const queueBuffer = 256

// Sender performs the REST calls behind queued effects.
type Sender interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SendMessage(ctx context.Context, channelID, content string) (string, error)
}

// DeletionRecorder is told about messages the bot removed.
type DeletionRecorder interface {
	MarkMessageDeleted(ctx context.Context, messageID string) error
}

type deleteJob struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

type announceJob struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

// Dispatcher queues deletions and announcements on an in-process pub/sub so
// callers never wait on the REST API. Serve drains the queue.
type Dispatcher struct {
	pubsub    *gochannel.GoChannel
	sender    Sender
	recorder  DeletionRecorder
	logger    *slog.Logger
	deletes   <-chan *message.Message
	announces <-chan *message.Message
}

// NewDispatcher subscribes to both topics immediately so effects published
// before Serve starts are buffered rather than dropped.
func NewDispatcher(sender Sender, recorder DeletionRecorder, logger *slog.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "dispatcher")

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: queueBuffer,
	}, watermill.NewSlogLogger(logger))

	deletes, err := pubsub.Subscribe(context.Background(), TopicDelete)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", TopicDelete, err)
	}
	announces, err := pubsub.Subscribe(context.Background(), TopicAnnounce)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", TopicAnnounce, err)
	}

	return &Dispatcher{
		pubsub:    pubsub,
		sender:    sender,
		recorder:  recorder,
		logger:    logger,
		deletes:   deletes,
		announces: announces,
	}, nil
}

// String implements fmt.Stringer for supervisor logging.
func (d *Dispatcher) String() string {
	return "notifier-dispatcher"
}

// DeleteMessage queues a deletion.
func (d *Dispatcher) DeleteMessage(_ context.Context, channelID, messageID string) error {
	return d.publish(TopicDelete, deleteJob{ChannelID: channelID, MessageID: messageID})
}

// Announce queues a message post.
func (d *Dispatcher) Announce(_ context.Context, channelID, content string) error {
	if channelID == "" {
		return errors.New("announce: no channel configured")
	}
	return d.publish(TopicAnnounce, announceJob{ChannelID: channelID, Content: content})
}

func (d *Dispatcher) publish(topic string, job any) error {
	payload, err := jsoncodec.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode %s job: %w", topic, err)
	}
	if err := d.pubsub.Publish(topic, message.NewMessage(uuid.NewString(), payload)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	metrics.NotifierQueueDepth.WithLabelValues(topic).Inc()
	return nil
}

// Serve handles queued effects until ctx is cancelled.
func (d *Dispatcher) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-d.deletes:
			if !ok {
				return errors.New("delete queue closed")
			}
			d.handleDelete(ctx, msg)
		case msg, ok := <-d.announces:
			if !ok {
				return errors.New("announce queue closed")
			}
			d.handleAnnounce(ctx, msg)
		}
	}
}

// Close shuts down the pub/sub. Pending effects are dropped.
func (d *Dispatcher) Close() error {
	return d.pubsub.Close()
}

func (d *Dispatcher) handleDelete(ctx context.Context, msg *message.Message) {
	defer d.done(TopicDelete, msg)

	var job deleteJob
	if err := jsoncodec.Unmarshal(msg.Payload, &job); err != nil {
		d.logger.Error("Dropping undecodable delete job", "uuid", msg.UUID, "error", err)
		return
	}

	err := d.sender.DeleteMessage(ctx, job.ChannelID, job.MessageID)
	switch {
	case err == nil:
		d.logger.Debug("Deleted message", "channel_id", job.ChannelID, "message_id", job.MessageID)
	case errors.Is(err, ErrNotFound):
		d.logger.Info("Message already deleted", "channel_id", job.ChannelID, "message_id", job.MessageID)
	default:
		d.logger.Error("Unexpected error deleting message", "channel_id", job.ChannelID, "message_id", job.MessageID, "error", err)
		return
	}

	if d.recorder != nil {
		if err := d.recorder.MarkMessageDeleted(ctx, job.MessageID); err != nil {
			d.logger.Error("Failed to record deletion", "message_id", job.MessageID, "error", err)
		}
	}
}

func (d *Dispatcher) handleAnnounce(ctx context.Context, msg *message.Message) {
	defer d.done(TopicAnnounce, msg)

	var job announceJob
	if err := jsoncodec.Unmarshal(msg.Payload, &job); err != nil {
		d.logger.Error("Dropping undecodable announce job", "uuid", msg.UUID, "error", err)
		return
	}
	if _, err := d.sender.SendMessage(ctx, job.ChannelID, job.Content); err != nil {
		d.logger.Error("Failed to post announcement", "channel_id", job.ChannelID, "error", err)
	}
}

// done acks unconditionally; effects are best-effort and never redelivered.
func (d *Dispatcher) done(topic string, msg *message.Message) {
	msg.Ack()
	metrics.NotifierQueueDepth.WithLabelValues(topic).Dec()
}
