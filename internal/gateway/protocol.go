package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashureev/countingbot/internal/domain"
	"github.com/ashureev/countingbot/internal/jsoncodec"
)

// Gateway opcodes.
const (
	OpDispatch       = 0
	OpHeartbeat      = 1
	OpIdentify       = 2
	OpResume         = 6
	OpReconnect      = 7
	OpInvalidSession = 9
	OpHello          = 10
	OpHeartbeatAck   = 11
)

// Dispatch event names.
const (
	EventReady         = "READY"
	EventResumed       = "RESUMED"
	EventMessageCreate = "MESSAGE_CREATE"
	EventMessageDelete = "MESSAGE_DELETE"
)

// DefaultIntents subscribes to guild messages and message content.
const DefaultIntents = 33280

// connectQuery is appended to every gateway URL.
const connectQuery = "/?v=10&encoding=json"

type frame struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s"`
	T  string          `json:"t"`
}

type outboundFrame struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

type helloPayload struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type identifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type identifyPayload struct {
	Token      string             `json:"token"`
	Intents    int                `json:"intents"`
	Properties identifyProperties `json:"properties"`
}

type resumePayload struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

type readyPayload struct {
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
	User             struct {
		ID string `json:"id"`
	} `json:"user"`
}

type messageCreatePayload struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Author    struct {
		ID  string `json:"id"`
		Bot bool   `json:"bot"`
	} `json:"author"`
}

type messageDeletePayload struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
}

// Event is a decoded dispatch handed to consumers.
type Event struct {
	Type     string
	Seq      int64
	Ready    *Ready
	Message  *domain.Message
	Deletion *domain.MessageDeletion
}

// Ready carries the session identity captured from a READY dispatch.
type Ready struct {
	SessionID string
	ResumeURL string
	SelfID    string
}

// decodeDispatch turns a dispatch frame into an Event. ok is false for event
// types the bot does not consume.
func decodeDispatch(f frame) (Event, bool, error) {
	ev := Event{Type: f.T}
	if f.S != nil {
		ev.Seq = *f.S
	}

	switch f.T {
	case EventReady:
		var p readyPayload
		if err := jsoncodec.Unmarshal(f.D, &p); err != nil {
			return ev, false, fmt.Errorf("decode READY: %w", err)
		}
		ev.Ready = &Ready{SessionID: p.SessionID, ResumeURL: p.ResumeGatewayURL, SelfID: p.User.ID}

	case EventResumed:

	case EventMessageCreate:
		var p messageCreatePayload
		if err := jsoncodec.Unmarshal(f.D, &p); err != nil {
			return ev, false, fmt.Errorf("decode MESSAGE_CREATE: %w", err)
		}
		if p.ID == "" || p.Author.ID == "" {
			return ev, false, fmt.Errorf("decode MESSAGE_CREATE: missing id or author")
		}
		msg := &domain.Message{
			ID:        p.ID,
			GuildID:   p.GuildID,
			ChannelID: p.ChannelID,
			AuthorID:  p.Author.ID,
			AuthorBot: p.Author.Bot,
			Content:   p.Content,
		}
		if p.Timestamp != "" {
			ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
			if err != nil {
				return ev, false, fmt.Errorf("decode MESSAGE_CREATE timestamp: %w", err)
			}
			msg.Timestamp = ts
		}
		ev.Message = msg

	case EventMessageDelete:
		var p messageDeletePayload
		if err := jsoncodec.Unmarshal(f.D, &p); err != nil {
			return ev, false, fmt.Errorf("decode MESSAGE_DELETE: %w", err)
		}
		ev.Deletion = &domain.MessageDeletion{ID: p.ID, GuildID: p.GuildID, ChannelID: p.ChannelID}

	default:
		return ev, false, nil
	}

	return ev, true, nil
}
