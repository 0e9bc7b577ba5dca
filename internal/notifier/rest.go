// Package notifier talks to the chat REST API: deleting, posting, editing and
// pinning messages, and reading channel history. Fire-and-forget effects go
// through the Dispatcher.
package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/ashureev/countingbot/internal/domain"
	"github.com/ashureev/countingbot/internal/jsoncodec"
	"github.com/ashureev/countingbot/internal/metrics"
)

// DefaultAPIURL is the REST API base.
const DefaultAPIURL = "https://discord.com/api/v10"

const (
	breakerName = "discord-rest"
	userAgent   = "DiscordBot (https://github.com/ashureev/countingbot, 1.0)"
	maxBody     = 1 << 20
)

// Config controls the REST client.
type Config struct {
	Token             string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client is a minimal REST client guarded by a rate limiter and a circuit breaker.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	logger = logger.With("component", "notifier")

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: newBreaker(logger),
		logger:  logger,
	}
}

func newBreaker(logger *slog.Logger) *gobreaker.CircuitBreaker[struct{}] {
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || clientError(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

type restMessage struct {
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

type allowedMentions struct {
	Parse []string `json:"parse"`
}

type messageBody struct {
	Content         string          `json:"content"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

func newMessageBody(content string) messageBody {
	return messageBody{Content: content, AllowedMentions: allowedMentions{Parse: []string{"users"}}}
}

// DeleteMessage deletes a message. A message that is already gone yields an
// error matching ErrNotFound.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	path := "/channels/" + url.PathEscape(channelID) + "/messages/" + url.PathEscape(messageID)
	return c.do(ctx, "delete", http.MethodDelete, path, nil, nil)
}

// SendMessage posts content and returns the new message id.
func (c *Client) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	var out restMessage
	path := "/channels/" + url.PathEscape(channelID) + "/messages"
	if err := c.do(ctx, "send", http.MethodPost, path, newMessageBody(content), &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// EditMessage replaces the content of a message.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	path := "/channels/" + url.PathEscape(channelID) + "/messages/" + url.PathEscape(messageID)
	return c.do(ctx, "edit", http.MethodPatch, path, newMessageBody(content), nil)
}

// PinMessage pins a message in its channel.
func (c *Client) PinMessage(ctx context.Context, channelID, messageID string) error {
	path := "/channels/" + url.PathEscape(channelID) + "/pins/" + url.PathEscape(messageID)
	return c.do(ctx, "pin", http.MethodPut, path, nil, nil)
}

// RecentMessages returns up to limit messages from a channel, newest first.
func (c *Client) RecentMessages(ctx context.Context, channelID string, limit int) ([]domain.Message, error) {
	limit = max(1, min(100, limit))
	var out []restMessage
	path := "/channels/" + url.PathEscape(channelID) + "/messages?limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, "history", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	msgs := make([]domain.Message, 0, len(out))
	for _, m := range out {
		msg := domain.Message{
			ID:        m.ID,
			GuildID:   m.GuildID,
			ChannelID: m.ChannelID,
			AuthorID:  m.Author.ID,
			AuthorBot: m.Author.Bot,
			Content:   m.Content,
		}
		if ts, err := time.Parse(time.RFC3339Nano, m.Timestamp); err == nil {
			msg.Timestamp = ts
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.NotifierRequests.WithLabelValues(op, "throttled").Inc()
		return fmt.Errorf("%s: rate limiter: %w", op, err)
	}

	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.roundTrip(ctx, method, path, body, out)
	})

	switch {
	case err == nil:
		metrics.NotifierRequests.WithLabelValues(op, "ok").Inc()
	case errors.Is(err, ErrNotFound):
		metrics.NotifierRequests.WithLabelValues(op, "not_found").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.NotifierRequests.WithLabelValues(op, "rejected").Inc()
	default:
		metrics.NotifierRequests.WithLabelValues(op, "error").Inc()
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := jsoncodec.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("Failed to close response body", "error", cerr)
		}
	}()

	limited := io.LimitReader(resp.Body, maxBody)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if data, err := io.ReadAll(limited); err == nil && len(data) > 0 {
			_ = jsoncodec.Unmarshal(data, apiErr)
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := jsoncodec.Decode(limited, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
