package notifier

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/countingbot/internal/jsoncodec"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]any
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, auth: r.Header.Get("Authorization")}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = jsoncodec.Unmarshal(data, &rec.body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeAPI) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{handler: handler}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c := NewClient(Config{Token: "secret", BaseURL: srv.URL, RequestsPerSecond: 1000, Burst: 100},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return c, api
}

func TestDeleteMessage(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteMessage(context.Background(), "chan", "msg"))
	req := api.last()
	assert.Equal(t, http.MethodDelete, req.method)
	assert.Equal(t, "/channels/chan/messages/msg", req.path)
	assert.Equal(t, "Bot secret", req.auth)
}

func TestDeleteMessageNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Unknown Message","code":10008}`))
	})

	err := c.DeleteMessage(context.Background(), "chan", "gone")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 10008, apiErr.Code)
}

func TestUnknownMessageCodeWithoutNotFoundStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Unknown Message","code":10008}`))
	})
	assert.ErrorIs(t, c.EditMessage(context.Background(), "chan", "m", "x"), ErrNotFound)
}

func TestSendMessage(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"new-1","channel_id":"chan","content":"hi"}`))
	})

	id, err := c.SendMessage(context.Background(), "chan", "hi <@1>")
	require.NoError(t, err)
	assert.Equal(t, "new-1", id)

	req := api.last()
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "hi <@1>", req.body["content"])
	assert.NotNil(t, req.body["allowed_mentions"])
}

func TestEditAndPin(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(`{"id":"m"}`))
	})

	require.NoError(t, c.EditMessage(context.Background(), "chan", "m", "updated"))
	assert.Equal(t, http.MethodPatch, api.last().method)
	assert.Equal(t, "updated", api.last().body["content"])

	require.NoError(t, c.PinMessage(context.Background(), "chan", "m"))
	assert.Equal(t, "/channels/chan/pins/m", api.last().path)
}

func TestRecentMessages(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":"3","channel_id":"chan","content":"12","timestamp":"2026-03-01T12:00:02.000000+00:00","author":{"id":"b"}},
			{"id":"2","channel_id":"chan","content":"11","timestamp":"2026-03-01T12:00:01.000000+00:00","author":{"id":"a","bot":true}}
		]`))
	})

	msgs, err := c.RecentMessages(context.Background(), "chan", 500)
	require.NoError(t, err)
	assert.Equal(t, "limit=100", api.last().query)
	require.Len(t, msgs, 2)
	assert.Equal(t, "3", msgs[0].ID)
	assert.Equal(t, "b", msgs[0].AuthorID)
	assert.True(t, msgs[1].AuthorBot)
	assert.False(t, msgs[0].Timestamp.IsZero())
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var calls int
	var mu sync.Mutex
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 5; i++ {
		assert.Error(t, c.DeleteMessage(context.Background(), "chan", "m"))
	}
	err := c.DeleteMessage(context.Background(), "chan", "m")
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, calls, "open breaker must short-circuit")
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, c.DeleteMessage(context.Background(), "chan", "m"), ErrNotFound)
	}
}
