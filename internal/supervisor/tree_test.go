package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingService struct {
	name   string
	starts atomic.Int32
	fail   atomic.Bool
}

func (s *countingService) Serve(ctx context.Context) error {
	s.starts.Add(1)
	if s.fail.CompareAndSwap(true, false) {
		return errors.New("transient failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return s.name }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewTreeAppliesDefaults(t *testing.T) {
	tree := NewTree(quietLogger(), TreeConfig{FailureBackoff: time.Second})

	if tree.config.FailureThreshold != 5 || tree.config.FailureDecay != 30 {
		t.Errorf("unexpected failure settings: %+v", tree.config)
	}
	if tree.config.FailureBackoff != time.Second {
		t.Errorf("explicit backoff overwritten: %v", tree.config.FailureBackoff)
	}
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected default shutdown timeout, got %v", tree.config.ShutdownTimeout)
	}
}

func TestTreeRunsAndRestartsServices(t *testing.T) {
	tree := NewTree(quietLogger(), TreeConfig{FailureBackoff: 10 * time.Millisecond, ShutdownTimeout: time.Second})

	gw := &countingService{name: "gateway"}
	gw.fail.Store(true)
	fx := &countingService{name: "effects"}
	tree.AddGatewayService(gw)
	tree.AddEffectsService(fx)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitFor(t, func() bool { return gw.starts.Load() >= 2 && fx.starts.Load() >= 1 })

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
	if fx.starts.Load() != 1 {
		t.Errorf("healthy service restarted: %d starts", fx.starts.Load())
	}
}

type mockHTTPServer struct {
	listenErr error
	stopCh    chan struct{}
	shutdowns atomic.Int32
}

func (m *mockHTTPServer) ListenAndServe() error {
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.stopCh
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	m.shutdowns.Add(1)
	close(m.stopCh)
	return nil
}

func TestHTTPServiceShutsDownOnCancel(t *testing.T) {
	srv := &mockHTTPServer{stopCh: make(chan struct{})}
	svc := NewHTTPService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	if srv.shutdowns.Load() != 1 {
		t.Errorf("expected one shutdown, got %d", srv.shutdowns.Load())
	}
}

func TestHTTPServiceReportsListenError(t *testing.T) {
	srv := &mockHTTPServer{listenErr: errors.New("address in use"), stopCh: make(chan struct{})}
	err := NewHTTPService(srv, 0).Serve(context.Background())
	if err == nil || srv.shutdowns.Load() != 0 {
		t.Fatalf("expected listen error without shutdown, got %v", err)
	}
}
