package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/iconidentify/grabbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// chanSource is an UpdateSource backed by a test-controlled channel.
type chanSource struct {
	ch chan domain.Update

	mu     sync.Mutex
	ctxErr error
}

func newChanSource() *chanSource {
	return &chanSource{ch: make(chan domain.Update, 16)}
}

func (s *chanSource) Updates(ctx context.Context) <-chan domain.Update {
	out := make(chan domain.Update)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				s.mu.Lock()
				s.ctxErr = ctx.Err()
				s.mu.Unlock()
				return
			case u := <-s.ch:
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// mockHandler records calls and can block or panic on demand.
type mockHandler struct {
	mu        sync.Mutex
	messages  []domain.IncomingMessage
	callbacks []domain.IncomingCallback
	ctxErrs   []error

	block   chan struct{}
	panicOn string
	done    chan struct{}
}

func newMockHandler() *mockHandler {
	return &mockHandler{done: make(chan struct{}, 64)}
}

func (h *mockHandler) HandleMessage(ctx context.Context, msg domain.IncomingMessage) {
	defer func() { h.done <- struct{}{} }()
	if h.panicOn != "" && msg.Text == h.panicOn {
		panic("boom")
	}
	if h.block != nil {
		<-h.block
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
	h.ctxErrs = append(h.ctxErrs, ctx.Err())
}

func (h *mockHandler) HandleCallback(ctx context.Context, cb domain.IncomingCallback) {
	defer func() { h.done <- struct{}{} }()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks = append(h.callbacks, cb)
}

func (h *mockHandler) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for handler %d of %d", i+1, n)
		}
	}
}

func TestDispatcher_RoutesUpdates(t *testing.T) {
	source := newChanSource()
	handler := newMockHandler()
	d := NewDispatcher(source, handler, testLogger())
	d.Start()

	source.ch <- domain.Update{ID: 1, Message: &domain.IncomingMessage{ChatID: 1, MessageID: 1, Text: "hi"}}
	source.ch <- domain.Update{ID: 2, Callback: &domain.IncomingCallback{ID: "cb", Data: "get_mp3|1|1"}}
	source.ch <- domain.Update{ID: 3}

	handler.wait(t, 2)

	if err := d.Stop(time.Second); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.messages) != 1 || handler.messages[0].Text != "hi" {
		t.Errorf("messages = %+v", handler.messages)
	}
	if len(handler.callbacks) != 1 || handler.callbacks[0].ID != "cb" {
		t.Errorf("callbacks = %+v", handler.callbacks)
	}
	if got := d.Stats().Received; got != 2 {
		t.Errorf("Received = %d, want 2 (empty updates are skipped)", got)
	}
}

func TestDispatcher_HandlesConcurrently(t *testing.T) {
	source := newChanSource()
	handler := newMockHandler()
	handler.block = make(chan struct{})
	d := NewDispatcher(source, handler, testLogger())
	d.Start()

	for i := 1; i <= 3; i++ {
		source.ch <- domain.Update{ID: i, Message: &domain.IncomingMessage{MessageID: i, Text: "x"}}
	}

	deadline := time.Now().Add(2 * time.Second)
	for d.Stats().InFlight != 3 {
		if time.Now().After(deadline) {
			t.Fatalf("InFlight = %d, want 3 handlers blocked at once", d.Stats().InFlight)
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(handler.block)
	handler.wait(t, 3)

	if err := d.Stop(time.Second); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := d.Stats().InFlight; got != 0 {
		t.Errorf("InFlight after stop = %d", got)
	}
}

func TestDispatcher_StopWaitsForInFlight(t *testing.T) {
	source := newChanSource()
	handler := newMockHandler()
	handler.block = make(chan struct{})
	d := NewDispatcher(source, handler, testLogger())
	d.Start()

	source.ch <- domain.Update{ID: 1, Message: &domain.IncomingMessage{Text: "slow"}}
	for d.Stats().InFlight != 1 {
		time.Sleep(5 * time.Millisecond)
	}

	stopped := make(chan error, 1)
	go func() { stopped <- d.Stop(2 * time.Second) }()

	select {
	case err := <-stopped:
		t.Fatalf("Stop returned before handler finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(handler.block)
	if err := <-stopped; err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.ctxErrs) != 1 || handler.ctxErrs[0] != nil {
		t.Errorf("handler context should survive shutdown, got %v", handler.ctxErrs)
	}

	source.mu.Lock()
	defer source.mu.Unlock()
	if source.ctxErr == nil {
		t.Error("polling should be cancelled on Stop")
	}
}

func TestDispatcher_StopTimeout(t *testing.T) {
	source := newChanSource()
	handler := newMockHandler()
	handler.block = make(chan struct{})
	defer close(handler.block)
	d := NewDispatcher(source, handler, testLogger())
	d.Start()

	source.ch <- domain.Update{ID: 1, Message: &domain.IncomingMessage{Text: "stuck"}}
	for d.Stats().InFlight != 1 {
		time.Sleep(5 * time.Millisecond)
	}

	err := d.Stop(20 * time.Millisecond)
	if !errors.Is(err, ErrShutdownTimeout) {
		t.Errorf("Stop() error = %v, want ErrShutdownTimeout", err)
	}
}

func TestDispatcher_RecoversFromPanic(t *testing.T) {
	source := newChanSource()
	handler := newMockHandler()
	handler.panicOn = "explode"
	d := NewDispatcher(source, handler, testLogger())
	d.Start()

	source.ch <- domain.Update{ID: 1, Message: &domain.IncomingMessage{Text: "explode"}}
	handler.wait(t, 1)
	source.ch <- domain.Update{ID: 2, Message: &domain.IncomingMessage{Text: "fine"}}
	handler.wait(t, 1)

	if err := d.Stop(time.Second); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	stats := d.Stats()
	if stats.Panics != 1 {
		t.Errorf("Panics = %d, want 1", stats.Panics)
	}
	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.messages) != 1 || handler.messages[0].Text != "fine" {
		t.Errorf("dispatcher should keep running after a panic, got %+v", handler.messages)
	}
}

func TestDispatcher_StopWithoutStart(t *testing.T) {
	d := NewDispatcher(newChanSource(), newMockHandler(), testLogger())
	if err := d.Stop(10 * time.Millisecond); err != nil {
		t.Errorf("Stop() before Start = %v, want nil", err)
	}
}
