// Package worker fans incoming chat events out to concurrent handlers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iconidentify/grabbot/internal/domain"
)

// ErrShutdownTimeout is returned when handlers don't finish within timeout.
var ErrShutdownTimeout = errors.New("dispatcher shutdown timed out")

// UpdateSource streams chat events until its context is cancelled.
type UpdateSource interface {
	Updates(ctx context.Context) <-chan domain.Update
}

// Handler processes a single chat event.
type Handler interface {
	HandleMessage(ctx context.Context, msg domain.IncomingMessage)
	HandleCallback(ctx context.Context, cb domain.IncomingCallback)
}

// DispatcherStats reports dispatcher activity since startup.
type DispatcherStats struct {
	Received int64 `json:"received"`
	InFlight int64 `json:"in_flight"`
	Panics   int64 `json:"panics"`
}

// Dispatcher reads events from a single source and runs each in its own
// goroutine. Handlers get a context that outlives shutdown so a started
// download is never cut short.
type Dispatcher struct {
	source  UpdateSource
	handler Handler
	logger  *slog.Logger

	wg       sync.WaitGroup
	loopDone chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc

	started  atomic.Bool
	received atomic.Int64
	inFlight atomic.Int64
	panics   atomic.Int64
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(source UpdateSource, handler Handler, logger *slog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		source:   source,
		handler:  handler,
		logger:   logger,
		loopDone: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins consuming updates.
func (d *Dispatcher) Start() {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	d.logger.Info("starting dispatcher")
	updates := d.source.Updates(d.ctx)
	go d.loop(updates)
}

// Stop stops polling and waits for in-flight handlers.
func (d *Dispatcher) Stop(timeout time.Duration) error {
	d.logger.Info("stopping dispatcher", "in_flight", d.inFlight.Load())
	d.cancel()
	if !d.started.Load() {
		return nil
	}

	done := make(chan struct{})
	go func() {
		<-d.loopDone
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("dispatcher stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%w: %d handlers still running", ErrShutdownTimeout, d.inFlight.Load())
	}
}

// Stats returns a snapshot of dispatcher counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Received: d.received.Load(),
		InFlight: d.inFlight.Load(),
		Panics:   d.panics.Load(),
	}
}

func (d *Dispatcher) loop(updates <-chan domain.Update) {
	defer close(d.loopDone)

	for update := range updates {
		if update.Message == nil && update.Callback == nil {
			continue
		}
		d.received.Add(1)
		d.inFlight.Add(1)
		d.wg.Add(1)
		go d.handle(update)
	}
	d.logger.Info("update stream closed")
}

func (d *Dispatcher) handle(update domain.Update) {
	defer d.wg.Done()
	defer d.inFlight.Add(-1)

	logger := d.logger.With("update_id", update.ID)
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			logger.Error("handler panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	ctx := context.WithoutCancel(d.ctx)

	switch {
	case update.Message != nil:
		d.handler.HandleMessage(ctx, *update.Message)
	case update.Callback != nil:
		d.handler.HandleCallback(ctx, *update.Callback)
	}
}
