package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/iconidentify/grabbot/internal/repository"
	"github.com/iconidentify/grabbot/internal/service"
	"github.com/iconidentify/grabbot/internal/worker"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockLedger is a test implementation of repository.LinkRepository.
type mockLedger struct {
	repository.LinkRepository
	stats    *repository.LedgerStats
	statsErr error
}

func newMockLedger() *mockLedger {
	return &mockLedger{stats: &repository.LedgerStats{}}
}

func (m *mockLedger) Stats(ctx context.Context) (*repository.LedgerStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}

type stubDelivery struct{ stats service.DeliveryStats }

func (s stubDelivery) Stats() service.DeliveryStats { return s.stats }

type stubDispatch struct{ stats worker.DispatcherStats }

func (s stubDispatch) Stats() worker.DispatcherStats { return s.stats }
