package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iconidentify/grabbot/internal/repository"
	"github.com/iconidentify/grabbot/internal/service"
	"github.com/iconidentify/grabbot/internal/worker"
)

func TestHealthHandler_Live(t *testing.T) {
	handler := NewHealthHandler(newMockLedger(), stubDelivery{}, stubDispatch{}, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.Live(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want %q", resp.Status, "ok")
	}
	if resp.Timestamp == "" {
		t.Error("timestamp should not be empty")
	}
}

func TestHealthHandler_Ready_Success(t *testing.T) {
	ledger := newMockLedger()
	ledger.stats = &repository.LedgerStats{Entries: 12, Evicted: 3, MaxEntries: 10000}
	handler := NewHealthHandler(ledger, stubDelivery{}, stubDispatch{}, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	handler.Ready(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Ledger == nil {
		t.Fatal("ledger stats should not be nil")
	}
	if resp.Ledger.Entries != 12 || resp.Ledger.Evicted != 3 || resp.Ledger.MaxEntries != 10000 {
		t.Errorf("ledger = %+v", resp.Ledger)
	}
}

func TestHealthHandler_Ready_Failures(t *testing.T) {
	tests := []struct {
		name   string
		ledger func() *mockLedger
		dir    func(t *testing.T) string
	}{
		{
			name: "ledger error",
			ledger: func() *mockLedger {
				l := newMockLedger()
				l.statsErr = errors.New("boom")
				return l
			},
			dir: func(t *testing.T) string { return t.TempDir() },
		},
		{
			name:   "missing download area",
			ledger: newMockLedger,
			dir:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing") },
		},
		{
			name:   "download area is a file",
			ledger: newMockLedger,
			dir: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "file")
				os.WriteFile(p, []byte("x"), 0644)
				return p
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.ledger(), stubDelivery{}, stubDispatch{}, tt.dir(t))

			w := httptest.NewRecorder()
			handler.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if w.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
			}
			var resp HealthResponse
			json.NewDecoder(w.Body).Decode(&resp)
			if resp.Status != "error" || resp.Error == "" {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}

func TestHealthHandler_Stats(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "video_1_2.mp4"), make([]byte, 2048), 0644)

	ledger := newMockLedger()
	ledger.stats = &repository.LedgerStats{Entries: 5}
	delivery := stubDelivery{stats: service.DeliveryStats{LinksDetected: 4, VideosDelivered: 3, Failures: 1}}
	dispatch := stubDispatch{stats: worker.DispatcherStats{Received: 9, InFlight: 2}}
	handler := NewHealthHandler(ledger, delivery, dispatch, dir)

	w := httptest.NewRecorder()
	handler.Stats(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp SystemStats
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Delivery != delivery.stats {
		t.Errorf("delivery = %+v, want %+v", resp.Delivery, delivery.stats)
	}
	if resp.Dispatcher != dispatch.stats {
		t.Errorf("dispatcher = %+v", resp.Dispatcher)
	}
	if resp.Ledger == nil || resp.Ledger.Entries != 5 {
		t.Errorf("ledger = %+v", resp.Ledger)
	}
	if resp.Storage == nil || resp.Storage.Files != 1 || resp.Storage.BytesUsed != 2048 {
		t.Errorf("storage = %+v", resp.Storage)
	}
	if resp.NumGoroutines <= 0 {
		t.Error("num_goroutines should be positive")
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Minute, "5m"},
		{2*time.Hour + 3*time.Minute, "2h 3m"},
		{50*time.Hour + 10*time.Minute, "2d 2h 10m"},
	}

	for _, tt := range tests {
		if got := formatUptime(tt.d); got != tt.want {
			t.Errorf("formatUptime(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
