package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iconidentify/grabbot/internal/config"
	"github.com/iconidentify/grabbot/internal/domain"
)

const (
	defaultEventBuffer = 500
	persistQueueSize   = 256
)

// EventService keeps the delivery activity log: a fixed-size ring of recent
// events plus an optional SQLite history.
type EventService struct {
	cfg    config.EventsConfig
	logger *slog.Logger

	mu     sync.RWMutex
	events []domain.Event
	head   int
	count  int
	seq    atomic.Uint64

	db        *sql.DB
	persistMu sync.RWMutex
	persist   chan domain.Event
	closed    bool
	dropped   atomic.Int64
	writerWG  sync.WaitGroup
}

// NewEventService creates the activity log. A non-empty SQLitePath enables
// persistence.
func NewEventService(cfg config.EventsConfig, logger *slog.Logger) (*EventService, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultEventBuffer
	}

	svc := &EventService{
		cfg:    cfg,
		logger: logger,
		events: make([]domain.Event, cfg.BufferSize),
	}

	if cfg.SQLitePath != "" {
		if err := svc.openSQLite(); err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		logger.Info("event persistence enabled", "path", cfg.SQLitePath)
	}

	return svc, nil
}

func (s *EventService) openSQLite() error {
	db, err := sql.Open("sqlite", s.cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	// One writer keeps SQLite free of SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			severity TEXT NOT NULL,
			category TEXT NOT NULL,
			message TEXT NOT NULL,
			source TEXT,
			metadata TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_events_category ON events(category);
	`)
	if err != nil {
		db.Close()
		return fmt.Errorf("create table: %w", err)
	}

	s.db = db
	s.persist = make(chan domain.Event, persistQueueSize)
	s.writerWG.Add(1)
	go s.writeLoop()
	return nil
}

// Close flushes pending writes and closes the database.
func (s *EventService) Close() error {
	if s.db == nil {
		return nil
	}

	s.persistMu.Lock()
	if s.closed {
		s.persistMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.persist)
	s.persistMu.Unlock()

	s.writerWG.Wait()
	return s.db.Close()
}

// Emit records an event.
func (s *EventService) Emit(event domain.Event) {
	if event.ID == "" {
		event.ID = domain.EventID(fmt.Sprintf("evt_%d_%d", time.Now().UnixNano(), s.seq.Add(1)))
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.events[s.head] = event
	s.head = (s.head + 1) % len(s.events)
	if s.count < len(s.events) {
		s.count++
	}
	s.mu.Unlock()

	if s.db != nil {
		s.enqueuePersist(event)
	}

	level := slog.LevelInfo
	switch event.Severity {
	case domain.EventSeverityWarning:
		level = slog.LevelWarn
	case domain.EventSeverityError:
		level = slog.LevelError
	}
	s.logger.Log(context.Background(), level, "event emitted",
		"event_id", event.ID,
		"category", event.Category,
		"severity", event.Severity,
		"message", event.Message,
		"source", event.Source,
	)
}

// EmitInfo records an info-level event.
func (s *EventService) EmitInfo(category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	s.emit(domain.EventSeverityInfo, category, source, message, metadata)
}

// EmitWarning records a warning-level event.
func (s *EventService) EmitWarning(category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	s.emit(domain.EventSeverityWarning, category, source, message, metadata)
}

// EmitError records an error-level event.
func (s *EventService) EmitError(category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	s.emit(domain.EventSeverityError, category, source, message, metadata)
}

// EmitSuccess records a success-level event.
func (s *EventService) EmitSuccess(category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	s.emit(domain.EventSeveritySuccess, category, source, message, metadata)
}

func (s *EventService) emit(severity domain.EventSeverity, category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	s.Emit(domain.Event{
		Severity: severity,
		Category: category,
		Source:   source,
		Message:  message,
		Metadata: metadata.ToJSON(),
	})
}

func (s *EventService) enqueuePersist(event domain.Event) {
	s.persistMu.RLock()
	defer s.persistMu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.persist <- event:
	default:
		s.dropped.Add(1)
		s.logger.Warn("event persistence queue full, dropping event", "event_id", event.ID)
	}
}

func (s *EventService) writeLoop() {
	defer s.writerWG.Done()
	for event := range s.persist {
		if err := s.insert(event); err != nil {
			s.logger.Warn("failed to persist event", "event_id", event.ID, "error", err)
		}
	}
}

func (s *EventService) insert(event domain.Event) error {
	var metadata sql.NullString
	if len(event.Metadata) > 0 {
		metadata = sql.NullString{String: string(event.Metadata), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO events (id, timestamp, severity, category, message, source, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(event.ID), event.Timestamp.UTC(), string(event.Severity), string(event.Category), event.Message, event.Source, metadata)
	return err
}

// Query returns recent events from memory matching the filter, newest first.
func (s *EventService) Query(ctx context.Context, query domain.EventQuery) (*domain.EventQueryResult, error) {
	query = normalizeQuery(query)

	s.mu.RLock()
	matched := make([]domain.Event, 0, s.count)
	for i := 0; i < s.count; i++ {
		event := s.events[(s.head-1-i+len(s.events))%len(s.events)]
		if matchesFilter(event, query.Filter) {
			matched = append(matched, event)
		}
	}
	s.mu.RUnlock()

	return paginate(matched, query), nil
}

// QueryHistorical queries the SQLite history. Without persistence it falls
// back to the in-memory ring.
func (s *EventService) QueryHistorical(ctx context.Context, query domain.EventQuery) (*domain.EventQueryResult, error) {
	if s.db == nil {
		return s.Query(ctx, query)
	}
	query = normalizeQuery(query)

	var conditions []string
	var args []interface{}

	f := query.Filter
	if f.Severity != nil {
		conditions = append(conditions, "severity = ?")
		args = append(args, string(*f.Severity))
	}
	if f.Category != nil {
		conditions = append(conditions, "category = ?")
		args = append(args, string(*f.Category))
	}
	if f.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, f.Source)
	}
	if f.StartTime != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, f.StartTime.UTC())
	}
	if f.EndTime != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, f.EndTime.UTC())
	}
	if f.SearchText != "" {
		conditions = append(conditions, "message LIKE ?")
		args = append(args, "%"+f.SearchText+"%")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, severity, category, message, source, metadata
		FROM events `+where+`
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`, append(args, query.Limit, query.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.Event, 0, query.Limit)
	for rows.Next() {
		var (
			event    domain.Event
			source   sql.NullString
			metadata sql.NullString
		)
		if err := rows.Scan(&event.ID, &event.Timestamp, &event.Severity, &event.Category, &event.Message, &source, &metadata); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Source = source.String
		if metadata.Valid && metadata.String != "" {
			event.Metadata = json.RawMessage(metadata.String)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return &domain.EventQueryResult{
		Events:  events,
		Total:   total,
		HasMore: query.Offset+len(events) < total,
	}, nil
}

// GetRecent returns up to n of the newest events, newest first.
func (s *EventService) GetRecent(n int) []domain.Event {
	if n <= 0 {
		n = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > s.count {
		n = s.count
	}
	result := make([]domain.Event, 0, n)
	for i := 0; i < n; i++ {
		result = append(result, s.events[(s.head-1-i+len(s.events))%len(s.events)])
	}
	return result
}

// EventStats describes the activity log.
type EventStats struct {
	BufferSize    int   `json:"buffer_size"`
	BufferUsed    int   `json:"buffer_used"`
	SQLiteEnabled bool  `json:"sqlite_enabled"`
	Dropped       int64 `json:"dropped"`
}

// Stats returns statistics about the activity log.
func (s *EventService) Stats() EventStats {
	s.mu.RLock()
	used := s.count
	s.mu.RUnlock()

	return EventStats{
		BufferSize:    len(s.events),
		BufferUsed:    used,
		SQLiteEnabled: s.db != nil,
		Dropped:       s.dropped.Load(),
	}
}

// CleanupOldEvents removes persisted events older than the retention period.
func (s *EventService) CleanupOldEvents(ctx context.Context) error {
	if s.db == nil || s.cfg.RetentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays).UTC()
	result, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE timestamp < ?", cutoff)
	if err != nil {
		return fmt.Errorf("delete old events: %w", err)
	}

	if deleted, _ := result.RowsAffected(); deleted > 0 {
		s.logger.Info("cleaned up old events", "deleted", deleted, "cutoff", cutoff)
	}
	return nil
}

// RunRetention calls CleanupOldEvents every interval until ctx is done.
func (s *EventService) RunRetention(ctx context.Context, interval time.Duration) {
	if s.db == nil || s.cfg.RetentionDays <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.CleanupOldEvents(ctx); err != nil {
			s.logger.Warn("event retention failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func normalizeQuery(q domain.EventQuery) domain.EventQuery {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 200 {
		q.Limit = 200
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

func paginate(events []domain.Event, q domain.EventQuery) *domain.EventQueryResult {
	total := len(events)
	if q.Offset >= total {
		return &domain.EventQueryResult{Events: []domain.Event{}, Total: total}
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	return &domain.EventQueryResult{
		Events:  events[q.Offset:end],
		Total:   total,
		HasMore: end < total,
	}
}

func matchesFilter(event domain.Event, filter domain.EventFilter) bool {
	if event.ID == "" {
		return false
	}
	if filter.Severity != nil && event.Severity != *filter.Severity {
		return false
	}
	if filter.Category != nil && event.Category != *filter.Category {
		return false
	}
	if filter.Source != "" && event.Source != filter.Source {
		return false
	}
	if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
		return false
	}
	if filter.SearchText != "" && !strings.Contains(strings.ToLower(event.Message), strings.ToLower(filter.SearchText)) {
		return false
	}
	return true
}
