package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/iconidentify/grabbot/internal/domain"
	"github.com/iconidentify/grabbot/internal/service"
)

// EventHandler serves the delivery activity log.
type EventHandler struct {
	eventSvc *service.EventService
	logger   *slog.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(eventSvc *service.EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		eventSvc: eventSvc,
		logger:   logger,
	}
}

// EventResponse represents an event in API responses.
type EventResponse struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Severity  string          `json:"severity"`
	Category  string          `json:"category"`
	Message   string          `json:"message"`
	Source    string          `json:"source,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// EventListResponse contains a page of events.
type EventListResponse struct {
	Events  []EventResponse `json:"events"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	HasMore bool            `json:"has_more"`
}

// EventStatsResponse summarizes the activity log.
type EventStatsResponse struct {
	Total         int            `json:"total"`
	BySeverity    map[string]int `json:"by_severity"`
	ByCategory    map[string]int `json:"by_category"`
	BufferSize    int            `json:"buffer_size"`
	BufferUsed    int            `json:"buffer_used"`
	SQLiteEnabled bool           `json:"sqlite_enabled"`
	Dropped       int64          `json:"dropped"`
}

// List handles GET /api/v1/events
// Query parameters:
//   - severity: info, warning, error, success
//   - category: video, audio, moderation, disk, system
//   - source: emitting component
//   - start_time, end_time: RFC3339 bounds
//   - search: substring of the message
//   - limit (default 50, max 200), offset
//   - historical: "true" reads from SQLite instead of memory
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := domain.EventQuery{Limit: 50}

	if l := q.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		query.Limit = parsed
	}
	if o := q.Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		query.Offset = parsed
	}

	if sev := q.Get("severity"); sev != "" {
		severity := domain.EventSeverity(sev)
		query.Filter.Severity = &severity
	}
	if cat := q.Get("category"); cat != "" {
		category := domain.EventCategory(cat)
		query.Filter.Category = &category
	}
	query.Filter.Source = q.Get("source")
	query.Filter.SearchText = q.Get("search")

	for _, bound := range []struct {
		param  string
		target **time.Time
	}{
		{"start_time", &query.Filter.StartTime},
		{"end_time", &query.Filter.EndTime},
	} {
		v := q.Get(bound.param)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+bound.param)
			return
		}
		*bound.target = &t
	}

	var (
		result *domain.EventQueryResult
		err    error
	)
	if q.Get("historical") == "true" {
		result, err = h.eventSvc.QueryHistorical(r.Context(), query)
	} else {
		result, err = h.eventSvc.Query(r.Context(), query)
	}
	if err != nil {
		h.logger.Error("failed to query events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query events")
		return
	}

	if query.Limit > 200 {
		query.Limit = 200
	}
	writeJSON(w, http.StatusOK, EventListResponse{
		Events:  toEventResponses(result.Events),
		Total:   result.Total,
		Limit:   query.Limit,
		Offset:  query.Offset,
		HasMore: result.HasMore,
	})
}

// Recent handles GET /api/v1/events/recent
func (h *EventHandler) Recent(w http.ResponseWriter, r *http.Request) {
	n := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			n = parsed
		}
	}

	writeJSON(w, http.StatusOK, map[string][]EventResponse{
		"events": toEventResponses(h.eventSvc.GetRecent(n)),
	})
}

// Stats handles GET /api/v1/events/stats
func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.eventSvc.Stats()
	events := h.eventSvc.GetRecent(stats.BufferSize)

	bySeverity := make(map[string]int)
	byCategory := make(map[string]int)
	for _, e := range events {
		bySeverity[string(e.Severity)]++
		byCategory[string(e.Category)]++
	}

	writeJSON(w, http.StatusOK, EventStatsResponse{
		Total:         len(events),
		BySeverity:    bySeverity,
		ByCategory:    byCategory,
		BufferSize:    stats.BufferSize,
		BufferUsed:    stats.BufferUsed,
		SQLiteEnabled: stats.SQLiteEnabled,
		Dropped:       stats.Dropped,
	})
}

// Categories handles GET /api/v1/events/categories
func (h *EventHandler) Categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"categories": {
		string(domain.EventCategoryVideo),
		string(domain.EventCategoryAudio),
		string(domain.EventCategoryModeration),
		string(domain.EventCategoryDisk),
		string(domain.EventCategorySystem),
	}})
}

func toEventResponses(events []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, EventResponse{
			ID:        string(e.ID),
			Timestamp: e.Timestamp,
			Severity:  string(e.Severity),
			Category:  string(e.Category),
			Message:   e.Message,
			Source:    e.Source,
			Metadata:  e.Metadata,
		})
	}
	return out
}
