package domain

import (
	"encoding/json"
	"time"
)

// EventID identifies one activity log entry.
type EventID string

// EventSeverity is how an outcome is rendered on the ops surface.
type EventSeverity string

const (
	EventSeverityInfo    EventSeverity = "info"
	EventSeverityWarning EventSeverity = "warning"
	EventSeverityError   EventSeverity = "error"
	EventSeveritySuccess EventSeverity = "success"
)

// EventCategory groups entries by the part of the bot that produced them.
type EventCategory string

const (
	EventCategoryVideo      EventCategory = "video"      // text path deliveries and failures
	EventCategoryAudio      EventCategory = "audio"      // button path deliveries and failures
	EventCategoryModeration EventCategory = "moderation" // attempts to delete the original message
	EventCategoryDisk       EventCategory = "disk"       // download area housekeeping
	EventCategorySystem     EventCategory = "system"     // process lifecycle
)

// Event records the outcome of one delivery step. Chat content is never
// stored; Metadata carries identifiers such as job, chat and message IDs.
type Event struct {
	ID        EventID         `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Severity  EventSeverity   `json:"severity"`
	Category  EventCategory   `json:"category"`
	Message   string          `json:"message"`
	Source    string          `json:"source,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// EventMetadata is the structured payload attached to an Event.
type EventMetadata map[string]any

// ToJSON encodes the metadata, yielding nil when empty or unencodable.
func (m EventMetadata) ToJSON() json.RawMessage {
	if len(m) == 0 {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return data
}

// EventEmitter is what the delivery flows write their outcomes to.
type EventEmitter interface {
	EmitInfo(category EventCategory, source, message string, metadata EventMetadata)
	EmitWarning(category EventCategory, source, message string, metadata EventMetadata)
	EmitError(category EventCategory, source, message string, metadata EventMetadata)
	EmitSuccess(category EventCategory, source, message string, metadata EventMetadata)
}

// EventFilter narrows an activity log query. Nil and empty fields match
// everything; SearchText is a case-insensitive substring of Message.
type EventFilter struct {
	Severity   *EventSeverity
	Category   *EventCategory
	Source     string
	StartTime  *time.Time
	EndTime    *time.Time
	SearchText string
}

// EventQuery selects a newest-first page of the activity log.
type EventQuery struct {
	Filter EventFilter
	Limit  int
	Offset int
}

// EventQueryResult is one page of a query plus the total match count.
type EventQueryResult struct {
	Events  []Event `json:"events"`
	Total   int     `json:"total"`
	HasMore bool    `json:"has_more"`
}
