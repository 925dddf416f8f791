package model

import (
	"encoding/json"
	"time"
)

// QueueAction: "create" | "update" | "delete"
type QueueAction string

const (
	ActionCreate QueueAction = "create"
	ActionUpdate QueueAction = "update"
	ActionDelete QueueAction = "delete"
)

// QueueItem is one pending outbound mutation. Payload is a full snapshot of
// the entity at enqueue time, so a resend after a crash carries the same
// bytes. Timestamp is a monotonic sequence in epoch milliseconds; it defines
// delivery order, with lexical ID order breaking clock-resolution ties.
type QueueItem struct {
	ID         string          `json:"id"`
	EntityType string          `json:"type"`
	Action     QueueAction     `json:"action"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  int64           `json:"timestamp"`
	RetryCount int             `json:"retry_count"`
	// Retry bookkeeping, local only — not part of the wire body.
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

// PayloadID extracts the entity id from the payload snapshot. Used by pull
// to skip remote records that still have an unacknowledged local mutation.
func (q *QueueItem) PayloadID() string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(q.Payload, &probe); err != nil {
		return ""
	}
	return probe.ID
}

// Before reports delivery order: timestamp ascending, id lexical tie-break.
func (q *QueueItem) Before(other *QueueItem) bool {
	if q.Timestamp != other.Timestamp {
		return q.Timestamp < other.Timestamp
	}
	return q.ID < other.ID
}
