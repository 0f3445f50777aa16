package timeline

import (
	"time"
)

// TimelineEvent is one journaled webhook delivery or provisioning event.
type TimelineEvent struct {
	ID         int64     `json:"id"`
	EventID    string    `json:"event_id"`
	TraceID    string    `json:"trace_id"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       string    `json:"kind"` // mention, card, added, removed, or a provisioning event type
	RoomID     string    `json:"room_id"`
	PersonID   string    `json:"person_id"`
	ResourceID string    `json:"resource_id"`
	OrgID      string    `json:"org_id"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
}

// Schema creates the journal table.
const Schema = `
CREATE TABLE IF NOT EXISTS timeline (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT NOT NULL,
	trace_id TEXT NOT NULL DEFAULT '',
	timestamp DATETIME NOT NULL,
	kind TEXT NOT NULL,
	room_id TEXT NOT NULL DEFAULT '',
	person_id TEXT NOT NULL DEFAULT '',
	resource_id TEXT NOT NULL DEFAULT '',
	org_id TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_timeline_trace ON timeline(trace_id);
CREATE INDEX IF NOT EXISTS idx_timeline_room ON timeline(room_id);
CREATE INDEX IF NOT EXISTS idx_timeline_timestamp ON timeline(timestamp);
`
