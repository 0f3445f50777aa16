// Package timeline journals inbound webhook events and provisioning
// outcomes to SQLite.
package timeline

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type TimelineService struct {
	db *sql.DB
}

func NewTimelineService(dbPath string) (*TimelineService, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open timeline db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &TimelineService{db: db}, nil
}

func (s *TimelineService) DB() *sql.DB { return s.db }

func (s *TimelineService) Close() error {
	return s.db.Close()
}

// AddEvent appends evt, filling EventID and Timestamp when unset.
func (s *TimelineService) AddEvent(evt *TimelineEvent) error {
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	res, err := s.db.Exec(`
	INSERT INTO timeline (event_id, trace_id, timestamp, kind, room_id, person_id, resource_id, org_id, outcome, detail)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.EventID,
		evt.TraceID,
		evt.Timestamp,
		evt.Kind,
		evt.RoomID,
		evt.PersonID,
		evt.ResourceID,
		evt.OrgID,
		evt.Outcome,
		evt.Detail,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		evt.ID = id
	}
	return nil
}

type FilterArgs struct {
	RoomID  string
	Kind    string
	TraceID string
	Limit   int
	Offset  int
}

// GetEvents returns matching events, newest first.
func (s *TimelineService) GetEvents(filter FilterArgs) ([]TimelineEvent, error) {
	query := `SELECT id, event_id, trace_id, timestamp, kind, room_id, person_id, resource_id, org_id, outcome, detail FROM timeline WHERE 1=1`
	args := []any{}

	if filter.RoomID != "" {
		query += " AND room_id = ?"
		args = append(args, filter.RoomID)
	}
	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, filter.Kind)
	}
	if filter.TraceID != "" {
		query += " AND trace_id = ?"
		args = append(args, filter.TraceID)
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []TimelineEvent
	for rows.Next() {
		var e TimelineEvent
		if err := rows.Scan(
			&e.ID,
			&e.EventID,
			&e.TraceID,
			&e.Timestamp,
			&e.Kind,
			&e.RoomID,
			&e.PersonID,
			&e.ResourceID,
			&e.OrgID,
			&e.Outcome,
			&e.Detail,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountByKind returns the number of journaled events per kind.
func (s *TimelineService) CountByKind() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT kind, COUNT(*) FROM timeline GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}
