package logging

import (
	"database/sql"
	"fmt"
	"time"
)

const eventTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region log-event
// LogEvent writes a search event to the search_events table.
func LogEvent(db *sql.DB, ev Event) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO search_events (run_id, kind, frame_idx, frame_json, cost, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID,
		string(ev.Kind),
		nullIfNil(ev.FrameIdx),
		nullIfEmpty(ev.FrameJSON),
		nullIfNil(ev.Cost),
		nullIfEmpty(ev.Detail),
		ev.CreatedAt.Format(eventTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}
// #endregion log-event

// #region list-events
// ListEvents returns the events of runID in insertion order.
func ListEvents(db *sql.DB, runID string) ([]Event, error) {
	rows, err := db.Query(
		`SELECT run_id, kind, frame_idx, frame_json, cost, detail, created_at
		 FROM search_events WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var kind, createdStr string
		var frameIdx, cost sql.NullInt64
		var frameJSON, detail sql.NullString
		if err := rows.Scan(&ev.RunID, &kind, &frameIdx, &frameJSON, &cost, &detail, &createdStr); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = EventKind(kind)
		if frameIdx.Valid {
			v := int(frameIdx.Int64)
			ev.FrameIdx = &v
		}
		if cost.Valid {
			v := int(cost.Int64)
			ev.Cost = &v
		}
		ev.FrameJSON = frameJSON.String
		ev.Detail = detail.String
		created, err := time.Parse(eventTimeLayout, createdStr)
		if err != nil {
			return nil, fmt.Errorf("parse event time %q: %w", createdStr, err)
		}
		ev.CreatedAt = created
		events = append(events, ev)
	}
	return events, rows.Err()
}
// #endregion list-events

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullIfNil(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
// #endregion helpers
