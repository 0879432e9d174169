package logging

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE search_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id     TEXT NOT NULL,
		kind       TEXT NOT NULL,
		frame_idx  INTEGER,
		frame_json TEXT,
		cost       INTEGER,
		detail     TEXT,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func intPtr(v int) *int { return &v }

// #endregion helpers

// #region log-event-tests
func TestLogEvent_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	ev := Event{
		RunID:     "r1",
		Kind:      EventCandidate,
		FrameIdx:  intPtr(3),
		FrameJSON: `{"gen_types":0}`,
		Cost:      intPtr(7),
		Detail:    "num_incorrect=0",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := LogEvent(db, ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM search_events").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	var kind string
	var cost int
	db.QueryRow("SELECT kind, cost FROM search_events").Scan(&kind, &cost)
	if kind != "candidate" {
		t.Errorf("expected kind 'candidate', got %q", kind)
	}
	if cost != 7 {
		t.Errorf("expected cost 7, got %d", cost)
	}
}

func TestLogEvent_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC()
	if err := LogEvent(db, Event{RunID: "r2", Kind: EventFrameBegin}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM search_events").Scan(&createdAtStr)
	createdAt, err := time.Parse(eventTimeLayout, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogEvent_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	if err := LogEvent(db, Event{RunID: "r3", Kind: EventInterrupted}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var frameIdx, cost sql.NullInt64
	var frameJSON, detail sql.NullString
	db.QueryRow("SELECT frame_idx, frame_json, cost, detail FROM search_events").Scan(
		&frameIdx, &frameJSON, &cost, &detail,
	)
	if frameIdx.Valid {
		t.Error("expected NULL frame_idx")
	}
	if frameJSON.Valid {
		t.Error("expected NULL frame_json for empty string")
	}
	if cost.Valid {
		t.Error("expected NULL cost")
	}
	if detail.Valid {
		t.Error("expected NULL detail for empty string")
	}
}

func TestLogEvent_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	if err := LogEvent(db, Event{RunID: "r4", Kind: EventFailed}); err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-event-tests

// #region list-events-tests
func TestListEvents_OrderAndFilter(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	kinds := []EventKind{EventFrameBegin, EventGrounded, EventCandidate, EventSolved}
	for i, k := range kinds {
		if err := LogEvent(db, Event{RunID: "a", Kind: k, FrameIdx: intPtr(0), Cost: intPtr(i)}); err != nil {
			t.Fatalf("log: %v", err)
		}
	}
	if err := LogEvent(db, Event{RunID: "b", Kind: EventFailed, Detail: "boom"}); err != nil {
		t.Fatalf("log: %v", err)
	}

	events, err := ListEvents(db, "a")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != len(kinds) {
		t.Fatalf("expected %d events, got %d", len(kinds), len(events))
	}
	for i, ev := range events {
		if ev.Kind != kinds[i] {
			t.Errorf("event %d: expected %s, got %s", i, kinds[i], ev.Kind)
		}
		if ev.Cost == nil || *ev.Cost != i {
			t.Errorf("event %d: unexpected cost %v", i, ev.Cost)
		}
	}

	other, err := ListEvents(db, "b")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(other) != 1 || other[0].Detail != "boom" || other[0].FrameIdx != nil {
		t.Fatalf("unexpected events for b: %+v", other)
	}
}

func TestListEvents_CreatedAtRoundTrip(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	at := time.Date(2026, 3, 4, 5, 6, 7, 89, time.UTC)
	if err := LogEvent(db, Event{RunID: "a", Kind: EventSolved, CreatedAt: at}); err != nil {
		t.Fatalf("log: %v", err)
	}
	events, err := ListEvents(db, "a")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 || !events[0].CreatedAt.Equal(at) {
		t.Fatalf("expected created_at %v, got %+v", at, events)
	}
}

func TestListEvents_BadCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	if _, err := db.Exec(`INSERT INTO search_events (run_id, kind, created_at) VALUES ('a', 'solved', 'yesterday')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := ListEvents(db, "a"); err == nil {
		t.Fatal("expected error for unparseable created_at")
	}
}

// #endregion list-events-tests

// #region logger-tests
func TestNew_Levels(t *testing.T) {
	if _, err := New("debug", false); err != nil {
		t.Fatalf("console logger: %v", err)
	}
	if _, err := New("warn", true); err != nil {
		t.Fatalf("json logger: %v", err)
	}
	if _, err := New("loud", true); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

// #endregion logger-tests

// #region null-if-empty-tests
func TestNullIfEmpty_Empty(t *testing.T) {
	result := nullIfEmpty("")
	if result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestNullIfEmpty_NonEmpty(t *testing.T) {
	result := nullIfEmpty("hello")
	if result != "hello" {
		t.Errorf("expected 'hello', got %v", result)
	}
}

func TestNullIfNil(t *testing.T) {
	if nullIfNil(nil) != nil {
		t.Error("expected nil")
	}
	if nullIfNil(intPtr(4)) != 4 {
		t.Error("expected 4")
	}
}

// #endregion null-if-empty-tests
