package logging

import "time"

// #region event-kind
// EventKind names one step of the search that is journaled.
type EventKind string

const (
	EventFrameBegin  EventKind = "frame_begin"
	EventGrounded    EventKind = "grounded"
	EventCandidate   EventKind = "candidate"
	EventSolved      EventKind = "solved"
	EventInterrupted EventKind = "interrupted"
	EventFailed      EventKind = "failed"
)
// #endregion event-kind

// #region event
// Event is a single row in the search_events table.
type Event struct {
	RunID     string
	Kind      EventKind
	FrameIdx  *int
	FrameJSON string
	Cost      *int
	Detail    string // status, elapsed time or error text
	CreatedAt time.Time
}
// #endregion event
