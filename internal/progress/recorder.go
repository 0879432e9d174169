// Package progress keeps the anytime log of a search: one FrameRun per frame
// tried, each holding the interpretations found while searching it. The log
// is flushed to every sink after each event so an interrupted search leaves
// everything found so far on disk.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/namcsi/apperception-clingo/internal/frame"
	"github.com/namcsi/apperception-clingo/internal/interp"
)

// ErrNoFrame is returned when an event arrives before any BeginFrame.
var ErrNoFrame = errors.New("no open frame")

// #region types
// FrameRun is the durable record of one frame. Times are seconds since the
// search started.
type FrameRun struct {
	Frame           frame.Frame     `json:"frame"`
	GroundEnd       *float64        `json:"ground_end,omitempty"`
	SolveEnd        *float64        `json:"solve_end,omitempty"`
	Interpretations []interp.Record `json:"unified_interpretations"`
}

// Clone returns a deep copy.
func (fr FrameRun) Clone() FrameRun {
	out := FrameRun{Frame: fr.Frame}
	if fr.GroundEnd != nil {
		v := *fr.GroundEnd
		out.GroundEnd = &v
	}
	if fr.SolveEnd != nil {
		v := *fr.SolveEnd
		out.SolveEnd = &v
	}
	out.Interpretations = make([]interp.Record, len(fr.Interpretations))
	for i, rec := range fr.Interpretations {
		out.Interpretations[i] = rec.Clone()
	}
	return out
}

// Sink persists a full snapshot of the log.
type Sink interface {
	Flush(runs []FrameRun) error
}
// #endregion types

// #region recorder
// Recorder owns the frame runs of one search.
type Recorder struct {
	runs  []FrameRun
	sinks []Sink
}

// NewRecorder returns an empty recorder flushing to sinks.
func NewRecorder(sinks ...Sink) *Recorder {
	return &Recorder{sinks: sinks}
}

// BeginFrame opens a new frame run holding a copy of f.
func (r *Recorder) BeginFrame(f frame.Frame) error {
	r.runs = append(r.runs, FrameRun{Frame: f, Interpretations: []interp.Record{}})
	return r.flush()
}

// RecordCandidate appends rec to the open frame run.
func (r *Recorder) RecordCandidate(rec interp.Record) error {
	cur, err := r.current()
	if err != nil {
		return err
	}
	cur.Interpretations = append(cur.Interpretations, rec.Clone())
	return r.flush()
}

// RecordGroundingDone stamps the end of grounding for the open frame run.
func (r *Recorder) RecordGroundingDone(at time.Duration) error {
	cur, err := r.current()
	if err != nil {
		return err
	}
	s := at.Seconds()
	cur.GroundEnd = &s
	return r.flush()
}

// RecordSolvingDone stamps the end of solving for the open frame run.
func (r *Recorder) RecordSolvingDone(at time.Duration) error {
	cur, err := r.current()
	if err != nil {
		return err
	}
	s := at.Seconds()
	cur.SolveEnd = &s
	return r.flush()
}

// Snapshot returns a deep copy of every frame run so far.
func (r *Recorder) Snapshot() []FrameRun {
	out := make([]FrameRun, len(r.runs))
	for i, fr := range r.runs {
		out[i] = fr.Clone()
	}
	return out
}

// Len reports how many frames were begun.
func (r *Recorder) Len() int { return len(r.runs) }

func (r *Recorder) current() (*FrameRun, error) {
	if len(r.runs) == 0 {
		return nil, ErrNoFrame
	}
	return &r.runs[len(r.runs)-1], nil
}

func (r *Recorder) flush() error {
	if len(r.sinks) == 0 {
		return nil
	}
	snap := r.Snapshot()
	var errs []error
	for _, s := range r.sinks {
		if err := s.Flush(snap); err != nil {
			errs = append(errs, fmt.Errorf("flush %T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}
// #endregion recorder
