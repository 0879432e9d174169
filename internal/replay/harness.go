// Package replay re-runs a recorded search offline. A fixture holds the
// solver answers of every frame; the harness serves them through the
// solver interface so the real driver, extractor and report run unchanged,
// and checks that every candidate renders the recorded rules.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/namcsi/apperception-clingo/internal/asp"
	"github.com/namcsi/apperception-clingo/internal/orchestrator"
	"github.com/namcsi/apperception-clingo/internal/progress"
	"github.com/namcsi/apperception-clingo/internal/solver"
)

// ErrEndOfFixture is returned when the search asks for more sessions than
// were recorded.
var ErrEndOfFixture = errors.New("end of fixture")

// #region types

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	Sessions   int
	Candidates int
	BestCost   *int
	Mismatches []string
}

// Passed reports whether every frame and rule matched the recording.
func (s ReplaySummary) Passed() bool { return len(s.Mismatches) == 0 }

// #endregion types

// #region solver

// fixtureSolver serves recorded sessions in order.
type fixtureSolver struct {
	fixture *Fixture

	mu         sync.Mutex
	next       int
	mismatches []string
}

func (fs *fixtureSolver) mismatch(format string, args ...any) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.mismatches = append(fs.mismatches, fmt.Sprintf(format, args...))
}

func (fs *fixtureSolver) Open(_ context.Context, req solver.Request) (solver.Session, error) {
	fs.mu.Lock()
	idx := fs.next
	fs.next++
	fs.mu.Unlock()

	if idx >= len(fs.fixture.Sessions) {
		return nil, ErrEndOfFixture
	}
	rec := fs.fixture.Sessions[idx]
	if got, want := req.Consts, rec.Frame.Consts(); !slices.Equal(got, want) {
		fs.mismatch("session %d: frame %v, recorded %s", idx, got, rec.Frame)
	}
	return &fixtureSession{owner: fs, idx: idx, rec: rec, bound: req.Bound}, nil
}

type fixtureSession struct {
	owner    *fixtureSolver
	idx      int
	rec      FixtureSession
	bound    *int
	grounded bool
}

func (s *fixtureSession) Ground(ctx context.Context) (time.Duration, error) {
	if s.grounded {
		return 0, solver.ErrSessionState
	}
	s.grounded = true
	return 0, ctx.Err()
}

func (s *fixtureSession) Search(ctx context.Context, onModel func(solver.Model) error) (solver.Outcome, error) {
	if !s.grounded {
		return solver.Outcome{}, solver.ErrSessionState
	}
	var out solver.Outcome
	for j, fm := range s.rec.Models {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if s.bound != nil && len(fm.Cost) > 0 && fm.Cost[0] > *s.bound {
			s.owner.mismatch("session %d model %d: cost %d not below bound %d", s.idx, j, fm.Cost[0], *s.bound)
			continue
		}
		m := solver.Model{Number: j + 1, Cost: append([]int(nil), fm.Cost...)}
		for _, a := range fm.Atoms {
			t, err := asp.Parse(a)
			if err != nil {
				return out, fmt.Errorf("session %d model %d: %w", s.idx, j, err)
			}
			m.Facts = append(m.Facts, t)
		}
		out.Models++
		if err := onModel(m); err != nil {
			return out, err
		}
	}
	out.Status = s.rec.Status
	if out.Status == "" {
		out.Status = solver.StatusOptimal
		if out.Models == 0 {
			out.Status = solver.StatusUnsatisfiable
		}
	}
	return out, nil
}

func (s *fixtureSession) Close() error { return nil }

// #endregion solver

// #region run

// Run replays f through the search driver. The replay ends when the
// schedule is exhausted or the recorded sessions run out.
func Run(ctx context.Context, f *Fixture, report io.Writer, logger *zap.Logger) (ReplaySummary, error) {
	fs := &fixtureSolver{fixture: f}
	rec := progress.NewRecorder()
	driver, err := orchestrator.New(orchestrator.Options{
		Scheduler: f.Schedule.Options(),
		Sources:   []string{"fixture"},
		Solver:    fs,
		Recorder:  rec,
		Report:    report,
		Logger:    logger,
	})
	if err != nil {
		return ReplaySummary{}, err
	}

	res, err := driver.Search(ctx)
	if err != nil && !errors.Is(err, ErrEndOfFixture) {
		return ReplaySummary{}, err
	}

	summary := ReplaySummary{Candidates: res.Candidates}
	if res.Best != nil {
		c := res.Best.Cost
		summary.BestCost = &c
	}

	snap := rec.Snapshot()
	for i, fr := range snap {
		if i >= len(f.Sessions) {
			break
		}
		summary.Sessions++
		want := f.Sessions[i].Models
		if len(fr.Interpretations) != len(want) {
			fs.mismatch("session %d: %d candidates, recorded %d", i, len(fr.Interpretations), len(want))
			continue
		}
		for j, got := range fr.Interpretations {
			if !slices.Equal(got.Rules, want[j].ExpectedRules) {
				fs.mismatch("session %d model %d: rules %q, recorded %q", i, j, got.Rules, want[j].ExpectedRules)
			}
		}
	}
	if summary.Sessions < len(f.Sessions) {
		fs.mismatch("schedule ended after %d of %d recorded sessions", summary.Sessions, len(f.Sessions))
	}

	fs.mu.Lock()
	summary.Mismatches = append(summary.Mismatches, fs.mismatches...)
	fs.mu.Unlock()
	return summary, nil
}

// #endregion run
