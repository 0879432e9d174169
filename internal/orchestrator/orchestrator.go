// Package orchestrator drives the iterative-deepening search: it walks the
// frame schedule, runs one solver session per frame with the bound carried
// forward, and feeds every improving candidate to the extractor, the
// anytime log and the operator report.
package orchestrator

// #region imports
import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/namcsi/apperception-clingo/internal/bound"
	"github.com/namcsi/apperception-clingo/internal/frame"
	"github.com/namcsi/apperception-clingo/internal/interp"
	"github.com/namcsi/apperception-clingo/internal/logging"
	"github.com/namcsi/apperception-clingo/internal/progress"
	"github.com/namcsi/apperception-clingo/internal/solver"
)

// #endregion

// #region driver-struct

// Driver runs one search.
type Driver struct {
	opts Options
	log  *zap.Logger
}

// #endregion

// #region constructor

// New checks opts and fills in defaults.
func New(opts Options) (*Driver, error) {
	if opts.Solver == nil {
		return nil, errors.New("orchestrator: no solver")
	}
	if len(opts.Sources) == 0 {
		return nil, fmt.Errorf("orchestrator: %w: no program sources", solver.ErrMalformedRequest)
	}
	if opts.Recorder == nil {
		opts.Recorder = progress.NewRecorder()
	}
	if opts.Report == nil {
		opts.Report = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Driver{opts: opts, log: opts.Logger}, nil
}

// #endregion

// #region search

// Search runs frames in schedule order until the iteration ceiling is
// reached, a fatal error occurs or ctx is cancelled. Resource exhaustion in
// a session is not fatal; the next frame is tried. On cancellation the
// context error is returned and the anytime log holds every candidate found.
func (d *Driver) Search(ctx context.Context) (Result, error) {
	sched, err := frame.NewScheduler(d.opts.Scheduler)
	if err != nil {
		return Result{}, err
	}
	rc := &runContext{
		bound:    &bound.Tracker{},
		recorder: d.opts.Recorder,
		start:    time.Now(),
	}

	for {
		if err := ctx.Err(); err != nil {
			return d.stop(rc, err)
		}
		step, ok := sched.Next()
		if !ok {
			d.log.Info("iteration ceiling reached",
				zap.Int("iterations", sched.Iteration()),
				zap.Int("frames", rc.result.Frames),
				zap.Int("candidates", rc.result.Candidates))
			return rc.finish(), nil
		}
		if err := d.runFrame(ctx, rc, step); err != nil {
			if ctx.Err() != nil {
				return d.stop(rc, ctx.Err())
			}
			d.journal(rc, logging.EventFailed, nil, err.Error())
			d.log.Error("search failed", zap.Int("frame", rc.frameIdx), zap.Error(err))
			return rc.finish(), fmt.Errorf("frame %d %s: %w", rc.frameIdx, step.Frame, err)
		}
	}
}

func (d *Driver) stop(rc *runContext, err error) (Result, error) {
	d.journal(rc, logging.EventInterrupted, nil, err.Error())
	d.log.Warn("search interrupted",
		zap.Int("frames", rc.result.Frames),
		zap.Int("candidates", rc.result.Candidates))
	return rc.finish(), err
}

func (rc *runContext) finish() Result {
	rc.result.Bound = rc.bound.Ptr()
	return rc.result
}

// #endregion

// #region run-frame

// runFrame performs one ground-then-search session for step.
func (d *Driver) runFrame(ctx context.Context, rc *runContext, step frame.Step) error {
	rc.frameIdx = rc.recorder.Len()
	rc.step = step
	rc.result.Frames++
	if err := rc.recorder.BeginFrame(step.Frame); err != nil {
		return err
	}
	d.opts.Metrics.FrameStarted()
	if step.Iteration > 1 {
		fmt.Fprintf(d.opts.Report, "Processing Frame:\n%s\n", step.Frame)
	}

	log := d.log.With(zap.Int("frame", rc.frameIdx), zap.Int("base", step.Base), zap.Int("iteration", step.Iteration))
	log.Debug("frame begin", zap.Stringer("params", step.Frame), zap.String("changed", string(step.Changed)))
	d.journal(rc, logging.EventFrameBegin, nil, "")

	req := solver.NewRequest(d.opts.Sources, step.Frame, rc.bound.Ptr())
	req.TimeLimit = d.opts.TimeLimit
	sess, err := d.opts.Solver.Open(ctx, req)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()

	groundTook, err := sess.Ground(ctx)
	if errors.Is(err, solver.ErrExhausted) && ctx.Err() == nil {
		return d.exhausted(rc, log, groundTook, err)
	}
	if err != nil {
		return fmt.Errorf("ground: %w", err)
	}
	groundEnd := rc.elapsed()
	if err := rc.recorder.RecordGroundingDone(groundEnd); err != nil {
		return err
	}
	fmt.Fprintf(d.opts.Report, "Grounding of frame finished at %.4fs\n", groundEnd.Seconds())
	d.opts.Metrics.Grounded(groundTook)
	d.journal(rc, logging.EventGrounded, nil, groundTook.String())

	out, err := sess.Search(ctx, func(m solver.Model) error {
		return d.onModel(rc, m)
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	solveEnd := rc.elapsed()
	if err := rc.recorder.RecordSolvingDone(solveEnd); err != nil {
		return err
	}
	fmt.Fprintf(d.opts.Report, "Solving of frame finished in %.4fs\n", solveEnd.Seconds())
	d.opts.Metrics.SessionDone(string(out.Status), out.Elapsed)
	d.journal(rc, logging.EventSolved, nil, string(out.Status))

	if out.Status == solver.StatusExhausted {
		log.Warn("solver exhausted before finishing frame", zap.Int("models", out.Models), zap.Duration("elapsed", out.Elapsed))
	} else {
		log.Info("frame solved", zap.String("status", string(out.Status)), zap.Int("models", out.Models), zap.Duration("elapsed", out.Elapsed))
	}
	return nil
}

// exhausted closes a frame whose ground phase ran out of resources. The
// frame keeps no grounding time and the search continues.
func (d *Driver) exhausted(rc *runContext, log *zap.Logger, took time.Duration, cause error) error {
	solveEnd := rc.elapsed()
	if err := rc.recorder.RecordSolvingDone(solveEnd); err != nil {
		return err
	}
	fmt.Fprintf(d.opts.Report, "Solving of frame finished in %.4fs\n", solveEnd.Seconds())
	d.opts.Metrics.SessionDone(string(solver.StatusExhausted), took)
	d.journal(rc, logging.EventSolved, nil, string(solver.StatusExhausted))
	log.Warn("solver exhausted while grounding frame", zap.Duration("elapsed", took), zap.Error(cause))
	return nil
}

// #endregion

// #region on-model

// onModel handles one improving candidate before the session reads the next.
func (d *Driver) onModel(rc *runContext, m solver.Model) error {
	if len(m.Cost) == 0 {
		return fmt.Errorf("%w: model %d has no cost", interp.ErrContract, m.Number)
	}
	cost := m.Cost[0]
	in, err := interp.Extract(m.Facts, cost, rc.elapsed())
	if err != nil {
		return err
	}
	rc.bound.Record(cost)

	rec := in.Record()
	if err := rc.recorder.RecordCandidate(rec); err != nil {
		return err
	}
	if err := interp.WriteReport(d.opts.Report, rec); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	rc.result.Candidates++
	rc.result.Best = &rec
	d.opts.Metrics.Candidate(cost)
	d.journal(rc, logging.EventCandidate, &cost, fmt.Sprintf("num_incorrect=%d", in.Incorrect))
	d.log.Info("candidate",
		zap.Int("frame", rc.frameIdx),
		zap.Int("cost", cost),
		zap.Int("num_incorrect", in.Incorrect),
		zap.Int("rules", len(in.Rules)))
	return nil
}

// #endregion

// #region journal

// journal writes a search event when a journal is configured. Journal
// failures are logged and never stop the search.
func (d *Driver) journal(rc *runContext, kind logging.EventKind, cost *int, detail string) {
	if d.opts.Journal == nil {
		return
	}
	ev := logging.Event{RunID: d.opts.RunID, Kind: kind, Cost: cost, Detail: detail}
	if rc.result.Frames > 0 {
		idx := rc.frameIdx
		ev.FrameIdx = &idx
		if kind == logging.EventFrameBegin {
			ev.FrameJSON = frameJSON(rc.step.Frame)
		}
	}
	if err := logging.LogEvent(d.opts.Journal, ev); err != nil {
		d.log.Warn("journal write failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func frameJSON(f frame.Frame) string {
	data, err := json.Marshal(f)
	if err != nil {
		return ""
	}
	return string(data)
}

// #endregion
