package orchestrator

// #region imports
import (
	"database/sql"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/namcsi/apperception-clingo/internal/bound"
	"github.com/namcsi/apperception-clingo/internal/frame"
	"github.com/namcsi/apperception-clingo/internal/interp"
	"github.com/namcsi/apperception-clingo/internal/metrics"
	"github.com/namcsi/apperception-clingo/internal/progress"
	"github.com/namcsi/apperception-clingo/internal/solver"
)

// #endregion

// #region options

// Options wires the driver to its collaborators. Solver and Sources are
// required; everything else has a usable zero value.
type Options struct {
	Scheduler frame.Options
	Sources   []string // full program: domain files, search core, meta-interpreter
	Solver    solver.Solver
	TimeLimit time.Duration // per-frame search limit; 0 leaves it to the backend

	Recorder *progress.Recorder // nil records in memory only
	Report   io.Writer          // candidate reports and timing lines; nil discards
	Logger   *zap.Logger
	Metrics  *metrics.Metrics

	// Journal receives search events under RunID when set.
	Journal *sql.DB
	RunID   string
}

// #endregion

// #region result

// Result summarises a finished or stopped search.
type Result struct {
	Frames     int
	Candidates int
	Best       *interp.Record // most recent, hence cheapest, interpretation
	Bound      *int
}

// #endregion

// #region run-context

// runContext is the run-wide state threaded through every frame: the bound
// carried between sessions and the anytime log.
type runContext struct {
	bound    *bound.Tracker
	recorder *progress.Recorder
	start    time.Time
	frameIdx int
	step     frame.Step
	result   Result
}

// elapsed is the time since the search started.
func (rc *runContext) elapsed() time.Duration {
	return time.Since(rc.start)
}

// #endregion
