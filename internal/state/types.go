package state

import (
	"time"

	"github.com/namcsi/apperception-clingo/internal/frame"
)

// #region run-status
// RunStatus is the lifecycle state of a stored search run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunInterrupted RunStatus = "interrupted"
	RunFailed      RunStatus = "failed"
)
// #endregion run-status

// #region run-meta
// RunMeta describes how a search was started.
type RunMeta struct {
	DomainFiles     []string    `json:"domain_files"`
	MetaInterpreter string      `json:"meta_interpreter"`
	Seed            frame.Frame `json:"seed"`
	Delta           frame.Delta `json:"delta,omitempty"`
	MaxIterations   int         `json:"max_iterations"`
	SwitchEvery     int         `json:"switch_frame_at_iter"`
	StepMode        string      `json:"step_mode"`
	Solver          string      `json:"solver,omitempty"`
}
// #endregion run-meta

// #region run-record
// RunRecord is one row of the runs table plus summary columns.
type RunRecord struct {
	RunID      string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	Meta       RunMeta
	Frames     int
	BestCost   *int
}
// #endregion run-record
