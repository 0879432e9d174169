package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/namcsi/apperception-clingo/internal/frame"
	"github.com/namcsi/apperception-clingo/internal/interp"
	"github.com/namcsi/apperception-clingo/internal/progress"
	"github.com/namcsi/apperception-clingo/internal/solver"
	"github.com/namcsi/apperception-clingo/internal/state"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: the
// schedule a search ran with and the solver answers it received per frame.
type Fixture struct {
	Description string           `json:"description"`
	Schedule    FixtureSchedule  `json:"schedule"`
	Sessions    []FixtureSession `json:"sessions"`
}

// FixtureSchedule mirrors frame.Options with JSON tags.
type FixtureSchedule struct {
	Seed          frame.Frame    `json:"seed"`
	Delta         frame.Delta    `json:"delta"`
	SwitchEvery   int            `json:"switch_frame_at_iter"`
	MaxIterations int            `json:"max_iterations"`
	StepMode      frame.StepMode `json:"step_mode"`
}

// FixtureSession is one recorded solver session.
type FixtureSession struct {
	Frame  frame.Frame    `json:"frame"`
	Status solver.Status  `json:"status,omitempty"`
	Models []FixtureModel `json:"models"`
}

// FixtureModel is one recorded candidate and the rules it rendered to.
type FixtureModel struct {
	Cost          []int    `json:"cost"`
	Atoms         []string `json:"atoms"`
	ExpectedRules []string `json:"expected_rules"`
}

// Options returns the scheduler options of the recorded search.
func (s FixtureSchedule) Options() frame.Options {
	return frame.Options{
		Seed:          s.Seed,
		Delta:         s.Delta,
		SwitchEvery:   s.SwitchEvery,
		MaxIterations: s.MaxIterations,
		Mode:          s.StepMode,
	}
}

// #endregion fixture-types

// #region load-save

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if len(f.Sessions) == 0 {
		return nil, errors.New("fixture has no sessions")
	}
	return &f, nil
}

// Save writes the fixture as indented JSON.
func (f *Fixture) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// #endregion load-save

// #region export

// FromRun builds a fixture from a stored run. Atoms are rebuilt from the
// raw facts kept with every interpretation, in signature order; facts of
// one signature keep their emission order, so rule bodies render the same.
func FromRun(meta state.RunMeta, runs []progress.FrameRun) (*Fixture, error) {
	delta := meta.Delta
	if len(delta) == 0 {
		delta = frame.DefaultDelta()
	}
	f := &Fixture{
		Description: fmt.Sprintf("%d frames over %v with meta-interpreter %s", len(runs), meta.DomainFiles, meta.MetaInterpreter),
		Schedule: FixtureSchedule{
			Seed:          meta.Seed,
			Delta:         delta,
			SwitchEvery:   meta.SwitchEvery,
			MaxIterations: meta.MaxIterations,
			StepMode:      frame.StepMode(meta.StepMode),
		},
	}
	for i, fr := range runs {
		sess := FixtureSession{Frame: fr.Frame, Models: []FixtureModel{}}
		for j, rec := range fr.Interpretations {
			atoms := atomsOf(rec)
			if len(atoms) == 0 {
				return nil, fmt.Errorf("frame %d interpretation %d has no raw facts", i, j)
			}
			sess.Models = append(sess.Models, FixtureModel{
				Cost:          []int{rec.Cost},
				Atoms:         atoms,
				ExpectedRules: append([]string{}, rec.Rules...),
			})
		}
		f.Sessions = append(f.Sessions, sess)
	}
	return f, nil
}

func atomsOf(rec interp.Record) []string {
	var atoms []string
	for _, sig := range interp.Signatures {
		atoms = append(atoms, rec.Facts[sig.String()]...)
	}
	return atoms
}

// #endregion export
