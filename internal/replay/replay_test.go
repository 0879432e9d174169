package replay

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namcsi/apperception-clingo/internal/frame"
	"github.com/namcsi/apperception-clingo/internal/orchestrator"
	"github.com/namcsi/apperception-clingo/internal/progress"
	"github.com/namcsi/apperception-clingo/internal/solver"
	"github.com/namcsi/apperception-clingo/internal/solver/solvertest"
	"github.com/namcsi/apperception-clingo/internal/state"
)

// recordFixture runs a scripted three-frame search and exports it.
func recordFixture(t *testing.T) *Fixture {
	t.Helper()
	backend := &solvertest.Solver{Scripts: []solvertest.Script{
		{Models: []solver.Model{
			solvertest.Candidate(9, 2, "type(t1)", "rule_head(causal(1),p)", "rule_body(causal(1),q)"),
			solvertest.Candidate(5, 1, "type(t1)", "rule_head(static(1),r)", "rule_body(static(1),s)", "rule_body(static(1),u)"),
		}},
		{Models: []solver.Model{solvertest.Candidate(2, 0, "rule_head(causal(1),p)")}},
		{},
	}}
	meta := state.RunMeta{
		DomainFiles:     []string{"example.lp"},
		MetaInterpreter: "std",
		Seed:            frame.DefaultSeed(),
		Delta:           frame.DefaultDelta(),
		MaxIterations:   3,
		SwitchEvery:     5,
		StepMode:        string(frame.StepPerDelta),
	}
	rec := progress.NewRecorder()
	opts := frame.DefaultOptions()
	opts.MaxIterations = 3
	opts.Mode = frame.StepPerDelta
	d, err := orchestrator.New(orchestrator.Options{
		Scheduler: opts,
		Sources:   []string{"example.lp"},
		Solver:    backend,
		Recorder:  rec,
	})
	require.NoError(t, err)
	_, err = d.Search(context.Background())
	require.NoError(t, err)

	f, err := FromRun(meta, rec.Snapshot())
	require.NoError(t, err)
	return f
}

func TestFromRun_RebuildsAtoms(t *testing.T) {
	f := recordFixture(t)

	require.Len(t, f.Sessions, 3)
	assert.Equal(t, frame.DefaultSeed(), f.Sessions[0].Frame)
	require.Len(t, f.Sessions[0].Models, 2)
	assert.Empty(t, f.Sessions[2].Models)

	m := f.Sessions[0].Models[0]
	assert.Equal(t, []int{9}, m.Cost)
	assert.Contains(t, m.Atoms, "type(t1)")
	assert.Contains(t, m.Atoms, "num_incorrect(2)")
	assert.Len(t, m.ExpectedRules, 1)
	assert.Equal(t, frame.StepPerDelta, f.Schedule.StepMode)
}

func TestRun_MatchesRecording(t *testing.T) {
	f := recordFixture(t)

	var report bytes.Buffer
	summary, err := Run(context.Background(), f, &report, nil)
	require.NoError(t, err)

	assert.True(t, summary.Passed(), "mismatches: %v", summary.Mismatches)
	assert.Equal(t, 3, summary.Sessions)
	assert.Equal(t, 3, summary.Candidates)
	require.NotNil(t, summary.BestCost)
	assert.Equal(t, 2, *summary.BestCost)
	assert.Contains(t, report.String(), "Found unified interpretation with cost 5.")
}

func TestRun_ReportsRuleMismatch(t *testing.T) {
	f := recordFixture(t)
	f.Sessions[1].Models[0].ExpectedRules = []string{"something else"}

	summary, err := Run(context.Background(), f, nil, nil)
	require.NoError(t, err)
	require.False(t, summary.Passed())
	assert.Contains(t, summary.Mismatches[0], "session 1 model 0")
}

func TestRun_ReportsFrameMismatch(t *testing.T) {
	f := recordFixture(t)
	f.Sessions[0].Frame.GenObjs++

	summary, err := Run(context.Background(), f, nil, nil)
	require.NoError(t, err)
	require.False(t, summary.Passed())
	assert.Contains(t, summary.Mismatches[0], "session 0: frame")
}

func TestRun_StopsAtEndOfFixture(t *testing.T) {
	f := recordFixture(t)
	f.Sessions = f.Sessions[:1]

	summary, err := Run(context.Background(), f, nil, nil)
	require.NoError(t, err)
	assert.True(t, summary.Passed(), "mismatches: %v", summary.Mismatches)
	assert.Equal(t, 1, summary.Sessions)
	assert.Equal(t, 2, summary.Candidates)
}

func TestFixture_SaveLoad(t *testing.T) {
	f := recordFixture(t)
	path := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, f.Save(path))

	got, err := LoadFixture(path)
	require.NoError(t, err)
	assert.Equal(t, f.Schedule, got.Schedule)
	assert.Equal(t, f.Sessions[0].Models, got.Sessions[0].Models)

	summary, err := Run(context.Background(), got, nil, nil)
	require.NoError(t, err)
	assert.True(t, summary.Passed(), "mismatches: %v", summary.Mismatches)
}

func TestLoadFixture_RejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, (&Fixture{}).Save(path))
	_, err := LoadFixture(path)
	assert.Error(t, err)
}
