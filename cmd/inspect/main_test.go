package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namcsi/apperception-clingo/internal/frame"
	"github.com/namcsi/apperception-clingo/internal/interp"
	"github.com/namcsi/apperception-clingo/internal/logging"
	"github.com/namcsi/apperception-clingo/internal/progress"
	"github.com/namcsi/apperception-clingo/internal/state"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	jsonOut, showBest, dbPath = false, false, ""
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func sampleRuns() []progress.FrameRun {
	g, s := 0.5, 1.5
	return []progress.FrameRun{{
		Frame:     frame.DefaultSeed(),
		GroundEnd: &g,
		SolveEnd:  &s,
		Interpretations: []interp.Record{
			{Types: []string{"t1"}, Rules: []string{"p ::- q"}, Cost: 6, Incorrect: 1, Time: 0.7},
			{Types: []string{"t1"}, Rules: []string{"p ::- q, s"}, Cost: 2, Time: 1.2},
		},
	}}
}

func TestShow_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	require.NoError(t, progress.JSONFile{Path: path}.Flush(sampleRuns()))

	out := execute(t, "show", path, "--best")
	assert.Contains(t, out, "ground 0.5000s  solve 1.5000s  interpretations 2")
	assert.Contains(t, out, "Found unified interpretation with cost 2.")
	assert.Contains(t, out, "p ::- q, s")
}

func TestRunsAndEvents_Store(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	store, err := state.NewStore(db)
	require.NoError(t, err)
	runID, err := store.CreateRun(state.RunMeta{MetaInterpreter: "bd", Seed: frame.DefaultSeed()})
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(runID, sampleRuns()))
	require.NoError(t, logging.LogEvent(store.DB(), logging.Event{RunID: runID, Kind: logging.EventSolved, Detail: "optimal"}))
	require.NoError(t, store.Close())

	out := execute(t, "runs", "--db", db)
	assert.Contains(t, out, runID[:8])
	assert.Contains(t, out, "bd")

	out = execute(t, "events", runID, "--db", db)
	assert.Contains(t, out, "solved")
	assert.Contains(t, out, "optimal")

	out = execute(t, "show", runID, "--db", db, "--json")
	assert.Contains(t, out, `"unified_interpretations"`)
	assert.Contains(t, out, `"p ::- q, s"`)
}
