package clingo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/namcsi/apperception-clingo/internal/frame"
	"github.com/namcsi/apperception-clingo/internal/solver"
)

// fakeClingo mimics the two clingo invocations: gringo mode writes an aspif
// stub (or fails on bad.lp, exits with FAKE_GRINGO_EXIT, or hangs when
// FAKE_GRINGO_HANG is set), search mode replays FAKE_CLINGO_OUTPUT and
// exits with FAKE_CLINGO_EXIT. Every invocation appends its argv to
// FAKE_CLINGO_LOG.
const fakeClingo = `#!/bin/sh
echo "$@" >> "$FAKE_CLINGO_LOG"
case "$1" in
--mode=gringo)
	if [ -n "$FAKE_GRINGO_EXIT" ]; then
		echo "*** ERROR: (clingo): std::bad_alloc" >&2
		exit "$FAKE_GRINGO_EXIT"
	fi
	if [ -n "$FAKE_GRINGO_HANG" ]; then
		exec sleep 30
	fi
	for f in "$@"; do
		case "$f" in
		*bad.lp) echo "bad.lp:1:1-2: error: syntax error, unexpected <IDENTIFIER>" >&2; exit 65 ;;
		esac
		case "$f" in
		*.lp) cat "$f" > /dev/null || exit 65 ;;
		esac
	done
	echo "asp 1 0 0"
	echo "0"
	exit 0
	;;
esac
cat "$FAKE_CLINGO_OUTPUT"
if [ -n "$FAKE_CLINGO_HANG" ]; then
	exec sleep 30
fi
exit "$FAKE_CLINGO_EXIT"
`

type fakeEnv struct {
	dir    string
	binary string
	log    string
	output string
}

func setupFake(t *testing.T, output string, exit string) fakeEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake clingo is a POSIX shell script")
	}
	dir := t.TempDir()
	env := fakeEnv{
		dir:    dir,
		binary: filepath.Join(dir, "clingo"),
		log:    filepath.Join(dir, "argv.log"),
		output: filepath.Join(dir, "output.txt"),
	}
	require.NoError(t, os.WriteFile(env.binary, []byte(fakeClingo), 0o755))
	require.NoError(t, os.WriteFile(env.output, []byte(output), 0o644))
	t.Setenv("FAKE_CLINGO_LOG", env.log)
	t.Setenv("FAKE_CLINGO_OUTPUT", env.output)
	t.Setenv("FAKE_CLINGO_EXIT", exit)
	t.Setenv("FAKE_CLINGO_HANG", "")
	t.Setenv("FAKE_GRINGO_EXIT", "")
	t.Setenv("FAKE_GRINGO_HANG", "")
	return env
}

func (e fakeEnv) source(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte("p.\n"), 0o644))
	return path
}

func (e fakeEnv) invocations(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(e.log)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestSession_GroundAndSearch(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	env := setupFake(t, optimumOutput, "30")
	s := New(Options{Binary: env.binary, TempDir: env.dir})

	bound := 10
	req := solver.NewRequest([]string{env.source(t, "domain.lp"), env.source(t, "core.lp")}, frame.DefaultSeed(), &bound)
	sess, err := s.Open(context.Background(), req)
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Ground(context.Background())
	require.NoError(t, err)

	var costs [][]int
	out, err := sess.Search(context.Background(), func(m solver.Model) error {
		costs = append(costs, m.Cost)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, solver.StatusOptimal, out.Status)
	assert.Equal(t, 2, out.Models)
	assert.Equal(t, [][]int{{9}, {5, 2}}, costs)

	calls := env.invocations(t)
	require.Len(t, calls, 2)
	assert.True(t, strings.HasPrefix(calls[0], "--mode=gringo "))
	assert.Contains(t, calls[0], "domain.lp")
	assert.True(t, strings.HasSuffix(calls[0], "frame.lp"))
	assert.True(t, strings.HasPrefix(calls[1], "--opt-mode=opt,10 "))
	assert.True(t, strings.HasSuffix(calls[1], "ground.aspif"))
}

func TestSession_OverridesFileContents(t *testing.T) {
	env := setupFake(t, "", "20")
	s := New(Options{Binary: env.binary, TempDir: env.dir})

	sess, err := s.Open(context.Background(), solver.NewRequest([]string{env.source(t, "a.lp")}, frame.DefaultSeed(), nil))
	require.NoError(t, err)
	se := sess.(*session)

	data, err := os.ReadFile(se.overrides)
	require.NoError(t, err)
	assert.Contains(t, string(data), "#const gen_vars = 2. [override]")

	require.NoError(t, sess.Close())
	_, err = os.Stat(se.dir)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, sess.Close())
}

func TestSession_MalformedProgramIsFatal(t *testing.T) {
	env := setupFake(t, "", "0")
	s := New(Options{Binary: env.binary, TempDir: env.dir})

	sess, err := s.Open(context.Background(), solver.NewRequest([]string{env.source(t, "bad.lp")}, frame.DefaultSeed(), nil))
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Ground(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, solver.ErrMalformedRequest))
	assert.Contains(t, err.Error(), "syntax error")

	_, err = sess.Search(context.Background(), func(solver.Model) error { return nil })
	assert.ErrorIs(t, err, solver.ErrSessionState)
}

func TestSession_GroundOutOfMemoryIsExhausted(t *testing.T) {
	env := setupFake(t, "", "0")
	t.Setenv("FAKE_GRINGO_EXIT", "33")
	s := New(Options{Binary: env.binary, TempDir: env.dir})

	sess, err := s.Open(context.Background(), solver.NewRequest([]string{env.source(t, "a.lp")}, frame.DefaultSeed(), nil))
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Ground(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, solver.ErrExhausted)
	assert.False(t, errors.Is(err, solver.ErrMalformedRequest))
	assert.Contains(t, err.Error(), "std::bad_alloc")
}

func TestSession_GroundTimeLimitIsExhausted(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	env := setupFake(t, "", "0")
	t.Setenv("FAKE_GRINGO_HANG", "1")
	s := New(Options{Binary: env.binary, TempDir: env.dir, TimeLimit: 200 * time.Millisecond})

	sess, err := s.Open(context.Background(), solver.NewRequest([]string{env.source(t, "a.lp")}, frame.DefaultSeed(), nil))
	require.NoError(t, err)
	defer sess.Close()

	start := time.Now()
	_, err = sess.Ground(context.Background())
	assert.ErrorIs(t, err, solver.ErrExhausted)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestSession_UnsatisfiableUnderBound(t *testing.T) {
	env := setupFake(t, "Solving...\nUNSATISFIABLE\n", "20")
	s := New(Options{Binary: env.binary, TempDir: env.dir})

	sess, err := s.Open(context.Background(), solver.NewRequest([]string{env.source(t, "a.lp")}, frame.DefaultSeed(), nil))
	require.NoError(t, err)
	defer sess.Close()
	_, err = sess.Ground(context.Background())
	require.NoError(t, err)

	out, err := sess.Search(context.Background(), func(solver.Model) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, solver.StatusUnsatisfiable, out.Status)
}

func TestSession_TimeLimitIsExhausted(t *testing.T) {
	env := setupFake(t, "Answer: 1\nnum_incorrect(0)\nOptimization: 3\nSATISFIABLE\n", "11")
	s := New(Options{Binary: env.binary, TempDir: env.dir, TimeLimit: 1500 * time.Millisecond})

	sess, err := s.Open(context.Background(), solver.NewRequest([]string{env.source(t, "a.lp")}, frame.DefaultSeed(), nil))
	require.NoError(t, err)
	defer sess.Close()
	_, err = sess.Ground(context.Background())
	require.NoError(t, err)

	out, err := sess.Search(context.Background(), func(solver.Model) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, solver.StatusExhausted, out.Status)
	assert.Contains(t, env.invocations(t)[1], "--time-limit=2")
}

func TestSession_CancelDuringSearch(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	env := setupFake(t, "Answer: 1\nnum_incorrect(0)\nOptimization: 3\n", "0")
	t.Setenv("FAKE_CLINGO_HANG", "1")
	s := New(Options{Binary: env.binary, TempDir: env.dir})

	sess, err := s.Open(context.Background(), solver.NewRequest([]string{env.source(t, "a.lp")}, frame.DefaultSeed(), nil))
	require.NoError(t, err)
	defer sess.Close()
	_, err = sess.Ground(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	start := time.Now()
	_, err = sess.Search(ctx, func(solver.Model) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestSession_OutOfOrder(t *testing.T) {
	env := setupFake(t, "", "20")
	s := New(Options{Binary: env.binary, TempDir: env.dir})

	sess, err := s.Open(context.Background(), solver.NewRequest([]string{env.source(t, "a.lp")}, frame.DefaultSeed(), nil))
	require.NoError(t, err)

	_, err = sess.Search(context.Background(), func(solver.Model) error { return nil })
	assert.ErrorIs(t, err, solver.ErrSessionState)

	require.NoError(t, sess.Close())
	_, err = sess.Ground(context.Background())
	assert.ErrorIs(t, err, solver.ErrSessionState)
}

func TestOpen_RequiresSources(t *testing.T) {
	_, err := New(Options{}).Open(context.Background(), solver.Request{})
	assert.ErrorIs(t, err, solver.ErrMalformedRequest)
}
