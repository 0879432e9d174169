// Package clingo runs the external clingo binary as a solver backend. The
// ground phase writes the intermediate (aspif) program to a private temp
// directory; the search phase solves it and streams improving answers.
package clingo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/namcsi/apperception-clingo/internal/solver"
)

// #region options

// Options configures the subprocess backend.
type Options struct {
	Binary    string        // path or name of the clingo executable
	TimeLimit time.Duration // default limit per phase when a request sets none
	ExtraArgs []string      // appended to the search phase command line
	TempDir   string        // parent of per-session directories; "" for the OS default
	Logger    *zap.Logger
}

// #endregion options

// #region solver

// Solver opens clingo sessions.
type Solver struct {
	opts Options
}

// New returns a Solver; an empty Binary defaults to "clingo".
func New(opts Options) *Solver {
	if opts.Binary == "" {
		opts.Binary = "clingo"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Solver{opts: opts}
}

// Open prepares a session directory holding the constant overrides.
func (s *Solver) Open(_ context.Context, req solver.Request) (solver.Session, error) {
	if len(req.Sources) == 0 {
		return nil, fmt.Errorf("%w: no program sources", solver.ErrMalformedRequest)
	}
	dir, err := os.MkdirTemp(s.opts.TempDir, "apperception-*")
	if err != nil {
		return nil, fmt.Errorf("session dir: %w", err)
	}
	overrides := filepath.Join(dir, "frame.lp")
	if err := os.WriteFile(overrides, []byte(req.OverrideProgram()), 0o644); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("write overrides: %w", err)
	}
	if req.TimeLimit == 0 {
		req.TimeLimit = s.opts.TimeLimit
	}
	return &session{
		opts:      s.opts,
		req:       req,
		dir:       dir,
		overrides: overrides,
		aspif:     filepath.Join(dir, "ground.aspif"),
	}, nil
}

// #endregion solver

// #region session

type session struct {
	opts      Options
	req       solver.Request
	dir       string
	overrides string
	aspif     string
	grounded  bool
	searched  bool
	closed    bool
}

// Ground runs clingo in gringo mode over all sources plus the overrides.
func (se *session) Ground(ctx context.Context) (time.Duration, error) {
	if se.closed || se.grounded {
		return 0, solver.ErrSessionState
	}
	out, err := os.Create(se.aspif)
	if err != nil {
		return 0, fmt.Errorf("create ground program: %w", err)
	}
	defer out.Close()

	runCtx := ctx
	if se.req.TimeLimit > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, se.req.TimeLimit)
		defer cancel()
	}

	args := append([]string{"--mode=gringo"}, se.req.Sources...)
	args = append(args, se.overrides)
	cmd := exec.CommandContext(runCtx, se.opts.Binary, args...)
	cmd.Stdout = out
	stderr := &limitedBuffer{limit: 64 << 10}
	cmd.Stderr = stderr
	cmd.WaitDelay = 2 * time.Second

	se.opts.Logger.Debug("grounding", zap.String("binary", se.opts.Binary), zap.Strings("args", args))
	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)
	if ctx.Err() != nil {
		return elapsed, ctx.Err()
	}
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return elapsed, fmt.Errorf("%w: grounding exceeded time limit %s", solver.ErrExhausted, se.req.TimeLimit)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return elapsed, fmt.Errorf("%w: grounding exited with code %d: %s",
				groundFailure(exitErr.ExitCode()), exitErr.ExitCode(), firstError(stderr.String()))
		}
		return elapsed, fmt.Errorf("run %s: %w", se.opts.Binary, err)
	}
	se.grounded = true
	return elapsed, nil
}

// Search solves the ground program, forwarding each improving answer to
// onModel before reading the next one.
func (se *session) Search(ctx context.Context, onModel func(solver.Model) error) (solver.Outcome, error) {
	if se.closed || !se.grounded || se.searched {
		return solver.Outcome{}, solver.ErrSessionState
	}
	se.searched = true

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	args := []string{"--opt-mode=" + se.req.OptMode()}
	if se.req.TimeLimit > 0 {
		args = append(args, fmt.Sprintf("--time-limit=%d", int(math.Ceil(se.req.TimeLimit.Seconds()))))
	}
	args = append(args, se.opts.ExtraArgs...)
	args = append(args, se.aspif)

	cmd := exec.CommandContext(runCtx, se.opts.Binary, args...)
	stderr := &limitedBuffer{limit: 64 << 10}
	cmd.Stderr = stderr
	cmd.WaitDelay = 2 * time.Second
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return solver.Outcome{}, fmt.Errorf("stdout pipe: %w", err)
	}

	se.opts.Logger.Debug("searching", zap.String("binary", se.opts.Binary), zap.Strings("args", args))
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return solver.Outcome{}, fmt.Errorf("start %s: %w", se.opts.Binary, err)
	}

	var callbackErr error
	sum, scanErr := scanOutput(stdout, func(m solver.Model) error {
		// A killed process can leave a truncated answer behind.
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onModel(m); err != nil {
			callbackErr = err
			return err
		}
		return nil
	})
	if scanErr != nil {
		// Stop the solver before waiting so Wait does not block on a
		// process that keeps writing.
		cancel()
	}
	waitErr := cmd.Wait()
	out := solver.Outcome{Models: sum.Models, Elapsed: time.Since(start)}

	switch {
	case ctx.Err() != nil:
		return out, ctx.Err()
	case callbackErr != nil:
		return out, callbackErr
	case scanErr != nil:
		return out, scanErr
	}

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return out, fmt.Errorf("wait %s: %w", se.opts.Binary, waitErr)
		}
		code = exitErr.ExitCode()
	}
	status, ok := classify(code, sum)
	if !ok {
		return out, fmt.Errorf("%w: search exited with code %d: %s",
			solver.ErrMalformedRequest, code, firstError(stderr.String()))
	}
	out.Status = status
	return out, nil
}

// Close removes the session directory.
func (se *session) Close() error {
	if se.closed {
		return nil
	}
	se.closed = true
	return os.RemoveAll(se.dir)
}

// #endregion session

// #region helpers

// limitedBuffer keeps the first limit bytes written to it.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string { return b.buf.String() }

// firstError picks the most informative stderr line.
func firstError(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for _, l := range lines {
		if strings.Contains(l, "error") || strings.Contains(l, "ERROR") {
			return strings.TrimSpace(l)
		}
	}
	if len(lines) > 0 && lines[0] != "" {
		return strings.TrimSpace(lines[0])
	}
	return "no diagnostics"
}

// #endregion helpers
