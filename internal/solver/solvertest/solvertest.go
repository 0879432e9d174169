// Package solvertest provides a scripted in-memory solver for tests.
package solvertest

import (
	"context"
	"sync"
	"time"

	"github.com/namcsi/apperception-clingo/internal/asp"
	"github.com/namcsi/apperception-clingo/internal/solver"
)

// Script describes what one session does.
type Script struct {
	Models    []solver.Model
	Status    solver.Status // defaults to optimal when models were reported, unsatisfiable otherwise
	OpenErr   error
	GroundErr error
	SearchErr error
	// BeforeModel runs before each model is delivered.
	BeforeModel func(i int)
}

// Solver hands out scripted sessions in order; once Scripts run out,
// every further session follows Default.
type Solver struct {
	Scripts []Script
	Default Script

	mu       sync.Mutex
	requests []solver.Request
	closed   int
}

// Open records the request and returns the next scripted session.
func (s *Solver) Open(_ context.Context, req solver.Request) (solver.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	script := s.Default
	if n := len(s.requests); n < len(s.Scripts) {
		script = s.Scripts[n]
	}
	s.requests = append(s.requests, req)
	if script.OpenErr != nil {
		return nil, script.OpenErr
	}
	return &session{owner: s, script: script, req: req}, nil
}

// Requests returns every request seen so far.
func (s *Solver) Requests() []solver.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]solver.Request(nil), s.requests...)
}

// Closed returns how many sessions were closed.
func (s *Solver) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type session struct {
	owner    *Solver
	script   Script
	req      solver.Request
	grounded bool
	closed   bool
}

func (se *session) Ground(ctx context.Context) (time.Duration, error) {
	if se.closed || se.grounded {
		return 0, solver.ErrSessionState
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if se.script.GroundErr != nil {
		return 0, se.script.GroundErr
	}
	se.grounded = true
	return time.Millisecond, nil
}

// Search delivers scripted models, skipping those not strictly better than
// the request bound, as a real solver would.
func (se *session) Search(ctx context.Context, onModel func(solver.Model) error) (solver.Outcome, error) {
	if se.closed || !se.grounded {
		return solver.Outcome{}, solver.ErrSessionState
	}
	out := solver.Outcome{Elapsed: time.Millisecond}
	for i, m := range se.script.Models {
		if se.script.BeforeModel != nil {
			se.script.BeforeModel(i)
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if se.req.Bound != nil && len(m.Cost) > 0 && m.Cost[0] > *se.req.Bound {
			continue
		}
		out.Models++
		if err := onModel(m); err != nil {
			return out, err
		}
	}
	if se.script.SearchErr != nil {
		return out, se.script.SearchErr
	}
	out.Status = se.script.Status
	if out.Status == "" {
		out.Status = solver.StatusUnsatisfiable
		if out.Models > 0 {
			out.Status = solver.StatusOptimal
		}
	}
	return out, nil
}

func (se *session) Close() error {
	if se.closed {
		return nil
	}
	se.closed = true
	se.owner.mu.Lock()
	se.owner.closed++
	se.owner.mu.Unlock()
	return nil
}

// Candidate builds a well-formed model with the given cost, incorrect count
// and extra atoms in clingo syntax.
func Candidate(cost, incorrect int, atoms ...string) solver.Model {
	facts := make([]asp.Term, 0, len(atoms)+1)
	for _, a := range atoms {
		facts = append(facts, asp.MustParse(a))
	}
	facts = append(facts, asp.Fn("num_incorrect", asp.Num(incorrect)))
	return solver.Model{Facts: facts, Cost: []int{cost}}
}
