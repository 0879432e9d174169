// Package solver defines the contract with the external combinatorial
// solver: one Session per frame, a ground phase, then a search phase that
// streams strictly improving candidates.
package solver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/namcsi/apperception-clingo/internal/asp"
	"github.com/namcsi/apperception-clingo/internal/frame"
)

// #region errors

var (
	// ErrMalformedRequest means the combined program or its constants were
	// rejected. It is fatal for the run.
	ErrMalformedRequest = errors.New("malformed solver request")
	// ErrExhausted means a phase ran out of time or memory. The frame ends
	// without candidates and the search moves on.
	ErrExhausted = errors.New("solver resources exhausted")
	// ErrSessionState is returned when phases are called out of order.
	ErrSessionState = errors.New("solver session used out of order")
)

// #endregion errors

// #region request

// Request is everything one session needs.
type Request struct {
	Sources []string      // program files, in load order
	Consts  []frame.Const // one override per frame key
	Bound   *int          // exclusive bound; nil when no candidate is known yet
	// TimeLimit caps the search phase; zero means unlimited.
	TimeLimit time.Duration
}

// NewRequest builds a request for one frame.
func NewRequest(sources []string, f frame.Frame, bound *int) Request {
	return Request{
		Sources: append([]string(nil), sources...),
		Consts:  f.Consts(),
		Bound:   bound,
	}
}

// OverrideProgram renders the constant overrides. Each directive shadows
// any default for the same constant in the loaded files.
func (r Request) OverrideProgram() string {
	var b strings.Builder
	for _, c := range r.Consts {
		fmt.Fprintf(&b, "#const %s = %d. [override]\n", c.Name, c.Value)
	}
	return b.String()
}

// OptMode renders the optimisation mode, carrying the bound when set.
func (r Request) OptMode() string {
	if r.Bound == nil {
		return "opt"
	}
	return fmt.Sprintf("opt,%d", *r.Bound)
}

// #endregion request

// #region results

// Model is one improving candidate.
type Model struct {
	Number int
	Facts  []asp.Term
	Cost   []int // one entry per priority level, highest first
}

// Status is how a search phase ended.
type Status string

const (
	// StatusOptimal: the last reported candidate is proven optimal.
	StatusOptimal Status = "optimal"
	// StatusUnsatisfiable: no candidate better than the bound exists.
	StatusUnsatisfiable Status = "unsatisfiable"
	// StatusExhausted: the search stopped without a proof (time or memory
	// limit). The driver moves on to the next frame.
	StatusExhausted Status = "exhausted"
)

// Outcome summarises a finished search phase.
type Outcome struct {
	Status  Status
	Models  int
	Elapsed time.Duration
}

// #endregion results

// #region contract

// Solver opens sessions against an external solver.
type Solver interface {
	Open(ctx context.Context, req Request) (Session, error)
}

// Session is one invocation against one frame. Ground must be called once
// before Search; Close releases the solver handle and is safe to call twice.
type Session interface {
	Ground(ctx context.Context) (time.Duration, error)
	// Search calls onModel for every improving candidate, in order, before
	// requesting the next one. An error from onModel aborts the search and
	// is returned unchanged.
	Search(ctx context.Context, onModel func(Model) error) (Outcome, error)
	Close() error
}

// #endregion contract
