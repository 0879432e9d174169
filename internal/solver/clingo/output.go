package clingo

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/namcsi/apperception-clingo/internal/asp"
	"github.com/namcsi/apperception-clingo/internal/solver"
)

// #region summary

// summary is what the text output says about how the search ended.
type summary struct {
	Models        int
	Optimum       bool
	Unsatisfiable bool
}

// #endregion summary

// #region scan

const maxLine = 64 << 20

// scanOutput reads clingo's default text output and calls emit once per
// complete candidate. An answer is complete when its Optimization line is
// read, or when the next non-atom line starts (programs without a
// minimize statement print no Optimization line).
func scanOutput(r io.Reader, emit func(solver.Model) error) (summary, error) {
	var (
		sum         summary
		pending     *solver.Model
		expectAtoms bool
	)
	flush := func() error {
		if pending == nil {
			return nil
		}
		m := *pending
		pending = nil
		sum.Models++
		return emit(m)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")

		if expectAtoms {
			expectAtoms = false
			facts, err := asp.ParseAll(line)
			if err != nil {
				return sum, fmt.Errorf("parse answer %d: %w", pending.Number, err)
			}
			pending.Facts = facts
			continue
		}

		switch {
		case strings.HasPrefix(line, "Answer:"):
			if err := flush(); err != nil {
				return sum, err
			}
			n, err := answerNumber(line)
			if err != nil {
				return sum, err
			}
			pending = &solver.Model{Number: n}
			expectAtoms = true
		case strings.HasPrefix(line, "Optimization:"):
			if pending == nil {
				continue
			}
			cost, err := parseCost(strings.TrimPrefix(line, "Optimization:"))
			if err != nil {
				return sum, err
			}
			pending.Cost = cost
			if err := flush(); err != nil {
				return sum, err
			}
		default:
			if err := flush(); err != nil {
				return sum, err
			}
			switch strings.TrimSpace(line) {
			case "OPTIMUM FOUND":
				sum.Optimum = true
			case "UNSATISFIABLE":
				sum.Unsatisfiable = true
			}
		}
	}
	if err := sc.Err(); err != nil {
		return sum, fmt.Errorf("read solver output: %w", err)
	}
	return sum, flush()
}

func answerNumber(line string) (int, error) {
	fields := strings.Fields(strings.TrimPrefix(line, "Answer:"))
	if len(fields) == 0 {
		return 0, fmt.Errorf("answer line without number: %q", line)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("answer number %q: %w", fields[0], err)
	}
	return n, nil
}

func parseCost(s string) ([]int, error) {
	fields := strings.Fields(s)
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("optimization value %q: %w", f, err)
		}
		out[i] = v
	}
	return out, nil
}

// #endregion scan

// #region exit-codes

// clingo exit codes. A finished search exits with the sum of the flags
// that apply: 10 satisfiable, 20 search space exhausted, 30 both, plus 1
// when interrupted (time limit or signal).
const (
	exitInterrupt = 1
	exitSat       = 10
	exitExhaust   = 20
	exitMemory    = 33
	exitError     = 65
)

// classify maps the exit code and text summary of a search phase to a
// Status. Codes from exitError up are request errors.
func classify(code int, sum summary) (solver.Status, bool) {
	switch {
	case code >= exitError:
		return "", false
	case code == exitMemory, code < 0, code%exitSat == exitInterrupt:
		return solver.StatusExhausted, true
	case code >= exitExhaust || sum.Optimum || sum.Unsatisfiable:
		if sum.Models > 0 {
			return solver.StatusOptimal, true
		}
		return solver.StatusUnsatisfiable, true
	default:
		return solver.StatusExhausted, true
	}
}

// groundFailure maps a failed ground phase. Memory exhaustion and signal
// kills end the frame; anything else is a rejected program.
func groundFailure(code int) error {
	if code == exitMemory || code < 0 || (code > 0 && code < exitError && code%exitSat == exitInterrupt) {
		return solver.ErrExhausted
	}
	return solver.ErrMalformedRequest
}

// #endregion exit-codes
