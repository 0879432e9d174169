// Package frame defines the bounded search spaces ("frames") tried by the
// search, and the scheduler that escalates them.
package frame

import (
	"errors"
	"fmt"
)

// #region delta

// Increment raises one frame key by a positive amount.
type Increment struct {
	Param Param `json:"param" yaml:"param" validate:"required"`
	By    int   `json:"by" yaml:"by" validate:"gt=0"`
}

// Delta is the ordered list of increments applied per escalation step.
type Delta []Increment

// DefaultDelta returns the standard escalation step.
func DefaultDelta() Delta {
	return Delta{
		{Param: GenObjs, By: 2},
		{Param: GenUnaryPreds, By: 1},
		{Param: GenBinaryPreds, By: 1},
		{Param: CausalMax, By: 1},
		{Param: StaticMax, By: 1},
		{Param: RuleBodySizeMax, By: 1},
		{Param: GenVars, By: 1},
	}
}

// Validate rejects unknown keys, non-positive increments, repeated keys and
// gen_types, which only changes when a new base frame is introduced.
func (d Delta) Validate() error {
	if len(d) == 0 {
		return ErrEmptyDelta
	}
	seen := make(map[Param]bool, len(d))
	for _, inc := range d {
		switch {
		case !inc.Param.Valid():
			return fmt.Errorf("%w: %q", ErrUnknownParam, inc.Param)
		case inc.Param == GenTypes:
			return fmt.Errorf("delta: %s is reserved for new base frames", GenTypes)
		case inc.By <= 0:
			return fmt.Errorf("delta: increment for %s must be positive, got %d", inc.Param, inc.By)
		case seen[inc.Param]:
			return fmt.Errorf("delta: %s listed twice", inc.Param)
		}
		seen[inc.Param] = true
	}
	return nil
}

// Apply adds every increment to f in order.
func (d Delta) Apply(f *Frame) {
	for _, inc := range d {
		_ = f.Set(inc.Param, f.Get(inc.Param)+inc.By)
	}
}

// ErrEmptyDelta is returned when the escalation step changes nothing.
var ErrEmptyDelta = errors.New("delta: no increments")

// #endregion delta

// #region options

// StepMode selects when the scheduler hands a frame to the solver during
// a delta application.
type StepMode string

const (
	// StepPerKey yields after every individual key update.
	StepPerKey StepMode = "key"
	// StepPerDelta yields once after the whole delta has been applied.
	StepPerDelta StepMode = "delta"
)

// Options configures a Scheduler.
type Options struct {
	Seed          Frame
	Delta         Delta
	SwitchEvery   int // rounds between new base frames
	MaxIterations int
	Mode          StepMode
}

// DefaultOptions mirrors the standard search configuration.
func DefaultOptions() Options {
	return Options{
		Seed:          DefaultSeed(),
		Delta:         DefaultDelta(),
		SwitchEvery:   5,
		MaxIterations: 20,
		Mode:          StepPerKey,
	}
}

// #endregion options

// #region scheduler

// Step is one frame to solve.
type Step struct {
	Frame     Frame // snapshot of the working frame; never aliased
	Base      int   // index of the base frame this step escalates
	Iteration int   // 1 for the seed, then one per escalation round
	Changed   Param // key just incremented; empty for the seed and in delta mode
}

// Scheduler yields an unbounded sequence of frames without materialising
// it. Each base frame owns one working frame in an arena indexed by base;
// a round applies the delta once to every working frame, and every
// SwitchEvery rounds a new base with the next gen_types value is appended.
type Scheduler struct {
	opts    Options
	working []Frame

	started   bool
	iteration int
	rounds    int

	inRound bool
	base    int
	key     int
}

// NewScheduler validates opts and returns a scheduler positioned before the seed.
func NewScheduler(opts Options) (*Scheduler, error) {
	if err := opts.Delta.Validate(); err != nil {
		return nil, err
	}
	if opts.SwitchEvery < 1 {
		return nil, fmt.Errorf("scheduler: switch_frame_at_iter must be >= 1, got %d", opts.SwitchEvery)
	}
	if opts.MaxIterations < 1 {
		return nil, fmt.Errorf("scheduler: max_iterations must be >= 1, got %d", opts.MaxIterations)
	}
	switch opts.Mode {
	case "":
		opts.Mode = StepPerKey
	case StepPerKey, StepPerDelta:
	default:
		return nil, fmt.Errorf("scheduler: unknown step mode %q", opts.Mode)
	}
	return &Scheduler{opts: opts}, nil
}

// Next returns the next frame to solve, or false once the iteration
// ceiling has been reached.
func (s *Scheduler) Next() (Step, bool) {
	if !s.started {
		s.started = true
		s.iteration = 1
		s.working = []Frame{s.opts.Seed}
		return Step{Frame: s.opts.Seed, Base: 0, Iteration: 1}, true
	}

	for {
		if !s.inRound {
			if s.iteration >= s.opts.MaxIterations {
				return Step{}, false
			}
			s.iteration++
			s.inRound = true
			s.base, s.key = 0, 0
		}

		if s.base >= len(s.working) {
			s.inRound = false
			s.rounds++
			if s.rounds%s.opts.SwitchEvery == 0 {
				s.appendBase()
			}
			continue
		}

		w := &s.working[s.base]
		step := Step{Base: s.base, Iteration: s.iteration}
		if s.opts.Mode == StepPerDelta {
			s.opts.Delta.Apply(w)
			s.base++
		} else {
			inc := s.opts.Delta[s.key]
			_ = w.Set(inc.Param, w.Get(inc.Param)+inc.By)
			step.Changed = inc.Param
			s.key++
			if s.key == len(s.opts.Delta) {
				s.key = 0
				s.base++
			}
		}
		step.Frame = *w
		return step, true
	}
}

func (s *Scheduler) appendBase() {
	f := s.opts.Seed
	f.GenTypes = len(s.working)
	s.working = append(s.working, f)
}

// Iteration returns the current iteration count.
func (s *Scheduler) Iteration() int { return s.iteration }

// Bases returns how many base frames are tracked.
func (s *Scheduler) Bases() int { return len(s.working) }

// Working returns a copy of the working frame owned by base i.
func (s *Scheduler) Working(i int) Frame { return s.working[i] }

// #endregion scheduler
