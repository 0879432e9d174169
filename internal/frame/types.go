package frame

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// #region params

// Param names one of the integer constants bounding a search space.
type Param string

const (
	GenTypes        Param = "gen_types"
	GenObjs         Param = "gen_objs"
	GenUnaryPreds   Param = "gen_unary_preds"
	GenBinaryPreds  Param = "gen_binary_preds"
	GenVars         Param = "gen_vars"
	CausalMax       Param = "causal_max"
	StaticMax       Param = "static_max"
	RuleBodySizeMax Param = "rule_body_size_max"
)

// Params is the closed set of frame keys in canonical order.
var Params = []Param{
	GenTypes, GenObjs, GenUnaryPreds, GenBinaryPreds,
	GenVars, CausalMax, StaticMax, RuleBodySizeMax,
}

// Valid reports whether p is one of the eight frame keys.
func (p Param) Valid() bool {
	for _, k := range Params {
		if k == p {
			return true
		}
	}
	return false
}

// #endregion params

// #region frame

// Frame bounds the complexity of candidate theories. All eight keys are
// always present; the zero Frame is a valid (empty) search space.
type Frame struct {
	GenTypes        int `json:"gen_types" yaml:"gen_types" validate:"gte=0"`
	GenObjs         int `json:"gen_objs" yaml:"gen_objs" validate:"gte=0"`
	GenUnaryPreds   int `json:"gen_unary_preds" yaml:"gen_unary_preds" validate:"gte=0"`
	GenBinaryPreds  int `json:"gen_binary_preds" yaml:"gen_binary_preds" validate:"gte=0"`
	GenVars         int `json:"gen_vars" yaml:"gen_vars" validate:"gte=0"`
	CausalMax       int `json:"causal_max" yaml:"causal_max" validate:"gte=0"`
	StaticMax       int `json:"static_max" yaml:"static_max" validate:"gte=0"`
	RuleBodySizeMax int `json:"rule_body_size_max" yaml:"rule_body_size_max" validate:"gte=0"`
}

// DefaultSeed returns the starting frame used when nothing is overridden.
func DefaultSeed() Frame {
	return Frame{
		CausalMax:       1,
		StaticMax:       1,
		RuleBodySizeMax: 1,
		GenVars:         2,
	}
}

func (f *Frame) field(p Param) *int {
	switch p {
	case GenTypes:
		return &f.GenTypes
	case GenObjs:
		return &f.GenObjs
	case GenUnaryPreds:
		return &f.GenUnaryPreds
	case GenBinaryPreds:
		return &f.GenBinaryPreds
	case GenVars:
		return &f.GenVars
	case CausalMax:
		return &f.CausalMax
	case StaticMax:
		return &f.StaticMax
	case RuleBodySizeMax:
		return &f.RuleBodySizeMax
	}
	return nil
}

// Get returns the value of p. Unknown keys read as zero.
func (f Frame) Get(p Param) int {
	if v := f.field(p); v != nil {
		return *v
	}
	return 0
}

// Set assigns the value of p.
func (f *Frame) Set(p Param, v int) error {
	ptr := f.field(p)
	if ptr == nil {
		return fmt.Errorf("%w: %q", ErrUnknownParam, p)
	}
	*ptr = v
	return nil
}

// Const is one named integer constant handed to the solver.
type Const struct {
	Name  string
	Value int
}

// Consts lists the frame as solver constants in canonical key order.
func (f Frame) Consts() []Const {
	out := make([]Const, len(Params))
	for i, p := range Params {
		out[i] = Const{Name: string(p), Value: f.Get(p)}
	}
	return out
}

// String renders the frame as key=value pairs in canonical order.
func (f Frame) String() string {
	parts := make([]string, len(Params))
	for i, p := range Params {
		parts[i] = fmt.Sprintf("%s=%d", p, f.Get(p))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// #endregion frame

// #region overrides

var (
	// ErrUnknownParam is returned for keys outside the closed frame key set.
	ErrUnknownParam = errors.New("unknown frame parameter")
	// ErrBadOverride is returned for initial-value assignments not of the form <const>=<int>.
	ErrBadOverride = errors.New("assignment of initial constant value must be of the form <const>=<int>")
)

// ParseOverride parses a "<const>=<int>" assignment for one frame key.
func ParseOverride(s string) (Param, int, error) {
	parts := strings.Split(s, "=")
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("%w: %q", ErrBadOverride, s)
	}
	p := Param(strings.TrimSpace(parts[0]))
	if !p.Valid() {
		return "", 0, fmt.Errorf("%w: %q", ErrBadOverride, s)
	}
	v, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", ErrBadOverride, s)
	}
	return p, v, nil
}

// #endregion overrides
