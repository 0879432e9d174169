package interp

import (
	"errors"
	"strings"
	"time"

	"github.com/namcsi/apperception-clingo/internal/asp"
)

// ErrContract is returned when a candidate does not have the shape the
// meta-interpreters guarantee (for example no num_incorrect/1 fact).
var ErrContract = errors.New("solver output contract violation")

// #region signatures

// Signatures of the shown atoms that make up a unified interpretation.
var (
	SigType         = asp.Signature{Name: "type", Arity: 1}
	SigObject       = asp.Signature{Name: "obj", Arity: 1}
	SigVariable     = asp.Signature{Name: "var", Arity: 1}
	SigPredicate    = asp.Signature{Name: "pred", Arity: 2}
	SigIsa          = asp.Signature{Name: "isa", Arity: 2}
	SigExclusion    = asp.Signature{Name: "xor", Arity: 2}
	SigExistence    = asp.Signature{Name: "exist", Arity: 1}
	SigRuleHead     = asp.Signature{Name: "rule_head", Arity: 2}
	SigRuleBody     = asp.Signature{Name: "rule_body", Arity: 2}
	SigInit         = asp.Signature{Name: "init", Arity: 1}
	SigNumIncorrect = asp.Signature{Name: "num_incorrect", Arity: 1}
)

// Signatures lists every classified signature in report order.
var Signatures = []asp.Signature{
	SigType, SigObject, SigVariable, SigPredicate, SigIsa, SigExclusion,
	SigExistence, SigRuleHead, SigRuleBody, SigInit, SigNumIncorrect,
}

// causalTag marks rule identifiers of causal rules: causal(N).
const causalTag = "causal"

// #endregion signatures

// #region model

// RuleKind distinguishes causal rules (next-state) from static rules.
type RuleKind string

const (
	Causal RuleKind = "causal"
	Static RuleKind = "static"
)

// Entity is a declared object, variable or predicate with its type.
type Entity struct {
	Term string
	Type string
}

// String renders term:type, or just the term when no type was declared.
func (e Entity) String() string {
	if e.Type == "" {
		return e.Term
	}
	return e.Term + ":" + e.Type
}

// Rule is a reconstructed rule: its body atoms are exactly the rule_body
// facts sharing the rule's identifier, in emission order.
type Rule struct {
	ID   string
	Kind RuleKind
	Head string
	Body []string
}

// String renders "head ::- body" for causal rules and "head :- body" for
// static ones. An empty body keeps the arrow's trailing space.
func (r Rule) String() string {
	arrow := " :- "
	if r.Kind == Causal {
		arrow = " ::- "
	}
	return r.Head + arrow + strings.Join(r.Body, ", ")
}

// Interpretation is the typed view of one candidate solution.
type Interpretation struct {
	Types        []string
	Objects      []Entity
	Variables    []Entity
	Predicates   []Entity
	Constraints  []string // xor/2 facts, then exist/1 facts
	Rules        []Rule
	InitialState []string
	Incorrect    int
	Cost         int
	FoundAt      time.Duration

	// Facts keeps the raw classified atoms per signature, in emission order.
	Facts map[asp.Signature][]asp.Term
}

// RuleStrings renders every rule.
func (in *Interpretation) RuleStrings() []string {
	out := make([]string, len(in.Rules))
	for i, r := range in.Rules {
		out[i] = r.String()
	}
	return out
}

// #endregion model
