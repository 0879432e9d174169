// Package interp turns the raw atoms of a solver candidate into a typed,
// readable unified interpretation, and defines its durable form.
package interp

import (
	"fmt"
	"time"

	"github.com/namcsi/apperception-clingo/internal/asp"
)

// #region dispatch

type builder struct {
	in        *Interpretation
	isa       map[string]string
	heads     []asp.Term
	body      []asp.Term
	incorrect []asp.Term
}

type handler func(b *builder, fact asp.Term)

func collect(b *builder, fact asp.Term) {
	sig := fact.Signature()
	b.in.Facts[sig] = append(b.in.Facts[sig], fact)
}

// handlers maps each known signature to the container it fills. Every fact
// is also kept in Facts by collect before dispatch.
var handlers = map[asp.Signature]handler{
	SigType: func(b *builder, f asp.Term) {
		b.in.Types = append(b.in.Types, f.String())
	},
	SigIsa: func(b *builder, f asp.Term) {
		b.isa[f.Args[1].String()] = f.Args[0].String()
	},
	SigExclusion: func(b *builder, f asp.Term) {
		b.in.Constraints = append(b.in.Constraints, f.String())
	},
	SigRuleHead: func(b *builder, f asp.Term) {
		b.heads = append(b.heads, f)
	},
	SigRuleBody: func(b *builder, f asp.Term) {
		b.body = append(b.body, f)
	},
	SigInit: func(b *builder, f asp.Term) {
		b.in.InitialState = append(b.in.InitialState, f.Args[0].String())
	},
	SigNumIncorrect: func(b *builder, f asp.Term) {
		b.incorrect = append(b.incorrect, f)
	},
}

// #endregion dispatch

// #region extract

// Extract classifies the facts of one candidate and reconstructs its
// interpretation. It is a pure function of its input and allocates a fresh
// Interpretation on every call.
func Extract(facts []asp.Term, cost int, foundAt time.Duration) (*Interpretation, error) {
	b := &builder{
		in: &Interpretation{
			Cost:    cost,
			FoundAt: foundAt,
			Facts:   make(map[asp.Signature][]asp.Term),
		},
		isa: make(map[string]string),
	}

	for _, f := range facts {
		if f.Kind != asp.KindFunction {
			continue
		}
		sig := f.Signature()
		if !known(sig) {
			continue
		}
		collect(b, f)
		if h, ok := handlers[sig]; ok {
			h(b, f)
		}
	}

	if len(b.incorrect) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one %s fact, got %d", ErrContract, SigNumIncorrect, len(b.incorrect))
	}
	n := b.incorrect[0].Args[0]
	if n.Kind != asp.KindNumber {
		return nil, fmt.Errorf("%w: %s argument is not a number: %s", ErrContract, SigNumIncorrect, b.incorrect[0])
	}
	b.in.Incorrect = n.Number

	// Typed entities need the complete isa table, so they are resolved
	// after classification.
	b.in.Objects = b.typed(SigObject)
	b.in.Variables = b.typed(SigVariable)
	b.in.Predicates = b.typed(SigPredicate)
	for _, f := range b.in.Facts[SigExistence] {
		b.in.Constraints = append(b.in.Constraints, f.String())
	}

	for _, head := range b.heads {
		b.in.Rules = append(b.in.Rules, b.rule(head))
	}
	return b.in, nil
}

func known(sig asp.Signature) bool {
	for _, s := range Signatures {
		if s == sig {
			return true
		}
	}
	return false
}

func (b *builder) typed(sig asp.Signature) []Entity {
	facts := b.in.Facts[sig]
	out := make([]Entity, len(facts))
	for i, f := range facts {
		term := f.String()
		out[i] = Entity{Term: term, Type: b.isa[term]}
	}
	return out
}

// rule gathers the body atoms whose first argument equals the head's rule
// identifier. A linear scan per rule is fine: theory size is bounded by the
// frame, not by the length of the observation sequence.
func (b *builder) rule(head asp.Term) Rule {
	id := head.Args[0]
	r := Rule{
		ID:   id.String(),
		Kind: Static,
		Head: head.Args[1].String(),
	}
	if id.Match(causalTag, 1) {
		r.Kind = Causal
	}
	for _, atom := range b.body {
		if atom.Args[0].Equal(id) {
			r.Body = append(r.Body, atom.Args[1].String())
		}
	}
	return r
}

// #endregion extract
