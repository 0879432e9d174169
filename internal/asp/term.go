// Package asp models the ground terms a clingo-compatible solver prints for
// shown atoms, and parses them back from their textual form.
package asp

import (
	"fmt"
	"strconv"
	"strings"
)

// #region kind

// Kind discriminates the shapes a ground term can take.
type Kind int

const (
	KindFunction Kind = iota // constants, compound terms and tuples (empty name)
	KindNumber
	KindString
	KindInfimum
	KindSupremum
)

// #endregion kind

// #region term

// Term is an immutable ground term. Facts emitted by the solver are terms of
// KindFunction whose name is the predicate.
type Term struct {
	Kind   Kind
	Name   string
	Args   []Term
	Number int
	Str    string
}

// Fn builds a function term.
func Fn(name string, args ...Term) Term {
	return Term{Kind: KindFunction, Name: name, Args: args}
}

// Num builds a number term.
func Num(n int) Term {
	return Term{Kind: KindNumber, Number: n}
}

// Str builds a string term.
func Str(s string) Term {
	return Term{Kind: KindString, Str: s}
}

// Tuple builds an unnamed function term.
func Tuple(args ...Term) Term {
	return Term{Kind: KindFunction, Args: args}
}

// Arity returns the number of arguments of a function term, zero otherwise.
func (t Term) Arity() int {
	if t.Kind != KindFunction {
		return 0
	}
	return len(t.Args)
}

// Match reports whether t is a function term with the given name and arity.
func (t Term) Match(name string, arity int) bool {
	return t.Kind == KindFunction && t.Name == name && len(t.Args) == arity
}

// Signature returns the name/arity pair of a function term.
func (t Term) Signature() Signature {
	return Signature{Name: t.Name, Arity: t.Arity()}
}

// Equal reports structural equality.
func (t Term) Equal(o Term) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindNumber:
		return t.Number == o.Number
	case KindString:
		return t.Str == o.Str
	case KindFunction:
		if t.Name != o.Name || len(t.Args) != len(o.Args) {
			return false
		}
		for i := range t.Args {
			if !t.Args[i].Equal(o.Args[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders the term the way clingo prints it.
func (t Term) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t Term) write(b *strings.Builder) {
	switch t.Kind {
	case KindNumber:
		b.WriteString(strconv.Itoa(t.Number))
	case KindString:
		b.WriteByte('"')
		b.WriteString(escape(t.Str))
		b.WriteByte('"')
	case KindInfimum:
		b.WriteString("#inf")
	case KindSupremum:
		b.WriteString("#sup")
	case KindFunction:
		b.WriteString(t.Name)
		if len(t.Args) == 0 && t.Name != "" {
			return
		}
		b.WriteByte('(')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			a.write(b)
		}
		if t.Name == "" && len(t.Args) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	}
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return r.Replace(s)
}

// #endregion term

// #region signature

// Signature identifies a predicate by name and arity.
type Signature struct {
	Name  string
	Arity int
}

// String renders name/arity.
func (s Signature) String() string {
	return fmt.Sprintf("%s/%d", s.Name, s.Arity)
}

// #endregion signature
