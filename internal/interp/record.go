package interp

import (
	"fmt"
	"io"
	"strings"
)

// #region record

// Record is the durable, text-and-number form of an Interpretation.
type Record struct {
	Types        []string            `json:"types"`
	Objects      []string            `json:"objects"`
	Variables    []string            `json:"variables"`
	Predicates   []string            `json:"predicates"`
	Constraints  []string            `json:"constraints"`
	InitialState []string            `json:"initial_state"`
	Rules        []string            `json:"rules"`
	Incorrect    int                 `json:"num_incorrect"`
	Cost         int                 `json:"cost"`
	Time         float64             `json:"time"`
	Facts        map[string][]string `json:"facts,omitempty"`
}

// Record serialises the interpretation. Entities are rendered as term:type.
func (in *Interpretation) Record() Record {
	rec := Record{
		Types:        cloneStrings(in.Types),
		Objects:      entityStrings(in.Objects),
		Variables:    entityStrings(in.Variables),
		Predicates:   entityStrings(in.Predicates),
		Constraints:  cloneStrings(in.Constraints),
		InitialState: cloneStrings(in.InitialState),
		Rules:        in.RuleStrings(),
		Incorrect:    in.Incorrect,
		Cost:         in.Cost,
		Time:         in.FoundAt.Seconds(),
		Facts:        make(map[string][]string, len(in.Facts)),
	}
	for sig, facts := range in.Facts {
		strs := make([]string, len(facts))
		for i, f := range facts {
			strs[i] = f.String()
		}
		rec.Facts[sig.String()] = strs
	}
	return rec
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	out := r
	out.Types = cloneStrings(r.Types)
	out.Objects = cloneStrings(r.Objects)
	out.Variables = cloneStrings(r.Variables)
	out.Predicates = cloneStrings(r.Predicates)
	out.Constraints = cloneStrings(r.Constraints)
	out.InitialState = cloneStrings(r.InitialState)
	out.Rules = cloneStrings(r.Rules)
	if r.Facts != nil {
		out.Facts = make(map[string][]string, len(r.Facts))
		for k, v := range r.Facts {
			out.Facts[k] = cloneStrings(v)
		}
	}
	return out
}

func entityStrings(es []Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.String()
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// #endregion record

// #region report

const (
	reportHeader = "-----------------------------------------------------------"
	reportFooter = "----------------------------------------------------------"
)

// WriteReport prints a record in the operator-facing layout.
func WriteReport(w io.Writer, rec Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nFound unified interpretation with cost %d. Number of incorrectly predicted hidden states: %d.\n",
		reportHeader, rec.Cost, rec.Incorrect)
	section := func(title string, lines ...string) {
		b.WriteString(title)
		b.WriteString(":\n")
		for _, l := range lines {
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}
	section("Types", strings.Join(rec.Types, " "))
	section("Objects", strings.Join(rec.Objects, " "))
	section("Variables", strings.Join(rec.Variables, " "))
	section("Predicates", strings.Join(rec.Predicates, " "))
	section("Constraints", constraintLines(rec)...)
	section("Initial State", strings.Join(rec.InitialState, " "))
	section("Rules", rec.Rules...)
	b.WriteString(reportFooter)
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

// constraintLines prints xor and exist facts on separate lines. Records
// without raw facts fall back to the merged list.
func constraintLines(rec Record) []string {
	if rec.Facts == nil {
		return []string{strings.Join(rec.Constraints, " ")}
	}
	return []string{
		strings.Join(rec.Facts[SigExclusion.String()], " "),
		strings.Join(rec.Facts[SigExistence.String()], " "),
	}
}

// #endregion report
