package interp

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namcsi/apperception-clingo/internal/asp"
)

// helper: parse an answer line into facts.
func facts(t *testing.T, line string) []asp.Term {
	t.Helper()
	terms, err := asp.ParseAll(line)
	require.NoError(t, err)
	return terms
}

func TestExtract_CausalRuleRendering(t *testing.T) {
	in, err := Extract(facts(t, `rule_head(causal(1),p) rule_body(causal(1),q) rule_body(causal(1),s) num_incorrect(0)`), 3, time.Second)
	require.NoError(t, err)

	require.Len(t, in.Rules, 1)
	assert.Equal(t, Causal, in.Rules[0].Kind)
	assert.Equal(t, "p ::- q, s", in.Rules[0].String())
}

func TestExtract_StaticRuleAndBodyAssociation(t *testing.T) {
	line := `rule_body(static(2),b2) rule_head(causal(1),h1) rule_body(causal(1),b1) ` +
		`rule_head(static(2),h2) rule_body(static(2),c2) rule_body(causal(3),x) num_incorrect(1)`
	in, err := Extract(facts(t, line), 7, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"h1 ::- b1", "h2 :- b2, c2"}, in.RuleStrings())
	assert.Equal(t, "static(2)", in.Rules[1].ID)
	assert.Equal(t, Static, in.Rules[1].Kind)
}

func TestExtract_RuleWithEmptyBody(t *testing.T) {
	in, err := Extract(facts(t, `rule_head(static(1),p) num_incorrect(0)`), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"p :- "}, in.RuleStrings())

	in, err = Extract(facts(t, `rule_head(causal(1),q) num_incorrect(0)`), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"q ::- "}, in.RuleStrings())
}

func TestExtract_TypedEntitiesAndCategories(t *testing.T) {
	line := `type(t_sensor) obj(obj_a) obj(obj_b) var(var_x) pred(c_on,1) ` +
		`isa(t_sensor,obj(obj_a)) isa(t_sensor,var(var_x)) isa(t_sensor,pred(c_on,1)) ` +
		`xor(c_on,c_off) exist(c_on) init(s(c_on,obj_a)) hold(s(c_on,obj_a),1) num_incorrect(2)`
	in, err := Extract(facts(t, line), 12, 1500*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, []string{"type(t_sensor)"}, in.Types)
	assert.Equal(t, []Entity{{Term: "obj(obj_a)", Type: "t_sensor"}, {Term: "obj(obj_b)"}}, in.Objects)
	assert.Equal(t, "var(var_x):t_sensor", in.Variables[0].String())
	assert.Equal(t, "pred(c_on,1):t_sensor", in.Predicates[0].String())
	assert.Equal(t, []string{"xor(c_on,c_off)", "exist(c_on)"}, in.Constraints)
	assert.Equal(t, []string{"s(c_on,obj_a)"}, in.InitialState)
	assert.Equal(t, 2, in.Incorrect)
	assert.Equal(t, 12, in.Cost)

	// Unclassified atoms are ignored.
	_, ok := in.Facts[asp.Signature{Name: "hold", Arity: 2}]
	assert.False(t, ok)
	assert.Len(t, in.Facts[SigIsa], 3)
}

func TestExtract_NumIncorrectContract(t *testing.T) {
	_, err := Extract(facts(t, `type(t1)`), 1, 0)
	assert.True(t, errors.Is(err, ErrContract))

	_, err = Extract(facts(t, `num_incorrect(1) num_incorrect(2)`), 1, 0)
	assert.True(t, errors.Is(err, ErrContract))

	_, err = Extract(facts(t, `num_incorrect(many)`), 1, 0)
	assert.True(t, errors.Is(err, ErrContract))

	in, err := Extract(facts(t, `num_incorrect(4)`), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, in.Incorrect)
}

func TestExtract_FreshAllocationPerCall(t *testing.T) {
	input := facts(t, `type(t1) num_incorrect(0)`)
	a, err := Extract(input, 1, 0)
	require.NoError(t, err)
	b, err := Extract(input, 1, 0)
	require.NoError(t, err)

	a.Types[0] = "mutated"
	assert.Equal(t, "type(t1)", b.Types[0])
}

func TestRecord_SerialisesAndClones(t *testing.T) {
	in, err := Extract(facts(t, `type(t1) obj(o1) isa(t1,obj(o1)) rule_head(causal(1),p) rule_body(causal(1),q) num_incorrect(0)`), 5, 2*time.Second)
	require.NoError(t, err)

	rec := in.Record()
	assert.Equal(t, []string{"obj(o1):t1"}, rec.Objects)
	assert.Equal(t, []string{"p ::- q"}, rec.Rules)
	assert.Equal(t, 2.0, rec.Time)
	assert.Equal(t, []string{"num_incorrect(0)"}, rec.Facts["num_incorrect/1"])
	assert.NotNil(t, rec.Variables)

	cp := rec.Clone()
	cp.Rules[0] = "changed"
	cp.Facts["type/1"][0] = "changed"
	assert.Equal(t, "p ::- q", rec.Rules[0])
	assert.Equal(t, "type(t1)", rec.Facts["type/1"][0])
}

func TestWriteReport(t *testing.T) {
	rec := Record{
		Types:   []string{"type(t1)"},
		Objects: []string{"obj(o1):t1"},
		Rules:   []string{"p ::- q", "r :- s"},
		Cost:    4,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, rec))

	out := buf.String()
	assert.Contains(t, out, "Found unified interpretation with cost 4. Number of incorrectly predicted hidden states: 0.")
	assert.Contains(t, out, "Objects:\nobj(o1):t1\n")
	assert.Contains(t, out, "Rules:\np ::- q\nr :- s\n")
	assert.Contains(t, out, "Constraints:\n\nInitial State:")
}

func TestWriteReport_ConstraintLines(t *testing.T) {
	in, err := Extract(facts(t, `xor(c_on,c_off) xor(c_a,c_b) exist(c_on) num_incorrect(0)`), 2, 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, in.Record()))
	assert.Contains(t, buf.String(), "Constraints:\nxor(c_on,c_off) xor(c_a,c_b)\nexist(c_on)\nInitial State:")
}

func TestWriteReport_ConstraintsWithoutFacts(t *testing.T) {
	rec := Record{Constraints: []string{"xor(a,b)", "exist(a)"}}
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, rec))
	assert.Contains(t, buf.String(), "Constraints:\nxor(a,b) exist(a)\nInitial State:")
}
