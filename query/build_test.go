package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-driver-go/query/fetch"
)

func name(s string) *string { return &s }

func simpleMatchSpec() AnalyzedQuerySpec {
	x := Variable(0)
	return AnalyzedQuerySpec{
		Pipeline: PipelineSpec{
			Stages: []Stage{
				{Kind: StageMatch, Block: 0},
				{Kind: StageSelect, SelectVars: []Variable{x}},
			},
			Conjunctions: []ConjunctionSpec{
				{
					Constraints: []Constraint{
						{Kind: ConstraintIsa, Left: ConstraintVertex{Kind: VertexVariable, Variable: x}, Right: ConstraintVertex{Kind: VertexLabel, Label: Type{Label: "person"}}, Exactness: Subtypes},
					},
					Annotations: map[Variable]VariableAnnotations{
						x: {Kind: AnnotationInstance, Instance: []Type{{Label: "person"}}},
					},
				},
			},
			VariableNames: map[Variable]*string{x: name("x")},
		},
	}
}

func TestBuild_ValidQuerySucceeds(t *testing.T) {
	q, err := Build(simpleMatchSpec())
	require.NoError(t, err)
	require.NotNil(t, q)

	stages := q.Pipeline().Stages()
	require.Len(t, stages, 2)

	block, ok := stages[0].AsBlock()
	require.True(t, ok)
	assert.Equal(t, ConjunctionID(0), block)

	conj, ok := q.Pipeline().Conjunction(block)
	require.True(t, ok)
	require.Len(t, conj.Constraints(), 1)

	left, right, exactness, ok := conj.Constraints()[0].AsIsaSubOwnsRelatesPlays()
	require.True(t, ok)
	v, ok := left.AsVariable()
	require.True(t, ok)
	assert.Equal(t, Variable(0), v)
	label, ok := right.AsLabel()
	require.True(t, ok)
	assert.Equal(t, "person", label.Label)
	assert.Equal(t, Subtypes, exactness)
}

func TestBuild_FailsOnUnresolvedConjunctionID(t *testing.T) {
	spec := simpleMatchSpec()
	spec.Pipeline.Stages[0].Block = 7 // out of range

	_, err := Build(spec)
	assert.Error(t, err)
}

func TestBuild_FailsOnMissingVariableName(t *testing.T) {
	spec := simpleMatchSpec()
	spec.Pipeline.VariableNames = map[Variable]*string{} // x has no entry

	_, err := Build(spec)
	assert.Error(t, err)
}

func TestBuild_AllowsAnonymousVariableName(t *testing.T) {
	spec := simpleMatchSpec()
	spec.Pipeline.VariableNames = map[Variable]*string{0: nil}

	q, err := Build(spec)
	require.NoError(t, err)

	got, ok := q.Pipeline().VariableName(0)
	require.True(t, ok)
	assert.Equal(t, "", got)
}

func TestBuild_OrConstraintReferencesBranches(t *testing.T) {
	x := Variable(0)
	spec := AnalyzedQuerySpec{
		Pipeline: PipelineSpec{
			Stages: []Stage{{Kind: StageMatch, Block: 0}},
			Conjunctions: []ConjunctionSpec{
				{Constraints: []Constraint{{Kind: ConstraintOr, Branches: []ConjunctionID{1, 2}}}},
				{Constraints: []Constraint{{Kind: ConstraintIsa, Left: ConstraintVertex{Kind: VertexVariable, Variable: x}, Right: ConstraintVertex{Kind: VertexLabel, Label: Type{Label: "a"}}}}},
				{Constraints: []Constraint{{Kind: ConstraintIsa, Left: ConstraintVertex{Kind: VertexVariable, Variable: x}, Right: ConstraintVertex{Kind: VertexLabel, Label: Type{Label: "b"}}}}},
			},
			VariableNames: map[Variable]*string{x: name("x")},
		},
	}

	q, err := Build(spec)
	require.NoError(t, err)

	conj, _ := q.Pipeline().Conjunction(0)
	branches, ok := conj.Constraints()[0].AsOr()
	require.True(t, ok)
	assert.Equal(t, []ConjunctionID{1, 2}, branches)
}

func TestFetch_TreeNavigation(t *testing.T) {
	leaf := fetch.NewLeaf([]fetch.ValueType{{Name: "string"}})
	obj := fetch.NewObject(map[string]*fetch.Fetch{"name": leaf})
	list := fetch.NewList(obj)

	assert.Equal(t, fetch.KindList, list.Variant())
	elem, ok := list.Element()
	require.True(t, ok)
	assert.Equal(t, fetch.KindObject, elem.Variant())

	got, ok := elem.Get("name")
	require.True(t, ok)
	vts, ok := got.AsLeaf()
	require.True(t, ok)
	assert.Equal(t, "string", vts[0].Name)
}
