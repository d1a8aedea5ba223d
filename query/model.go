// Package query implements the analyzed-query model of spec §4.I: an
// immutable, in-memory representation of a parsed, type-inferred query
// returned by the server's analyze operation. Cross-references inside a
// Pipeline are by index rather than pointer — a ConjunctionID is an
// offset into the owning Pipeline's conjunction arena — so the whole
// structure can be built, validated once at construction time, and
// walked afterward without re-entering the server.
//
// The struct shapes here follow the teacher's flat-struct-plus-typed-Kind
// convention used throughout pkg/unifiedmodel (ObjectType, ConstraintType
// string enums with a struct carrying every variant's fields as optional
// pointers) rather than Go interface-based sum types, since the pack
// consistently reaches for that shape when modeling a tagged union meant
// to be introspected and round-tripped rather than dispatched on via
// method sets.
package query

import (
	"github.com/redbco/redb-driver-go/internal/driererr"
	"github.com/redbco/redb-driver-go/query/fetch"
)

// Variable is an opaque identifier valid only within the Pipeline that
// defines it (spec §3 "Variables are opaque identifiers").
type Variable uint32

// ConjunctionID indexes into a Pipeline's conjunction arena.
type ConjunctionID uint32

// Type names a schema type (entity/relation/attribute type label).
type Type struct {
	Label string
}

// ValueType names a primitive value type (e.g. "string", "long",
// "datetime").
type ValueType struct {
	Name string
}

// Span locates a constraint in the original query text (spec §3
// "optional source span").
type Span struct {
	Begin int
	End   int
}

// AnalyzedQuery is the root of the model (spec §3 "Analyzed query").
// Once constructed it is never mutated; Build is the only way to obtain
// one, and it either returns a fully valid query or an error — no
// partially built AnalyzedQuery is ever exposed (spec §4.I "Failure").
type AnalyzedQuery struct {
	pipeline    Pipeline
	preamble    []Function
	fetch       *fetch.Fetch
	annotations Annotations
}

// Annotations mirrors spec §3's top-level Annotations bag: the root
// pipeline's per-variable annotations, kept distinct from a function
// body's own so accessors never have to guess which scope a Variable
// belongs to.
type Annotations struct {
	Variables map[Variable]VariableAnnotations
}

// Pipeline navigates the pipeline's stages and conjunctions.
func (q *AnalyzedQuery) Pipeline() *Pipeline {
	return &q.pipeline
}

// Preamble iterates the query's function definitions.
func (q *AnalyzedQuery) Preamble() []Function {
	return q.preamble
}

// Fetch returns the fetch-projection tree, or nil if this query has none
// (spec §4.I "fetch() -> Option<&Fetch>").
func (q *AnalyzedQuery) Fetch() *fetch.Fetch {
	return q.fetch
}

// Annotations returns the root-level variable annotations.
func (q *AnalyzedQuery) Annotations() Annotations {
	return q.annotations
}

// Pipeline is an ordered list of stages plus a pool of conjunctions
// indexed by ConjunctionID and a variable-name table (spec §3
// "Pipeline").
type Pipeline struct {
	stages        []Stage
	conjunctions  []Conjunction
	variableNames map[Variable]*string // nil entry value => anonymous $_
}

// Stages returns the pipeline's stages in declaration order.
func (p *Pipeline) Stages() []Stage {
	return p.stages
}

// Conjunction looks up a conjunction by ID, returning false if it does
// not resolve within this pipeline.
func (p *Pipeline) Conjunction(id ConjunctionID) (*Conjunction, bool) {
	if int(id) < 0 || int(id) >= len(p.conjunctions) {
		return nil, false
	}
	return &p.conjunctions[id], true
}

// VariableName returns the source name for a variable, or "" with ok
// false if the variable has no entry in this pipeline at all. A known
// but anonymous variable ($_) returns ("", true).
func (p *Pipeline) VariableName(v Variable) (string, bool) {
	name, ok := p.variableNames[v]
	if !ok {
		return "", false
	}
	if name == nil {
		return "", true
	}
	return *name, true
}

// resolvesConjunction reports whether id is a valid index into this
// pipeline's conjunction arena, used during Build's validation pass.
func (p *Pipeline) resolvesConjunction(id ConjunctionID) bool {
	return int(id) >= 0 && int(id) < len(p.conjunctions)
}

// errInvalidCasting builds an InvalidConceptCasting error naming an
// accessor and the variant it was called on. No accessor in this package
// returns it: the typed accessors report a wrong variant through their ok
// result.
func errInvalidCasting(accessor string, got string) error {
	return driererr.New(driererr.KindInvalidConceptCasting, "%s called on non-matching variant %q", accessor, got)
}
