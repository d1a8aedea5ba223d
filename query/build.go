package query

import (
	"github.com/redbco/redb-driver-go/internal/driererr"
	"github.com/redbco/redb-driver-go/query/fetch"
)

// PipelineSpec is the decoded-but-unvalidated shape of a Pipeline, as it
// arrives from the server's analyze response before Build checks its
// internal references. The wire codec that produces one is out of scope
// (spec §1); this is the seam it decodes into.
type PipelineSpec struct {
	Stages        []Stage
	Conjunctions  []ConjunctionSpec
	VariableNames map[Variable]*string
}

// ConjunctionSpec is the unvalidated shape of a Conjunction.
type ConjunctionSpec struct {
	Constraints []Constraint
	Annotations map[Variable]VariableAnnotations
}

// FunctionSpec is the unvalidated shape of a Function.
type FunctionSpec struct {
	Name                string
	ArgumentVariables   []Variable
	ArgumentAnnotations []VariableAnnotations
	Body                PipelineSpec
	ReturnOperation     ReturnOperation
	ReturnAnnotations   []VariableAnnotations
}

// AnalyzedQuerySpec is the unvalidated shape of an AnalyzedQuery.
type AnalyzedQuerySpec struct {
	Pipeline    PipelineSpec
	Preamble    []FunctionSpec
	Fetch       *fetch.Fetch
	Annotations map[Variable]VariableAnnotations
}

// Build validates spec against the invariants of spec §4.I and, on
// success, returns an immutable AnalyzedQuery. On any failure it returns
// a nil query and an error — construction never exposes a partially
// built model (spec §4.I "No partial analyzed query is ever exposed").
func Build(spec AnalyzedQuerySpec) (*AnalyzedQuery, error) {
	pipeline, err := buildPipeline(spec.Pipeline)
	if err != nil {
		return nil, err
	}

	preamble := make([]Function, 0, len(spec.Preamble))
	for _, fnSpec := range spec.Preamble {
		body, err := buildPipeline(fnSpec.Body)
		if err != nil {
			return nil, driererr.Wrap(driererr.KindMissingResponseField, err, "function %q body invalid", fnSpec.Name)
		}
		preamble = append(preamble, Function{
			Name:                fnSpec.Name,
			ArgumentVariables:   fnSpec.ArgumentVariables,
			ArgumentAnnotations: fnSpec.ArgumentAnnotations,
			Body:                *body,
			ReturnOperation:     fnSpec.ReturnOperation,
			ReturnAnnotations:   fnSpec.ReturnAnnotations,
		})
	}

	return &AnalyzedQuery{
		pipeline: *pipeline,
		preamble: preamble,
		fetch:    spec.Fetch,
		annotations: Annotations{
			Variables: spec.Annotations,
		},
	}, nil
}

// buildPipeline validates one pipeline's internal references: every
// ConjunctionID reachable from a stage block or an Or/Not/Try constraint
// must resolve within the same pipeline, and every Variable appearing
// anywhere in it must have a name-table entry (spec §4.I invariants).
func buildPipeline(spec PipelineSpec) (*Pipeline, error) {
	conjunctions := make([]Conjunction, len(spec.Conjunctions))
	for i, cSpec := range spec.Conjunctions {
		conjunctions[i] = Conjunction{
			constraints: cSpec.Constraints,
			annotations: cSpec.Annotations,
		}
	}

	p := &Pipeline{
		stages:        spec.Stages,
		conjunctions:  conjunctions,
		variableNames: spec.VariableNames,
	}

	if err := validateConjunctionReferences(p); err != nil {
		return nil, err
	}
	if err := validateVariableAnnotationPartition(p); err != nil {
		return nil, err
	}
	if err := validateVariableNames(p); err != nil {
		return nil, err
	}

	return p, nil
}

// validateVariableNames enforces spec §4.I's "Every Variable appearing
// anywhere within a Pipeline MUST have a name lookup in that pipeline
// (the name itself may be None for anonymous $_)" — every variable
// referenced by a stage, a constraint vertex, or an annotation map key
// must have an entry in the pipeline's variable-name table, even if that
// entry maps to the anonymous placeholder.
func validateVariableNames(p *Pipeline) error {
	seen := make(map[Variable]struct{})
	collect := func(v Variable) { seen[v] = struct{}{} }

	for _, stage := range p.stages {
		for _, v := range stage.SelectVars {
			collect(v)
		}
		for _, sv := range stage.SortVars {
			collect(sv.Variable)
		}
		for _, v := range stage.DeletedVars {
			collect(v)
		}
		for _, v := range stage.GroupBy {
			collect(v)
		}
		for _, r := range stage.Reducers {
			collect(r.Assigned)
			collect(r.Argument)
		}
	}

	for ci := range p.conjunctions {
		for v := range p.conjunctions[ci].annotations {
			collect(v)
		}
		for _, c := range p.conjunctions[ci].constraints {
			for _, vertex := range c.vertices() {
				if variable, ok := vertex.AsVariable(); ok {
					collect(variable)
				}
				if roleVar, _, ok := vertex.AsNamedRole(); ok {
					collect(roleVar)
				}
			}
		}
	}

	for v := range seen {
		if _, ok := p.variableNames[v]; !ok {
			return driererr.New(driererr.KindMissingResponseField,
				"variable %d has no name-table entry in its owning pipeline", v)
		}
	}

	return nil
}

// validateConjunctionReferences walks every stage and every Or/Not/Try
// constraint, failing if any ConjunctionID does not resolve within p
// (spec §4.I "Every ConjunctionID appearing in a stage or in an
// Or/Not/Try constraint MUST resolve within the same Pipeline").
func validateConjunctionReferences(p *Pipeline) error {
	for _, stage := range p.stages {
		for _, id := range stage.referencedConjunctions() {
			if !p.resolvesConjunction(id) {
				return driererr.New(driererr.KindMissingResponseField,
					"stage %s references unresolved conjunction %d", stage.Kind, id)
			}
		}
	}

	for ci := range p.conjunctions {
		for _, c := range p.conjunctions[ci].constraints {
			for _, id := range c.referencedConjunctions() {
				if !p.resolvesConjunction(id) {
					return driererr.New(driererr.KindMissingResponseField,
						"constraint %s in conjunction %d references unresolved conjunction %d", c.Kind, ci, id)
				}
			}
		}
	}

	return nil
}

// validateVariableAnnotationPartition enforces spec §4.I's "Variable
// annotations partition into exactly one of Instance/Type/Value" — every
// annotation map entry must carry a recognized, single Kind.
func validateVariableAnnotationPartition(p *Pipeline) error {
	for ci := range p.conjunctions {
		for v, a := range p.conjunctions[ci].annotations {
			switch a.Kind {
			case AnnotationInstance, AnnotationType, AnnotationValue:
			default:
				return driererr.New(driererr.KindMissingResponseField,
					"variable %d in conjunction %d has unrecognized annotation kind %q", v, ci, a.Kind)
			}
		}
	}
	return nil
}
