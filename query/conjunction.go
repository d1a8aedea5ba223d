package query

// ConstraintKind tags which variant a Constraint holds (spec §3
// "Constraint. Tagged union of...").
type ConstraintKind string

const (
	ConstraintIsa          ConstraintKind = "isa"
	ConstraintHas          ConstraintKind = "has"
	ConstraintLinks        ConstraintKind = "links"
	ConstraintSub          ConstraintKind = "sub"
	ConstraintOwns         ConstraintKind = "owns"
	ConstraintRelates      ConstraintKind = "relates"
	ConstraintPlays        ConstraintKind = "plays"
	ConstraintFunctionCall ConstraintKind = "function_call"
	ConstraintExpression   ConstraintKind = "expression"
	ConstraintIs           ConstraintKind = "is"
	ConstraintIid          ConstraintKind = "iid"
	ConstraintComparison   ConstraintKind = "comparison"
	ConstraintKindKind     ConstraintKind = "kind"
	ConstraintLabel        ConstraintKind = "label"
	ConstraintValue        ConstraintKind = "value"
	ConstraintOr           ConstraintKind = "or"
	ConstraintNot          ConstraintKind = "not"
	ConstraintTry          ConstraintKind = "try"
)

// ConstraintExactness qualifies type-membership constraints (spec §3:
// "Subtypes for all relations except Isa and Sub which carry meaningful
// Exact semantics today; a '!' suffix in source maps to Exact").
type ConstraintExactness string

const (
	Exact    ConstraintExactness = "exact"
	Subtypes ConstraintExactness = "subtypes"
)

// ConstraintVertexKind tags a ConstraintVertex's variant (spec §3
// "ConstraintVertex").
type ConstraintVertexKind string

const (
	VertexVariable  ConstraintVertexKind = "variable"
	VertexLabel     ConstraintVertexKind = "label"
	VertexValue     ConstraintVertexKind = "value"
	VertexNamedRole ConstraintVertexKind = "named_role"
)

// ConstraintVertex is one endpoint of a constraint: a variable, a
// literal type label, a literal value, or a named role player.
type ConstraintVertex struct {
	Kind ConstraintVertexKind

	Variable Variable  // VertexVariable
	Label    Type      // VertexLabel
	Value    any       // VertexValue
	RoleVar  Variable  // VertexNamedRole
	RoleName string    // VertexNamedRole
}

// AsVariable returns the variable for a VertexVariable vertex.
func (v ConstraintVertex) AsVariable() (Variable, bool) {
	if v.Kind != VertexVariable {
		return 0, false
	}
	return v.Variable, true
}

// AsLabel returns the type label for a VertexLabel vertex.
func (v ConstraintVertex) AsLabel() (Type, bool) {
	if v.Kind != VertexLabel {
		return Type{}, false
	}
	return v.Label, true
}

// AsValue returns the literal value for a VertexValue vertex.
func (v ConstraintVertex) AsValue() (any, bool) {
	if v.Kind != VertexValue {
		return nil, false
	}
	return v.Value, true
}

// AsNamedRole returns the role-player variable and role name for a
// VertexNamedRole vertex.
func (v ConstraintVertex) AsNamedRole() (Variable, string, bool) {
	if v.Kind != VertexNamedRole {
		return 0, "", false
	}
	return v.RoleVar, v.RoleName, true
}

// Comparator is the operator of a Comparison constraint.
type Comparator string

const (
	CompareEQ  Comparator = "=="
	CompareNEQ Comparator = "!="
	CompareLT  Comparator = "<"
	CompareLTE Comparator = "<="
	CompareGT  Comparator = ">"
	CompareGTE Comparator = ">="
	CompareLike Comparator = "like"
	CompareContains Comparator = "contains"
)

// Constraint is one tagged-union element of a Conjunction's constraint
// list (spec §3 "Constraint"). As with Stage, only the fields relevant
// to Kind are populated.
type Constraint struct {
	Kind      ConstraintKind
	Span      *Span // optional source span (spec §3)
	Exactness ConstraintExactness

	// Isa/Sub/Owns/Relates/Plays: two-vertex relationship.
	Left  ConstraintVertex
	Right ConstraintVertex

	// Has: owner + attribute.
	Owner     ConstraintVertex
	Attribute ConstraintVertex

	// Links: relation/player/role triple.
	Relation ConstraintVertex
	Player   ConstraintVertex
	Role     ConstraintVertex

	// FunctionCall.
	FunctionName string
	Assigned     []ConstraintVertex
	Arguments    []ConstraintVertex

	// Expression.
	ExpressionText string

	// Is: lhs/rhs use Left/Right.

	// Iid.
	Concept ConstraintVertex
	IID     []byte

	// Comparison.
	Comparator Comparator

	// Kind (the meta-constraint, not this struct's own Kind field):
	// asserts a variable is of schema-kind MetaKind (entity/relation/...).
	MetaKind string
	Type     ConstraintVertex

	// Label: type <-> label assertion.
	LabelText string

	// Value: attribute-type <-> value-type assertion.
	AttributeType Type
	ValueType     ValueType

	// Or/Not/Try reference other conjunctions by ID.
	Branches []ConjunctionID // Or
	Nested   ConjunctionID   // Not, Try
}

// AsIsaSubOwnsRelatesPlays returns the two vertices and exactness for
// any of Isa/Sub/Owns/Relates/Plays.
func (c Constraint) AsIsaSubOwnsRelatesPlays() (ConstraintVertex, ConstraintVertex, ConstraintExactness, bool) {
	switch c.Kind {
	case ConstraintIsa, ConstraintSub, ConstraintOwns, ConstraintRelates, ConstraintPlays:
		return c.Left, c.Right, c.Exactness, true
	default:
		return ConstraintVertex{}, ConstraintVertex{}, "", false
	}
}

// AsHas returns the owner/attribute pair for a Has constraint.
func (c Constraint) AsHas() (ConstraintVertex, ConstraintVertex, bool) {
	if c.Kind != ConstraintHas {
		return ConstraintVertex{}, ConstraintVertex{}, false
	}
	return c.Owner, c.Attribute, true
}

// AsLinks returns the relation/player/role triple for a Links constraint.
func (c Constraint) AsLinks() (ConstraintVertex, ConstraintVertex, ConstraintVertex, bool) {
	if c.Kind != ConstraintLinks {
		return ConstraintVertex{}, ConstraintVertex{}, ConstraintVertex{}, false
	}
	return c.Relation, c.Player, c.Role, true
}

// AsFunctionCall returns the function name, assigned vertices, and
// arguments for a FunctionCall constraint.
func (c Constraint) AsFunctionCall() (string, []ConstraintVertex, []ConstraintVertex, bool) {
	if c.Kind != ConstraintFunctionCall {
		return "", nil, nil, false
	}
	return c.FunctionName, c.Assigned, c.Arguments, true
}

// AsExpression returns the expression text, assigned vertex, and
// arguments for an Expression constraint.
func (c Constraint) AsExpression() (string, ConstraintVertex, []ConstraintVertex, bool) {
	if c.Kind != ConstraintExpression {
		return "", ConstraintVertex{}, nil, false
	}
	assigned := ConstraintVertex{}
	if len(c.Assigned) > 0 {
		assigned = c.Assigned[0]
	}
	return c.ExpressionText, assigned, c.Arguments, true
}

// AsIs returns the lhs/rhs vertices for an Is constraint.
func (c Constraint) AsIs() (ConstraintVertex, ConstraintVertex, bool) {
	if c.Kind != ConstraintIs {
		return ConstraintVertex{}, ConstraintVertex{}, false
	}
	return c.Left, c.Right, true
}

// AsIid returns the concept vertex and IID bytes for an Iid constraint.
func (c Constraint) AsIid() (ConstraintVertex, []byte, bool) {
	if c.Kind != ConstraintIid {
		return ConstraintVertex{}, nil, false
	}
	return c.Concept, c.IID, true
}

// AsComparison returns the lhs/rhs vertices and comparator for a
// Comparison constraint.
func (c Constraint) AsComparison() (ConstraintVertex, ConstraintVertex, Comparator, bool) {
	if c.Kind != ConstraintComparison {
		return ConstraintVertex{}, ConstraintVertex{}, "", false
	}
	return c.Left, c.Right, c.Comparator, true
}

// AsKind returns the meta-kind name and type vertex for a Kind
// constraint.
func (c Constraint) AsKind() (string, ConstraintVertex, bool) {
	if c.Kind != ConstraintKindKind {
		return "", ConstraintVertex{}, false
	}
	return c.MetaKind, c.Type, true
}

// AsLabel returns the type vertex and label text for a Label constraint.
func (c Constraint) AsLabel() (ConstraintVertex, string, bool) {
	if c.Kind != ConstraintLabel {
		return ConstraintVertex{}, "", false
	}
	return c.Type, c.LabelText, true
}

// AsValue returns the attribute type and value type for a Value
// constraint.
func (c Constraint) AsValue() (Type, ValueType, bool) {
	if c.Kind != ConstraintValue {
		return Type{}, ValueType{}, false
	}
	return c.AttributeType, c.ValueType, true
}

// AsOr returns the branch ConjunctionIDs for an Or constraint.
func (c Constraint) AsOr() ([]ConjunctionID, bool) {
	if c.Kind != ConstraintOr {
		return nil, false
	}
	return c.Branches, true
}

// AsNot returns the negated ConjunctionID for a Not constraint.
func (c Constraint) AsNot() (ConjunctionID, bool) {
	if c.Kind != ConstraintNot {
		return 0, false
	}
	return c.Nested, true
}

// AsTry returns the optional ConjunctionID for a Try constraint.
func (c Constraint) AsTry() (ConjunctionID, bool) {
	if c.Kind != ConstraintTry {
		return 0, false
	}
	return c.Nested, true
}

// vertices returns every ConstraintVertex this constraint carries,
// regardless of Kind, so Build's variable-name validation pass can walk
// them uniformly without a type switch per kind.
func (c Constraint) vertices() []ConstraintVertex {
	var out []ConstraintVertex
	appendIfSet := func(v ConstraintVertex) {
		if v.Kind != "" {
			out = append(out, v)
		}
	}
	appendIfSet(c.Left)
	appendIfSet(c.Right)
	appendIfSet(c.Owner)
	appendIfSet(c.Attribute)
	appendIfSet(c.Relation)
	appendIfSet(c.Player)
	appendIfSet(c.Role)
	appendIfSet(c.Concept)
	appendIfSet(c.Type)
	out = append(out, c.Assigned...)
	out = append(out, c.Arguments...)
	return out
}

// referencedConjunctions returns the ConjunctionIDs this constraint
// directly references (Or/Not/Try only), used by Build's DAG validation.
func (c Constraint) referencedConjunctions() []ConjunctionID {
	switch c.Kind {
	case ConstraintOr:
		return c.Branches
	case ConstraintNot, ConstraintTry:
		return []ConjunctionID{c.Nested}
	default:
		return nil
	}
}

// VariableAnnotationsKind tags which partition a VariableAnnotations
// value belongs to (spec §3 "Variable annotations", §4.I invariant:
// "partition into exactly one of Instance/Type/Value").
type VariableAnnotationsKind string

const (
	AnnotationInstance VariableAnnotationsKind = "instance"
	AnnotationType     VariableAnnotationsKind = "type"
	AnnotationValue    VariableAnnotationsKind = "value"
)

// VariableAnnotations is the type-inference result for one variable.
type VariableAnnotations struct {
	Kind      VariableAnnotationsKind
	Instance  []Type    // AnnotationInstance
	Types     []Type    // AnnotationType
	ValueType ValueType // AnnotationValue
}

// AsInstance returns the candidate instance types.
func (a VariableAnnotations) AsInstance() ([]Type, bool) {
	if a.Kind != AnnotationInstance {
		return nil, false
	}
	return a.Instance, true
}

// AsType returns the candidate schema types.
func (a VariableAnnotations) AsType() ([]Type, bool) {
	if a.Kind != AnnotationType {
		return nil, false
	}
	return a.Types, true
}

// AsValue returns the inferred value type.
func (a VariableAnnotations) AsValue() (ValueType, bool) {
	if a.Kind != AnnotationValue {
		return ValueType{}, false
	}
	return a.ValueType, true
}

// Conjunction is a set of constraints plus the per-variable annotations
// inferred for the variables appearing in it (spec §3 "Conjunction").
type Conjunction struct {
	constraints []Constraint
	annotations map[Variable]VariableAnnotations
}

// Constraints returns the conjunction's constraints in declaration
// order.
func (c *Conjunction) Constraints() []Constraint {
	return c.constraints
}

// AnnotatedVariables returns every variable this conjunction has
// annotations for.
func (c *Conjunction) AnnotatedVariables() []Variable {
	out := make([]Variable, 0, len(c.annotations))
	for v := range c.annotations {
		out = append(out, v)
	}
	return out
}

// VariableAnnotations returns the annotations for v within this
// conjunction.
func (c *Conjunction) VariableAnnotations(v Variable) (VariableAnnotations, bool) {
	a, ok := c.annotations[v]
	return a, ok
}
