// Package fetch implements the fetch-projection tree of spec §3/§4.I:
// the shape a query's `fetch` clause projects query results into,
// independent of the relational/graph pipeline that produces them.
package fetch

// Kind tags which variant a Fetch node holds (spec §3 "Fetch. Tree:
// Leaf, List, Object").
type Kind string

const (
	KindLeaf   Kind = "leaf"
	KindList   Kind = "list"
	KindObject Kind = "object"
)

// ValueType names a primitive value type a Leaf may resolve to. Kept as
// a plain string here (rather than importing the sibling query package)
// since fetch trees are self-contained and must not depend back on the
// pipeline/constraint model.
type ValueType struct {
	Name string
}

// Fetch is one node of the projection tree.
type Fetch struct {
	kind Kind

	leafAnnotations []ValueType
	listElement     *Fetch
	objectFields    map[string]*Fetch
}

// NewLeaf builds a Leaf node carrying the possible value types the
// projected expression may resolve to.
func NewLeaf(annotations []ValueType) *Fetch {
	return &Fetch{kind: KindLeaf, leafAnnotations: annotations}
}

// NewList builds a List node wrapping element as the per-item shape.
func NewList(element *Fetch) *Fetch {
	return &Fetch{kind: KindList, listElement: element}
}

// NewObject builds an Object node from a field-name to sub-tree mapping.
func NewObject(fields map[string]*Fetch) *Fetch {
	cp := make(map[string]*Fetch, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return &Fetch{kind: KindObject, objectFields: cp}
}

// Variant reports which of Leaf/List/Object this node is.
func (f *Fetch) Variant() Kind {
	return f.kind
}

// AsLeaf returns the Leaf's possible value types.
func (f *Fetch) AsLeaf() ([]ValueType, bool) {
	if f.kind != KindLeaf {
		return nil, false
	}
	return f.leafAnnotations, true
}

// Element returns a List node's per-item sub-tree.
func (f *Fetch) Element() (*Fetch, bool) {
	if f.kind != KindList {
		return nil, false
	}
	return f.listElement, true
}

// Get returns an Object node's named field, if present.
func (f *Fetch) Get(field string) (*Fetch, bool) {
	if f.kind != KindObject {
		return nil, false
	}
	sub, ok := f.objectFields[field]
	return sub, ok
}

// Fields returns an Object node's field names, in no particular order.
func (f *Fetch) Fields() []string {
	if f.kind != KindObject {
		return nil
	}
	out := make([]string, 0, len(f.objectFields))
	for name := range f.objectFields {
		out = append(out, name)
	}
	return out
}
