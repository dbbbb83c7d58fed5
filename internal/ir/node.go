package ir

import "fmt"

// Well-known field names shared by converters and the graph walker.
const (
	FieldRenderMaterial = "renderMaterial"
	FieldSchema         = "@schema"
	FieldOriginal       = "@original"
	FieldElements       = "elements"
)

// Field is one named, ordered member of a Node.
type Field struct {
	Name  string  `json:"name"`
	Value IRValue `json:"value"`
}

// Node is a typed record with an open set of fields. Field values may hold
// further nodes directly, inside arrays, or inside maps, so a root node
// describes an arbitrary graph.
//
// Field order is insertion order and is part of the node's identity.
type Node struct {
	// Kind is the node's type tag (e.g. "Wall", "Level").
	Kind string

	// ApplicationID is the stable identity of the host element the node
	// was produced from. Empty when the node has no host counterpart.
	ApplicationID string

	// ID is the content id once the node has been hashed or fetched.
	// Empty on freshly built nodes.
	ID string

	fields []Field
}

func (*Node) irValue() {}

// NewNode creates an empty node of the given kind.
func NewNode(kind string) *Node {
	return &Node{Kind: kind}
}

// WithApplicationID sets the application id and returns the node.
func (n *Node) WithApplicationID(id string) *Node {
	n.ApplicationID = id
	return n
}

// Set assigns a field, replacing an existing value in place or appending.
// Setting nil or IRNull removes the field: an absent field and a null
// field are the same thing.
func (n *Node) Set(name string, v IRValue) *Node {
	if v == nil {
		n.Delete(name)
		return n
	}
	if _, isNull := v.(IRNull); isNull {
		n.Delete(name)
		return n
	}
	for i := range n.fields {
		if n.fields[i].Name == name {
			n.fields[i].Value = v
			return n
		}
	}
	n.fields = append(n.fields, Field{Name: name, Value: v})
	return n
}

// Get returns a field value.
func (n *Node) Get(name string) (IRValue, bool) {
	for _, f := range n.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Has reports whether the field is present.
func (n *Node) Has(name string) bool {
	_, ok := n.Get(name)
	return ok
}

// Delete removes a field if present.
func (n *Node) Delete(name string) {
	for i, f := range n.fields {
		if f.Name == name {
			n.fields = append(n.fields[:i:i], n.fields[i+1:]...)
			return
		}
	}
}

// Fields returns a copy of the node's fields in order.
func (n *Node) Fields() []Field {
	out := make([]Field, len(n.fields))
	copy(out, n.fields)
	return out
}

// Len returns the number of fields.
func (n *Node) Len() int {
	return len(n.fields)
}

// String returns the field value as a string, or "" when absent or not a string.
func (n *Node) String(name string) string {
	v, _ := n.Get(name)
	s, _ := v.(IRString)
	return string(s)
}

// Float returns a numeric field as float64. Integers are widened.
func (n *Node) Float(name string) (float64, bool) {
	v, _ := n.Get(name)
	switch num := v.(type) {
	case IRFloat:
		return float64(num), true
	case IRInt:
		return float64(num), true
	default:
		return 0, false
	}
}

// Child returns the field value as a node.
func (n *Node) Child(name string) (*Node, bool) {
	v, _ := n.Get(name)
	c, ok := v.(*Node)
	return c, ok && c != nil
}

// Clone returns a shallow copy: the field list is copied, nested values are shared.
func (n *Node) Clone() *Node {
	c := *n
	c.fields = n.Fields()
	return &c
}

// Label describes the node for logs and reports.
func (n *Node) Label() string {
	if n.ApplicationID != "" {
		return fmt.Sprintf("%s(%s)", n.Kind, n.ApplicationID)
	}
	return n.Kind
}

// MapValue rebuilds v bottom-up, calling fn on every leaf and node value.
// Arrays and maps are traversed and copied only when a member changes.
// fn returns the replacement and whether to replace.
func MapValue(v IRValue, fn func(IRValue) (IRValue, bool)) IRValue {
	switch val := v.(type) {
	case IRArray:
		var out IRArray
		for i, elem := range val {
			mapped := MapValue(elem, fn)
			if out == nil && !sameValue(mapped, elem) {
				out = make(IRArray, len(val))
				copy(out, val[:i])
			}
			if out != nil {
				out[i] = mapped
			}
		}
		if out == nil {
			return val
		}
		return out
	case IRObject:
		var out IRObject
		for _, k := range val.SortedKeys() {
			mapped := MapValue(val[k], fn)
			if out == nil && !sameValue(mapped, val[k]) {
				out = make(IRObject, len(val))
				for kk, vv := range val {
					out[kk] = vv
				}
			}
			if out != nil {
				out[k] = mapped
			}
		}
		if out == nil {
			return val
		}
		return out
	default:
		if r, ok := fn(v); ok {
			return r
		}
		return v
	}
}

// sameValue reports identity for the values MapValue may replace.
func sameValue(a, b IRValue) bool {
	switch av := a.(type) {
	case *Node:
		bv, ok := b.(*Node)
		return ok && av == bv
	case IRRef:
		bv, ok := b.(IRRef)
		return ok && av == bv
	case IRArray, IRObject:
		// Rebuilt containers are always fresh.
		return false
	default:
		return a == b
	}
}

// ChildNodes returns the nodes directly held by n's fields, in field order,
// then array order, then map key order. Duplicates are kept.
func (n *Node) ChildNodes() []*Node {
	var out []*Node
	for _, f := range n.fields {
		collectNodes(f.Value, &out)
	}
	return out
}

func collectNodes(v IRValue, out *[]*Node) {
	switch val := v.(type) {
	case *Node:
		if val != nil {
			*out = append(*out, val)
		}
	case IRArray:
		for _, elem := range val {
			collectNodes(elem, out)
		}
	case IRObject:
		for _, k := range val.SortedKeys() {
			collectNodes(val[k], out)
		}
	}
}
