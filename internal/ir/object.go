package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrIDMismatch is returned when a decoded object's id does not match its content.
var ErrIDMismatch = errors.New("object id does not match content")

// Object is the detached, wire form of a Node: every nested node is
// replaced by an IRRef to its content id.
type Object struct {
	ID            string
	Kind          string
	ApplicationID string
	Fields        []Field

	// Closure maps every transitively referenced child id to the minimum
	// depth at which it occurs below this object (direct children are 1).
	Closure map[string]int
}

// Field returns a field value by name.
func (o *Object) Field(name string) (IRValue, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// ChildIDs returns the ids of direct children in closure order (sorted).
func (o *Object) ChildIDs() []string {
	var ids []string
	for id, depth := range o.Closure {
		if depth == 1 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Detach converts n into its wire form. lookup resolves the already
// detached object of every child node; children must be detached first.
// Existing IRRef values are kept as plain references and are not part of
// the closure.
func Detach(n *Node, lookup func(*Node) (*Object, bool)) (*Object, error) {
	closure := make(map[string]int)
	var missing error

	fields := make([]Field, 0, len(n.fields))
	for _, f := range n.fields {
		v := MapValue(f.Value, func(v IRValue) (IRValue, bool) {
			child, ok := v.(*Node)
			if !ok {
				return nil, false
			}
			obj, found := lookup(child)
			if !found {
				if missing == nil {
					missing = fmt.Errorf("field %q: child %s not detached", f.Name, child.Label())
				}
				return IRNull{}, true
			}
			mergeClosure(closure, obj.ID, 1)
			for id, d := range obj.Closure {
				mergeClosure(closure, id, d+1)
			}
			return IRRef(obj.ID), true
		})
		fields = append(fields, Field{Name: f.Name, Value: v})
	}
	if missing != nil {
		return nil, missing
	}

	obj := &Object{
		Kind:          n.Kind,
		ApplicationID: n.ApplicationID,
		Fields:        fields,
		Closure:       closure,
	}
	id, err := ObjectID(obj)
	if err != nil {
		return nil, err
	}
	obj.ID = id
	return obj, nil
}

func mergeClosure(c map[string]int, id string, depth int) {
	if d, ok := c[id]; !ok || depth < d {
		c[id] = depth
	}
}

// Attach rebuilds a node from its wire form. Each IRRef naming a direct
// child is replaced by resolve's node; refs resolve cannot satisfy, and
// refs that are not children, stay IRRef.
func Attach(o *Object, resolve func(id string) (*Node, bool)) *Node {
	n := &Node{Kind: o.Kind, ApplicationID: o.ApplicationID, ID: o.ID}
	for _, f := range o.Fields {
		v := MapValue(f.Value, func(v IRValue) (IRValue, bool) {
			ref, ok := v.(IRRef)
			if !ok || o.Closure[string(ref)] != 1 {
				return nil, false
			}
			child, found := resolve(string(ref))
			if !found {
				return nil, false
			}
			return child, true
		})
		n.fields = append(n.fields, Field{Name: f.Name, Value: v})
	}
	return n
}

// identity returns the canonical form hashed into the object id.
// The closure is derived data and is excluded.
func (o *Object) identity() IRObject {
	obj := IRObject{
		"kind":   IRString(o.Kind),
		"fields": fieldsToIR(o.Fields),
	}
	if o.ApplicationID != "" {
		obj["app_id"] = IRString(o.ApplicationID)
	}
	return obj
}

func fieldsToIR(fields []Field) IRArray {
	arr := make(IRArray, len(fields))
	for i, f := range fields {
		arr[i] = IRObject{"name": IRString(f.Name), "value": f.Value}
	}
	return arr
}

// EncodeObject produces the canonical wire bytes of an object.
func EncodeObject(o *Object) ([]byte, error) {
	if o.ID == "" {
		return nil, fmt.Errorf("EncodeObject: object %q has no id", o.Kind)
	}
	wire := o.identity()
	wire["id"] = IRString(o.ID)
	closure := make(IRObject, len(o.Closure))
	for id, d := range o.Closure {
		closure[id] = IRInt(d)
	}
	wire["closure"] = closure

	data, err := MarshalCanonical(wire)
	if err != nil {
		return nil, fmt.Errorf("EncodeObject: %w", err)
	}
	return data, nil
}

type wireObject struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	AppID   string          `json:"app_id"`
	Closure map[string]int  `json:"closure"`
	Fields  json.RawMessage `json:"fields"`
}

// DecodeObject parses wire bytes and verifies the id against the content.
func DecodeObject(data []byte) (*Object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var w wireObject
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("DecodeObject: %w", err)
	}

	var rawFields []struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	}
	if len(w.Fields) > 0 {
		if err := json.Unmarshal(w.Fields, &rawFields); err != nil {
			return nil, fmt.Errorf("DecodeObject: fields: %w", err)
		}
	}

	obj := &Object{
		ID:            w.ID,
		Kind:          w.Kind,
		ApplicationID: w.AppID,
		Closure:       w.Closure,
		Fields:        make([]Field, 0, len(rawFields)),
	}
	if obj.Closure == nil {
		obj.Closure = map[string]int{}
	}
	for _, rf := range rawFields {
		v, err := unmarshalIRValue(rf.Value)
		if err != nil {
			return nil, fmt.Errorf("DecodeObject: field %q: %w", rf.Name, err)
		}
		obj.Fields = append(obj.Fields, Field{Name: rf.Name, Value: v})
	}

	want, err := ObjectID(obj)
	if err != nil {
		return nil, fmt.Errorf("DecodeObject: %w", err)
	}
	if want != obj.ID {
		return nil, fmt.Errorf("DecodeObject: %w: have %s, content hashes to %s", ErrIDMismatch, obj.ID, want)
	}
	return obj, nil
}

// CloneObject returns a deep-enough copy for independent mutation of the
// field list and closure.
func CloneObject(o *Object) *Object {
	c := *o
	c.Fields = slices.Clone(o.Fields)
	c.Closure = maps.Clone(o.Closure)
	return &c
}
