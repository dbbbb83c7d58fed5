// Package convert is the conversion registry: it dispatches native
// elements to graph conversion functions by their runtime shape, and graph
// nodes to native construction functions by their kind.
//
// Dispatch policy:
//   - A registered shape wins.
//   - An unregistered shape that is host.Identifiable goes through the
//     generic fallback when one is set.
//   - Anything else is reported as a skip and processing continues.
//
// Every successful element-to-node conversion is followed by render
// material enrichment: an element that declares a material gets a
// renderMaterial field unless its converter already set one.
package convert

import (
	"fmt"
	"reflect"

	"github.com/roach88/objsync/internal/host"
	"github.com/roach88/objsync/internal/ir"
	"github.com/roach88/objsync/internal/report"
)

// ToGraphFunc converts a native element to a node. Returning a nil node
// and a nil error means the element is handled by another element's
// conversion; it is neither a skip nor a failure.
type ToGraphFunc func(ctx *Context, el host.Element) (*ir.Node, error)

// ToNativeFunc materializes a node. existing is the element previously
// created for the node's reconciliation key (see Key), or nil.
type ToNativeFunc func(ctx *Context, node *ir.Node, existing host.Element) (Applied, error)

// Action tells what a ToNativeFunc did to the document.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionRecreated Action = "recreated"
	// ActionNone is returned by nodes that modify other elements but
	// materialize nothing of their own.
	ActionNone Action = "none"
)

// Applied is the outcome of one ToNative call.
type Applied struct {
	Handle host.HandleID
	Action Action
}

// Registry is the type-dispatch table. Build it once, then use it from
// any goroutine.
type Registry struct {
	toGraph  map[reflect.Type]ToGraphFunc
	toNative map[string]ToNativeFunc
	generic  func(*Context, host.Identifiable) (*ir.Node, error)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		toGraph:  make(map[reflect.Type]ToGraphFunc),
		toNative: make(map[string]ToNativeFunc),
	}
}

// RegisterToGraph registers the conversion for native shape T.
func RegisterToGraph[T host.Element](r *Registry, fn func(ctx *Context, el T) (*ir.Node, error)) {
	var zero T
	r.toGraph[reflect.TypeOf(zero)] = func(ctx *Context, el host.Element) (*ir.Node, error) {
		return fn(ctx, el.(T))
	}
}

// RegisterToNative registers the construction function for a node kind.
func (r *Registry) RegisterToNative(kind string, fn ToNativeFunc) {
	r.toNative[kind] = fn
}

// SetGeneric sets the fallback for unrecognized identifiable elements.
func (r *Registry) SetGeneric(fn func(ctx *Context, el host.Identifiable) (*ir.Node, error)) {
	r.generic = fn
}

// ShapeName names an element's runtime shape for reports.
func ShapeName(el host.Element) string {
	t := reflect.TypeOf(el)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}

func (r *Registry) lookupToGraph(el host.Element) (ToGraphFunc, bool) {
	if fn, ok := r.toGraph[reflect.TypeOf(el)]; ok {
		return fn, true
	}
	if id, ok := el.(host.Identifiable); ok && r.generic != nil {
		return func(ctx *Context, _ host.Element) (*ir.Node, error) {
			return r.generic(ctx, id)
		}, true
	}
	return nil, false
}

// CanConvertToGraph reports whether el has a registered shape or
// qualifies for the generic fallback.
func (r *Registry) CanConvertToGraph(el host.Element) bool {
	if el == nil {
		return false
	}
	_, ok := r.lookupToGraph(el)
	return ok
}

// ToGraph converts el. Unrecognized shapes return a report.CodeSkippedType
// error; converter errors and panics return report.CodeConversionFailure.
// A nil node with a nil error means the element was handled elsewhere.
func (r *Registry) ToGraph(ctx *Context, el host.Element) (node *ir.Node, err error) {
	subject := describe(el)
	fn, ok := r.lookupToGraph(el)
	if !ok {
		return nil, report.Skipped(subject, ShapeName(el))
	}
	if id, ok := el.(host.Identifiable); ok && ctx.wasConverted(id.UniqueID()) {
		// Selected twice; the first conversion already covers it.
		return nil, nil
	}

	defer func() {
		if p := recover(); p != nil {
			node = nil
			err = report.ConversionFailed(subject, fmt.Errorf("converter panic: %v", p))
		}
	}()

	node, err = fn(ctx, el)
	if err != nil {
		return nil, report.ConversionFailed(subject, err)
	}
	if node == nil {
		return nil, nil
	}

	if node.ApplicationID == "" {
		if id, ok := el.(host.Identifiable); ok {
			node.ApplicationID = id.UniqueID()
		}
	}
	enrichRenderMaterial(el, node)
	ctx.markConverted(node.ApplicationID)
	return node, nil
}

// enrichRenderMaterial attaches the element's display material unless
// the converter already provided one.
func enrichRenderMaterial(el host.Element, node *ir.Node) {
	if node.Has(ir.FieldRenderMaterial) {
		return
	}
	r, ok := el.(host.Renderable)
	if !ok {
		return
	}
	m, ok := r.RenderMaterial()
	if !ok {
		return
	}
	node.Set(ir.FieldRenderMaterial, MaterialNode(m))
}

// MaterialNode converts a host material to its node form.
func MaterialNode(m host.Material) *ir.Node {
	return ir.NewNode("RenderMaterial").
		Set("name", ir.IRString(m.Name)).
		Set("diffuse", ir.IRInt(m.Color)).
		Set("opacity", ir.IRFloat(m.Opacity))
}

// MaterialFromNode is the inverse of MaterialNode.
func MaterialFromNode(n *ir.Node) (host.Material, bool) {
	if n == nil || n.Kind != "RenderMaterial" {
		return host.Material{}, false
	}
	m := host.Material{Name: n.String("name")}
	if v, ok := n.Get("diffuse"); ok {
		if c, ok := v.(ir.IRInt); ok {
			m.Color = int64(c)
		}
	}
	m.Opacity, _ = n.Float("opacity")
	return m, true
}

// target returns the node whose kind drives native construction: the
// embedded schema when present and convertible, otherwise node itself.
func (r *Registry) target(ctx *Context, node *ir.Node) (*ir.Node, bool) {
	if schema, ok := node.Child(ir.FieldSchema); ok {
		if _, ok := r.toNative[schema.Kind]; ok {
			delegate := schema.Clone()
			if delegate.ApplicationID == "" {
				delegate.ApplicationID = node.ApplicationID
			}
			delegate.Set(ir.FieldOriginal, ctx.link(node))
			return delegate, true
		}
	}
	_, ok := r.toNative[node.Kind]
	return node, ok
}

// CanConvertToNative reports whether node's kind, or the kind of its
// embedded schema, has a construction function.
func (r *Registry) CanConvertToNative(node *ir.Node) bool {
	if node == nil {
		return false
	}
	if schema, ok := node.Child(ir.FieldSchema); ok {
		if _, ok := r.toNative[schema.Kind]; ok {
			return true
		}
	}
	_, ok := r.toNative[node.Kind]
	return ok
}

// ToNative materializes node. When node embeds a convertible schema, the
// schema is converted instead, with a back-reference to node in its
// "@original" field that ctx.Resolve can follow.
func (r *Registry) ToNative(ctx *Context, node *ir.Node) (applied Applied, err error) {
	subject := node.Label()
	target, ok := r.target(ctx, node)
	if !ok {
		return Applied{}, report.Skipped(subject, node.Kind)
	}
	fn := r.toNative[target.Kind]

	existing, _ := ctx.Existing(Key(node))

	defer func() {
		if p := recover(); p != nil {
			applied = Applied{}
			err = report.ConversionFailed(subject, fmt.Errorf("converter panic: %v", p))
		}
	}()

	applied, err = fn(ctx, target, existing)
	if err != nil {
		return Applied{}, report.ConversionFailed(subject, err)
	}
	return applied, nil
}

// Key is the reconciliation key of a node: its application id, or its
// content id when it has none.
func Key(node *ir.Node) string {
	if node.ApplicationID != "" {
		return node.ApplicationID
	}
	return node.ID
}

func describe(el host.Element) string {
	if el == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s(%s)", ShapeName(el), el.HandleID())
}
