// Package kit is the default conversion kit for memdoc documents. It
// registers one element-to-node and one node-to-element function per
// supported shape, a generic fallback for other identifiable elements, and
// the ParameterUpdater node that edits existing elements in place.
package kit

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/objsync/internal/convert"
	"github.com/roach88/objsync/internal/host"
	"github.com/roach88/objsync/internal/host/memdoc"
	"github.com/roach88/objsync/internal/ir"
)

// ParamHost names the parameter that marks a model curve as part of
// another element's sketch. Such curves are sent with their host.
const ParamHost = "Host"

// New builds a registry that reads from and writes to doc.
func New(doc *memdoc.Document) *convert.Registry {
	r := convert.NewRegistry()

	convert.RegisterToGraph(r, wallToGraph)
	convert.RegisterToGraph(r, floorToGraph)
	convert.RegisterToGraph(r, levelToGraph)
	convert.RegisterToGraph(r, curveToGraph)
	convert.RegisterToGraph(r, shapeToGraph)
	r.SetGeneric(genericToGraph)

	k := &kit{doc: doc}
	r.RegisterToNative("Wall", k.wallToNative)
	r.RegisterToNative("Floor", k.floorToNative)
	r.RegisterToNative("Level", k.levelToNative)
	r.RegisterToNative("ModelCurve", k.curveToNative)
	r.RegisterToNative("DirectShape", k.shapeToNative)
	r.RegisterToNative("ParameterUpdater", k.parameterUpdaterToNative)
	return r
}

func wallToGraph(_ *convert.Context, w *memdoc.Wall) (*ir.Node, error) {
	if w.Height <= 0 {
		return nil, fmt.Errorf("wall %q has non-positive height %v", w.Name, w.Height)
	}
	n := ir.NewNode("Wall").
		Set("name", ir.IRString(w.Name)).
		Set("curve", ir.IRString(w.Curve)).
		Set("baseLine", lineNode(w.Start, w.End)).
		Set("height", ir.IRFloat(w.Height))
	if w.Level != "" {
		n.Set("level", ir.IRString(w.Level))
	}
	return setParams(n, w.Params), nil
}

func floorToGraph(_ *convert.Context, f *memdoc.Floor) (*ir.Node, error) {
	if len(f.Outline) < 3 {
		return nil, fmt.Errorf("floor %q outline has %d points, need at least 3", f.Name, len(f.Outline))
	}
	n := ir.NewNode("Floor").
		Set("name", ir.IRString(f.Name)).
		Set("outline", polylineNode(f.Outline))
	if f.Level != "" {
		n.Set("level", ir.IRString(f.Level))
	}
	return setParams(n, f.Params), nil
}

func levelToGraph(_ *convert.Context, l *memdoc.Level) (*ir.Node, error) {
	n := ir.NewNode("Level").
		Set("name", ir.IRString(l.Name)).
		Set("elevation", ir.IRFloat(l.Elevation))
	return setParams(n, l.Params), nil
}

func curveToGraph(_ *convert.Context, c *memdoc.ModelCurve) (*ir.Node, error) {
	if c.Params[ParamHost] != "" {
		// Sketch lines travel with their host element.
		return nil, nil
	}
	n := ir.NewNode("ModelCurve").Set("baseCurve", lineNode(c.Start, c.End))
	if c.LineStyle != "" {
		n.Set("lineStyle", ir.IRString(c.LineStyle))
	}
	return setParams(n, c.Params), nil
}

func shapeToGraph(_ *convert.Context, d *memdoc.DirectShape) (*ir.Node, error) {
	n := ir.NewNode("DirectShape").
		Set("name", ir.IRString(d.Name)).
		Set("category", ir.IRString(d.Cat)).
		Set("displayValue", meshNode(d.Vertices, d.Faces))
	return setParams(n, d.Params), nil
}

func genericToGraph(_ *convert.Context, el host.Identifiable) (*ir.Node, error) {
	n := ir.NewNode("Element").Set("label", ir.IRString(el.Label()))
	if c, ok := el.(host.Categorized); ok {
		n.Set("category", ir.IRString(c.Category()))
	}
	if p, ok := el.(host.Parameterized); ok {
		setParams(n, p.Parameters())
	}
	return n, nil
}

type kit struct {
	doc *memdoc.Document
}

// apply materializes el. An existing element of the same shape that
// canUpdate accepts is replaced in place; any other existing element is
// deleted and el is created fresh. A failed in-place update also falls
// back to recreating, which is reported as ActionRecreated, not an error.
func apply[T memdoc.Element](doc *memdoc.Document, el T, existing host.Element, canUpdate func(old T) bool) (convert.Applied, error) {
	if existing == nil {
		h, err := doc.Add(el)
		if err != nil {
			return convert.Applied{}, err
		}
		return convert.Applied{Handle: h, Action: convert.ActionCreated}, nil
	}

	if old, ok := existing.(T); ok && (canUpdate == nil || canUpdate(old)) {
		if err := doc.Replace(old.HandleID(), el); err == nil {
			return convert.Applied{Handle: old.HandleID(), Action: convert.ActionUpdated}, nil
		}
	}

	if err := doc.Delete(existing.HandleID()); err != nil {
		return convert.Applied{}, fmt.Errorf("recreate: %w", err)
	}
	h, err := doc.Add(el)
	if err != nil {
		return convert.Applied{}, fmt.Errorf("recreate: %w", err)
	}
	return convert.Applied{Handle: h, Action: convert.ActionRecreated}, nil
}

func materialOf(n *ir.Node) *host.Material {
	mn, ok := n.Child(ir.FieldRenderMaterial)
	if !ok {
		return nil
	}
	m, ok := convert.MaterialFromNode(mn)
	if !ok {
		return nil
	}
	return &m
}

func (k *kit) wallToNative(_ *convert.Context, n *ir.Node, existing host.Element) (convert.Applied, error) {
	start, end, err := lineFrom(n, "baseLine")
	if err != nil {
		return convert.Applied{}, err
	}
	height, ok := n.Float("height")
	if !ok || height <= 0 {
		return convert.Applied{}, fmt.Errorf("wall height missing or non-positive")
	}
	curve := n.String("curve")
	if curve == "" {
		curve = memdoc.CurveLine
	}
	w := &memdoc.Wall{
		Base:     memdoc.Base{Params: paramsFrom(n)},
		Name:     n.String("name"),
		Curve:    curve,
		Start:    start,
		End:      end,
		Height:   height,
		Level:    n.String("level"),
		Material: materialOf(n),
	}
	return apply(k.doc, w, existing, func(old *memdoc.Wall) bool {
		return old.Curve == w.Curve
	})
}

func (k *kit) floorToNative(_ *convert.Context, n *ir.Node, existing host.Element) (convert.Applied, error) {
	ov, _ := n.Get("outline")
	outline, err := polylineFrom(ov)
	if err != nil {
		return convert.Applied{}, fmt.Errorf("outline: %w", err)
	}
	if len(outline) < 3 {
		return convert.Applied{}, fmt.Errorf("outline has %d points, need at least 3", len(outline))
	}
	f := &memdoc.Floor{
		Base:     memdoc.Base{Params: paramsFrom(n)},
		Name:     n.String("name"),
		Outline:  outline,
		Level:    n.String("level"),
		Material: materialOf(n),
	}
	return apply(k.doc, f, existing, nil)
}

func (k *kit) levelToNative(_ *convert.Context, n *ir.Node, existing host.Element) (convert.Applied, error) {
	elevation, _ := n.Float("elevation")
	l := &memdoc.Level{
		Base:      memdoc.Base{Params: paramsFrom(n)},
		Name:      n.String("name"),
		Elevation: elevation,
	}
	return apply(k.doc, l, existing, nil)
}

func (k *kit) curveToNative(_ *convert.Context, n *ir.Node, existing host.Element) (convert.Applied, error) {
	start, end, err := lineFrom(n, "baseCurve")
	if err != nil {
		return convert.Applied{}, err
	}
	c := &memdoc.ModelCurve{
		Base:      memdoc.Base{Params: paramsFrom(n)},
		Start:     start,
		End:       end,
		LineStyle: n.String("lineStyle"),
	}
	return apply(k.doc, c, existing, nil)
}

// shapeToNative builds a direct shape. When the node is an embedded
// schema without its own geometry, the geometry comes from the node the
// schema was attached to.
func (k *kit) shapeToNative(ctx *convert.Context, n *ir.Node, existing host.Element) (convert.Applied, error) {
	mesh, ok := n.Child("displayValue")
	if !ok {
		mesh, ok = originalMesh(ctx, n)
	}
	if !ok {
		return convert.Applied{}, fmt.Errorf("direct shape has no displayValue mesh")
	}
	verts, faces, err := meshFrom(mesh)
	if err != nil {
		return convert.Applied{}, err
	}
	d := &memdoc.DirectShape{
		Base:     memdoc.Base{Params: paramsFrom(n)},
		Name:     n.String("name"),
		Cat:      n.String("category"),
		Vertices: verts,
		Faces:    faces,
	}
	if d.Cat == "" {
		d.Cat = "Generic Models"
	}
	return apply(k.doc, d, existing, func(old *memdoc.DirectShape) bool {
		return old.Cat == d.Cat
	})
}

func originalMesh(ctx *convert.Context, n *ir.Node) (*ir.Node, bool) {
	v, ok := n.Get(ir.FieldOriginal)
	if !ok {
		return nil, false
	}
	ref, ok := v.(ir.IRRef)
	if !ok {
		return nil, false
	}
	orig, ok := ctx.Resolve(ref)
	if !ok {
		return nil, false
	}
	if orig.Kind == "Mesh" {
		return orig, true
	}
	return orig.Child("displayValue")
}

// parameterUpdaterToNative writes parameters onto an existing element
// named by elementId. It creates nothing.
func (k *kit) parameterUpdaterToNative(_ *convert.Context, n *ir.Node, _ host.Element) (convert.Applied, error) {
	target := host.HandleID(n.String("elementId"))
	if target == "" {
		return convert.Applied{}, fmt.Errorf("parameter updater has no elementId")
	}
	if _, ok := k.doc.Get(target); !ok {
		return convert.Applied{}, fmt.Errorf("parameter updater target %s: %w", target, memdoc.ErrNotFound)
	}
	params := paramsFrom(n)
	for _, name := range slices.Sorted(maps.Keys(params)) {
		if err := k.doc.SetParameter(target, name, params[name]); err != nil {
			return convert.Applied{}, err
		}
	}
	return convert.Applied{Action: convert.ActionNone}, nil
}
