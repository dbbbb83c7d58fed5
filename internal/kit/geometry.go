package kit

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/objsync/internal/host/memdoc"
	"github.com/roach88/objsync/internal/ir"
)

func pointNode(p memdoc.Point) *ir.Node {
	return ir.NewNode("Point").
		Set("x", ir.IRFloat(p.X)).
		Set("y", ir.IRFloat(p.Y)).
		Set("z", ir.IRFloat(p.Z))
}

func pointFrom(v ir.IRValue) (memdoc.Point, error) {
	n, ok := v.(*ir.Node)
	if !ok || n == nil || n.Kind != "Point" {
		return memdoc.Point{}, fmt.Errorf("expected Point, got %T", v)
	}
	x, _ := n.Float("x")
	y, _ := n.Float("y")
	z, _ := n.Float("z")
	return memdoc.Point{X: x, Y: y, Z: z}, nil
}

func lineNode(start, end memdoc.Point) *ir.Node {
	return ir.NewNode("Line").
		Set("start", pointNode(start)).
		Set("end", pointNode(end))
}

func lineFrom(n *ir.Node, field string) (memdoc.Point, memdoc.Point, error) {
	line, ok := n.Child(field)
	if !ok || line.Kind != "Line" {
		return memdoc.Point{}, memdoc.Point{}, fmt.Errorf("%s: missing Line", field)
	}
	sv, _ := line.Get("start")
	start, err := pointFrom(sv)
	if err != nil {
		return memdoc.Point{}, memdoc.Point{}, fmt.Errorf("%s.start: %w", field, err)
	}
	ev, _ := line.Get("end")
	end, err := pointFrom(ev)
	if err != nil {
		return memdoc.Point{}, memdoc.Point{}, fmt.Errorf("%s.end: %w", field, err)
	}
	return start, end, nil
}

func polylineNode(points []memdoc.Point) ir.IRArray {
	arr := make(ir.IRArray, len(points))
	for i, p := range points {
		arr[i] = pointNode(p)
	}
	return arr
}

func polylineFrom(v ir.IRValue) ([]memdoc.Point, error) {
	arr, ok := v.(ir.IRArray)
	if !ok {
		return nil, fmt.Errorf("expected point list, got %T", v)
	}
	out := make([]memdoc.Point, len(arr))
	for i, pv := range arr {
		p, err := pointFrom(pv)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

func meshNode(vertices []memdoc.Point, faces []int) *ir.Node {
	flat := make(ir.IRArray, 0, len(vertices)*3)
	for _, v := range vertices {
		flat = append(flat, ir.IRFloat(v.X), ir.IRFloat(v.Y), ir.IRFloat(v.Z))
	}
	fs := make(ir.IRArray, len(faces))
	for i, f := range faces {
		fs[i] = ir.IRInt(f)
	}
	return ir.NewNode("Mesh").Set("vertices", flat).Set("faces", fs)
}

func meshFrom(n *ir.Node) ([]memdoc.Point, []int, error) {
	vv, _ := n.Get("vertices")
	flat, ok := vv.(ir.IRArray)
	if !ok || len(flat)%3 != 0 {
		return nil, nil, fmt.Errorf("mesh vertices must be a flat list of xyz triples")
	}
	verts := make([]memdoc.Point, 0, len(flat)/3)
	for i := 0; i < len(flat); i += 3 {
		var xyz [3]float64
		for j := range xyz {
			f, ok := number(flat[i+j])
			if !ok {
				return nil, nil, fmt.Errorf("mesh vertex %d is not numeric", i/3)
			}
			xyz[j] = f
		}
		verts = append(verts, memdoc.Point{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}

	fv, _ := n.Get("faces")
	farr, _ := fv.(ir.IRArray)
	faces := make([]int, 0, len(farr))
	for i, f := range farr {
		idx, ok := f.(ir.IRInt)
		if !ok || int(idx) < 0 || int(idx) >= len(verts) {
			return nil, nil, fmt.Errorf("mesh face index %d out of range", i)
		}
		faces = append(faces, int(idx))
	}
	return verts, faces, nil
}

func number(v ir.IRValue) (float64, bool) {
	switch n := v.(type) {
	case ir.IRFloat:
		return float64(n), true
	case ir.IRInt:
		return float64(n), true
	default:
		return 0, false
	}
}

func paramsNode(params map[string]string) ir.IRObject {
	obj := make(ir.IRObject, len(params))
	for _, k := range slices.Sorted(maps.Keys(params)) {
		obj[k] = ir.IRString(params[k])
	}
	return obj
}

func paramsFrom(n *ir.Node) map[string]string {
	v, ok := n.Get("parameters")
	if !ok {
		return nil
	}
	obj, ok := v.(ir.IRObject)
	if !ok || len(obj) == 0 {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, pv := range obj {
		switch p := pv.(type) {
		case ir.IRString:
			out[k] = string(p)
		case ir.IRFloat, ir.IRInt, ir.IRBool:
			b, _ := ir.MarshalIRValue(p)
			out[k] = string(b)
		}
	}
	return out
}

// setParams writes a parameters field only when there are parameters, so
// elements without any round-trip to nodes without the field.
func setParams(n *ir.Node, params map[string]string) *ir.Node {
	if len(params) > 0 {
		n.Set("parameters", paramsNode(params))
	}
	return n
}
