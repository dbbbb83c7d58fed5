package memdoc

import (
	"maps"
	"slices"

	"github.com/roach88/objsync/internal/host"
)

// Element is a native element stored in a Document.
type Element interface {
	host.Element
	kind() string
	clone() Element
	setHandle(h host.HandleID)
}

// Point is a model-space coordinate.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Wall curve sub-types. A wall cannot change sub-type in place.
const (
	CurveLine = "line"
	CurveArc  = "arc"
)

// Base carries the fields every element shares.
type Base struct {
	Handle host.HandleID     `yaml:"handle"`
	Params map[string]string `yaml:"parameters,omitempty"`
}

func (b *Base) HandleID() host.HandleID     { return b.Handle }
func (b *Base) UniqueID() string            { return string(b.Handle) }
func (b *Base) setHandle(h host.HandleID)   { b.Handle = h }
func (b *Base) Parameters() map[string]string { return maps.Clone(b.Params) }

func (b Base) cloneBase() Base {
	return Base{Handle: b.Handle, Params: maps.Clone(b.Params)}
}

// Wall is a vertical element swept along a base curve.
type Wall struct {
	Base     `yaml:",inline"`
	Name     string         `yaml:"name"`
	Curve    string         `yaml:"curve"`
	Start    Point          `yaml:"start"`
	End      Point          `yaml:"end"`
	Height   float64        `yaml:"height"`
	Level    string         `yaml:"level,omitempty"`
	Material *host.Material `yaml:"material,omitempty"`
}

func (w *Wall) kind() string     { return "Wall" }
func (w *Wall) Label() string    { return w.Name }
func (w *Wall) Category() string { return "Walls" }
func (w *Wall) RenderMaterial() (host.Material, bool) {
	if w.Material == nil {
		return host.Material{}, false
	}
	return *w.Material, true
}
func (w *Wall) clone() Element {
	c := *w
	c.Base = w.cloneBase()
	if w.Material != nil {
		m := *w.Material
		c.Material = &m
	}
	return &c
}

// Floor is a horizontal slab bounded by an outline.
type Floor struct {
	Base     `yaml:",inline"`
	Name     string         `yaml:"name"`
	Outline  []Point        `yaml:"outline"`
	Level    string         `yaml:"level,omitempty"`
	Material *host.Material `yaml:"material,omitempty"`
}

func (f *Floor) kind() string     { return "Floor" }
func (f *Floor) Label() string    { return f.Name }
func (f *Floor) Category() string { return "Floors" }
func (f *Floor) RenderMaterial() (host.Material, bool) {
	if f.Material == nil {
		return host.Material{}, false
	}
	return *f.Material, true
}
func (f *Floor) clone() Element {
	c := *f
	c.Base = f.cloneBase()
	c.Outline = slices.Clone(f.Outline)
	if f.Material != nil {
		m := *f.Material
		c.Material = &m
	}
	return &c
}

// Level is a named elevation datum.
type Level struct {
	Base      `yaml:",inline"`
	Name      string  `yaml:"name"`
	Elevation float64 `yaml:"elevation"`
}

func (l *Level) kind() string     { return "Level" }
func (l *Level) Label() string    { return l.Name }
func (l *Level) Category() string { return "Levels" }
func (l *Level) clone() Element {
	c := *l
	c.Base = l.cloneBase()
	return &c
}

// ModelCurve is a straight model line.
type ModelCurve struct {
	Base      `yaml:",inline"`
	Start     Point  `yaml:"start"`
	End       Point  `yaml:"end"`
	LineStyle string `yaml:"line_style,omitempty"`
}

func (m *ModelCurve) kind() string     { return "ModelCurve" }
func (m *ModelCurve) Label() string    { return "Model Line" }
func (m *ModelCurve) Category() string { return "Lines" }
func (m *ModelCurve) clone() Element {
	c := *m
	c.Base = m.cloneBase()
	return &c
}

// DirectShape is free-form mesh geometry assigned to a category.
type DirectShape struct {
	Base     `yaml:",inline"`
	Name     string  `yaml:"name"`
	Cat      string  `yaml:"category"`
	Vertices []Point `yaml:"vertices"`
	Faces    []int   `yaml:"faces"`
}

func (d *DirectShape) kind() string     { return "DirectShape" }
func (d *DirectShape) Label() string    { return d.Name }
func (d *DirectShape) Category() string { return d.Cat }
func (d *DirectShape) clone() Element {
	c := *d
	c.Base = d.cloneBase()
	c.Vertices = slices.Clone(d.Vertices)
	c.Faces = slices.Clone(d.Faces)
	return &c
}

// Group collects other elements. No converter knows groups, so they
// travel through the generic fallback.
type Group struct {
	Base    `yaml:",inline"`
	Name    string          `yaml:"name"`
	Members []host.HandleID `yaml:"members"`
}

func (g *Group) kind() string     { return "Group" }
func (g *Group) Label() string    { return g.Name }
func (g *Group) Category() string { return "Groups" }
func (g *Group) clone() Element {
	c := *g
	c.Base = g.cloneBase()
	c.Members = slices.Clone(g.Members)
	return &c
}

// Annotation is view-specific text. It has no label, so it is neither
// convertible by shape nor by the generic fallback.
type Annotation struct {
	Base `yaml:",inline"`
	Text string `yaml:"text"`
}

func (a *Annotation) kind() string { return "Annotation" }
func (a *Annotation) clone() Element {
	c := *a
	c.Base = a.cloneBase()
	return &c
}

var factories = map[string]func() Element{
	"Wall":        func() Element { return &Wall{} },
	"Floor":       func() Element { return &Floor{} },
	"Level":       func() Element { return &Level{} },
	"ModelCurve":  func() Element { return &ModelCurve{} },
	"DirectShape": func() Element { return &DirectShape{} },
	"Group":       func() Element { return &Group{} },
	"Annotation":  func() Element { return &Annotation{} },
}
