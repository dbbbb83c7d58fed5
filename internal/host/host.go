// Package host defines the narrow contract objsync needs from a host
// document editor. The host owns element storage and commits; the sync
// engine only looks elements up, deletes them, and runs closures inside
// the host's transactions.
//
// Everything beyond that contract is expressed as optional capability
// interfaces that an element or document may implement. Converters and
// selection filters type-assert for the capabilities they need.
package host

// HandleID identifies a native element inside one host document.
type HandleID string

// Element is an opaque handle to a native element. Elements are owned by
// the document and must not be retained past one sync operation.
type Element interface {
	HandleID() HandleID
}

// Document is the host document adapter.
type Document interface {
	// GetElement looks up an element by its native handle id.
	GetElement(id HandleID) (Element, bool)

	// Delete removes an element. Only valid inside RunTransaction.
	Delete(id HandleID) error

	// RunTransaction runs fn as one atomic, named transaction. If fn
	// returns an error or panics, every change it made is rolled back.
	RunTransaction(name string, fn func() error) error
}

// Identifiable is the minimal capability set for the generic conversion
// fallback: a stable identity and a display label.
type Identifiable interface {
	Element
	UniqueID() string
	Label() string
}

// Categorized elements belong to a named category ("Walls", "Levels").
type Categorized interface {
	Element
	Category() string
}

// Material is the display material of an element.
type Material struct {
	Name    string  `yaml:"name" json:"name"`
	Color   int64   `yaml:"color" json:"color"` // ARGB
	Opacity float64 `yaml:"opacity" json:"opacity"`
}

// Renderable elements declare a display material.
type Renderable interface {
	Element
	RenderMaterial() (Material, bool)
}

// Parameterized elements expose named, string-valued parameters.
type Parameterized interface {
	Element
	Parameters() map[string]string
}

// Enumerator is implemented by documents that can list their elements.
type Enumerator interface {
	Elements() []Element
}
