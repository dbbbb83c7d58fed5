// Package memdoc is an in-memory host document. It implements the
// host.Document contract with real transactional semantics (snapshot and
// rollback) and is the reference host for tests and the CLI.
package memdoc

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/roach88/objsync/internal/host"
)

var (
	// ErrNoTransaction is returned by mutations made outside RunTransaction.
	ErrNoTransaction = errors.New("document mutation outside a transaction")

	// ErrNestedTransaction is returned when RunTransaction is re-entered.
	ErrNestedTransaction = errors.New("transaction already open")

	// ErrNotFound is returned for unknown handle ids.
	ErrNotFound = errors.New("element not found")
)

// TxRecord records one finished transaction.
type TxRecord struct {
	Name      string
	Committed bool
}

// Document is a thread-safe in-memory element store.
type Document struct {
	mu       sync.Mutex
	elements map[host.HandleID]Element
	order    []host.HandleID
	inTx     bool
	history  []TxRecord
}

var _ host.Document = (*Document)(nil)
var _ host.Enumerator = (*Document)(nil)

// New creates an empty document.
func New() *Document {
	return &Document{elements: make(map[host.HandleID]Element)}
}

// Seed inserts elements without a transaction, the way opening a file
// would. Elements without a handle get a fresh one. Returns the handles.
func (d *Document) Seed(els ...Element) []host.HandleID {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]host.HandleID, len(els))
	for i, el := range els {
		ids[i] = d.insertLocked(el)
	}
	return ids
}

func (d *Document) insertLocked(el Element) host.HandleID {
	if el.HandleID() == "" {
		el.setHandle(host.HandleID(ulid.Make().String()))
	}
	h := el.HandleID()
	if _, exists := d.elements[h]; !exists {
		d.order = append(d.order, h)
	}
	d.elements[h] = el
	return h
}

// GetElement implements host.Document.
func (d *Document) GetElement(id host.HandleID) (host.Element, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.elements[id]
	if !ok {
		return nil, false
	}
	return el, true
}

// Get returns the stored element with its concrete type.
func (d *Document) Get(id host.HandleID) (Element, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.elements[id]
	return el, ok
}

// Elements implements host.Enumerator, in insertion order.
func (d *Document) Elements() []host.Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]host.Element, 0, len(d.order))
	for _, h := range d.order {
		out = append(out, d.elements[h])
	}
	return out
}

// Len returns the number of elements.
func (d *Document) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.elements)
}

// Add inserts a new element and returns its handle.
func (d *Document) Add(el Element) (host.HandleID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inTx {
		return "", ErrNoTransaction
	}
	if el.HandleID() != "" {
		if _, exists := d.elements[el.HandleID()]; exists {
			return "", fmt.Errorf("add %s: handle %s already in use", el.kind(), el.HandleID())
		}
	}
	return d.insertLocked(el), nil
}

// Replace swaps the element stored under id for el, which must have the
// same kind. el takes over the handle.
func (d *Document) Replace(id host.HandleID, el Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inTx {
		return ErrNoTransaction
	}
	old, ok := d.elements[id]
	if !ok {
		return fmt.Errorf("replace %s: %w", id, ErrNotFound)
	}
	if old.kind() != el.kind() {
		return fmt.Errorf("replace %s: cannot turn %s into %s", id, old.kind(), el.kind())
	}
	el.setHandle(id)
	d.elements[id] = el
	return nil
}

// SetParameter assigns one parameter of an existing element.
func (d *Document) SetParameter(id host.HandleID, name, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inTx {
		return ErrNoTransaction
	}
	el, ok := d.elements[id]
	if !ok {
		return fmt.Errorf("set parameter on %s: %w", id, ErrNotFound)
	}
	updated := el.clone()
	b := baseOf(updated)
	if b.Params == nil {
		b.Params = make(map[string]string)
	}
	b.Params[name] = value
	d.elements[id] = updated
	return nil
}

// Delete implements host.Document.
func (d *Document) Delete(id host.HandleID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inTx {
		return ErrNoTransaction
	}
	if _, ok := d.elements[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	delete(d.elements, id)
	d.order = slices.DeleteFunc(d.order, func(h host.HandleID) bool { return h == id })
	return nil
}

// RunTransaction implements host.Document. The element set is snapshotted
// on entry and restored if fn fails or panics.
func (d *Document) RunTransaction(name string, fn func() error) (err error) {
	d.mu.Lock()
	if d.inTx {
		d.mu.Unlock()
		return fmt.Errorf("transaction %q: %w", name, ErrNestedTransaction)
	}
	d.inTx = true
	snapshot, order := d.snapshotLocked()
	d.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transaction %q panicked: %v", name, r)
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		d.inTx = false
		if err != nil {
			d.elements = snapshot
			d.order = order
		}
		d.history = append(d.history, TxRecord{Name: name, Committed: err == nil})
	}()

	return fn()
}

func (d *Document) snapshotLocked() (map[host.HandleID]Element, []host.HandleID) {
	snap := make(map[host.HandleID]Element, len(d.elements))
	for h, el := range d.elements {
		snap[h] = el.clone()
	}
	return snap, slices.Clone(d.order)
}

// Transactions returns the finished transactions in order.
func (d *Document) Transactions() []TxRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.history)
}

// KindOf returns the element kind name, e.g. "Wall".
func KindOf(el host.Element) string {
	if e, ok := el.(Element); ok {
		return e.kind()
	}
	return fmt.Sprintf("%T", el)
}

// Clone returns an independent copy of el.
func Clone[T Element](el T) T {
	return el.clone().(T)
}

func baseOf(el Element) *Base {
	switch e := el.(type) {
	case *Wall:
		return &e.Base
	case *Floor:
		return &e.Base
	case *Level:
		return &e.Base
	case *ModelCurve:
		return &e.Base
	case *DirectShape:
		return &e.Base
	case *Group:
		return &e.Base
	case *Annotation:
		return &e.Base
	default:
		panic(fmt.Sprintf("memdoc: unknown element %T", el))
	}
}
