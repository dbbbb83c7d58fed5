package convert

import (
	"sync"

	"github.com/roach88/objsync/internal/host"
	"github.com/roach88/objsync/internal/ir"
	"github.com/roach88/objsync/internal/report"
)

// Context is the per-operation conversion state. It replaces any
// document-wide tracking lists: create one per send or receive.
type Context struct {
	// Doc is the host document being read or written.
	Doc host.Document

	// Report collects diagnostics raised by converters.
	Report *report.Report

	mu        sync.Mutex
	previous  map[string]host.HandleID
	index     map[string]*ir.Node
	converted []string
	seen      map[string]struct{}
}

// NewContext creates a context. previous is the placeholder mapping of
// the last receive into the stream, used to find existing elements.
func NewContext(doc host.Document, previous []ir.Placeholder, rep *report.Report) *Context {
	if rep == nil {
		rep = report.New()
	}
	prev := make(map[string]host.HandleID, len(previous))
	for _, p := range previous {
		prev[p.ApplicationID] = host.HandleID(p.NativeHandleID)
	}
	return &Context{
		Doc:      doc,
		Report:   rep,
		previous: prev,
		index:    make(map[string]*ir.Node),
		seen:     make(map[string]struct{}),
	}
}

// Existing returns the element previously materialized for appID, if it
// still exists in the document.
func (c *Context) Existing(appID string) (host.Element, bool) {
	if appID == "" || c.Doc == nil {
		return nil, false
	}
	c.mu.Lock()
	h, ok := c.previous[appID]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	return c.Doc.GetElement(h)
}

// Index makes nodes resolvable by content id and application id.
func (c *Context) Index(nodes ...*ir.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range nodes {
		if n.ID != "" {
			c.index[n.ID] = n
		}
		if n.ApplicationID != "" {
			if _, taken := c.index[n.ApplicationID]; !taken {
				c.index[n.ApplicationID] = n
			}
		}
	}
}

// Resolve follows a reference produced by the registry or the wire.
func (c *Context) Resolve(ref ir.IRRef) (*ir.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.index[string(ref)]
	return n, ok
}

// link indexes n and returns a reference to it.
func (c *Context) link(n *ir.Node) ir.IRRef {
	key := n.ID
	if key == "" {
		key = n.ApplicationID
	}
	if key == "" {
		key = "node:" + n.Kind
	}
	c.mu.Lock()
	c.index[key] = n
	c.mu.Unlock()
	return ir.IRRef(key)
}

func (c *Context) markConverted(appID string) {
	if appID == "" {
		return
	}
	c.mu.Lock()
	c.converted = append(c.converted, appID)
	c.seen[appID] = struct{}{}
	c.mu.Unlock()
}

// wasConverted reports whether appID already produced a node in this
// operation.
func (c *Context) wasConverted(appID string) bool {
	if appID == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[appID]
	return ok
}

// Converted returns the application ids converted to nodes so far, in order.
func (c *Context) Converted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.converted))
	copy(out, c.converted)
	return out
}
