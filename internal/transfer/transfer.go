// Package transfer moves a node graph to and from content-addressed
// transports.
//
// Send detaches the graph bottom-up, so every parent's content id covers
// its children's ids, and writes each unique object once per transport,
// skipping objects a transport already has. Receive reads the root first,
// reports the closure size once, then fetches the rest in chunks and
// reattaches the graph. Both check the context before every chunk; once it
// is done no further transport calls start.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/objsync/internal/graph"
	"github.com/roach88/objsync/internal/ir"
	"github.com/roach88/objsync/internal/metrics"
	"github.com/roach88/objsync/internal/report"
	"github.com/roach88/objsync/internal/transport"
)

// DefaultChunkSize is the number of objects per transport round trip.
const DefaultChunkSize = 25

// ErrNoTransports is returned by Send when no transport is configured.
var ErrNoTransports = errors.New("no transports configured")

// Options configures one Send or Receive.
type Options struct {
	// ChunkSize bounds objects per round trip. Zero means DefaultChunkSize.
	ChunkSize int

	// OnTotalKnown is called once with the number of objects the call
	// will process, before any of them is transferred.
	OnTotalKnown func(total int64)

	// OnProgress is called with the cumulative number of objects done.
	// Values never decrease.
	OnProgress func(current, total int64)

	// OnError is called for every failed object or chunk. Returning true
	// continues the transfer without it; returning false, or leaving
	// OnError nil, aborts with a fatal report.CodeTransferFailure error.
	OnError func(subject string, err error) bool

	// Cache, when set, is consulted before the source on Receive and
	// filled with every object fetched from the source.
	Cache transport.Transport

	Logger *slog.Logger
}

func (o Options) chunkSize() int {
	if o.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o Options) totalKnown(total int64) {
	if o.OnTotalKnown != nil {
		o.OnTotalKnown(total)
	}
}

func (o Options) progress(current, total int64) {
	if o.OnProgress != nil {
		o.OnProgress(current, total)
	}
}

// handle routes a failure to OnError and returns nil when the transfer
// should continue.
func (o Options) handle(subject string, err error) error {
	metrics.TransferErrors.WithLabelValues(subjectTransport(subject)).Inc()
	if o.OnError != nil && o.OnError(subject, err) {
		o.logger().Warn("transfer error, continuing", "subject", subject, "error", err)
		return nil
	}
	return report.TransferFailed(subject, err, true)
}

// subject strings are "<transport>: <what>".
func subjectTransport(subject string) string {
	for i := 0; i < len(subject); i++ {
		if subject[i] == ':' && i+1 < len(subject) && subject[i+1] == ' ' {
			return subject[:i]
		}
	}
	return subject
}

// Detached is the wire form of a graph in upload order.
type Detached struct {
	RootID  string
	Objects []*ir.Object // children before parents, unique by id
}

// Detach converts the graph below root into wire objects.
func Detach(root *ir.Node) (*Detached, error) {
	if root == nil {
		return nil, errors.New("transfer: nil root")
	}
	order, err := graph.PostOrder(root)
	if err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}

	byNode := make(map[*ir.Node]*ir.Object, len(order))
	byID := make(map[string]*ir.Object, len(order))
	lookup := func(n *ir.Node) (*ir.Object, bool) {
		if o, ok := byNode[n]; ok {
			return o, true
		}
		if n.ID != "" {
			o, ok := byID[n.ID]
			return o, ok
		}
		return nil, false
	}

	d := &Detached{}
	seen := make(map[string]struct{}, len(order))
	for _, n := range order {
		o, err := ir.Detach(n, lookup)
		if err != nil {
			return nil, fmt.Errorf("transfer: detach %s: %w", n.Label(), err)
		}
		byNode[n] = o
		if n.ID != "" {
			byID[n.ID] = o
		}
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}
		d.Objects = append(d.Objects, o)
	}
	d.RootID = byNode[root].ID
	return d, nil
}

// Send uploads root and its closure to every transport and returns the
// root's content id.
func Send(ctx context.Context, root *ir.Node, transports []transport.Transport, opts Options) (string, error) {
	if len(transports) == 0 {
		return "", ErrNoTransports
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d, err := Detach(root)
	if err != nil {
		return "", err
	}
	items := make([]transport.Item, len(d.Objects))
	for i, o := range d.Objects {
		data, err := ir.EncodeObject(o)
		if err != nil {
			return "", fmt.Errorf("transfer: encode %s: %w", o.ID, err)
		}
		items[i] = transport.Item{ID: o.ID, Data: data}
	}

	total := int64(len(items))
	opts.totalKnown(total)
	log := opts.logger()
	log.Debug("send started", "root", d.RootID, "objects", total, "transports", len(transports))

	var done int64
	for chunk := range slices.Chunk(items, opts.chunkSize()) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := sendChunk(ctx, chunk, transports, opts); err != nil {
			return "", err
		}
		done += int64(len(chunk))
		opts.progress(done, total)
	}
	log.Debug("send finished", "root", d.RootID)
	return d.RootID, nil
}

// sendChunk writes one chunk to all transports in parallel. Each
// transport receives only the objects it does not have yet, and a failing
// transport never stops the writes to the others.
func sendChunk(ctx context.Context, chunk []transport.Item, transports []transport.Transport, opts Options) error {
	failures := make([]error, len(transports))
	var g errgroup.Group
	for i, tr := range transports {
		g.Go(func() error {
			failures[i] = putMissing(ctx, tr, chunk)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	first, last := chunk[0].ID, chunk[len(chunk)-1].ID
	for i, err := range failures {
		if err == nil {
			continue
		}
		subject := fmt.Sprintf("%s: objects %s..%s", transports[i].Name(), short(first), short(last))
		if herr := opts.handle(subject, err); herr != nil {
			return herr
		}
	}
	return nil
}

// putMissing writes the items of chunk that tr does not hold yet.
func putMissing(ctx context.Context, tr transport.Transport, chunk []transport.Item) error {
	missing := make([]transport.Item, 0, len(chunk))
	for _, it := range chunk {
		ok, err := tr.Has(ctx, it.ID)
		if err != nil {
			return fmt.Errorf("has %s: %w", it.ID, err)
		}
		if !ok {
			missing = append(missing, it)
		}
	}
	metrics.ObjectsDeduplicated.WithLabelValues(tr.Name()).Add(float64(len(chunk) - len(missing)))
	if err := transport.PutAll(ctx, tr, missing); err != nil {
		return err
	}
	metrics.ObjectsTransferred.WithLabelValues("send", tr.Name()).Add(float64(len(missing)))
	return nil
}

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
