package transfer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/objsync/internal/ir"
	"github.com/roach88/objsync/internal/metrics"
	"github.com/roach88/objsync/internal/report"
	"github.com/roach88/objsync/internal/transport"
)

// Receive downloads the object rootID and its closure from src and
// returns the reattached graph. Nodes referenced more than once are shared.
// A child that could not be fetched, when OnError allows continuing,
// stays in its parent as an ir.IRRef.
func Receive(ctx context.Context, rootID string, src transport.Transport, opts Options) (*ir.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := opts.logger()

	objects := make(map[string]*ir.Object)
	rootObjs, err := fetch(ctx, []string{rootID}, src, opts)
	if err != nil {
		return nil, err
	}
	root, ok := rootObjs[rootID]
	if !ok {
		// Without the root there is no graph to continue with.
		return nil, report.TransferFailed(src.Name()+": object "+rootID, transport.ErrNotFound, true)
	}
	objects[rootID] = root

	total := int64(len(root.Closure) + 1)
	opts.totalKnown(total)
	done := int64(1)
	opts.progress(done, total)
	log.Debug("receive started", "root", rootID, "objects", total)

	ids := make([]string, 0, len(root.Closure))
	for id := range root.Closure {
		ids = append(ids, id)
	}
	// Shallow objects first, so progress follows the shape of the graph.
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(root.Closure[a], root.Closure[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	for chunk := range slices.Chunk(ids, opts.chunkSize()) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		got, err := fetch(ctx, chunk, src, opts)
		if err != nil {
			return nil, err
		}
		for _, id := range chunk {
			o, ok := got[id]
			if !ok {
				if herr := opts.handle(src.Name()+": object "+id, transport.ErrNotFound); herr != nil {
					return nil, herr
				}
				continue
			}
			objects[id] = o
		}
		done += int64(len(chunk))
		opts.progress(done, total)
	}

	node := reattach(rootID, objects)
	log.Debug("receive finished", "root", rootID, "fetched", len(objects))
	return node, nil
}

// fetch reads ids from the cache and then the source, filling the cache
// with what came from the source. Objects that fail to decode or do not
// hash to their id are routed to OnError and left out.
func fetch(ctx context.Context, ids []string, src transport.Transport, opts Options) (map[string]*ir.Object, error) {
	raw := make(map[string][]byte, len(ids))
	remaining := ids

	if opts.Cache != nil {
		cached, err := transport.GetAll(ctx, opts.Cache, ids)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// A broken cache only costs a refetch.
			opts.logger().Warn("cache read failed", "cache", opts.Cache.Name(), "error", err)
		}
		remaining = make([]string, 0, len(ids))
		for _, id := range ids {
			if data, ok := cached[id]; ok {
				raw[id] = data
			} else {
				remaining = append(remaining, id)
			}
		}
	}

	if len(remaining) > 0 {
		got, err := transport.GetAll(ctx, src, remaining)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			subject := fmt.Sprintf("%s: objects %s..%s", src.Name(), short(remaining[0]), short(remaining[len(remaining)-1]))
			if herr := opts.handle(subject, err); herr != nil {
				return nil, herr
			}
			got = nil
		}
		metrics.ObjectsTransferred.WithLabelValues("receive", src.Name()).Add(float64(len(got)))

		fill := make([]transport.Item, 0, len(got))
		for _, id := range remaining {
			if data, ok := got[id]; ok {
				raw[id] = data
				fill = append(fill, transport.Item{ID: id, Data: data})
			}
		}
		if opts.Cache != nil && len(fill) > 0 {
			if err := transport.PutAll(ctx, opts.Cache, fill); err != nil {
				opts.logger().Warn("cache write failed", "cache", opts.Cache.Name(), "error", err)
			}
		}
	}

	out := make(map[string]*ir.Object, len(raw))
	for _, id := range ids {
		data, ok := raw[id]
		if !ok {
			continue
		}
		o, err := ir.DecodeObject(data)
		if err == nil && o.ID != id {
			err = fmt.Errorf("%w: stored under %s, content is %s", ir.ErrIDMismatch, id, o.ID)
		}
		if err != nil {
			if herr := opts.handle(src.Name()+": object "+id, err); herr != nil {
				return nil, herr
			}
			continue
		}
		out[id] = o
	}
	return out, nil
}

// reattach rebuilds nodes bottom-up from objects, sharing one *ir.Node per
// id. Content addressing rules out cycles.
func reattach(rootID string, objects map[string]*ir.Object) *ir.Node {
	built := make(map[string]*ir.Node, len(objects))
	var resolve func(id string) (*ir.Node, bool)
	resolve = func(id string) (*ir.Node, bool) {
		if n, ok := built[id]; ok {
			return n, true
		}
		o, ok := objects[id]
		if !ok {
			return nil, false
		}
		n := ir.Attach(o, resolve)
		built[id] = n
		return n, true
	}
	n, _ := resolve(rootID)
	return n
}

// IsCancelled reports whether err ends a transfer because its context
// was cancelled or timed out.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
