package core

import "context"

// FilterNode is one cacheable unit in the invalidation graph. Its cache is
// a pure function of the node's own configuration and the upstream outputs
// last observed during computation; output is recomputed lazily on the
// next read after an invalidation, never eagerly. Nodes are confined to
// the single update goroutine, so no locking is applied.
type FilterNode struct {
	name      string
	compute   func(ctx context.Context) (any, error)
	cached    any
	valid     bool
	listeners []*FilterNode
}

// NewFilterNode constructs an unwired node with an empty cache.
func NewFilterNode(name string, compute func(ctx context.Context) (any, error)) *FilterNode {
	return &FilterNode{name: name, compute: compute}
}

// Name returns the node identifier used in traces.
func (n *FilterNode) Name() string { return n.name }

// Valid reports whether a cached output is present.
func (n *FilterNode) Valid() bool { return n.valid }

// Output returns the cached value, recomputing from upstream first when
// the cache is absent. Two reads without an intervening invalidation
// return the identical value.
func (n *FilterNode) Output(ctx context.Context) (any, error) {
	if n.valid {
		return n.cached, nil
	}
	value, err := n.compute(ctx)
	if err != nil {
		return nil, err
	}
	n.cached = value
	n.valid = true
	return n.cached, nil
}

// Invalidate clears the cache and synchronously notifies every registered
// listener, which recursively invalidate in turn. Propagation completes
// depth-first through all downstream listeners before any recomputation
// can be triggered; the only work done here is cache eviction plus
// notification.
func (n *FilterNode) Invalidate() {
	n.cached = nil
	n.valid = false
	for _, l := range n.listeners {
		l.Invalidate()
	}
}

// AddListener registers a downstream node notified on invalidation.
// Registration is idempotent.
func (n *FilterNode) AddListener(target *FilterNode) {
	for _, l := range n.listeners {
		if l == target {
			return
		}
	}
	n.listeners = append(n.listeners, target)
}

// RemoveListener drops a listener edge. Structural replacement of a node
// (swapping the active analyzer) must remove the old edge before adding
// the new one, or stale recomputation fires on the discarded instance.
func (n *FilterNode) RemoveListener(target *FilterNode) {
	for i, l := range n.listeners {
		if l == target {
			n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
			return
		}
	}
}

// Listeners returns the registered downstream nodes.
func (n *FilterNode) Listeners() []*FilterNode {
	return append([]*FilterNode(nil), n.listeners...)
}
