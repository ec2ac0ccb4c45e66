package mallocator

import (
	"fmt"
	"sync/atomic"

	"github.com/arborist-systems/mallocator/internal/merr"
)

// Handle is one node of the hierarchy: a name, a weak link to its
// parent, an ordered list of named children, a reference count, an
// optional backend, and its own statistics.
//
// A Handle's name and parent are fixed at creation and never change;
// only its children and reference count mutate, and only under its
// tree's mutex.
type Handle struct {
	tree     *Tree
	name     string
	parent   *Handle
	children []*Handle // kept sorted ascending by name; guarded by tree.mu
	refCount atomic.Uint64
	backend  Backend
	stats    statsCollector
}

// Name returns the handle's own name, not the dotted path from root.
func (h *Handle) Name() string { return h.name }

// FullName returns the dotted path from the tree's root to h.
func (h *Handle) FullName() string {
	if h.parent == nil {
		return h.name
	}
	segments := []string{h.name}
	for p := h.parent; p != nil; p = p.parent {
		segments = append(segments, p.name)
	}
	full := segments[len(segments)-1]
	for i := len(segments) - 2; i >= 0; i-- {
		full += "." + segments[i]
	}
	return full
}

// Stats returns a point-in-time snapshot of h's own six counters —
// these do not include any descendant's activity.
func (h *Handle) Stats() Stats { return h.stats.snapshot() }

// CreateChild creates and attaches a new named child of h. If h has a
// backend, the backend's CreateChild is consulted first; a failure
// there aborts the whole operation. If a sibling with the same name
// already exists, the new child (and any speculative backend child
// created for it) is rolled back and an error is returned.
func (h *Handle) CreateChild(name string) (*Handle, error) {
	var childBackend Backend
	if h.backend != nil {
		cb, err := h.backend.CreateChild(name)
		if err != nil {
			return nil, fmt.Errorf("create backend child %q of %q: %w", name, h.FullName(), err)
		}
		childBackend = cb
	}

	child := &Handle{
		tree:    h.tree,
		name:    name,
		parent:  h,
		backend: childBackend,
		stats:   newStatsCollector(h.tree.statsMode),
	}
	child.refCount.Store(1)

	t := h.tree
	t.mu.Lock()
	err := h.insertChildLocked(child)
	t.mu.Unlock()

	if err != nil {
		if childBackend != nil {
			childBackend.Destroy()
		}
		return nil, err
	}

	t.logger.Debug().Str("handle", child.FullName()).Msg("handle created")
	return child, nil
}

// Reference increments h's reference count. It panics if h's reference
// count is already zero — using a dereferenced handle is a programming
// error, not a recoverable condition.
func (h *Handle) Reference() {
	t := h.tree
	t.mu.Lock()
	defer t.mu.Unlock()
	if h.refCount.Load() == 0 {
		panic(merr.NewPreconditionViolated("Reference", h.name))
	}
	h.refCount.Add(1)
}

// Dereference releases one reference to h. When h's reference count
// reaches zero and it has no children, it is detached from its parent
// and destroyed; destruction then cascades upward through any ancestor
// that becomes childless with a zero reference count as a result. The
// walk is an explicit loop, not recursion, so an arbitrarily deep chain
// of single-child ancestors cannot overflow the call stack.
func (h *Handle) Dereference() {
	t := h.tree

	var destroyChain []*Handle
	t.mu.Lock()
	if h.refCount.Load() == 0 {
		t.mu.Unlock()
		panic(merr.NewPreconditionViolated("Dereference", h.name))
	}
	h.refCount.Add(^uint64(0)) // decrement by one

	// Only the handle passed to Dereference is ever decremented here.
	// Ancestors visited by the cascade below are checked, never
	// decremented: a child becoming destroyable affects its parent's
	// child list, not the parent's own reference count.
	for cur := h; cur != nil; {
		if cur.refCount.Load() != 0 || len(cur.children) != 0 {
			break
		}
		parent := cur.parent
		if parent != nil {
			parent.removeChildLocked(cur)
		}
		destroyChain = append(destroyChain, cur)
		cur = parent
	}
	t.mu.Unlock()

	for _, d := range destroyChain {
		d.finalize()
	}
}

func (h *Handle) finalize() {
	if lr := h.tree.leakReporter.Load(); lr != nil && *lr != nil {
		snap := h.stats.snapshot()
		if blocks, bytes := snap.Leaked(); blocks > 0 || bytes > 0 {
			h.tree.logger.Warn().
				Str("handle", h.FullName()).
				Uint64("blocks_leaked", blocks).
				Uint64("bytes_leaked", bytes).
				Msg("handle destroyed with outstanding allocations")
			(*lr)(h.FullName(), blocks, bytes)
		}
	}
	if h.backend != nil {
		h.backend.Destroy()
	}
	h.tree.logger.Debug().Str("handle", h.name).Msg("handle destroyed")
}

func (h *Handle) checkLive(op string) {
	if h.refCount.Load() == 0 {
		panic(merr.NewPreconditionViolated(op, h.name))
	}
}
