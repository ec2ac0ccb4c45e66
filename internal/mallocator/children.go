package mallocator

import (
	"sort"

	"github.com/arborist-systems/mallocator/internal/merr"
)

// insertChildLocked inserts child into h's ordered list. Callers must
// hold h.tree.mu. Returns a NameCollision error, leaving h unmodified,
// if a sibling with the same name already exists.
func (h *Handle) insertChildLocked(child *Handle) error {
	i := sort.Search(len(h.children), func(i int) bool { return h.children[i].name >= child.name })
	if i < len(h.children) && h.children[i].name == child.name {
		return merr.NameCollision(h.name, child.name)
	}
	h.children = append(h.children, nil)
	copy(h.children[i+1:], h.children[i:])
	h.children[i] = child
	return nil
}

// removeChildLocked removes child from h's ordered list, if present.
// Callers must hold h.tree.mu.
func (h *Handle) removeChildLocked(child *Handle) {
	i := sort.Search(len(h.children), func(i int) bool { return h.children[i].name >= child.name })
	if i < len(h.children) && h.children[i] == child {
		h.children = append(h.children[:i], h.children[i+1:]...)
	}
}

// ChildLookup searches h's ordered child list for name, stopping as
// soon as it passes the point a match could occur. The returned handle
// carries an extra reference the caller is responsible for releasing.
func (h *Handle) ChildLookup(name string) (*Handle, bool) {
	t := h.tree
	t.mu.Lock()
	defer t.mu.Unlock()

	i := sort.Search(len(h.children), func(i int) bool { return h.children[i].name >= name })
	if i >= len(h.children) || h.children[i].name != name {
		return nil, false
	}
	child := h.children[i]
	child.refCount.Add(1)
	return child, true
}

// ChildCount reports how many direct children h currently has.
func (h *Handle) ChildCount() int {
	t := h.tree
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(h.children)
}

// ChildBegin returns h's first child in name order, referenced on
// behalf of the caller, or nil if h has no children. Pair it with
// ChildNext to walk the rest of the list; abandoning the walk before
// reaching nil still requires dereferencing whatever was last returned.
func (h *Handle) ChildBegin() *Handle {
	t := h.tree
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(h.children) == 0 {
		return nil
	}
	first := h.children[0]
	first.refCount.Add(1)
	return first
}

// ChildNext advances the traversal cursor: it references the sibling
// immediately after current (if any) before dereferencing current, so
// the sequence of operations never leaves a window where an abandoned
// cursor could have already freed the node the caller is holding.
func (h *Handle) ChildNext(current *Handle) *Handle {
	t := h.tree
	t.mu.Lock()
	var next *Handle
	for i, c := range h.children {
		if c == current {
			if i+1 < len(h.children) {
				next = h.children[i+1]
				next.refCount.Add(1)
			}
			break
		}
	}
	t.mu.Unlock()

	current.Dereference()
	return next
}

// Iterate walks h's direct children in name order, invoking fn once per
// child. fn must not itself call Dereference on the handle it is given
// — Iterate owns that handle's lifetime for the duration of the call.
func (h *Handle) Iterate(fn func(*Handle)) {
	child := h.ChildBegin()
	for child != nil {
		fn(child)
		child = h.ChildNext(child)
	}
}

// Walk recursively visits root and every descendant, depth-first,
// using Iterate at each level. It is a convenience built on top of the
// traversal cursor protocol, not a separate locking scheme.
func Walk(root *Handle, fn func(*Handle)) {
	fn(root)
	root.Iterate(func(child *Handle) {
		Walk(child, fn)
	})
}
