package mallocator

import (
	"testing"
)

// TestBasicStatsCounting covers scenario S1: alloc/free through a
// single handle should produce consistent, monotonically non-decreasing
// counters.
func TestBasicStatsCounting(t *testing.T) {
	root, err := New("root")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	t.Run("AllocAndFree", func(t *testing.T) {
		ptr := root.Alloc(64)
		if ptr == nil {
			t.Fatal("Alloc failed")
		}
		root.Free(ptr, 64)

		stats := root.Stats()
		if stats.BlocksAllocated != 1 || stats.BytesAllocated != 64 {
			t.Errorf("unexpected allocated counters: %+v", stats)
		}
		if stats.BlocksFreed != 1 || stats.BytesFreed != 64 {
			t.Errorf("unexpected freed counters: %+v", stats)
		}
	})

	t.Run("CallocAccountsFullByteCount", func(t *testing.T) {
		before := root.Stats()
		ptr := root.Calloc(4, 16)
		if ptr == nil {
			t.Fatal("Calloc failed")
		}
		after := root.Stats()
		if after.BytesAllocated-before.BytesAllocated != 64 {
			t.Errorf("calloc should account n*size = 64 bytes, got %d",
				after.BytesAllocated-before.BytesAllocated)
		}
		root.Free(ptr, 64)
	})

	t.Run("MonotonicCounters", func(t *testing.T) {
		before := root.Stats()
		for i := 0; i < 8; i++ {
			p := root.Alloc(8)
			root.Free(p, 8)
		}
		after := root.Stats()
		if after.BlocksAllocated < before.BlocksAllocated ||
			after.BlocksFreed < before.BlocksFreed {
			t.Error("counters must never decrease")
		}
	})
}

// TestHierarchyLifecycle covers scenario S2: a root with two children,
// one of which has its own child, survives dereference as long as it
// still has descendants, and the whole chain cascades once emptied.
func TestHierarchyLifecycle(t *testing.T) {
	root, err := New("r")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	c1, err := root.CreateChild("c1")
	if err != nil {
		t.Fatalf("CreateChild c1 failed: %v", err)
	}
	_, err = root.CreateChild("c2")
	if err != nil {
		t.Fatalf("CreateChild c2 failed: %v", err)
	}
	g, err := c1.CreateChild("g")
	if err != nil {
		t.Fatalf("CreateChild g failed: %v", err)
	}

	root.Dereference()
	if root.refCount.Load() != 0 {
		t.Fatal("root should have ref_count 0 after its single dereference")
	}
	if root.ChildCount() != 2 {
		t.Fatal("root should survive with its two children still attached")
	}

	ptr := c1.Alloc(1)
	c1.Free(ptr, 1)
	c1.Dereference()
	if c1.ChildCount() != 1 {
		t.Fatal("c1 should survive because it still has child g")
	}

	g.Dereference()
	// g has no children and now ref_count 0: it is destroyed, which
	// makes c1 childless with ref_count 0, cascading c1's destruction.
	// root has ref_count 0 but still holds c2, so the cascade stops there.
	if root.ChildCount() != 1 {
		t.Fatalf("root should have exactly one surviving child (c2), got %d", root.ChildCount())
	}
}

// TestNameCollision covers scenario S3.
func TestNameCollision(t *testing.T) {
	root, _ := New("r")
	if _, err := root.CreateChild("dup"); err != nil {
		t.Fatalf("first CreateChild failed: %v", err)
	}
	if _, err := root.CreateChild("dup"); err == nil {
		t.Fatal("expected a name collision error on the second CreateChild")
	}
	if root.ChildCount() != 1 {
		t.Fatalf("collision must not leave a second child behind, got %d", root.ChildCount())
	}
}

// TestOrderedIteration covers scenario S4: children are visited in
// ascending byte-lexicographic order regardless of creation order.
func TestOrderedIteration(t *testing.T) {
	root, _ := New("r")
	for _, name := range []string{"zeta", "alpha", "mu", "beta"} {
		if _, err := root.CreateChild(name); err != nil {
			t.Fatalf("CreateChild(%q) failed: %v", name, err)
		}
	}

	var seen []string
	root.Iterate(func(h *Handle) { seen = append(seen, h.Name()) })

	want := []string{"alpha", "beta", "mu", "zeta"}
	if len(seen) != len(want) {
		t.Fatalf("got %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, seen[i], want[i])
		}
	}
}

// TestChildLookupAndFullName exercises ChildLookup and the dotted
// full-name path.
func TestChildLookupAndFullName(t *testing.T) {
	root, _ := New("r")
	child, _ := root.CreateChild("mid")
	grandchild, _ := child.CreateChild("leaf")

	if grandchild.FullName() != "r.mid.leaf" {
		t.Errorf("unexpected FullName: %q", grandchild.FullName())
	}

	found, ok := root.ChildLookup("mid")
	if !ok || found != child {
		t.Fatal("ChildLookup should find mid")
	}
	found.Dereference()

	if _, ok := root.ChildLookup("nope"); ok {
		t.Fatal("ChildLookup should not find a nonexistent name")
	}
}

// TestReferenceAfterDereferenceZeroPanics ensures a handle at
// ref_count == 0 cannot be used again without panicking.
func TestReferenceAfterDereferenceZeroPanics(t *testing.T) {
	root, _ := New("r")
	leaf, _ := root.CreateChild("leaf")
	leaf.Reference() // ref_count now 2

	leaf.Dereference() // back to 1, still alive
	leaf.Dereference() // 0, no children: destroyed

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic using a destroyed handle")
		}
	}()
	leaf.Reference()
}

// TestAllocPreconditionPanics exercises §7's fatal-precondition path.
func TestAllocPreconditionPanics(t *testing.T) {
	root, _ := New("r")
	root.Dereference() // root had no children: destroyed immediately

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic allocating through a destroyed handle")
		}
	}()
	root.Alloc(1)
}

// TestReallocEdgeCases exercises the realloc-as-alloc and
// realloc-as-free special cases.
func TestReallocEdgeCases(t *testing.T) {
	root, _ := New("r")

	t.Run("NilOldActsAsAlloc", func(t *testing.T) {
		before := root.Stats()
		ptr := root.Realloc(nil, 0, 32)
		if ptr == nil {
			t.Fatal("realloc(nil, 0, 32) should succeed")
		}
		after := root.Stats()
		if after.BlocksAllocated-before.BlocksAllocated != 1 {
			t.Error("realloc(nil,0,n>0) should count as one allocation")
		}
		if after.BlocksFreed != before.BlocksFreed {
			t.Error("realloc(nil,0,n>0) should not count a free")
		}
		root.Free(ptr, 32)
	})

	t.Run("ZeroNewActsAsFree", func(t *testing.T) {
		ptr := root.Alloc(16)
		before := root.Stats()
		result := root.Realloc(ptr, 16, 0)
		if result != nil {
			t.Error("realloc(ptr,n,0) should return nil")
		}
		after := root.Stats()
		if after.BlocksFreed-before.BlocksFreed != 1 {
			t.Error("realloc(ptr,n,0) should count as one free")
		}
		if after.BlocksAllocated != before.BlocksAllocated {
			t.Error("realloc(ptr,n,0) should not count an allocation")
		}
	})
}
