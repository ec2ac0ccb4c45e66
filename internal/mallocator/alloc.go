package mallocator

import "unsafe"

// Alloc requests size bytes through h, forwarding to h's backend if it
// has one, or the platform heap otherwise. A nil return means the
// request failed; h's statistics are updated either way.
func (h *Handle) Alloc(size uintptr) unsafe.Pointer {
	h.checkLive("Alloc")

	var ptr unsafe.Pointer
	if h.backend != nil {
		ptr = h.backend.Alloc(size)
	} else {
		ptr = platformAlloc(size)
	}
	h.stats.recordAlloc(size, ptr != nil)
	return ptr
}

// Calloc requests n*size zeroed bytes through h. The stats table
// accounts the full n*size byte count on both success and failure.
func (h *Handle) Calloc(n, size uintptr) unsafe.Pointer {
	h.checkLive("Calloc")

	var ptr unsafe.Pointer
	if h.backend != nil {
		ptr = h.backend.Calloc(n, size)
	} else {
		ptr = platformCalloc(n, size)
	}
	h.stats.recordCalloc(n, size, ptr != nil)
	return ptr
}

// Realloc resizes the block at ptr (of oldSize bytes) to newSize bytes
// through h. realloc(nil, 0, newSize) behaves as Alloc(newSize);
// realloc(ptr, oldSize, 0) behaves as Free(ptr, oldSize) and always
// reports success with a nil return.
func (h *Handle) Realloc(ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer {
	h.checkLive("Realloc")

	var newPtr unsafe.Pointer
	if h.backend != nil {
		newPtr = h.backend.Realloc(ptr, oldSize, newSize)
	} else {
		newPtr = platformRealloc(ptr, oldSize, newSize)
	}
	ok := newSize == 0 || newPtr != nil
	h.stats.recordRealloc(oldSize, newSize, ok)
	return newPtr
}

// Free releases the block at ptr (of size bytes) through h. Free never
// fails: every backend's Free contract guarantees it reaches the
// underlying heap.
func (h *Handle) Free(ptr unsafe.Pointer, size uintptr) {
	h.checkLive("Free")

	if h.backend != nil {
		h.backend.Free(ptr, size)
	} else {
		platformFree(ptr, size)
	}
	h.stats.recordFree(size)
}
