// Package mallocator implements a hierarchical, reference-counted,
// pluggable memory-allocator facade: a graph of named handles, each
// optionally backed by its own allocation strategy, collecting
// allocation statistics independently of whatever backend actually
// services the call.
package mallocator

import (
	"runtime"
	"sync"
	"unsafe"
)

// Backend is the capability a handle may delegate allocation to. A nil
// Backend on a handle means "use the platform heap directly" — every
// handle is usable without ever touching this interface.
//
// CreateChild is consulted by (*Handle).CreateChild before the child
// handle itself is allocated; a non-nil error aborts the child
// creation entirely. Returning (nil, nil) is valid and means the
// child's subtree should fall back to the platform heap rather than
// inherit this backend.
type Backend interface {
	CreateChild(name string) (Backend, error)
	Destroy()
	Alloc(size uintptr) unsafe.Pointer
	Calloc(n, size uintptr) unsafe.Pointer
	Realloc(ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer
	Free(ptr unsafe.Pointer, size uintptr)
}

// platformAlloc is the platform heap primitive every backend eventually
// bottoms out on. A Go slice backs the block, and unsafe.Pointer to its
// first byte stands in for the C-style pointer the rest of the facade
// passes around.
func platformAlloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}
	buf := make([]byte, size)
	ptr := unsafe.Pointer(&buf[0])
	runtime.KeepAlive(buf)
	return ptr
}

func platformCalloc(n, size uintptr) unsafe.Pointer {
	// make([]byte, ...) already zero-fills, so calloc needs nothing beyond
	// the size computation platformAlloc itself performs.
	return platformAlloc(n * size)
}

func platformFree(_ unsafe.Pointer, _ uintptr) {
	// The platform heap is simulated with Go-GC-owned slices: there is no
	// explicit release, only the bookkeeping a caller does on top of it.
}

func platformRealloc(ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer {
	if ptr == nil || oldSize == 0 {
		return platformAlloc(newSize)
	}
	if newSize == 0 {
		platformFree(ptr, oldSize)
		return nil
	}
	newPtr := platformAlloc(newSize)
	if newPtr == nil {
		return nil
	}
	n := oldSize
	if newSize < n {
		n = newSize
	}
	copyBytes(newPtr, ptr, n)
	platformFree(ptr, oldSize)
	return newPtr
}

func copyBytes(dst, src unsafe.Pointer, n uintptr) {
	if n == 0 {
		return
	}
	dstSlice := unsafe.Slice((*byte)(dst), n)
	srcSlice := unsafe.Slice((*byte)(src), n)
	copy(dstSlice, srcSlice)
}

// PlatformBackend is an explicit, referenceable handle onto the platform
// heap. It carries no state of its own beyond a reference count guarded
// by a mutex: CreateChild shares the same backend across an entire
// subtree rather than allocating a new one per node.
type PlatformBackend struct {
	mu       sync.Mutex
	refCount int
}

// NewPlatformBackend returns a fresh platform-heap backend with a single
// reference. Pass it to NewCustom to build a root handle whose subtree
// is explicitly, rather than implicitly, backed by the platform heap.
func NewPlatformBackend() *PlatformBackend {
	return &PlatformBackend{refCount: 1}
}

func (p *PlatformBackend) CreateChild(string) (Backend, error) {
	p.mu.Lock()
	p.refCount++
	p.mu.Unlock()
	return p, nil
}

func (p *PlatformBackend) Destroy() {
	p.mu.Lock()
	p.refCount--
	p.mu.Unlock()
}

func (p *PlatformBackend) Alloc(size uintptr) unsafe.Pointer { return platformAlloc(size) }
func (p *PlatformBackend) Calloc(n, size uintptr) unsafe.Pointer {
	return platformCalloc(n, size)
}
func (p *PlatformBackend) Realloc(ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer {
	return platformRealloc(ptr, oldSize, newSize)
}
func (p *PlatformBackend) Free(ptr unsafe.Pointer, size uintptr) { platformFree(ptr, size) }
