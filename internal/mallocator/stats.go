package mallocator

import (
	"sync"
	"sync/atomic"
)

// StatsMode selects how a tree accumulates the six per-handle counters.
type StatsMode int

const (
	// StatsLocked guards one six-field struct with a mutex per handle,
	// so a snapshot always observes an internally-consistent tuple.
	StatsLocked StatsMode = iota
	// StatsLockFree keeps six independent atomics per handle. Individual
	// field updates are sequentially consistent, but a snapshot taken
	// while another goroutine is mid-update may pair fields from
	// different points in time.
	StatsLockFree
)

// Stats is a point-in-time copy of a handle's six allocation counters.
type Stats struct {
	BlocksAllocated uint64
	BlocksFreed     uint64
	BlocksFailed    uint64
	BytesAllocated  uint64
	BytesFreed      uint64
	BytesFailed     uint64
}

// Leaked reports the outstanding block/byte imbalance at the moment of
// the snapshot — never negative, since frees never exceed allocations
// in a well-behaved caller.
func (s Stats) Leaked() (blocks, bytes uint64) {
	if s.BlocksAllocated > s.BlocksFreed {
		blocks = s.BlocksAllocated - s.BlocksFreed
	}
	if s.BytesAllocated > s.BytesFreed {
		bytes = s.BytesAllocated - s.BytesFreed
	}
	return blocks, bytes
}

// statsCollector is the per-handle accounting strategy. Every method
// implements one row (or row-group) of the allocation-outcome table.
type statsCollector interface {
	recordAlloc(size uintptr, ok bool)
	recordCalloc(n, size uintptr, ok bool)
	recordRealloc(oldSize, newSize uintptr, ok bool)
	recordFree(size uintptr)
	snapshot() Stats
}

func newStatsCollector(mode StatsMode) statsCollector {
	switch mode {
	case StatsLockFree:
		return &atomicStats{}
	default:
		return &lockedStats{}
	}
}

// lockedStats serializes every update and every snapshot behind one
// mutex, so a snapshot can never observe a half-applied update.
type lockedStats struct {
	mu sync.Mutex
	s  Stats
}

func (l *lockedStats) recordAlloc(size uintptr, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ok {
		l.s.BlocksAllocated++
		l.s.BytesAllocated += uint64(size)
	} else {
		l.s.BlocksFailed++
		l.s.BytesFailed += uint64(size)
	}
}

func (l *lockedStats) recordCalloc(n, size uintptr, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := uint64(n) * uint64(size)
	if ok {
		l.s.BlocksAllocated++
		l.s.BytesAllocated += total
	} else {
		l.s.BlocksFailed++
		l.s.BytesFailed += total
	}
}

func (l *lockedStats) recordRealloc(oldSize, newSize uintptr, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	applyRealloc(&l.s, oldSize, newSize, ok)
}

func (l *lockedStats) recordFree(size uintptr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s.BlocksFreed++
	l.s.BytesFreed += uint64(size)
}

func (l *lockedStats) snapshot() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s
}

// applyRealloc implements the realloc row of the allocation-outcome
// table for lockedStats; atomicStats.recordRealloc applies the same
// cases field by field to its atomics.
//
// A failed growth (new_size > 0, ok == false) still counts the old
// block as freed when old_size > 0 — this mirrors the table this
// package is built against: a realloc is modeled as alloc-new-copy-
// free-old, so even a failed grow is accounted as having released the
// old block, regardless of whether a given backend chooses to actually
// keep it alive for the caller.
func applyRealloc(s *Stats, oldSize, newSize uintptr, ok bool) {
	switch {
	case ok && oldSize > 0 && newSize > 0:
		s.BlocksAllocated++
		s.BytesAllocated += uint64(newSize)
		s.BlocksFreed++
		s.BytesFreed += uint64(oldSize)
	case ok && oldSize == 0 && newSize > 0:
		s.BlocksAllocated++
		s.BytesAllocated += uint64(newSize)
	case ok && oldSize > 0 && newSize == 0:
		s.BlocksFreed++
		s.BytesFreed += uint64(oldSize)
	case ok:
		// oldSize == 0 && newSize == 0: a no-op realloc, nothing to count.
	default:
		s.BlocksFailed++
		s.BytesFailed += uint64(newSize)
		if oldSize > 0 {
			s.BlocksFreed++
			s.BytesFreed += uint64(oldSize)
		}
	}
}

// atomicStats keeps six independent atomics. Each field update is
// itself atomic, but recordRealloc's two-field updates (e.g. allocated
// + freed together) are not applied as a single atomic transaction —
// a concurrent snapshot can observe one half-applied.
type atomicStats struct {
	blocksAllocated atomic.Uint64
	blocksFreed     atomic.Uint64
	blocksFailed    atomic.Uint64
	bytesAllocated  atomic.Uint64
	bytesFreed      atomic.Uint64
	bytesFailed     atomic.Uint64
}

func (a *atomicStats) recordAlloc(size uintptr, ok bool) {
	if ok {
		a.blocksAllocated.Add(1)
		a.bytesAllocated.Add(uint64(size))
	} else {
		a.blocksFailed.Add(1)
		a.bytesFailed.Add(uint64(size))
	}
}

func (a *atomicStats) recordCalloc(n, size uintptr, ok bool) {
	total := uint64(n) * uint64(size)
	if ok {
		a.blocksAllocated.Add(1)
		a.bytesAllocated.Add(total)
	} else {
		a.blocksFailed.Add(1)
		a.bytesFailed.Add(total)
	}
}

func (a *atomicStats) recordRealloc(oldSize, newSize uintptr, ok bool) {
	switch {
	case ok && oldSize > 0 && newSize > 0:
		a.blocksAllocated.Add(1)
		a.bytesAllocated.Add(uint64(newSize))
		a.blocksFreed.Add(1)
		a.bytesFreed.Add(uint64(oldSize))
	case ok && oldSize == 0 && newSize > 0:
		a.blocksAllocated.Add(1)
		a.bytesAllocated.Add(uint64(newSize))
	case ok && oldSize > 0 && newSize == 0:
		a.blocksFreed.Add(1)
		a.bytesFreed.Add(uint64(oldSize))
	case ok:
	default:
		a.blocksFailed.Add(1)
		a.bytesFailed.Add(uint64(newSize))
		if oldSize > 0 {
			a.blocksFreed.Add(1)
			a.bytesFreed.Add(uint64(oldSize))
		}
	}
}

func (a *atomicStats) recordFree(size uintptr) {
	a.blocksFreed.Add(1)
	a.bytesFreed.Add(uint64(size))
}

func (a *atomicStats) snapshot() Stats {
	return Stats{
		BlocksAllocated: a.blocksAllocated.Load(),
		BlocksFreed:     a.blocksFreed.Load(),
		BlocksFailed:    a.blocksFailed.Load(),
		BytesAllocated:  a.bytesAllocated.Load(),
		BytesFreed:      a.bytesFreed.Load(),
		BytesFailed:     a.bytesFailed.Load(),
	}
}
