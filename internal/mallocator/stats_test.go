package mallocator

import "testing"

// TestAllocationOutcomeTable drives every row of the allocation-outcome
// table directly against both statistics strategies, so the locked and
// lock-free collectors can never silently diverge.
func TestAllocationOutcomeTable(t *testing.T) {
	cases := []struct {
		name  string
		apply func(s statsCollector)
		want  Stats
	}{
		{
			name:  "AllocSuccess",
			apply: func(s statsCollector) { s.recordAlloc(10, true) },
			want:  Stats{BlocksAllocated: 1, BytesAllocated: 10},
		},
		{
			name:  "AllocFailure",
			apply: func(s statsCollector) { s.recordAlloc(10, false) },
			want:  Stats{BlocksFailed: 1, BytesFailed: 10},
		},
		{
			name:  "CallocSuccessCountsFullProduct",
			apply: func(s statsCollector) { s.recordCalloc(4, 8, true) },
			want:  Stats{BlocksAllocated: 1, BytesAllocated: 32},
		},
		{
			name:  "CallocFailureCountsFullProduct",
			apply: func(s statsCollector) { s.recordCalloc(4, 8, false) },
			want:  Stats{BlocksFailed: 1, BytesFailed: 32},
		},
		{
			name:  "ReallocGrowSuccess",
			apply: func(s statsCollector) { s.recordRealloc(10, 20, true) },
			want:  Stats{BlocksAllocated: 1, BytesAllocated: 20, BlocksFreed: 1, BytesFreed: 10},
		},
		{
			name:  "ReallocActsAsAllocWhenOldZero",
			apply: func(s statsCollector) { s.recordRealloc(0, 20, true) },
			want:  Stats{BlocksAllocated: 1, BytesAllocated: 20},
		},
		{
			name:  "ReallocActsAsFreeWhenNewZero",
			apply: func(s statsCollector) { s.recordRealloc(10, 0, true) },
			want:  Stats{BlocksFreed: 1, BytesFreed: 10},
		},
		{
			name:  "ReallocFailureCountsFailedAndOldFreed",
			apply: func(s statsCollector) { s.recordRealloc(10, 20, false) },
			want:  Stats{BlocksFailed: 1, BytesFailed: 20, BlocksFreed: 1, BytesFreed: 10},
		},
		{
			name:  "ReallocFailureFromZeroOldOnlyCountsFailed",
			apply: func(s statsCollector) { s.recordRealloc(0, 20, false) },
			want:  Stats{BlocksFailed: 1, BytesFailed: 20},
		},
		{
			name:  "Free",
			apply: func(s statsCollector) { s.recordFree(10) },
			want:  Stats{BlocksFreed: 1, BytesFreed: 10},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, mode := range []StatsMode{StatsLocked, StatsLockFree} {
				collector := newStatsCollector(mode)
				tc.apply(collector)
				got := collector.snapshot()
				if got != tc.want {
					t.Errorf("mode %v: got %+v, want %+v", mode, got, tc.want)
				}
			}
		})
	}
}

func TestStatsLeaked(t *testing.T) {
	s := Stats{BlocksAllocated: 5, BlocksFreed: 2, BytesAllocated: 500, BytesFreed: 100}
	blocks, bytes := s.Leaked()
	if blocks != 3 || bytes != 400 {
		t.Errorf("Leaked() = (%d, %d), want (3, 400)", blocks, bytes)
	}

	balanced := Stats{BlocksAllocated: 4, BlocksFreed: 4}
	if b, by := balanced.Leaked(); b != 0 || by != 0 {
		t.Errorf("balanced stats should report no leak, got (%d, %d)", b, by)
	}
}
