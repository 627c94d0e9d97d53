package cpu

import (
	"testing"

	"github.com/sophon-os/sophon/kernel/mem"
)

func TestGuardRestoresPriorMask(t *testing.T) {
	defer func(dis func() uint64, res func(uint64)) {
		DisableInterruptsFn = dis
		RestoreInterruptsFn = res
	}(DisableInterruptsFn, RestoreInterruptsFn)

	var restored []uint64
	callCount := 0
	DisableInterruptsFn = func() uint64 {
		callCount++
		return uint64(callCount)
	}
	RestoreInterruptsFn = func(mask uint64) {
		restored = append(restored, mask)
	}

	g := EnterCritical()
	g.Exit()
	g.Exit() // second Exit must be a no-op

	if len(restored) != 1 || restored[0] != 1 {
		t.Fatalf("expected exactly one restore call with mask 1; got %v", restored)
	}
}

func TestCacheFlushRangeAlignsToLine(t *testing.T) {
	defer func(f func(lo, hi mem.VAddr)) { DataCacheCleanInvalidateRangeFn = f }(DataCacheCleanInvalidateRangeFn)

	var gotLo, gotHi mem.VAddr
	DataCacheCleanInvalidateRangeFn = func(lo, hi mem.VAddr) {
		gotLo, gotHi = lo, hi
	}

	CacheFlushRange(mem.VAddr(10), mem.VAddr(70))

	if gotLo != 0 || gotHi != 128 {
		t.Fatalf("expected [0,128); got [%d,%d)", gotLo, gotHi)
	}
}
