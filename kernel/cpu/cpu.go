// Package cpu provides the architecture-specific primitives the rest of the
// kernel treats as a closed set of no-body function declarations, backed by
// assembly in a per-architecture file - the same seam gopher-os's kernel
// uses for its amd64 primitives (EnableInterrupts/DisableInterrupts/
// FlushTLBEntry/SwitchPDT/ActivePDT), retargeted to AArch64.
//
// Every function here is a package-level var so tests can swap in a fake
// and the real build can still fully inline the call.
package cpu

import "github.com/sophon-os/sophon/kernel/mem"

var (
	// EnableInterruptsFn unmasks IRQs (AArch64: MSR DAIFClr, #2).
	EnableInterruptsFn = enableInterrupts
	// DisableInterruptsFn masks IRQs (AArch64: MSR DAIFSet, #2) and
	// returns the prior DAIF register value so it can be restored later.
	DisableInterruptsFn = disableInterrupts
	// RestoreInterruptsFn restores a previously saved interrupt mask.
	RestoreInterruptsFn = restoreInterrupts
	// HaltFn stops instruction execution (AArch64: WFI in a loop).
	HaltFn = halt
	// FlushTLBEntryFn invalidates a single TLB entry for a virtual
	// address (AArch64: TLBI VAE1IS + DSB ISH + ISB).
	FlushTLBEntryFn = flushTLBEntry
	// FlushTLBAllFn invalidates the entire non-global TLB range
	// (AArch64: TLBI VMALLE1IS + DSB ISH + ISB).
	FlushTLBAllFn = flushTLBAll
	// SwitchTTBR0Fn installs phys as the root of TTBR0_EL1 (the user
	// translation table base) and flushes the TLB.
	SwitchTTBR0Fn = switchTTBR0
	// ActiveTTBR0Fn returns the physical address currently installed in
	// TTBR0_EL1.
	ActiveTTBR0Fn = activeTTBR0
	// DataCacheCleanInvalidateRangeFn cleans and invalidates the data
	// cache over a 64-byte-aligned virtual range (AArch64: DC CIVAC per
	// line + DSB SY).
	DataCacheCleanInvalidateRangeFn = dataCacheCleanInvalidateRange
)

// Guard represents a held uninterruptible section: interrupts are masked
// from EnterCritical until Exit is called. It exists so every call site can
// write `g := cpu.EnterCritical(); defer g.Exit()` and get "restore prior state on
// every exit path" as a structural guarantee, rather than a calling
// convention callers have to get right by hand.
type Guard struct {
	prior uint64
	done  bool
}

// EnterCritical masks interrupts and returns a Guard that restores the
// prior mask when Exit is called. Nesting is safe: an inner EnterCritical
// captures the (already-masked) prior state and Exit restores exactly that
// state, so the outermost Exit is the one that actually unmasks.
func EnterCritical() Guard {
	return Guard{prior: DisableInterruptsFn()}
}

// Exit restores the interrupt mask captured by EnterCritical. Calling Exit
// more than once is a no-op.
func (g *Guard) Exit() {
	if g.done {
		return
	}
	g.done = true
	RestoreInterruptsFn(g.prior)
}

// CacheFlushRange is the exported cache-maintenance entry point: it
// aligns [lo, hi) to 64-byte lines and delegates to the arch-specific
// clean+invalidate primitive.
func CacheFlushRange(lo, hi mem.VAddr) {
	mem.CacheFlushRange(lo, hi, func(alo, ahi mem.VAddr) {
		DataCacheCleanInvalidateRangeFn(alo, ahi)
	})
}
