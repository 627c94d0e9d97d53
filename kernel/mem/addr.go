package mem

// PAddr is a physical address. It is a distinct named type from VAddr so
// the compiler rejects accidentally mixing the two kinds - a phantom-kind
// distinction expressed as separate named integer types (pmm.Frame vs
// vmm.Page), not as a generic Address[Kind].
type PAddr uint64

// VAddr is a virtual address.
type VAddr uint64

// IsAligned reports whether a is a multiple of size.
func (a PAddr) IsAligned(size PageSize) bool {
	return uint64(a)&(uint64(size.Bytes())-1) == 0
}

// AlignDown rounds a down to the previous multiple of size.
func (a PAddr) AlignDown(size PageSize) PAddr {
	mask := uint64(size.Bytes()) - 1
	return PAddr(uint64(a) &^ mask)
}

// AlignUp rounds a up to the next multiple of size.
func (a PAddr) AlignUp(size PageSize) PAddr {
	mask := uint64(size.Bytes()) - 1
	return PAddr((uint64(a) + mask) &^ mask)
}

// Add returns a+off.
func (a PAddr) Add(off uint64) PAddr { return a + PAddr(off) }

// IsAligned reports whether a is a multiple of size.
func (a VAddr) IsAligned(size PageSize) bool {
	return uint64(a)&(uint64(size.Bytes())-1) == 0
}

// AlignDown rounds a down to the previous multiple of size.
func (a VAddr) AlignDown(size PageSize) VAddr {
	mask := uint64(size.Bytes()) - 1
	return VAddr(uint64(a) &^ mask)
}

// AlignUp rounds a up to the next multiple of size.
func (a VAddr) AlignUp(size PageSize) VAddr {
	mask := uint64(size.Bytes()) - 1
	return VAddr((uint64(a) + mask) &^ mask)
}

// Add returns a+off.
func (a VAddr) Add(off uint64) VAddr { return a + VAddr(off) }

// CacheLineSize is the AArch64 cache line granule cache-maintenance
// operations must align to.
const CacheLineSize = 64

// KernelWindowBase is the virtual address at which the entire physical
// address space is mapped 1:1 (PAddr p is visible at KernelWindowBase+p).
// The page table manager uses this window to read and write the contents
// of page tables that are not the currently active one, replacing the x86
// recursive self-mapping trick with a flat offset - AArch64's 4-level
// tables have no spare top-level slot to recurse through, so a direct
// window is both simpler and one generalization further than recursive
// mapping.
const KernelWindowBase VAddr = 0xffff_0000_0000_0000

// KernelWindow returns the virtual address at which physical address p is
// accessible through the kernel window.
func KernelWindow(p PAddr) VAddr {
	return KernelWindowBase.Add(uint64(p))
}

// CacheFlushRange aligns [lo, hi) down/up to 64-byte lines and issues an
// architecture-appropriate clean+invalidate over the resulting range. It is
// the one operation in this package that is architecture-specific; on a
// non-AArch64 build cpu.DataCacheCleanInvalidateRange is a typed no-op that
// is rejected at package-init time (see kernel/cpu/cpu_stub.go) rather than
// silently producing wrong behavior.
func CacheFlushRange(lo, hi VAddr, flush func(lo, hi VAddr)) {
	if hi <= lo {
		return
	}
	// round to the cache line, not the page - cache maintenance is far
	// cheaper per-line than per-page.
	mask := VAddr(CacheLineSize - 1)
	alignedLo := VAddr(uint64(lo) &^ uint64(mask))
	alignedHi := VAddr((uint64(hi) + uint64(mask)) &^ uint64(mask))
	flush(alignedLo, alignedHi)
}
