package vmm

import (
	"unsafe"

	"github.com/sophon-os/sophon/kernel"
	"github.com/sophon-os/sophon/kernel/mem"
	"github.com/sophon-os/sophon/kernel/mem/pmm"
)

// pageLevels is the number of translation table levels Sophon walks: L4
// (root, 512G granularity, table descriptors only), L3 (1G), L2 (2M), L1
// (4K) - indices 0..3 below.
const pageLevels = 4

// WindowFn maps a table frame's physical address to the virtual
// address its contents can be read/written at. In production this is
// always mem.KernelWindow; tests override it to redirect table access
// into ordinary Go-allocated memory standing in for physical frames.
var WindowFn = mem.KernelWindow

// levelShift returns the bit position of the 9-bit table index for level
// (0 == L4 .. 3 == L1) within a virtual address.
func levelShift(level int) uint {
	return uint(39 - 9*level)
}

// levelIndex extracts the 9-bit table index for level from vaddr.
func levelIndex(vaddr mem.VAddr, level int) uint64 {
	return (uint64(vaddr) >> levelShift(level)) & 0x1ff
}

// leafLevel returns the table level (0-based, L4..L1) at which a mapping
// of the given page size terminates: L3 for 1G, L2 for 2M, L1 for 4K.
func leafLevel(size mem.PageSize) int {
	switch size {
	case mem.Size1G:
		return 1
	case mem.Size2M:
		return 2
	default:
		return 3
	}
}

// RootIndex returns the L4 (root) table index that covers vaddr. Per-
// process address spaces use this to copy the kernel's L4 entry into a
// fresh user root table, sharing the kernel window by reference.
func RootIndex(vaddr mem.VAddr) uint64 {
	return levelIndex(vaddr, 0)
}

// CopyRootEntry copies the L4 entry at index idx from srcRoot into
// dstRoot verbatim. Per-process address space setup uses this to share
// the kernel window by reference in a fresh user root table.
func CopyRootEntry(dstRoot, srcRoot pmm.Frame, idx uint64) {
	*entryAt(dstRoot, idx) = *entryAt(srcRoot, idx)
}

// ClearRootEntry clears the L4 entry at index idx in root without
// releasing the frame it pointed at - used to detach the shared kernel
// window entry during address-space teardown.
func ClearRootEntry(root pmm.Frame, idx uint64) {
	entryAt(root, idx).clear()
}

// tableEntryAddr returns the virtual address, through the kernel window,
// of the pageTableEntry at index idx within the table backed by frame.
func tableEntryAddr(frame pmm.Frame, idx uint64) mem.VAddr {
	return WindowFn(frame.Address()).Add(idx * 8)
}

func entryAt(frame pmm.Frame, idx uint64) *pageTableEntry {
	return (*pageTableEntry)(unsafe.Pointer(uintptr(tableEntryAddr(frame, idx))))
}

// walk descends from the root table to the entry that controls vaddr at
// target (a leafLevel() value), allocating and clearing intermediate
// tables via allocFn as needed. allocFn may be nil for a read-only walk,
// in which case a missing intermediate table yields ErrInvalidMapping
// instead of being created.
func walk(root pmm.Frame, vaddr mem.VAddr, target int, allocFn FrameAllocatorFn) (*pageTableEntry, *kernel.Error) {
	table := root
	for level := 0; level < target; level++ {
		idx := levelIndex(vaddr, level)
		pte := entryAt(table, idx)

		if !pte.present() {
			if allocFn == nil {
				return nil, ErrInvalidMapping
			}
			newTable, err := allocFn(mem.Size4K)
			if err != nil {
				return nil, err
			}
			mem.Memset(WindowFn(newTable.Address()), 0, mem.Size4K.Bytes())
			pte.setTableDescriptor(newTable.Address())
			table = newTable
			continue
		}

		if !pte.isTable() {
			return nil, errHugePageInWalk
		}

		table = pmm.FrameFromAddress(pte.outputAddress(), mem.Size4K)
	}

	idx := levelIndex(vaddr, target)
	return entryAt(table, idx), nil
}
