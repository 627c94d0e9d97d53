// Package addrspace implements the per-process address space: a user page
// table that shares the kernel window by reference, plus a sbrk-style
// bump arena for user heap growth.
//
// Grounded on gVisor's pkg/sentry/mm.MemoryManager brk field (a monotonic
// high-water mark over a single address range) for the overall shape,
// scaled down to just a brk arena - there is no general VMA tree here;
// demand paging and arbitrary mmap regions are out of scope.
package addrspace

import (
	"github.com/sophon-os/sophon/kernel"
	"github.com/sophon-os/sophon/kernel/mem"
	"github.com/sophon-os/sophon/kernel/mem/pmm"
	"github.com/sophon-os/sophon/kernel/mem/vmm"
)

var (
	errArenaExhausted = &kernel.Error{Module: "addrspace", Message: "sbrk would exceed the user arena", Kind: kernel.KindOutOfMemory}
)

// UserArenaBase/UserArenaLimit bound the region Sbrk is allowed to grow
// into - an arbitrarily chosen low canonical range, well below
// mem.KernelWindowBase.
const (
	UserArenaBase  mem.VAddr = 0x0000_0001_0000_0000
	UserArenaLimit mem.VAddr = 0x0000_7fff_0000_0000
)

// AddressSpace is one process's page table plus its sbrk high-water mark.
// The zero value is not ready for use; call Init.
type AddressSpace struct {
	table vmm.PageTable
	brk   mem.VAddr

	allocFrameFn   vmm.FrameAllocatorFn
	releaseFrameFn func(pmm.Frame) *kernel.Error
}

// Init installs rootFrame as this address space's L4 table and copies the
// kernel's L4 entry from kernelRoot into it, so the kernel window is
// visible (and mapped identically) from every process's page table.
func (as *AddressSpace) Init(rootFrame, kernelRoot pmm.Frame, allocFrameFn vmm.FrameAllocatorFn, releaseFrameFn func(pmm.Frame) *kernel.Error) {
	as.table.Init(rootFrame)
	as.brk = UserArenaBase
	as.allocFrameFn = allocFrameFn
	as.releaseFrameFn = releaseFrameFn

	vmm.CopyRootEntry(rootFrame, kernelRoot, vmm.RootIndex(mem.KernelWindowBase))
}

// Table returns the underlying page table, for installing as the active
// TTBR0_EL1 at context-switch time.
func (as *AddressSpace) Table() *vmm.PageTable { return &as.table }

// Sbrk advances the arena high-water mark by nPages 4K pages, mapping
// each new page to a freshly acquired physical frame with user R/W, N/X
// flags. It returns the start of the newly mapped range.
func (as *AddressSpace) Sbrk(nPages uint64) (mem.VAddr, *kernel.Error) {
	start := as.brk
	grow := mem.Size(nPages) * mem.Size4K.Bytes()
	newBrk := start.Add(uint64(grow))
	if newBrk > UserArenaLimit {
		return 0, errArenaExhausted
	}

	for i := uint64(0); i < nPages; i++ {
		frame, err := as.allocFrameFn(mem.Size4K)
		if err != nil {
			return 0, err
		}
		page := vmm.PageFromAddress(start.Add(i*uint64(mem.Size4K.Bytes())), mem.Size4K)
		flags := vmm.FlagRW | vmm.FlagUser | vmm.FlagNoExecute
		if err := as.table.Map(page, frame, flags, as.allocFrameFn); err != nil {
			return 0, err
		}
	}

	as.brk = newBrk
	return start, nil
}

// ValidateUserRange reports whether [addr, addr+length) lies entirely
// within the mapped portion of the user arena ([UserArenaBase, as.brk)).
// Syscall argument marshalling calls this before dereferencing a user
// pointer.
func (as *AddressSpace) ValidateUserRange(addr mem.VAddr, length mem.Size) bool {
	if length == 0 {
		return addr >= UserArenaBase && addr <= as.brk
	}
	end := addr.Add(uint64(length))
	return addr >= UserArenaBase && end <= as.brk && end > addr
}

// Teardown walks the user arena and releases every frame mapped within
// it, then clears (but does not free) the shared kernel L4 entry. It does
// not release the table frames themselves below L4 - a documented unmap
// limitation: intermediate tables are leaked on process exit, same as a
// live mapping's intermediate tables are never reclaimed by a single
// Unmap call.
func (as *AddressSpace) Teardown() *kernel.Error {
	for addr := UserArenaBase; addr < as.brk; addr = addr.Add(uint64(mem.Size4K.Bytes())) {
		page := vmm.PageFromAddress(addr, mem.Size4K)
		frame, err := as.table.Translate(page)
		if err != nil {
			continue
		}
		if err := as.table.Unmap(page); err != nil {
			return err
		}
		if err := as.releaseFrameFn(frame); err != nil {
			return err
		}
	}

	vmm.ClearRootEntry(as.table.Root(), vmm.RootIndex(mem.KernelWindowBase))
	return nil
}
