package vmm

import (
	"github.com/sophon-os/sophon/kernel"
	"github.com/sophon-os/sophon/kernel/cpu"
	"github.com/sophon-os/sophon/kernel/mem"
	"github.com/sophon-os/sophon/kernel/mem/pmm"
)

var (
	// ActiveRootFn/SwitchRootFn are mocked by tests and automatically
	// inlined by the compiler in production builds.
	ActiveRootFn = cpu.ActiveTTBR0Fn
	SwitchRootFn = cpu.SwitchTTBR0Fn
)

// PageTable is a handle to one AArch64 L4 (root) translation table. Unlike
// gopher-os's PageDirectoryTable, it needs no temporary-mapping dance to
// read or write an inactive table's contents: every table frame is always
// reachable through mem.KernelWindowBase, active or not.
type PageTable struct {
	root pmm.Frame
}

// Init clears rootFrame's contents (unless it is already the active root,
// in which case it is assumed to be already initialized) and adopts it as
// this PageTable's root.
func (pt *PageTable) Init(rootFrame pmm.Frame) {
	pt.root = rootFrame
	if rootFrame.Address() == ActiveRootFn() {
		return
	}
	mem.Memset(WindowFn(rootFrame.Address()), 0, mem.Size4K.Bytes())
}

// Root returns the physical frame backing this table's L4 root.
func (pt PageTable) Root() pmm.Frame { return pt.root }

// Map installs page -> frame in this table.
func (pt PageTable) Map(page Page, frame pmm.Frame, flags PageTableEntryFlag, allocFn FrameAllocatorFn) *kernel.Error {
	return Map(pt.root, page, frame, flags, allocFn)
}

// Unmap removes the mapping for page from this table.
func (pt PageTable) Unmap(page Page) *kernel.Error {
	return Unmap(pt.root, page)
}

// Translate resolves page to its backing frame in this table.
func (pt PageTable) Translate(page Page) (pmm.Frame, *kernel.Error) {
	return Translate(pt.root, page)
}

// Activate installs this table as the active TTBR0_EL1 and flushes the
// non-global TLB entries.
func (pt PageTable) Activate() {
	SwitchRootFn(pt.root.Address())
}
