// Package heap implements the kernel's dynamic memory allocator as two
// tiers: pages.go is the lower tier, a virtual page resource that reserves
// a fixed VA range and backs pages in it on demand;
// heap.go is the upper tier, a buddy-style free list carved out of pages
// the lower tier hands it.
package heap

import (
	"github.com/sophon-os/sophon/kernel"
	"github.com/sophon-os/sophon/kernel/mem"
	"github.com/sophon-os/sophon/kernel/mem/pmm"
	"github.com/sophon-os/sophon/kernel/mem/vmm"
	gvsync "gvisor.dev/gvisor/pkg/sync"
)

var (
	// mapPageFn/unmapPageFn/translatePageFn are mocked by tests and
	// automatically inlined by the compiler in production builds, the
	// same seam gopher-os's bitmap allocator uses for vmm.Map.
	mapPageFn       = vmm.Map
	unmapPageFn     = vmm.Unmap
	translatePageFn = vmm.Translate

	errHeapRangeExhausted = &kernel.Error{Module: "heap", Message: "kernel heap virtual range exhausted", Kind: kernel.KindOutOfMemory}
)

// KernelHeapRangeSize is the size of the reserved VA range the lower tier
// hands pages out of: 2^32 = 4GiB.
const KernelHeapRangeSize = mem.Size(1) << 32

// KernelHeapBase is the start of the reserved heap VA range.
const KernelHeapBase mem.VAddr = 0xffff_4000_0000_0000

// PageResource is the lower tier: it owns KERNEL_HEAP_RANGE and tracks how
// much of it is currently backed by physical frames. It never reclaims VA
// space for reuse once it has been handed out, matching gopher-os's own
// early bootstrap allocator which has the same one-way property.
type PageResource struct {
	mu gvsync.Mutex

	base, limit, watermark mem.VAddr

	root           pmm.Frame
	allocFrameFn   vmm.FrameAllocatorFn
	releaseFrameFn func(pmm.Frame) *kernel.Error
}

// Init configures the page resource to back pages in the kernel's page
// table (root), acquiring and releasing physical frames via allocFrameFn
// and releaseFrameFn.
func (pr *PageResource) Init(root pmm.Frame, allocFrameFn vmm.FrameAllocatorFn, releaseFrameFn func(pmm.Frame) *kernel.Error) {
	pr.base = KernelHeapBase
	pr.limit = pr.base.Add(uint64(KernelHeapRangeSize))
	pr.watermark = pr.base
	pr.root = root
	pr.allocFrameFn = allocFrameFn
	pr.releaseFrameFn = releaseFrameFn
}

// AllocatePages reserves n consecutive pages of size size from the heap
// range and eagerly maps each to a freshly acquired physical frame with
// kernel R/W flags, returning the VA of the first page.
func (pr *PageResource) AllocatePages(n uint64, size mem.PageSize) (mem.VAddr, *kernel.Error) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	start := pr.watermark.AlignUp(size)
	total := mem.Size(n) * size.Bytes()
	if uint64(start)+uint64(total) > uint64(pr.limit) {
		return 0, errHeapRangeExhausted
	}

	for i := uint64(0); i < n; i++ {
		frame, err := pr.allocFrameFn(size)
		if err != nil {
			return 0, err
		}
		page := vmm.PageFromAddress(start.Add(i*uint64(size.Bytes())), size)
		if err := mapPageFn(pr.root, page, frame, vmm.FlagRW, pr.allocFrameFn); err != nil {
			return 0, err
		}
	}

	pr.watermark = start.Add(uint64(total))
	return start, nil
}

// ReleasePages unmaps n pages of size size starting at base and releases
// their backing frames.
func (pr *PageResource) ReleasePages(base mem.VAddr, n uint64, size mem.PageSize) *kernel.Error {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	for i := uint64(0); i < n; i++ {
		page := vmm.PageFromAddress(base.Add(i*uint64(size.Bytes())), size)
		frame, err := translatePageFn(pr.root, page)
		if err != nil {
			return err
		}
		if err := unmapPageFn(pr.root, page); err != nil {
			return err
		}
		if err := pr.releaseFrameFn(frame); err != nil {
			return err
		}
	}
	return nil
}
