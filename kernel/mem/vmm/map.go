package vmm

import (
	"github.com/sophon-os/sophon/kernel"
	"github.com/sophon-os/sophon/kernel/cpu"
	"github.com/sophon-os/sophon/kernel/mem"
	"github.com/sophon-os/sophon/kernel/mem/pmm"
)

var (
	// FlushEntryFn is mocked by tests and automatically inlined by the
	// compiler in production builds.
	FlushEntryFn = cpu.FlushTLBEntryFn

	// ErrInvalidMapping is returned by Unmap/Translate when no mapping
	// exists for the requested page.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "no mapping for address", Kind: kernel.KindInvalidArgument}

	errHugePageInWalk  = &kernel.Error{Module: "vmm", Message: "encountered a block descriptor while walking to a deeper level", Kind: kernel.KindInternal}
	errMappingExists   = &kernel.Error{Module: "vmm", Message: "page already mapped", Kind: kernel.KindMappingExists}
)

// FrameAllocatorFn allocates a physical frame of the requested size, used
// both to back the page being mapped and to back any intermediate tables
// Map needs to create along the way.
type FrameAllocatorFn func(size mem.PageSize) (pmm.Frame, *kernel.Error)

// Map installs a mapping from page to frame in the table rooted at root,
// creating any missing intermediate tables via allocFn. frame must be the
// same size class as page.
func Map(root pmm.Frame, page Page, frame pmm.Frame, flags PageTableEntryFlag, allocFn FrameAllocatorFn) *kernel.Error {
	target := leafLevel(page.Size())
	pte, err := walk(root, page.Address(), target, allocFn)
	if err != nil {
		return err
	}
	if pte.present() {
		return errMappingExists
	}

	pte.setLeaf(frame.Address(), flags, target == pageLevels-1)
	FlushEntryFn(page.Address())
	return nil
}

// Unmap removes the mapping previously installed for page.
func Unmap(root pmm.Frame, page Page) *kernel.Error {
	target := leafLevel(page.Size())
	pte, err := walk(root, page.Address(), target, nil)
	if err != nil {
		return err
	}
	if !pte.present() {
		return ErrInvalidMapping
	}

	pte.clear()
	FlushEntryFn(page.Address())
	return nil
}

// IdentityMap maps frame to the page at the same address, in the table
// rooted at root.
func IdentityMap(root pmm.Frame, frame pmm.Frame, flags PageTableEntryFlag, allocFn FrameAllocatorFn) *kernel.Error {
	page := PageFromAddress(mem.VAddr(frame.Address()), frame.Size())
	return Map(root, page, frame, flags, allocFn)
}

// Translate returns the physical frame currently mapped to page.
func Translate(root pmm.Frame, page Page) (pmm.Frame, *kernel.Error) {
	target := leafLevel(page.Size())
	pte, err := walk(root, page.Address(), target, nil)
	if err != nil {
		return pmm.InvalidFrame, err
	}
	if !pte.present() {
		return pmm.InvalidFrame, ErrInvalidMapping
	}

	return pmm.FrameFromAddress(pte.outputAddress(), page.Size()), nil
}
