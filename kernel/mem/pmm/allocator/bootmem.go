// Package allocator implements the physical frame allocators layered on top
// of the boot loader's free-range report: a bump-pointer bootstrap
// allocator used before the kernel heap exists, and a bitmap allocator that
// takes over once it does.
package allocator

import (
	"github.com/sophon-os/sophon/kernel"
	"github.com/sophon-os/sophon/kernel/kfmt/early"
	"github.com/sophon-os/sophon/kernel/mem"
	"github.com/sophon-os/sophon/kernel/mem/pmm"
)

var (
	errBootAllocOutOfMemory = &kernel.Error{Module: "boot_mem_alloc", Message: "out of memory", Kind: kernel.KindOutOfMemory}
)

// BootMemAllocator is a rudimentary, order-0 (4K) only physical frame
// allocator used to bootstrap the kernel before the bitmap allocator is
// available. It walks the boot loader's reported free ranges and hands out
// frames in order; it has no way to free a frame. Once the bitmap
// allocator is initialized, the frames it handed out are "replayed" and
// marked reserved (see BitmapAllocator.reserveBootAllocatorFrames).
type BootMemAllocator struct {
	ranges []mem.PhysRange

	// rangeIndex/nextFrame track the next candidate frame to hand out:
	// rangeIndex selects a free range, nextFrame is a frame index within
	// that range's Size4K-aligned span.
	rangeIndex int
	nextFrame  uint64

	allocCount uint64
}

// Init records the boot loader's free physical ranges and prints the
// system memory map.
func (alloc *BootMemAllocator) Init(ranges []mem.PhysRange) {
	alloc.ranges = ranges
	alloc.rangeIndex = 0
	alloc.nextFrame = 0
	alloc.allocCount = 0

	var totalFree mem.Size
	early.Printf("[boot_mem_alloc] system memory map:\n")
	for _, r := range ranges {
		early.Printf("\t[0x%10x - 0x%10x], size: %10d\n", uint64(r.Start), uint64(r.End), uint64(r.Len()))
		totalFree += r.Len()
	}
	early.Printf("[boot_mem_alloc] free memory: %dKb\n", uint64(totalFree/mem.Kb))
}

// AllocFrame reserves and returns the next available Size4K frame.
func (alloc *BootMemAllocator) AllocFrame() (pmm.Frame, *kernel.Error) {
	for alloc.rangeIndex < len(alloc.ranges) {
		start, end := alloc.ranges[alloc.rangeIndex].AlignedFrames(mem.Size4K)
		if start+alloc.nextFrame < end {
			frameIndex := start + alloc.nextFrame
			alloc.nextFrame++
			alloc.allocCount++
			return pmm.FrameFromAddress(mem.PAddr(frameIndex<<mem.PageShift4K), mem.Size4K), nil
		}

		alloc.rangeIndex++
		alloc.nextFrame = 0
	}

	return pmm.InvalidFrame, errBootAllocOutOfMemory
}

// replay resets the allocator cursor and returns a function that yields,
// in order, every frame previously handed out by AllocFrame. This lets the
// bitmap allocator mark those frames reserved without the boot allocator
// having tracked them individually.
func (alloc *BootMemAllocator) replay() func() (pmm.Frame, bool) {
	count := alloc.allocCount
	alloc.rangeIndex, alloc.nextFrame, alloc.allocCount = 0, 0, 0

	done := uint64(0)
	return func() (pmm.Frame, bool) {
		if done >= count {
			return pmm.InvalidFrame, false
		}
		done++
		frame, err := alloc.AllocFrame()
		if err != nil {
			return pmm.InvalidFrame, false
		}
		return frame, true
	}
}
