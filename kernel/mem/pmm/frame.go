// Package pmm manages physical memory frame allocations: the lowest layer
// of the memory subsystem, sitting below the page table manager and the
// kernel heap.
package pmm

import (
	"math"

	"github.com/sophon-os/sophon/kernel/mem"
)

// Frame identifies a physical memory frame. The frame's size class (4K, 2M
// or 1G) is encoded in the 8 most-significant bits, the same trick
// gopher-os's pmm uses for its single-size-class Frame/PageOrder pair,
// generalized here to AArch64's three granules.
type Frame uint64

// InvalidFrame is returned by allocators that fail to reserve a frame.
const InvalidFrame = Frame(math.MaxUint64)

// FrameFromAddress returns the Frame of the given size class containing
// paddr.
func FrameFromAddress(paddr mem.PAddr, size mem.PageSize) Frame {
	return Frame(uint64(paddr)>>size.Shift()) | Frame(uint64(size)<<56)
}

// IsValid returns true if this is not InvalidFrame.
func (f Frame) IsValid() bool {
	return f != InvalidFrame
}

// Size returns the frame's page size class.
func (f Frame) Size() mem.PageSize {
	return mem.PageSize((f >> 56) & 0xFF)
}

// Index returns the frame number within its size class, stripped of the
// size tag.
func (f Frame) Index() uint64 {
	return uint64(f) &^ (uint64(0xFF) << 56)
}

// Address returns the physical address of the start of this frame.
func (f Frame) Address() mem.PAddr {
	return mem.PAddr(f.Index() << f.Size().Shift())
}
