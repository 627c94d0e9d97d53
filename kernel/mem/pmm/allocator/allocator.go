package allocator

import (
	"github.com/sophon-os/sophon/kernel"
	"github.com/sophon-os/sophon/kernel/mem"
)

// Init bootstraps the physical frame allocator chain from the boot
// loader's free-range report: it sets up a BootMemAllocator over the
// ranges, sizes the bitmap with BitmapWordsNeeded and allocates it on the
// Go heap, then FrameAllocator.Init takes over and reserves whatever the
// boot allocator already handed out (nothing, when called from here). Mirrors gopher-os's own bootstrap-then-bitmap
// allocator.Init entrypoint, adapted from a fixed kernelStart/kernelEnd
// pair to BootInfo.FreeRanges.
func Init(ranges []mem.PhysRange) *kernel.Error {
	var boot BootMemAllocator
	boot.Init(ranges)

	words := BitmapWordsNeeded(ranges)
	bitmapMem := make([]uint64, words)

	return FrameAllocator.Init(ranges, &boot, bitmapMem)
}
