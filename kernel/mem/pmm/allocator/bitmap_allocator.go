package allocator

import (
	"github.com/sophon-os/sophon/kernel"
	"github.com/sophon-os/sophon/kernel/kfmt/early"
	"github.com/sophon-os/sophon/kernel/mem"
	"github.com/sophon-os/sophon/kernel/mem/pmm"
	gvsync "gvisor.dev/gvisor/pkg/sync"
)

var (
	// FrameAllocator is the system-wide bitmap allocator instance.
	FrameAllocator BitmapAllocator

	errBitmapAllocOutOfMemory  = &kernel.Error{Module: "bitmap_alloc", Message: "out of memory", Kind: kernel.KindOutOfMemory}
	errBitmapAllocDoubleFree   = &kernel.Error{Module: "bitmap_alloc", Message: "frame already free", Kind: kernel.KindInternal}
	errBitmapAllocUnknownFrame = &kernel.Error{Module: "bitmap_alloc", Message: "frame outside any known pool", Kind: kernel.KindInternal}
)

// pool tracks, at Size4K granularity, the free/reserved state of one
// contiguous boot-reported physical range.
type pool struct {
	startFrame uint64 // Size4K frame index of the first frame in the pool
	frameCount uint64

	freeCount uint64
	freeBitmap []uint64 // 1 bit per Size4K frame; set bit == reserved
}

// BitmapAllocator tracks reservations, at Size4K granularity, across every
// free physical range the boot loader reported. Allocations of 2M or 1G
// frames reserve a correctly-aligned run of contiguous 4K bits in a single
// pool; Sophon carries no guarantee that such a run exists for every
// workload (unlike gopher-os's allocator, which only ever allocates
// order-0 frames),
// so large-frame callers must be prepared for KindOutOfMemory even when
// 4K frames remain available.
type BitmapAllocator struct {
	mu gvsync.Mutex

	totalFrames    uint64
	reservedFrames uint64

	pools []pool
}

// Init partitions the boot loader's free ranges into pools, using bitmapMem
// (a caller-supplied buffer of BitmapWordsNeeded(ranges) words) to
// back every pool's free bitmap, then reserves the frames the boot
// allocator already handed out.
func (a *BitmapAllocator) Init(ranges []mem.PhysRange, boot *BootMemAllocator, bitmapMem []uint64) *kernel.Error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pools = a.pools[:0]
	a.totalFrames, a.reservedFrames = 0, 0

	cursor := 0
	for _, r := range ranges {
		start, end := r.AlignedFrames(mem.Size4K)
		if end <= start {
			continue
		}
		count := end - start
		words := int((count + 63) / 64)
		if cursor+words > len(bitmapMem) {
			return errBitmapAllocOutOfMemory
		}

		a.pools = append(a.pools, pool{
			startFrame: start,
			frameCount: count,
			freeCount:  count,
			freeBitmap: bitmapMem[cursor : cursor+words],
		})
		cursor += words
		a.totalFrames += count
	}

	a.reserveBootAllocatorFrames(boot)
	a.printStats()
	return nil
}

// BitmapWordsNeeded returns the number of uint64 words Init's bitmapMem
// argument must provide for the given free ranges.
func BitmapWordsNeeded(ranges []mem.PhysRange) uint64 {
	var words uint64
	for _, r := range ranges {
		start, end := r.AlignedFrames(mem.Size4K)
		if end <= start {
			continue
		}
		words += (end - start + 63) / 64
	}
	return words
}

func (a *BitmapAllocator) reserveBootAllocatorFrames(boot *BootMemAllocator) {
	next := boot.replay()
	for {
		frame, ok := next()
		if !ok {
			return
		}
		a.markFrame(frame.Index(), 1, true)
	}
}

// AllocFrame reserves and returns one frame of the requested size class.
func (a *BitmapAllocator) AllocFrame(size mem.PageSize) (pmm.Frame, *kernel.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	framesPerUnit := uint64(1) << (size.Shift() - mem.Size4K.Shift())

	for poolIndex := range a.pools {
		p := &a.pools[poolIndex]
		if p.freeCount < framesPerUnit {
			continue
		}

		for rel := uint64(0); rel+framesPerUnit <= p.frameCount; rel += framesPerUnit {
			if (p.startFrame+rel)%framesPerUnit != 0 {
				continue
			}
			if a.runFree(p, rel, framesPerUnit) {
				a.markFrame(p.startFrame+rel, framesPerUnit, true)
				return pmm.FrameFromAddress(mem.PAddr((p.startFrame+rel)<<mem.Size4K.Shift()), size), nil
			}
		}
	}

	return pmm.InvalidFrame, errBitmapAllocOutOfMemory
}

// ReleaseFrame marks frame's backing run of Size4K frames free again.
func (a *BitmapAllocator) ReleaseFrame(frame pmm.Frame) *kernel.Error {
	a.mu.Lock()
	defer a.mu.Unlock()

	size := frame.Size()
	framesPerUnit := uint64(1) << (size.Shift() - mem.Size4K.Shift())
	base := uint64(frame.Address()) >> mem.Size4K.Shift()

	poolIndex := a.poolForFrame(base)
	if poolIndex < 0 {
		return errBitmapAllocUnknownFrame
	}
	p := &a.pools[poolIndex]
	rel := base - p.startFrame
	if a.runFree(p, rel, framesPerUnit) {
		return errBitmapAllocDoubleFree
	}

	a.markFrame(base, framesPerUnit, false)
	return nil
}

// runFree reports whether every frame in [rel, rel+count) of pool p is
// currently free (bit clear).
func (a *BitmapAllocator) runFree(p *pool, rel, count uint64) bool {
	for i := uint64(0); i < count; i++ {
		idx := rel + i
		word, bit := idx/64, idx%64
		if p.freeBitmap[word]&(1<<bit) != 0 {
			return false
		}
	}
	return true
}

// markFrame sets (reserved=true) or clears (reserved=false) the bits for
// count consecutive Size4K frames starting at the given absolute frame
// index, updating the pool and allocator-wide free counters.
func (a *BitmapAllocator) markFrame(absFrame, count uint64, reserved bool) {
	poolIndex := a.poolForFrame(absFrame)
	if poolIndex < 0 {
		return
	}
	p := &a.pools[poolIndex]
	rel := absFrame - p.startFrame

	for i := uint64(0); i < count; i++ {
		idx := rel + i
		word, bit := idx/64, idx%64
		if reserved {
			p.freeBitmap[word] |= 1 << bit
		} else {
			p.freeBitmap[word] &^= 1 << bit
		}
	}

	if reserved {
		p.freeCount -= count
		a.reservedFrames += count
	} else {
		p.freeCount += count
		a.reservedFrames -= count
	}
}

func (a *BitmapAllocator) poolForFrame(absFrame uint64) int {
	for i := range a.pools {
		if absFrame >= a.pools[i].startFrame && absFrame < a.pools[i].startFrame+a.pools[i].frameCount {
			return i
		}
	}
	return -1
}

func (a *BitmapAllocator) printStats() {
	early.Printf(
		"[bitmap_alloc] frame stats: free: %d/%d (%d reserved)\n",
		a.totalFrames-a.reservedFrames,
		a.totalFrames,
		a.reservedFrames,
	)
}
