package heap

import (
	"unsafe"

	"github.com/sophon-os/sophon/kernel"
	"github.com/sophon-os/sophon/kernel/mem"
	gvsync "gvisor.dev/gvisor/pkg/sync"
)

var (
	errHeapOutOfMemory  = &kernel.Error{Module: "heap", Message: "out of memory", Kind: kernel.KindOutOfMemory}
	errHeapInvalidClass = &kernel.Error{Module: "heap", Message: "allocation size exceeds the largest size class", Kind: kernel.KindInvalidArgument}
)

// minClassShift is log2(MIN_SIZE): the smallest size class the heap will
// ever carve a cell into.
const minClassShift = 4 // 16 bytes

// maxClassShift is log2(Size1G): the largest size class.
const maxClassShift = mem.PageShift1G

// growPageSize is the lower-tier page size used to back new size-class
// chunks: the grow step takes pages of size 2M.
const growPageSize = mem.Size2M

// pageSource is the lower tier the heap grows from. PageResource
// implements it in production; tests substitute a fake backed by real Go
// memory so the free-list pointers the heap writes through unsafe.Pointer
// are dereferencing addresses that actually exist.
type pageSource interface {
	AllocatePages(n uint64, size mem.PageSize) (mem.VAddr, *kernel.Error)
	ReleasePages(base mem.VAddr, n uint64, size mem.PageSize) *kernel.Error
}

// Heap is the upper tier: a buddy-style free list over size classes
// minClassShift..maxClassShift, growing its backing pages from a
// pageSource on demand.
type Heap struct {
	mu    gvsync.Mutex
	pages pageSource

	// freeList[k] is the head of the free list for class k (cell size
	// 1<<k), or 0 if empty. Each free cell's first 8 bytes hold the
	// address of the next cell in its class (0 terminates the list).
	freeList [maxClassShift + 1]mem.VAddr
}

// Init attaches the heap to its backing pageSource.
func (h *Heap) Init(pages pageSource) {
	h.pages = pages
	for i := range h.freeList {
		h.freeList[i] = 0
	}
}

// classFor returns the smallest k such that 1<<k >= size and k >=
// minClassShift.
func classFor(size mem.Size) uint {
	k := uint(minClassShift)
	want := uint64(size)
	for (uint64(1) << k) < want {
		k++
	}
	return k
}

func loadNext(addr mem.VAddr) mem.VAddr {
	return mem.VAddr(*(*uint64)(unsafe.Pointer(uintptr(addr))))
}

func storeNext(addr mem.VAddr, next mem.VAddr) {
	*(*uint64)(unsafe.Pointer(uintptr(addr))) = uint64(next)
}

func (h *Heap) popClass(k uint) (mem.VAddr, bool) {
	head := h.freeList[k]
	if head == 0 {
		return 0, false
	}
	h.freeList[k] = loadNext(head)
	return head, true
}

func (h *Heap) pushClass(k uint, addr mem.VAddr) {
	storeNext(addr, h.freeList[k])
	h.freeList[k] = addr
}

// Alloc returns a size-byte cell, rounded up to the next power-of-two size
// class (minimum minClassShift).
func (h *Heap) Alloc(size mem.Size) (mem.VAddr, *kernel.Error) {
	k := classFor(size)
	if k > maxClassShift {
		return 0, errHeapInvalidClass
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.allocClass(k, k, 1)
}

// allocClass returns a cell of class k, climbing to larger classes and
// splitting buddies as needed. origK is the originally requested class -
// grow() uses it to size the new backing pages. retriesLeft bounds how
// many times grow() may be attempted before giving up with OutOfMemory.
func (h *Heap) allocClass(k, origK uint, retriesLeft int) (mem.VAddr, *kernel.Error) {
	if addr, ok := h.popClass(k); ok {
		return addr, nil
	}

	if k < maxClassShift {
		parent, err := h.allocClass(k+1, origK, retriesLeft)
		if err != nil {
			return 0, err
		}
		buddy := parent.Add(uint64(1) << k)
		h.pushClass(k, buddy)
		return parent, nil
	}

	if retriesLeft <= 0 {
		return 0, errHeapOutOfMemory
	}
	if err := h.grow(origK); err != nil {
		return 0, err
	}
	// grow only ever carves pieces at or below growPageSize's class, never
	// a class-maxClassShift cell - re-examining k (== maxClassShift) here
	// would just find it empty again. Restart from origK so the climb
	// re-descends through the classes grow just populated.
	return h.allocClass(origK, origK, retriesLeft-1)
}

// grow borrows enough 2M pages from the lower tier to cover a class-k
// chunk, then carves the new range into the largest power-of-two-aligned
// pieces that fit and pushes each onto its class's free list.
func (h *Heap) grow(k uint) *kernel.Error {
	classSize := mem.Size(1) << k
	pages := (uint64(classSize) + uint64(growPageSize.Bytes()) - 1) / uint64(growPageSize.Bytes())
	pages *= 2

	base, err := h.pages.AllocatePages(pages, growPageSize)
	if err != nil {
		return err
	}

	h.carve(base, mem.Size(pages)*growPageSize.Bytes())
	return nil
}

// carve splits [base, base+length) into maximal power-of-two-aligned
// pieces (each no larger than maxClassShift) and pushes every piece onto
// its class's free list.
func (h *Heap) carve(base mem.VAddr, length mem.Size) {
	pos := base
	remaining := uint64(length)

	for remaining > 0 {
		// the largest piece is bounded by how much remains...
		pieceShift := floorLog2(remaining)
		// ...and by pos's own alignment (a piece must not straddle a
		// boundary larger than its own size).
		if align := alignmentShift(pos); align < pieceShift {
			pieceShift = align
		}
		if pieceShift > maxClassShift {
			pieceShift = maxClassShift
		}

		h.pushClass(pieceShift, pos)

		step := uint64(1) << pieceShift
		pos = pos.Add(step)
		remaining -= step
	}
}

// floorLog2 returns the largest k such that 1<<k <= v.
func floorLog2(v uint64) uint {
	var k uint
	for (uint64(1) << (k + 1)) <= v {
		k++
	}
	return k
}

// alignmentShift returns the largest k such that addr is a multiple of
// 1<<k, capped at maxClassShift (an address of 0 is arbitrarily aligned,
// so it is treated as maxClassShift-aligned).
func alignmentShift(addr mem.VAddr) uint {
	if addr == 0 {
		return maxClassShift
	}
	var k uint
	v := uint64(addr)
	for k < maxClassShift && v&(uint64(1)<<k) == 0 {
		k++
	}
	return k
}

// Free returns a previously allocated size-byte cell to its size class.
// Whole chunks at class >= log2(2M) are handed straight back to the lower
// tier instead of being kept on a free list: large free chunks are
// released opportunistically rather than cached.
func (h *Heap) Free(addr mem.VAddr, size mem.Size) *kernel.Error {
	k := classFor(size)

	h.mu.Lock()
	defer h.mu.Unlock()

	if k >= growPageSize.Shift() {
		pages := (uint64(1) << k) / uint64(growPageSize.Bytes())
		if pages == 0 {
			pages = 1
		}
		return h.pages.ReleasePages(addr, pages, growPageSize)
	}

	h.pushClass(k, addr)
	return nil
}
