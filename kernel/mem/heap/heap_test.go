package heap

import (
	"testing"
	"unsafe"

	"github.com/sophon-os/sophon/kernel"
	"github.com/sophon-os/sophon/kernel/mem"
)

// fakePageSource stands in for PageResource, backing every "page" with
// real Go-allocated memory so the heap's free-list pointer writes land
// somewhere a test process can actually dereference.
type fakePageSource struct {
	bufs [][]byte
}

func (f *fakePageSource) AllocatePages(n uint64, size mem.PageSize) (mem.VAddr, *kernel.Error) {
	buf := make([]byte, n*uint64(size.Bytes())+uint64(size.Bytes()))
	f.bufs = append(f.bufs, buf)

	addr := uintptr(unsafe.Pointer(&buf[0]))
	aligned := (addr + uintptr(size.Bytes()) - 1) &^ (uintptr(size.Bytes()) - 1)
	return mem.VAddr(aligned), nil
}

func (f *fakePageSource) ReleasePages(base mem.VAddr, n uint64, size mem.PageSize) *kernel.Error {
	return nil
}

func TestHeapAllocFreeSameClass(t *testing.T) {
	var h Heap
	h.Init(&fakePageSource{})

	a, err := h.Alloc(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == 0 {
		t.Fatal("expected a non-zero address")
	}

	if err := h.Free(a, 32); err != nil {
		t.Fatalf("unexpected error freeing: %v", err)
	}

	b, err := h.Alloc(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b != a {
		t.Fatalf("expected the freed cell to be reused; got %x, want %x", b, a)
	}
}

func TestHeapAllocDistinctCells(t *testing.T) {
	var h Heap
	h.Init(&fakePageSource{})

	a, err := h.Alloc(64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := h.Alloc(64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Fatal("expected two live allocations to get distinct addresses")
	}
}

func TestHeapGrowsFromPageSource(t *testing.T) {
	var h Heap
	src := &fakePageSource{}
	h.Init(src)

	if _, err := h.Alloc(128); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(src.bufs) == 0 {
		t.Fatal("expected the heap to have grown from the page source")
	}
}

func TestHeapInvalidClass(t *testing.T) {
	var h Heap
	h.Init(&fakePageSource{})

	if _, err := h.Alloc(mem.Size1G.Bytes() + 1); err == nil {
		t.Fatal("expected an error allocating a size larger than the largest class")
	}
}

func TestClassFor(t *testing.T) {
	cases := []struct {
		size mem.Size
		want uint
	}{
		{1, minClassShift},
		{16, 4},
		{17, 5},
		{64, 6},
		{65, 7},
	}
	for _, c := range cases {
		if got := classFor(c.size); got != c.want {
			t.Errorf("classFor(%d) = %d, want %d", c.size, got, c.want)
		}
	}
}
