package mem

import "testing"

func TestAddrAlignment(t *testing.T) {
	a := PAddr(0x1001)
	if a.IsAligned(Size4K) {
		t.Fatal("expected 0x1001 to be unaligned to 4K")
	}
	if got := a.AlignDown(Size4K); got != 0x1000 {
		t.Fatalf("expected AlignDown to yield 0x1000; got %#x", got)
	}
	if got := a.AlignUp(Size4K); got != 0x2000 {
		t.Fatalf("expected AlignUp to yield 0x2000; got %#x", got)
	}

	aligned := PAddr(0x200000)
	if !aligned.IsAligned(Size2M) {
		t.Fatal("expected 0x200000 to be 2M-aligned")
	}
}

func TestPhysRangeAlignedFrames(t *testing.T) {
	r := PhysRange{Start: 0x1000, End: 0x400000 + 0x800}
	start, end := r.AlignedFrames(Size2M)
	if start != 1 || end != 2 {
		t.Fatalf("expected exactly one 2M frame in range; got [%d,%d)", start, end)
	}

	empty := PhysRange{Start: 0x1000, End: 0x2000}
	start, end = empty.AlignedFrames(Size1G)
	if start != 0 || end != 0 {
		t.Fatalf("expected no 1G frames in a 4K range; got [%d,%d)", start, end)
	}
}
