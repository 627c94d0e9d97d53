package allocator

import (
	"testing"

	"github.com/sophon-os/sophon/kernel/mem"
)

func TestBitmapAllocatorAllocRelease(t *testing.T) {
	ranges := []mem.PhysRange{
		{Start: mem.PAddr(0), End: mem.PAddr(64 * uint64(mem.Size4K.Bytes()))},
	}

	var boot BootMemAllocator
	boot.Init(ranges)
	// simulate the bootstrap allocator having handed out the first frame
	// (e.g. to hold the allocator's own metadata)
	if _, err := boot.AllocFrame(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	words := BitmapWordsNeeded(ranges)
	scratch := make([]uint64, words)

	var alloc BitmapAllocator
	if err := alloc.Init(ranges, &boot, scratch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if alloc.totalFrames != 64 {
		t.Fatalf("expected 64 total frames; got %d", alloc.totalFrames)
	}
	if alloc.reservedFrames != 1 {
		t.Fatalf("expected 1 reserved frame from boot replay; got %d", alloc.reservedFrames)
	}

	frame, err := alloc.AllocFrame(mem.Size4K)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Address() == 0 {
		t.Fatal("expected allocator to skip the boot-reserved frame at address 0")
	}

	if err := alloc.ReleaseFrame(frame); err != nil {
		t.Fatalf("unexpected error releasing frame: %v", err)
	}

	if err := alloc.ReleaseFrame(frame); err == nil {
		t.Fatal("expected double-free error")
	}
}

func TestBitmapAllocatorLargeFrame(t *testing.T) {
	ranges := []mem.PhysRange{
		{Start: mem.PAddr(0), End: mem.PAddr(4096 * uint64(mem.Size4K.Bytes()))},
	}

	var boot BootMemAllocator
	boot.Init(ranges)

	words := BitmapWordsNeeded(ranges)
	scratch := make([]uint64, words)

	var alloc BitmapAllocator
	if err := alloc.Init(ranges, &boot, scratch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frame, err := alloc.AllocFrame(mem.Size2M)
	if err != nil {
		t.Fatalf("unexpected error allocating a 2M frame: %v", err)
	}
	if frame.Size() != mem.Size2M {
		t.Fatalf("expected Size2M frame; got %s", frame.Size())
	}
	if uint64(frame.Address())%uint64(mem.Size2M.Bytes()) != 0 {
		t.Fatalf("expected 2M-aligned address; got %#x", frame.Address())
	}
}

func TestBitmapAllocatorOutOfMemory(t *testing.T) {
	ranges := []mem.PhysRange{
		{Start: mem.PAddr(0), End: mem.PAddr(4 * uint64(mem.Size4K.Bytes()))},
	}

	var boot BootMemAllocator
	boot.Init(ranges)

	words := BitmapWordsNeeded(ranges)
	scratch := make([]uint64, words)

	var alloc BitmapAllocator
	if err := alloc.Init(ranges, &boot, scratch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 4; i++ {
		if _, err := alloc.AllocFrame(mem.Size4K); err != nil {
			t.Fatalf("unexpected error on alloc %d: %v", i, err)
		}
	}

	if _, err := alloc.AllocFrame(mem.Size4K); err == nil {
		t.Fatal("expected out-of-memory error")
	}
}
