package pmm

import (
	"testing"

	"github.com/sophon-os/sophon/kernel/mem"
)

func TestFrameMethods(t *testing.T) {
	for _, size := range []mem.PageSize{mem.Size4K, mem.Size2M, mem.Size1G} {
		for frameIndex := uint64(0); frameIndex < 8; frameIndex++ {
			paddr := mem.PAddr(frameIndex << size.Shift())
			frame := FrameFromAddress(paddr, size)

			if !frame.IsValid() {
				t.Fatalf("expected frame %d (%s) to be valid", frameIndex, size)
			}

			if got := frame.Size(); got != size {
				t.Fatalf("expected frame size %s; got %s", size, got)
			}

			if got := frame.Index(); got != frameIndex {
				t.Fatalf("expected frame index %d; got %d", frameIndex, got)
			}

			if got := frame.Address(); got != paddr {
				t.Fatalf("expected frame address %x; got %x", paddr, got)
			}
		}
	}

	if InvalidFrame.IsValid() {
		t.Fatal("expected InvalidFrame.IsValid() to return false")
	}
}
