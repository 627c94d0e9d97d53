package addrspace

import (
	"testing"
	"unsafe"

	"github.com/sophon-os/sophon/kernel"
	"github.com/sophon-os/sophon/kernel/mem"
	"github.com/sophon-os/sophon/kernel/mem/pmm"
	"github.com/sophon-os/sophon/kernel/mem/vmm"
)

// fakePhysMem redirects vmm's kernel-window lookups into ordinary
// Go-allocated memory, the same seam vmm's own tests use.
type fakePhysMem struct {
	buf  []byte
	next uint64
}

func newFakePhysMem(frames int) *fakePhysMem {
	return &fakePhysMem{buf: make([]byte, frames*int(mem.Size4K.Bytes()))}
}

func (f *fakePhysMem) window(p mem.PAddr) mem.VAddr {
	return mem.VAddr(uintptr(unsafe.Pointer(&f.buf[0])) + uintptr(p))
}

func (f *fakePhysMem) allocFrame(mem.PageSize) (pmm.Frame, *kernel.Error) {
	off := f.next
	f.next += uint64(mem.Size4K.Bytes())
	if int(f.next) > len(f.buf) {
		return pmm.InvalidFrame, &kernel.Error{Module: "test", Message: "out of fake memory"}
	}
	return pmm.FrameFromAddress(mem.PAddr(off), mem.Size4K), nil
}

func withFakePhysMem(t *testing.T, frames int) *fakePhysMem {
	t.Helper()
	pm := newFakePhysMem(frames)

	origWindow, origFlush := vmm.WindowFn, vmm.FlushEntryFn
	origActive, origSwitch := vmm.ActiveRootFn, vmm.SwitchRootFn
	vmm.WindowFn = pm.window
	vmm.FlushEntryFn = func(mem.VAddr) {}
	var activeRoot mem.PAddr
	vmm.ActiveRootFn = func() mem.PAddr { return activeRoot }
	vmm.SwitchRootFn = func(root mem.PAddr) { activeRoot = root }
	t.Cleanup(func() {
		vmm.WindowFn, vmm.FlushEntryFn = origWindow, origFlush
		vmm.ActiveRootFn, vmm.SwitchRootFn = origActive, origSwitch
	})
	return pm
}

func TestAddressSpaceSbrkAndValidate(t *testing.T) {
	pm := withFakePhysMem(t, 32)

	kernelRoot, err := pm.allocFrame(mem.Size4K)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mem.Memset(pm.window(kernelRoot.Address()), 0, mem.Size4K.Bytes())

	userRoot, err := pm.allocFrame(mem.Size4K)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var released []pmm.Frame
	var as AddressSpace
	as.Init(userRoot, kernelRoot, pm.allocFrame, func(f pmm.Frame) *kernel.Error {
		released = append(released, f)
		return nil
	})

	if as.ValidateUserRange(UserArenaBase, mem.Size4K.Bytes()) {
		t.Fatal("expected an unmapped range to fail validation")
	}

	start, err := as.Sbrk(2)
	if err != nil {
		t.Fatalf("unexpected error from Sbrk: %v", err)
	}
	if start != UserArenaBase {
		t.Fatalf("expected first sbrk to start at the arena base; got %x", start)
	}

	if !as.ValidateUserRange(start, 2*mem.Size4K.Bytes()) {
		t.Fatal("expected the newly mapped range to validate")
	}
	if as.ValidateUserRange(start, 3*mem.Size4K.Bytes()) {
		t.Fatal("expected a range extending past brk to fail validation")
	}

	if err := as.Teardown(); err != nil {
		t.Fatalf("unexpected error from Teardown: %v", err)
	}
	if len(released) != 2 {
		t.Fatalf("expected 2 frames released by Teardown; got %d", len(released))
	}
}

func TestAddressSpaceSbrkExhaustion(t *testing.T) {
	pm := withFakePhysMem(t, 8)

	kernelRoot, _ := pm.allocFrame(mem.Size4K)
	mem.Memset(pm.window(kernelRoot.Address()), 0, mem.Size4K.Bytes())
	userRoot, _ := pm.allocFrame(mem.Size4K)

	var as AddressSpace
	as.Init(userRoot, kernelRoot, pm.allocFrame, func(pmm.Frame) *kernel.Error { return nil })

	hugePages := uint64(UserArenaLimit-UserArenaBase)/uint64(mem.Size4K.Bytes()) + 1
	if _, err := as.Sbrk(hugePages); err == nil {
		t.Fatal("expected an out-of-memory error growing past the arena limit")
	}
}
