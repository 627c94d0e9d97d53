package mem

import "unsafe"

// Memset sets size bytes at the given virtual address to the supplied
// value. The implementation is based on bytes.Repeat: instead of a plain
// for loop, it uses log2(size) copy calls, which is a meaningful speedup
// since page addresses are always aligned and size is usually a full page.
func Memset(addr VAddr, value byte, size Size) {
	if size == 0 {
		return
	}

	target := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), int(size))

	target[0] = value
	for index := Size(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}

// Memcopy copies size bytes from src to dst, both virtual addresses in the
// currently active address space.
func Memcopy(src, dst VAddr, size Size) {
	if size == 0 {
		return
	}

	srcSlice := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(src))), int(size))
	dstSlice := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(dst))), int(size))
	copy(dstSlice, srcSlice)
}

// Bytes returns a []byte view of size bytes starting at addr, a virtual
// address in the currently active address space. Used at the syscall
// boundary to turn a validated (pointer, length) user argument pair into a
// slice without copying - the caller must have already bounds-checked addr
// against the owning address space's mapped range.
func Bytes(addr VAddr, size Size) []byte {
	if size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), int(size))
}
