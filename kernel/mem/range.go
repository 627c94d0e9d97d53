package mem

// PhysRange describes a half-open range [Start, End) of physical memory
// reported as free by the boot loader. Ranges never overlap the kernel
// image or device MMIO - that invariant is established by the loader and
// merely trusted here.
type PhysRange struct {
	Start PAddr
	End   PAddr
}

// Len returns the number of bytes spanned by the range.
func (r PhysRange) Len() Size {
	if r.End <= r.Start {
		return 0
	}
	return Size(r.End - r.Start)
}

// AlignedFrames returns the [start, end) frame-number range of size-s
// frames fully contained within r: the start address rounded up and the
// end address rounded down to a multiple of s.Bytes().
func (r PhysRange) AlignedFrames(s PageSize) (start, end uint64) {
	alignedStart := r.Start.AlignUp(s)
	alignedEnd := r.End.AlignDown(s)
	if alignedEnd <= alignedStart {
		return 0, 0
	}
	shift := s.Shift()
	return uint64(alignedStart) >> shift, uint64(alignedEnd) >> shift
}
