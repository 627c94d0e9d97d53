package kernel

// Kind classifies an Error so that callers crossing the syscall boundary
// can map it to a stable negative return value without string-matching
// Message.
type Kind uint8

const (
	// KindInternal covers invariant violations that have no recoverable
	// meaning at the syscall boundary (double free, unaligned frame
	// construction, unknown syscall id). Callers should Panic, not return.
	KindInternal Kind = iota

	// KindOutOfMemory is returned when the frame allocator or kernel
	// heap cannot satisfy a request.
	KindOutOfMemory

	// KindMappingExists is returned when a caller attempts to map an
	// already-present page without first unmapping it.
	KindMappingExists

	// KindNotFound is returned when an IPC Open targets a missing
	// scheme, module, or resource.
	KindNotFound

	// KindInvalidArgument is returned for a malformed user pointer or an
	// out-of-range enum tag.
	KindInvalidArgument
)

// Error describes a kernel error. All kernel errors must be defined as
// global variables that are pointers to the Error structure. This
// requirement stems from the fact that the Go allocator is not available to
// us until the kernel heap is up, so we cannot use errors.New or
// fmt.Errorf to build errors on demand.
type Error struct {
	// Module where the error originated.
	Module string

	// Message is a human-readable description.
	Message string

	// Kind classifies the error for syscall-return mapping.
	Kind Kind
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Recoverable reports whether this error should propagate to a caller as a
// negative syscall return value rather than panic the kernel.
func (e *Error) Recoverable() bool {
	return e.Kind != KindInternal
}

// Errno maps an Error to the negative isize value returned across the
// syscall boundary. KindInternal has no Errno mapping since it never
// crosses the boundary - it panics instead.
func (e *Error) Errno() int64 {
	switch e.Kind {
	case KindOutOfMemory:
		return -1
	case KindMappingExists:
		return -2
	case KindNotFound:
		return -3
	case KindInvalidArgument:
		return -4
	default:
		return -127
	}
}
