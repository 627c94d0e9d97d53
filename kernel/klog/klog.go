// Package klog is the kernel log store the Log syscall (id 0) writes
// through: every write both echoes to hal.ActiveTerminal, the same sink
// kernel/kfmt/early uses before the heap exists, and retains a bounded
// tail in a ring buffer that Read can replay. No scheme in the kernel
// exposes Read.
//
// Grounded on gopher-os's kernel/kfmt/ringbuf.go, adapted from "early
// Printf's own scratch buffer" to "the durable backing store behind a
// syscall".
package klog

import (
	"io"

	"github.com/sophon-os/sophon/kernel/hal"
	gvsync "gvisor.dev/gvisor/pkg/sync"
)

// bufferSize is the ring buffer's capacity in bytes. Must be a power of 2.
const bufferSize = 4096

var (
	mu  gvsync.Mutex
	buf ringBuffer
)

// ringBuffer is a fixed ring of bufferSize bytes; one slot is always left
// empty, so it retains at most bufferSize-1 bytes.
type ringBuffer struct {
	data           [bufferSize]byte
	rIndex, wIndex int
}

func (rb *ringBuffer) write(p []byte) {
	for _, b := range p {
		rb.data[rb.wIndex] = b
		rb.wIndex = (rb.wIndex + 1) & (bufferSize - 1)
		if rb.rIndex == rb.wIndex {
			rb.rIndex = (rb.rIndex + 1) & (bufferSize - 1)
		}
	}
}

func (rb *ringBuffer) read(p []byte) (int, error) {
	switch {
	case rb.rIndex < rb.wIndex:
		n := rb.wIndex - rb.rIndex
		if pLen := len(p); pLen < n {
			n = pLen
		}
		copy(p, rb.data[rb.rIndex:rb.rIndex+n])
		rb.rIndex += n
		return n, nil
	case rb.rIndex > rb.wIndex:
		n := bufferSize - rb.rIndex
		if pLen := len(p); pLen < n {
			n = pLen
		}
		copy(p, rb.data[rb.rIndex:rb.rIndex+n])
		rb.rIndex += n
		if rb.rIndex == bufferSize {
			rb.rIndex = 0
		}
		return n, nil
	default:
		return 0, io.EOF
	}
}

// Write appends p to the kernel log: it is echoed to the active console
// and retained in the ring buffer for later replay. Returns what the
// console's Write returns - a full buffer drops its oldest bytes rather
// than erroring.
func Write(p []byte) (int, error) {
	mu.Lock()
	buf.write(p)
	mu.Unlock()

	return hal.ActiveTerminal.Write(p)
}

// Read drains up to len(p) bytes previously retained by Write, oldest
// first, returning io.EOF once the buffer is caught up.
func Read(p []byte) (int, error) {
	mu.Lock()
	defer mu.Unlock()
	return buf.read(p)
}
