package ipc

import (
	"github.com/sophon-os/sophon/kernel"
	ksync "github.com/sophon-os/sophon/kernel/sync"
	gvsync "gvisor.dev/gvisor/pkg/sync"
)

// PmOp selects the sync-primitive operation a "pm" ModuleCall performs.
// MutexCreate/Lock/Unlock/Destroy and CondvarCreate/Wait/NotifyAll/Destroy
// could have been distinct syscall ids or a module-call route; Sophon
// picks the latter (see DESIGN.md), which keeps the stable syscall-id
// table in syscall.go small.
type PmOp uint64

const (
	MutexCreate PmOp = iota
	MutexLock
	MutexUnlock
	MutexDestroy
	CondvarCreate
	CondvarWait
	CondvarNotifyAll
	CondvarDestroy
)

var (
	pmMu       gvsync.Mutex
	nextHandle uint64 = 1
	mutexes           = map[uint64]*ksync.RawMutex{}
	condvars          = map[uint64]*ksync.RawCondvar{}
)

var (
	errUnknownMutex   = &kernel.Error{Module: "pm", Message: "unknown mutex handle", Kind: kernel.KindInvalidArgument}
	errUnknownCondvar = &kernel.Error{Module: "pm", Message: "unknown condvar handle", Kind: kernel.KindInvalidArgument}
	errUnknownPmOp    = &kernel.Error{Module: "pm", Message: "unknown pm op", Kind: kernel.KindInvalidArgument}
)

func init() {
	RegisterModule("pm", pmHandler)
}

// pmHandler decodes req.W0 as a PmOp; W1/W2 carry handles as the op
// requires. Create ops return the new handle as a non-negative isize;
// every other op returns 0 on success.
func pmHandler(req ModuleRequest) int64 {
	switch PmOp(req.W0) {
	case MutexCreate:
		return int64(newMutex())
	case MutexLock:
		return withMutex(req.W1, func(m *ksync.RawMutex) int64 { m.Lock(); return 0 })
	case MutexUnlock:
		return withMutex(req.W1, func(m *ksync.RawMutex) int64 { m.Unlock(); return 0 })
	case MutexDestroy:
		return destroyMutex(req.W1)
	case CondvarCreate:
		return int64(newCondvar())
	case CondvarWait:
		return pmCondvarWait(req.W1, req.W2)
	case CondvarNotifyAll:
		return withCondvar(req.W1, func(c *ksync.RawCondvar) int64 { c.NotifyAll(); return 0 })
	case CondvarDestroy:
		return destroyCondvar(req.W1)
	default:
		return errUnknownPmOp.Errno()
	}
}

func newMutex() uint64 {
	pmMu.Lock()
	defer pmMu.Unlock()
	h := nextHandle
	nextHandle++
	mutexes[h] = &ksync.RawMutex{}
	return h
}

func newCondvar() uint64 {
	pmMu.Lock()
	defer pmMu.Unlock()
	h := nextHandle
	nextHandle++
	condvars[h] = &ksync.RawCondvar{}
	return h
}

func destroyMutex(h uint64) int64 {
	pmMu.Lock()
	_, ok := mutexes[h]
	delete(mutexes, h)
	pmMu.Unlock()
	if !ok {
		return errUnknownMutex.Errno()
	}
	return 0
}

func destroyCondvar(h uint64) int64 {
	pmMu.Lock()
	_, ok := condvars[h]
	delete(condvars, h)
	pmMu.Unlock()
	if !ok {
		return errUnknownCondvar.Errno()
	}
	return 0
}

func withMutex(h uint64, fn func(*ksync.RawMutex) int64) int64 {
	pmMu.Lock()
	m, ok := mutexes[h]
	pmMu.Unlock()
	if !ok {
		return errUnknownMutex.Errno()
	}
	return fn(m)
}

func withCondvar(h uint64, fn func(*ksync.RawCondvar) int64) int64 {
	pmMu.Lock()
	c, ok := condvars[h]
	pmMu.Unlock()
	if !ok {
		return errUnknownCondvar.Errno()
	}
	return fn(c)
}

func pmCondvarWait(mutexHandle, condvarHandle uint64) int64 {
	pmMu.Lock()
	m, mok := mutexes[mutexHandle]
	c, cok := condvars[condvarHandle]
	pmMu.Unlock()
	if !mok {
		return errUnknownMutex.Errno()
	}
	if !cok {
		return errUnknownCondvar.Errno()
	}
	c.Wait(m)
	return 0
}
