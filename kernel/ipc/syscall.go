// Package ipc implements the uniform message-style call convention this
// kernel exposes to userland: a stable syscall-id table, a name-addressed
// ModuleCall
// registry, and a minimal scheme-style message request shape. New
// relative to gopher-os, which never grew a userland or a supervisor
// call boundary - grounded on its kernel/irq registration-table pattern
// (HandleException/HandleExceptionWithCode), generalized from "exception
// number -> handler" to "syscall id -> handler" and "module name ->
// handler".
package ipc

import (
	"github.com/sophon-os/sophon/kernel"
	"github.com/sophon-os/sophon/kernel/klog"
	"github.com/sophon-os/sophon/kernel/mem"
	"github.com/sophon-os/sophon/kernel/proc"
	"github.com/sophon-os/sophon/kernel/sched"
)

// SyscallId is one of the stable syscall identifiers. Arguments arrive as (syscall_id, a..e) from (x0..x5); this package's
// Dispatch is the post-decode entry point the architectural trap handler
// calls once it has pulled those six registers out of the trap frame.
type SyscallId uint64

const (
	// Log writes a UTF-8 string (a = pointer, b = length) to the kernel
	// log. Returns the number of bytes written, or a negative error code
	// if (a, b) is not a valid user range.
	Log SyscallId = iota
	// ModuleCall invokes a named in-kernel module (a = name pointer,
	// b = name length) with a 4-word payload whose first three words are
	// c, d and e and whose fourth word is 0; the call is marked
	// unprivileged.
	ModuleCall
	// Wait calls FreezeCurrentTask(BlockWait) and reschedules.
	Wait
	// Sbrk extends the current process's arena by a pages (a = page
	// count); returns the new base, or a negative error code (for example
	// when the caller has no address space or memory runs out).
	Sbrk
	// Exec spawns a new user process from a path (a = pointer,
	// b = length) and blocks the caller until it exits.
	Exec
	// Exit terminates the current process with code a.
	Exit
	// Halt stops the kernel through kernel.Panic (debug/test only); the
	// code in a is not reported.
	Halt

	numSyscalls = int(Halt) + 1
)

var errUnknownSyscall = &kernel.Error{Module: "ipc", Message: "unknown syscall id", Kind: kernel.KindInternal}

// CurrentAddressSpace is overridden by kernel.Start to return the calling
// task's owning process's address space - ipc cannot import mem/addrspace
// and kernel/proc's Proc type together without the caller supplying this
// seam, since proc.Proc.AddressSpace returns a concrete *addrspace.AddressSpace
// and this package only needs the narrow UserMemory surface below.
var CurrentAddressSpace = func() UserMemory { return nil }

// ExecFn is the hook a loader installs to spawn a new process from a path
// and block until it exits, returning the child's exit code. ipc cannot
// construct a process by itself: loading a user image is the loader's
// job, an explicit out-of-scope collaborator. Package kernel leaves this
// default in place, so Exec always fails with a KindNotFound error code.
var ExecFn = func(path string) (int64, *kernel.Error) {
	return -1, &kernel.Error{Module: "ipc", Message: "exec not wired", Kind: kernel.KindNotFound}
}

// ExitFn is overridden by package kernel to tear down the current process:
// release its address space, mark it exited (waking any Exec parent), and
// remove the calling task from the scheduler. Other tasks of the same
// process stay registered.
var ExitFn = func(code int64) {}

// UserMemory is the narrow surface syscall argument marshalling needs
// from a process's address space: bounds-checking a (pointer, length)
// pair before dereferencing it - a raw pointer handoff from userland that
// must be validated, not trusted - and extending the arena for Sbrk.
type UserMemory interface {
	ValidateUserRange(addr mem.VAddr, length mem.Size) bool
	Sbrk(nPages uint64) (mem.VAddr, *kernel.Error)
}

// Dispatch decodes (id, a..e) and invokes the matching handler, returning
// the isize the syscall ABI hands back to userland: non-negative is a
// success value, negative is an error code (kernel.Error.Errno()).
// An unrecognized id is a kernel-internal invariant violation that causes
// a kernel panic, not a recoverable error.
func Dispatch(id SyscallId, a, b, c, d, e uint64) int64 {
	switch id {
	case Log:
		return sysLog(a, b)
	case ModuleCall:
		return sysModuleCall(a, b, c, d, e)
	case Wait:
		return sysWait()
	case Sbrk:
		return sysSbrk(a)
	case Exec:
		return sysExec(a, b)
	case Exit:
		return sysExit(a)
	case Halt:
		return sysHalt(a)
	default:
		kernel.Panic(errUnknownSyscall)
		return -1 // unreachable
	}
}

func userBytes(addr mem.VAddr, length uint64) ([]byte, *kernel.Error) {
	space := CurrentAddressSpace()
	if space == nil || !space.ValidateUserRange(addr, mem.Size(length)) {
		return nil, &kernel.Error{Module: "ipc", Message: "user pointer out of range", Kind: kernel.KindInvalidArgument}
	}
	return mem.Bytes(addr, mem.Size(length)), nil
}

func sysLog(ptr, length uint64) int64 {
	p, err := userBytes(mem.VAddr(ptr), length)
	if err != nil {
		return err.Errno()
	}
	n, _ := klog.Write(p)
	return int64(n)
}

func sysWait() int64 {
	sched.FreezeCurrentTask(proc.BlockWait)
	return 0
}

func sysSbrk(pages uint64) int64 {
	space := CurrentAddressSpace()
	if space == nil {
		return (&kernel.Error{Module: "ipc", Message: "no address space", Kind: kernel.KindInvalidArgument}).Errno()
	}
	base, err := space.Sbrk(pages)
	if err != nil {
		return err.Errno()
	}
	return int64(base)
}

func sysExec(ptr, length uint64) int64 {
	p, err := userBytes(mem.VAddr(ptr), length)
	if err != nil {
		return err.Errno()
	}
	code, err := ExecFn(string(p))
	if err != nil {
		return err.Errno()
	}
	return code
}

func sysExit(code uint64) int64 {
	ExitFn(int64(code))
	return 0 // unreachable in practice: ExitFn never returns to this task
}

func sysHalt(code uint64) int64 {
	kernel.Panic(nil)
	return int64(code) // unreachable; kernel.Panic halts
}
