// Package context implements the scheduler's opaque per-task architectural
// state and the assembly-backed register save/restore that makes
// Schedule's context switch possible. An opaque per-arch struct, shaped
// after gVisor's pkg/sentry/platform/kvm vCPU save/restore step (retrieved
// file, design grounding only - kvm's vCPU register set is far larger than
// a cooperative, single-core kernel needs).
package context

import "unsafe"

// EntryFunc is the signature every task's entry point must satisfy - the
// single argument a Context's entry/arg pair threads through on first
// dispatch.
type EntryFunc func(arg uintptr)

// stackAlignment is AArch64's required SP alignment (16 bytes).
const stackAlignment = 16

// DefaultStackSize is the kernel stack size a freshly Init'd Context gets
// when the caller has no reason to ask for a different size.
const DefaultStackSize = 16 * 1024

// Context is one task's saved architectural state: a stack pointer into
// its own kernel stack (sp must be the struct's first field - switchTo
// addresses it at offset 0), plus the backing stack slice
// (kept referenced here so the Go garbage collector never reclaims it
// while switchTo still holds a raw pointer into it) and the deferred
// entry point a fresh task's first SwitchTo transfers control to.
//
// The zero value is not ready for use; call Init.
type Context struct {
	sp uintptr

	stack   []byte
	started bool
	entry   EntryFunc
	arg     uintptr
}

// dispatching holds the Context a freshly Init'd task is being switched
// into, for runEntry to read its entry/arg back out of once entryTrampoline
// gives it control. It is only ever non-nil for the brief window between
// SwitchTo's dispatch of a never-started Context and that Context's first
// instruction.
var dispatching *Context

var (
	// switchToFn/initFrameFn are mocked by tests, which cannot safely
	// exercise the real stack-swapping assembly from a hosted goroutine
	// (doing so would corrupt the Go runtime's own notion of this
	// goroutine's stack, independent of any kernel/user privilege
	// concern) - the same function-variable seam kernel/cpu uses for
	// its privileged instructions.
	switchToFn  = switchTo
	initFrameFn = initFrame
)

// Init carves a stackSize-byte kernel stack and arranges for this
// Context's first SwitchTo to transfer control to entry(arg), as if entry
// had just been called directly - a kernel entry stub run on first
// dispatch.
func (c *Context) Init(entry EntryFunc, arg uintptr, stackSize int) {
	c.stack = make([]byte, stackSize)
	c.entry = entry
	c.arg = arg

	top := uintptr(unsafe.Pointer(&c.stack[len(c.stack)-1])) + 1
	top &^= stackAlignment - 1
	c.sp = initFrameFn(top)
}

// SwitchTo saves the caller's architectural state into c and restores to,
// resuming wherever to last called SwitchTo (or, on a never-started
// Context, entering its Init entry point for the first time). It returns
// only once some later SwitchTo targets c again.
func (c *Context) SwitchTo(to *Context) {
	if !to.started {
		to.started = true
		dispatching = to
	}
	switchToFn(c, to)
}

// runEntry is entryTrampoline's Go-side half: it reads the task that is
// being dispatched out of the package-level handoff slot and calls its
// entry point. It must never return - a task's entry point runs for the
// lifetime of the task, ending only via the Exit syscall, never via a Go
// return.
//
//go:nosplit
func runEntry() {
	c := dispatching
	dispatching = nil
	c.entry(c.arg)
	panic("context: task entry point returned")
}

// ReturnToUser is the hook the arch trap-entry assembly - outside this
// resource-management core's scope - calls to resume this context's saved
// user-mode PC/SP via ERET. Sophon implements no user-mode EL0 transition
// of its own - every task in this rewrite runs at the privilege the
// scheduler dispatches it at - so this is a named, documented no-op rather
// than an omission: it exists so callers outside this package have a
// stable call site to wire real trap-return assembly into later.
func (c *Context) ReturnToUser() {}
