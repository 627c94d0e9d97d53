// Package sched implements the FIFO round-robin scheduler: a run queue of
// Ready tasks, the Running/Blocked transitions of the task state machine,
// and the context switch that installs a new process's page table
// on a cross-process dispatch. New relative to gopher-os, which
// never reached multitasking; its kernel/sync.Spinlock carries a literal
// "TODO: replace with real yield function when context-switching is
// implemented" that this package now resolves.
package sched

import (
	"github.com/sophon-os/sophon/kernel"
	"github.com/sophon-os/sophon/kernel/cpu"
	"github.com/sophon-os/sophon/kernel/proc"
	"github.com/sophon-os/sophon/kernel/sched/context"
	gvsync "gvisor.dev/gvisor/pkg/sync"
)

var (
	errRunQueueEmpty = &kernel.Error{Module: "sched", Message: "run queue empty with no current task", Kind: kernel.KindInternal}

	mu       gvsync.Mutex
	runQueue []proc.TaskId

	// bootCtx is the synthetic "from" context for the very first
	// Schedule call, made before any task has ever been Running - it is
	// never switched back into (S1 Boot-to-Idle's Idle task loops
	// forever), so only its existence as an addressable save target
	// matters.
	bootCtx context.Context

	// activateFn installs nextId's process's address space as the
	// active page table on a cross-process dispatch. kernel.Start wires
	// this to the real addrspace Table().Activate path; tests install a
	// recording fake. sched cannot import mem/addrspace directly without
	// reaching through proc.Proc.AddressSpace() on every call, so the
	// indirection also keeps this package decoupled from the page-table
	// implementation.
	activateFn = func(proc.TaskId) {}

	// switchContextFn performs the architectural context switch between
	// two tasks. Overridden by tests, which cannot safely exercise the
	// real stack-swapping assembly from a hosted goroutine.
	switchContextFn = func(from, to *context.Context) { from.SwitchTo(to) }
)

// RegisterNewTask pushes t onto the tail of the FIFO run queue if it is
// Ready - the registration half of the task state machine (proc.NewTask
// already handled the id-allocation/table-insertion half).
func RegisterNewTask(t *proc.Task) {
	g := cpu.EnterCritical()
	defer g.Exit()

	mu.Lock()
	defer mu.Unlock()

	if state, _ := t.State(); state == proc.Ready {
		runQueue = append(runQueue, t.Id())
	}
}

// TimerTick decrements the current task's remaining time-slice. On
// reaching zero it marks the current task Ready, pushes it to the run
// queue's tail, and calls Schedule; otherwise it returns immediately,
// leaving the current task running for the rest of its slice.
func TimerTick() {
	id := proc.Current()
	if id == proc.NoTask {
		return
	}
	task, err := proc.LookupTask(id)
	if err != nil {
		return
	}

	if task.DecSlice() > 0 {
		return
	}

	g := cpu.EnterCritical()
	mu.Lock()
	task.SetState(proc.Ready, proc.BlockNone)
	runQueue = append(runQueue, id)
	mu.Unlock()
	g.Exit()

	Schedule()
}

// Schedule dispatches the next task to run. If the current task is still
// Running (TimerTick/FreezeCurrentTask did not just move it off that
// state), it is simply resumed with no switch. Otherwise the head of the
// FIFO run queue is popped (kernel.Panic if empty - an Idle task must
// always be present), marked Running, refilled to a full
// time slice, installed as current, and switched into - reinstalling the
// new task's process's address space first if it differs from the
// previous task's, or if there was no previous task at all.
func Schedule() {
	g := cpu.EnterCritical()
	mu.Lock()

	prevId := proc.Current()
	prevTask, prevErr := proc.LookupTask(prevId)

	if prevErr == nil {
		if state, _ := prevTask.State(); state == proc.Running {
			mu.Unlock()
			g.Exit()
			return
		}
	}

	if len(runQueue) == 0 {
		mu.Unlock()
		g.Exit()
		kernel.Panic(errRunQueueEmpty)
		return // unreachable; kernel.Panic halts
	}

	nextId := runQueue[0]
	runQueue = runQueue[1:]
	mu.Unlock()

	nextTask, err := proc.LookupTask(nextId)
	if err != nil {
		g.Exit()
		kernel.Panic(err)
		return // unreachable
	}

	crossProcess := prevErr != nil || prevTask.ProcId() != nextTask.ProcId()

	nextTask.SetState(proc.Running, proc.BlockNone)
	nextTask.RefillSlice()
	proc.SetCurrent(nextId)

	if crossProcess {
		activateFn(nextId)
	}

	fromCtx := &bootCtx
	if prevErr == nil {
		fromCtx = prevTask.Ctx()
	}
	g.Exit()
	switchContextFn(fromCtx, nextTask.Ctx())
}

// FreezeCurrentTask marks the current task Blocked (recording cause),
// leaves it off the run queue, and calls Schedule. RawMutex/RawCondvar
// call this to block a task.
func FreezeCurrentTask(cause proc.BlockCause) {
	id := proc.Current()
	task, err := proc.LookupTask(id)
	if err != nil {
		return
	}

	task.SetState(proc.Blocked, cause)
	Schedule()
}

// WakeUp transitions id from Blocked to Ready and pushes it onto the run
// queue's tail. Idempotent: waking an already-Ready or Running task is a
// no-op.
func WakeUp(id proc.TaskId) {
	task, err := proc.LookupTask(id)
	if err != nil {
		return
	}

	state, _ := task.State()
	if state != proc.Blocked {
		return
	}

	g := cpu.EnterCritical()
	mu.Lock()
	task.SetState(proc.Ready, proc.BlockNone)
	runQueue = append(runQueue, id)
	mu.Unlock()
	g.Exit()
}

// RemoveTask deregisters id from the task registry and ensures it is not
// present in the run queue - called from the Exit syscall path once a
// task's owning process has fully torn down.
func RemoveTask(id proc.TaskId) {
	g := cpu.EnterCritical()
	mu.Lock()
	for i, qid := range runQueue {
		if qid == id {
			runQueue = append(runQueue[:i], runQueue[i+1:]...)
			break
		}
	}
	mu.Unlock()
	g.Exit()

	proc.Remove(id)
}

// SetActivateFn installs the callback Schedule uses to reinstall a newly
// dispatched task's address space on a cross-process switch.
func SetActivateFn(fn func(proc.TaskId)) { activateFn = fn }

// SetSwitchContextFn overrides the architectural context-switch step.
// Tests use this to observe Schedule's from/to pairing without exercising
// the real register-swapping assembly.
func SetSwitchContextFn(fn func(from, to *context.Context)) { switchContextFn = fn }

// RunQueueLen returns the number of tasks currently waiting on the FIFO
// run queue, for boot scenario diagnostics.
func RunQueueLen() int {
	mu.Lock()
	defer mu.Unlock()
	return len(runQueue)
}
