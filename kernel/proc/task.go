package proc

import (
	"github.com/sophon-os/sophon/kernel"
	"github.com/sophon-os/sophon/kernel/sched/context"
	"gvisor.dev/gvisor/pkg/atomicbitops"
	gvsync "gvisor.dev/gvisor/pkg/sync"
)

var (
	errUnknownTask = &kernel.Error{Module: "proc", Message: "unknown task id", Kind: kernel.KindNotFound}

	tasksMu gvsync.Mutex
	tasks   = map[TaskId]*Task{}

	// current is the single-CPU current-task slot: the TaskId whose
	// RunState is Running, or NoTask. Kept as
	// an atomicbitops.Uint64 rather than a plain TaskId so Current can be
	// read from anywhere (e.g. diagnostics, a future timer ISR) without
	// taking kernel/sched's run-queue lock; SetCurrent remains the only
	// writer, called by kernel/sched with interrupts masked (Schedule
	// calls it after releasing the run-queue lock).
	current atomicbitops.Uint64
)

// RunState is a task's scheduling state.
type RunState uint8

const (
	// Ready means the task is on the run queue awaiting dispatch.
	Ready RunState = iota
	// Running means the task is the one currently executing - at most
	// one task holds this state at a time in this single-CPU design.
	Running
	// Blocked means the task is off the run queue, waiting on a
	// BlockCause to be satisfied.
	Blocked
)

// BlockCause records why a Blocked task is blocked, purely for
// diagnostics - Blocked plus a cause replaces separate Sending/Receiving
// states with one state and a reason.
type BlockCause uint8

const (
	// BlockNone is the zero value; only meaningful when RunState != Blocked.
	BlockNone BlockCause = iota
	// BlockMutex means the task is queued on a RawMutex waiter list.
	BlockMutex
	// BlockCondvar means the task is queued on a RawCondvar waiter list.
	BlockCondvar
	// BlockWait means the task is blocked in the Wait syscall or in
	// Exec's parent-waits-for-child path.
	BlockWait
)

// Task is one schedulable thread of execution: an architectural Context, a
// scheduler-private run state and time-slice counter, and a weak
// back-reference to the owning Proc.
type Task struct {
	id    TaskId
	proc  ProcId
	ctx   context.Context
	state RunState
	cause BlockCause

	// slice is this task's remaining time-slice units, refilled to
	// DefaultSlice on each dispatch.
	slice uint32
}

// DefaultSlice is the number of timer ticks a freshly dispatched task
// receives before sched.TimerTick forces a switch.
const DefaultSlice = 100

// NewTask allocates a TaskId, registers the task under owner, and returns
// it with RunState Ready and an empty Context - callers finish setup by
// calling Ctx().Init(entry, arg, stackSize) before the task is ever dispatched.
func NewTask(owner *Proc) *Task {
	t := &Task{
		id:    allocTaskId(),
		proc:  owner.id,
		state: Ready,
		slice: DefaultSlice,
	}

	tasksMu.Lock()
	tasks[t.id] = t
	tasksMu.Unlock()

	owner.addTask(t.id)
	return t
}

// Id returns this task's TaskId.
func (t *Task) Id() TaskId { return t.id }

// ProcId returns the ProcId of the Proc that owns this task.
func (t *Task) ProcId() ProcId { return t.proc }

// Ctx returns this task's architectural context, for switch_to/return_to_user.
func (t *Task) Ctx() *context.Context { return &t.ctx }

// State returns the task's current RunState and, if Blocked, its cause.
func (t *Task) State() (RunState, BlockCause) { return t.state, t.cause }

// SetState transitions the task to state, recording cause if state is
// Blocked (ignored otherwise). Called only by kernel/sched, with
// interrupts masked except in FreezeCurrentTask.
func (t *Task) SetState(state RunState, cause BlockCause) {
	t.state = state
	if state == Blocked {
		t.cause = cause
	} else {
		t.cause = BlockNone
	}
}

// Slice returns the task's remaining time-slice units.
func (t *Task) Slice() uint32 { return t.slice }

// DecSlice decrements the remaining time-slice by one and returns the new
// value.
func (t *Task) DecSlice() uint32 {
	if t.slice > 0 {
		t.slice--
	}
	return t.slice
}

// RefillSlice resets the remaining time-slice to DefaultSlice.
func (t *Task) RefillSlice() { t.slice = DefaultSlice }

// LookupTask returns the Task registered under id, or errUnknownTask.
func LookupTask(id TaskId) (*Task, *kernel.Error) {
	tasksMu.Lock()
	defer tasksMu.Unlock()

	t, ok := tasks[id]
	if !ok {
		return nil, errUnknownTask
	}
	return t, nil
}

// Remove deregisters id from the task table and drops it from its owning
// Proc's task list - the Proc itself is removed once its last task exits.
func Remove(id TaskId) {
	tasksMu.Lock()
	t, ok := tasks[id]
	if ok {
		delete(tasks, id)
	}
	tasksMu.Unlock()
	if !ok {
		return
	}

	if owner, err := LookupProc(t.proc); err == nil {
		owner.removeTask(id)
	}
}

// Current returns the TaskId of the currently Running task, or NoTask if
// none has been dispatched yet.
func Current() TaskId { return TaskId(current.Load()) }

// TaskCount returns the number of tasks currently registered, for boot
// scenario diagnostics (boot-to-idle: exactly one task).
func TaskCount() int {
	tasksMu.Lock()
	defer tasksMu.Unlock()
	return len(tasks)
}

// SetCurrent installs id as the current-task slot. Called only by
// kernel/sched.Schedule.
func SetCurrent(id TaskId) { current.Store(uint64(id)) }
