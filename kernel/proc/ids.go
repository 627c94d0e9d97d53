// Package proc implements the process and task registries: the ProcId ->
// *Proc and TaskId -> *Task tables, their monotonic id counters, and the
// single-CPU current-task slot, following a cyclic-ownership design
// (strong Proc -> []TaskId, weak Task -> ProcId; no equivalent package
// exists in gopher-os, which never reached multitasking).
package proc

import "gvisor.dev/gvisor/pkg/atomicbitops"

// ProcId uniquely identifies a Proc for the lifetime of the kernel. IDs are
// monotonic and never reused, even after the Proc they named has exited.
type ProcId uint64

// TaskId uniquely identifies a Task for the lifetime of the kernel. Same
// monotonic, never-reused policy as ProcId.
type TaskId uint64

var (
	nextProcId atomicbitops.Uint64
	nextTaskId atomicbitops.Uint64
)

// NoProc and NoTask are the zero values of their id types, reserved to mean
// "no such process/task" - id 0 is never handed out.
const (
	NoProc ProcId = 0
	NoTask TaskId = 0
)

func init() {
	// Reserve id 0 for NoProc/NoTask.
	nextProcId.Store(1)
	nextTaskId.Store(1)
}

func allocProcId() ProcId {
	return ProcId(nextProcId.Add(1) - 1)
}

func allocTaskId() TaskId {
	return TaskId(nextTaskId.Add(1) - 1)
}
