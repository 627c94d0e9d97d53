package proc

import (
	"github.com/sophon-os/sophon/kernel"
	"github.com/sophon-os/sophon/kernel/mem/addrspace"
	gvsync "gvisor.dev/gvisor/pkg/sync"
)

var (
	errUnknownProc = &kernel.Error{Module: "proc", Message: "unknown process id", Kind: kernel.KindNotFound}

	procsMu gvsync.Mutex
	procs   = map[ProcId]*Proc{}
)

// Proc is one address space and its owned tasks. The zero value is not
// ready for use; Spawn constructs one.
type Proc struct {
	id ProcId

	addrSpace addrspace.AddressSpace

	// exited and exitCode record whether Exit has been called and with
	// what code - see Exited.
	exited   bool
	exitCode int64

	tasks []TaskId

	monitor waitMonitor
}

// waitMonitor is the minimal wait/notify primitive Exec's parent blocks on.
// It is not
// kernel/sync.RawCondvar because the scheduler itself (kernel/sched) is
// this package's caller and proc must not import sched (sched already
// imports proc, to look up a task's owning process on context switch) -
// using a condvar here would create an import cycle, so Proc's own
// wait/notify is a thin waiter list: AddWaiter fills it, and Exit hands
// it back for the caller to wake through the scheduler.
type waitMonitor struct {
	waiters []TaskId
}

// Spawn creates and registers a new kernel-only Proc. Its address space is
// left as the zero value: no root page table frame is installed - used for
// the Idle task and other in-kernel processes that never call Sbrk.
func Spawn() *Proc {
	p := &Proc{id: allocProcId()}

	procsMu.Lock()
	procs[p.id] = p
	procsMu.Unlock()

	return p
}

// Id returns this process's ProcId.
func (p *Proc) Id() ProcId { return p.id }

// AddressSpace returns this process's address space for Sbrk/page-table
// installation.
func (p *Proc) AddressSpace() *addrspace.AddressSpace { return &p.addrSpace }

// LookupProc returns the Proc registered under id, or errUnknownProc.
func LookupProc(id ProcId) (*Proc, *kernel.Error) {
	procsMu.Lock()
	defer procsMu.Unlock()

	p, ok := procs[id]
	if !ok {
		return nil, errUnknownProc
	}
	return p, nil
}

// addTask records taskId as belonging to p. Called by proc.NewTask.
func (p *Proc) addTask(taskId TaskId) {
	p.tasks = append(p.tasks, taskId)
}

// removeTask drops taskId from p's owned-task list. Called when a task
// exits; when the list becomes empty the process itself is considered
// dead and is removed from the global table.
func (p *Proc) removeTask(taskId TaskId) {
	for i, id := range p.tasks {
		if id == taskId {
			p.tasks = append(p.tasks[:i], p.tasks[i+1:]...)
			break
		}
	}
	if len(p.tasks) > 0 {
		return
	}

	procsMu.Lock()
	delete(procs, p.id)
	procsMu.Unlock()
}

// Exit marks this process as having terminated with code and returns the
// tasks registered through AddWaiter (clearing the list), for the caller
// to wake. It does not itself release the process's
// address-space frames; callers release those via AddressSpace().Teardown
// before or after calling Exit.
func (p *Proc) Exit(code int64) []TaskId {
	p.exited = true
	p.exitCode = code

	waiters := p.monitor.waiters
	p.monitor.waiters = nil
	return waiters
}

// Exited reports whether this process has called Exit, and if so, with
// what code.
func (p *Proc) Exited() (bool, int64) {
	return p.exited, p.exitCode
}

// AddWaiter registers taskId to be returned by the next Exit call on p -
// used by the Exec syscall's parent-blocks-on-child path.
func (p *Proc) AddWaiter(taskId TaskId) {
	p.monitor.waiters = append(p.monitor.waiters, taskId)
}
