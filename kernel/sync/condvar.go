package sync

import (
	"github.com/sophon-os/sophon/kernel/cpu"
	"github.com/sophon-os/sophon/kernel/proc"
)

// RawCondvar is a FIFO waiter queue of TaskIds bound to a caller-supplied
// mutex only at Wait time. The zero value is ready for use.
type RawCondvar struct {
	waiters []proc.TaskId
}

// Wait enqueues the current task, unlocks m, and freezes the current task.
// On wake - spurious or via NotifyAll - it re-locks m before returning:
// RawCondvar.Wait must re-lock its mutex on return even after a spurious
// wake. The enqueue/unlock/freeze sequence runs
// under a single uninterruptible guard span (Unlock takes its own nested
// guard internally, which is safe - only the outermost Exit actually
// unmasks), so a timer preemption can never land between joining the
// waiter list and actually going Blocked.
func (c *RawCondvar) Wait(m *RawMutex) {
	g := cpu.EnterCritical()
	c.waiters = append(c.waiters, currentTaskFn())
	m.Unlock()
	freezeCurrentTaskFn(proc.BlockCondvar)
	g.Exit()

	m.Lock()
}

// NotifyAll drains the waiter list and wakes every task that was on it at
// the start of the call; each becomes Ready exactly once. Draining the
// list runs under the uninterruptible guard,
// the same atomicity mechanism Wait's enqueue relies on.
func (c *RawCondvar) NotifyAll() {
	g := cpu.EnterCritical()
	waiters := c.waiters
	c.waiters = nil
	g.Exit()

	for _, id := range waiters {
		wakeUpFn(id)
	}
}
