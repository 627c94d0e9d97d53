// Package sync implements the blocking synchronization primitives this
// kernel needs: RawMutex and RawCondvar, both layered on kernel/sched
// rather than busy-waiting. Grounded on gopher-os's
// src/gopheros/kernel/sync/spinlock.go, which already carries the locked-
// bit-plus-arch-yield shape this package generalizes - its own
// "TODO: replace with real yield function when context-switching is
// implemented" is exactly the gap kernel/sched now fills.
package sync

import (
	"github.com/sophon-os/sophon/kernel/cpu"
	"github.com/sophon-os/sophon/kernel/proc"
	"github.com/sophon-os/sophon/kernel/sched"
	"gvisor.dev/gvisor/pkg/atomicbitops"
)

var (
	// currentTaskFn/freezeCurrentTaskFn/wakeUpFn are mocked by tests,
	// which cannot drive a real blocking wait without a full scheduler
	// and at least two concurrently runnable tasks - overriding these
	// lets a test script a single-goroutine interleaving deterministically
	// (e.g. "simulate another task unlocking while we are frozen")
	// instead of hanging the test process.
	currentTaskFn       = proc.Current
	freezeCurrentTaskFn = sched.FreezeCurrentTask
	wakeUpFn            = sched.WakeUp
)

// RawMutex is an atomic locked bit plus a FIFO waiter queue of TaskIds.
// The zero value is unlocked and ready for use.
type RawMutex struct {
	locked  atomicbitops.Uint32
	waiters []proc.TaskId
}

// Lock attempts a 0->1 CAS of the locked bit. On success it returns
// immediately. On failure it pushes the current task onto the waiter
// queue and freezes it; on every wake it re-checks the CAS, since Unlock
// wakes every waiter and they re-contend (spurious wake is expected and
// handled here, not left to the caller). The whole attempt - CAS, and on
// failure the waiter-list push and freeze - runs under the
// uninterruptible guard, so a timer preemption can never land between
// appending to waiters and this task actually going Blocked.
func (m *RawMutex) Lock() {
	for {
		g := cpu.EnterCritical()
		if m.locked.CompareAndSwap(0, 1) {
			g.Exit()
			return
		}

		m.waiters = append(m.waiters, currentTaskFn())
		freezeCurrentTaskFn(proc.BlockMutex)
		g.Exit()
	}
}

// TryLock attempts the 0->1 CAS without blocking on failure.
func (m *RawMutex) TryLock() bool {
	return m.locked.CompareAndSwap(0, 1)
}

// Unlock clears the locked bit, then wakes every queued waiter - they
// re-contend for the bit via Lock's loop; the first to win the CAS
// proceeds, the rest re-freeze - the first task to grab the bit proceeds,
// rather than the lock being handed directly to the head waiter. Clearing
// the bit and draining the waiter list run
// under the uninterruptible guard - the same one Lock's push runs under -
// since that pairing is the only atomicity the waiter list gets.
func (m *RawMutex) Unlock() {
	g := cpu.EnterCritical()
	m.locked.Store(0)
	waiters := m.waiters
	m.waiters = nil
	g.Exit()

	for _, id := range waiters {
		wakeUpFn(id)
	}
}
