package boottest

import (
	"testing"
	"unsafe"

	"github.com/sophon-os/sophon/kernel"
	"github.com/sophon-os/sophon/kernel/mem"
	"github.com/sophon-os/sophon/kernel/mem/heap"
	"github.com/sophon-os/sophon/kernel/proc"
	"github.com/sophon-os/sophon/kernel/sched"
	"github.com/sophon-os/sophon/kernel/sched/context"
)

// reset installs no-op activate/switch fakes so Schedule never touches
// real hardware state - boottest drives the same package-level scheduler
// state kernel.Start would, from outside the package, so it must not
// exercise the real context-switch assembly any more than kernel/sched's
// own tests do.
func reset(t *testing.T) {
	t.Helper()
	sched.SetActivateFn(func(proc.TaskId) {})
	sched.SetSwitchContextFn(func(from, to *context.Context) {})
	// Clear the current-task slot so a task left Running by an earlier
	// test in this binary cannot make Schedule resume it instead of
	// dispatching the task this test just registered.
	proc.SetCurrent(proc.NoTask)
}

// spawnIdleLikeTask registers one Ready task on a fresh Proc, the same
// shape kernel.Start gives the idle task, without touching kernel.Start
// itself (which loops on sched.Schedule forever and brings up the real
// physical frame allocator - neither safe to call from a hosted test).
func spawnIdleLikeTask() *proc.Task {
	p := proc.Spawn()
	task := proc.NewTask(p)
	task.Ctx().Init(func(uintptr) {}, 0, context.DefaultStackSize)
	sched.RegisterNewTask(task)
	return task
}

// TestBootToIdleDispatchesExactlyOneTask is scenario S1: with nothing else
// registered, spawning and scheduling a single task must leave the task
// count and run queue exactly where a fresh boot would - one task added,
// none still waiting, and that task Running. Counts are taken as deltas
// against a baseline rather than assumed to start at zero, since
// kernel/proc and kernel/sched's registries are package-level state
// shared across every test in this binary, not reset between them.
func TestBootToIdleDispatchesExactlyOneTask(t *testing.T) {
	reset(t)

	baselineTasks := proc.TaskCount()
	baselineQueue := sched.RunQueueLen()

	idle := spawnIdleLikeTask()
	if got := proc.TaskCount() - baselineTasks; got != 1 {
		t.Fatalf("expected exactly one new task registered; got %d", got)
	}
	if got := sched.RunQueueLen() - baselineQueue; got != 1 {
		t.Fatalf("expected the new task on the run queue; got delta %d", got)
	}

	sched.Schedule()

	if proc.Current() != idle.Id() {
		t.Fatalf("expected the sole Ready task dispatched; got %v, want %v", proc.Current(), idle.Id())
	}
	if state, _ := idle.State(); state != proc.Running {
		t.Fatalf("expected the dispatched task Running; got %v", state)
	}
	if got := sched.RunQueueLen() - baselineQueue; got != 0 {
		t.Fatalf("expected the run queue back to baseline after dispatch; got delta %d", got)
	}
}

// TestRoundRobinSplitsTicksEvenly is scenario S3: two tasks strictly
// alternate 100-tick slices (proc.DefaultSlice), so any run lasting a
// whole number of A/B slice pairs must split ticks exactly evenly -
// TimerTick's only externally visible effect without a real
// switchContextFn is which task proc.Current() names at each tick, so
// that is what this test samples. The run length is chosen as a multiple
// of 2*DefaultSlice specifically so the alternation completes clean
// pairs with no partial final slice to create a deliberate imbalance.
func TestRoundRobinSplitsTicksEvenly(t *testing.T) {
	reset(t)

	a := spawnIdleLikeTask()
	b := spawnIdleLikeTask()
	sched.Schedule() // dispatches a

	ticks := map[proc.TaskId]int{a.Id(): 0, b.Id(): 0}
	const totalTicks = 20 * proc.DefaultSlice // 10 full A/B slice pairs
	for i := 0; i < totalTicks; i++ {
		ticks[proc.Current()]++
		sched.TimerTick()
	}

	want := totalTicks / 2
	if ticks[a.Id()] != want || ticks[b.Id()] != want {
		t.Fatalf("expected an even %d/%d split over %d whole slice pairs; got A=%d B=%d",
			want, want, totalTicks/(2*proc.DefaultSlice), ticks[a.Id()], ticks[b.Id()])
	}
}

// fakePageSource backs every allocated "page" with real Go memory, the
// same shape kernel/mem/heap's own tests use, so a heap stress-tested
// through boottest exercises the real Heap/PageResource contract without
// needing the real physical frame allocator under it.
type fakePageSource struct {
	bufs [][]byte
}

func (f *fakePageSource) AllocatePages(n uint64, size mem.PageSize) (mem.VAddr, *kernel.Error) {
	buf := make([]byte, n*uint64(size.Bytes())+uint64(size.Bytes()))
	f.bufs = append(f.bufs, buf)

	addr := uintptr(unsafe.Pointer(&buf[0]))
	aligned := (addr + uintptr(size.Bytes()) - 1) &^ (uintptr(size.Bytes()) - 1)
	return mem.VAddr(aligned), nil
}

func (f *fakePageSource) ReleasePages(base mem.VAddr, n uint64, size mem.PageSize) *kernel.Error {
	return nil
}

// TestHeapStressManySizesSurviveAllocFree is scenario S2: a long mixed
// sequence of allocations across several size classes, interleaved with
// frees of the oldest live cell, must never fail and must never hand out
// an address that is still live.
func TestHeapStressManySizesSurviveAllocFree(t *testing.T) {
	var h heap.Heap
	h.Init(&fakePageSource{})

	sizes := []mem.Size{16, 32, 64, 128, 256, 512}
	const rounds = 64

	live := map[mem.VAddr]mem.Size{}
	var order []mem.VAddr

	for i := 0; i < rounds; i++ {
		size := sizes[i%len(sizes)]
		addr, err := h.Alloc(size)
		if err != nil {
			t.Fatalf("round %d: unexpected error allocating %d bytes: %v", i, size, err)
		}
		if _, dup := live[addr]; dup {
			t.Fatalf("round %d: address %x handed out while still live", i, addr)
		}
		live[addr] = size
		order = append(order, addr)

		// Every third round, free the oldest still-live cell, to churn
		// the free lists the way a long-running process would.
		if i%3 == 2 && len(order) >= 2 {
			victim := order[0]
			order = order[1:]
			if err := h.Free(victim, live[victim]); err != nil {
				t.Fatalf("round %d: unexpected error freeing %x: %v", i, victim, err)
			}
			delete(live, victim)
		}
	}

	for _, addr := range order {
		if err := h.Free(addr, live[addr]); err != nil {
			t.Fatalf("final drain: unexpected error freeing %x: %v", addr, err)
		}
	}
}
