package proc

import "testing"

func TestSpawnAndLookupProc(t *testing.T) {
	p := Spawn()

	got, err := LookupProc(p.Id())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != p {
		t.Fatal("LookupProc returned a different Proc")
	}
}

func TestLookupProcUnknown(t *testing.T) {
	if _, err := LookupProc(ProcId(1 << 40)); err == nil {
		t.Fatal("expected an error looking up an unregistered ProcId")
	}
}

func TestProcRemovedWhenLastTaskExits(t *testing.T) {
	p := Spawn()
	t1 := NewTask(p)
	t2 := NewTask(p)

	if len(p.tasks) != 2 {
		t.Fatalf("expected 2 owned tasks; got %d", len(p.tasks))
	}

	Remove(t1.Id())
	if _, err := LookupProc(p.Id()); err != nil {
		t.Fatal("proc should still be registered with one task remaining")
	}

	Remove(t2.Id())
	if _, err := LookupProc(p.Id()); err == nil {
		t.Fatal("proc should be deregistered once its last task exits")
	}
}

func TestProcExitWakesWaiters(t *testing.T) {
	p := Spawn()
	parent := NewTask(Spawn())
	p.AddWaiter(parent.Id())

	waiters := p.Exit(7)
	if len(waiters) != 1 || waiters[0] != parent.Id() {
		t.Fatalf("expected Exit to return the registered waiter; got %v", waiters)
	}

	exited, code := p.Exited()
	if !exited || code != 7 {
		t.Fatalf("expected Exited() == (true, 7); got (%v, %d)", exited, code)
	}
}
