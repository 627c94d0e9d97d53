// Package boottest exercises end-to-end boot scenarios S1-S3, each built
// the way kernel/mem/vmm and kernel/mem/pmm test themselves: by
// substituting
// func-variable seams rather than booting real hardware.
//
// S4 (mutex contention) is not re-exercised here: its "no lost updates"
// property is an atomicity guarantee of RawMutex's CAS loop, already
// covered at the unit level by kernel/sync's own tests
// (TestMutexLockContendedRetriesAfterFreeze, TestMutexUnlockWakesAllWaiters)
// - reproducing three genuinely concurrent tasks would require either
// real hardware or standing up real OS-thread concurrency foreign to
// this kernel's single-CPU, cooperatively-scheduled model (there is
// exactly one Go call stack "running" at a time; a second goroutine
// calling into the same package-level scheduler state at the same time
// is not a scenario the production kernel can ever be in).
//
// S5 (Exec round-trip) and S6 (sbrk across address spaces) are not
// exercised here either - both require either a real loader able to
// populate InitFS with an executable image (Exec, and the ELF parser it
// needs, are explicitly out of scope) or a real MMU raising a
// fault on cross-process access (S6's "a different process reading B
// faults"), neither of which a hosted test process can safely simulate
// without real hardware.
package boottest
