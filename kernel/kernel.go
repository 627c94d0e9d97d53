package kernel

import (
	"github.com/sophon-os/sophon/kernel/cpu"
	"github.com/sophon-os/sophon/kernel/devicetree"
	"github.com/sophon-os/sophon/kernel/hal"
	"github.com/sophon-os/sophon/kernel/ipc"
	"github.com/sophon-os/sophon/kernel/kfmt/early"
	"github.com/sophon-os/sophon/kernel/mem"
	"github.com/sophon-os/sophon/kernel/mem/pmm/allocator"
	"github.com/sophon-os/sophon/kernel/proc"
	"github.com/sophon-os/sophon/kernel/sched"
	"github.com/sophon-os/sophon/kernel/sched/context"
)

func init() {
	ipc.CurrentAddressSpace = currentAddressSpace
	ipc.ExitFn = exitCurrentProcess
	// ipc.ExecFn is left at its documented default: spawning a process
	// from a path requires parsing an executable image, and the ELF
	// parser is explicitly out of scope - a real loader wires ExecFn
	// once it exists.
}

// BootInfo is everything the loader - an out-of-scope collaborator;
// this core excludes the UEFI loader and ELF parser - hands the kernel at
// boot: the physical memory map, the flattened device tree blob, the
// UART's identity-mapped virtual base (0 if not yet mapped), and the
// init filesystem image.
type BootInfo struct {
	FreeRanges []mem.PhysRange
	DeviceTree []byte
	UARTBase   mem.VAddr
	InitFS     []byte
}

// Start is the kernel's main entry point, called once by main after the
// rt0 trampoline has set up an initial stack: it attaches the console,
// brings up the physical frame allocator from the loader's free ranges,
// wires the scheduler's process-activation and context-switch callbacks
// to the real address-space and context implementations, spawns the
// idle task, and hands control to the scheduler forever.
//
// Start is not expected to return.
//
//go:noinline
func Start(info *BootInfo) {
	hal.AttachUART(info.UARTBase)
	early.Printf("Starting sophon\n")

	attachUARTFromDeviceTree(info)

	if err := allocator.Init(info.FreeRanges); err != nil {
		Panic(err)
	}

	sched.SetActivateFn(activateTask)
	sched.SetSwitchContextFn(func(from, to *context.Context) { from.SwitchTo(to) })

	idleProc := proc.Spawn()
	idleTask := proc.NewTask(idleProc)
	idleTask.Ctx().Init(idleEntry, 0, context.DefaultStackSize)
	sched.RegisterNewTask(idleTask)

	for {
		sched.Schedule()
	}
}

// attachUARTFromDeviceTree scans info.DeviceTree for an "arm,pl011" node
// and attaches it as the active console, if the loader did not already
// report an identity-mapped UARTBase directly.
func attachUARTFromDeviceTree(info *BootInfo) {
	if info.UARTBase != 0 || info.DeviceTree == nil {
		return
	}

	root, err := devicetree.Parse(info.DeviceTree)
	if err != nil {
		return
	}
	uart, ok := devicetree.FindCompatible(root, "arm,pl011")
	if !ok {
		return
	}
	reg, ok := uart.Property("reg")
	if !ok {
		return
	}
	pairs := reg.AsU64Pairs()
	if len(pairs) == 0 {
		return
	}
	hal.AttachUART(mem.VAddr(pairs[0].Addr))
}

// idleEntry is the idle task's entry point: it halts the CPU until the
// next timer interrupt finds other work - the boot-to-idle scenario.
func idleEntry(uintptr) {
	for {
		cpu.HaltFn()
	}
}

// activateTask installs id's owning process's page table as the active
// TTBR0_EL1 - the real implementation of the seam sched.SetActivateFn
// installs, replacing the no-op default and the recording fakes sched's
// own tests use.
func activateTask(id proc.TaskId) {
	task, err := proc.LookupTask(id)
	if err != nil {
		return
	}
	owner, err := proc.LookupProc(task.ProcId())
	if err != nil {
		return
	}
	owner.AddressSpace().Table().Activate()
}

// currentAddressSpace resolves the currently-running task's owning
// process's address space as the narrow ipc.UserMemory surface syscall
// argument marshalling needs - the real implementation of ipc's
// CurrentAddressSpace seam.
func currentAddressSpace() ipc.UserMemory {
	task, err := proc.LookupTask(proc.Current())
	if err != nil {
		return nil
	}
	owner, err := proc.LookupProc(task.ProcId())
	if err != nil {
		return nil
	}
	return owner.AddressSpace()
}

// exitCurrentProcess tears down the currently-running task's owning
// process: it records the exit code (waking any Exec parent blocked in
// Wait), releases the address space's user-mapped frames, deregisters
// the calling task, and reschedules - the real implementation of ipc's
// ExitFn seam. Other tasks the process owns stay registered.
func exitCurrentProcess(code int64) {
	id := proc.Current()
	task, err := proc.LookupTask(id)
	if err != nil {
		return
	}
	owner, err := proc.LookupProc(task.ProcId())
	if err != nil {
		return
	}

	waiters := owner.Exit(code)
	for _, w := range waiters {
		sched.WakeUp(w)
	}

	owner.AddressSpace().Teardown()
	sched.RemoveTask(id)
	sched.Schedule()
}
