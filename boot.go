// Command sophon is the kernel's entry point binary. main is the only Go
// symbol the rt0 initialization code calls after setting up an initial
// stack; it is a trampoline to kernel.Start so the compiler cannot
// optimize the real kernel code away by failing to see the rt0 assembly
// that calls into this package.
//
// main is not expected to return. If it does, the rt0 code halts the CPU.
package main

import (
	"github.com/sophon-os/sophon/kernel"
)

// bootInfo is populated by the loader before jumping to main - assembling
// it from the raw pointer handoff a real AArch64 loader provides is the
// loader's job - the UEFI loader is out of scope here - so this
// trampoline starts the kernel with whatever the loader already wrote
// into it by the time main runs.
var bootInfo kernel.BootInfo

func main() {
	kernel.Start(&bootInfo)
}
