//go:build arm64

package cpu

import "github.com/sophon-os/sophon/kernel/mem"

// The functions below have no Go body; each is implemented in
// cpu_arm64.s. This mirrors gopher-os's amd64 seam exactly: a Go
// declaration gives the rest of the kernel a typed, mockable call site,
// while the actual privileged instructions live in assembly the Go
// compiler cannot inline away or reorder across.

func enableInterrupts()
func disableInterrupts() uint64
func restoreInterrupts(mask uint64)
func halt()
func flushTLBEntry(virtAddr mem.VAddr)
func flushTLBAll()
func switchTTBR0(phys mem.PAddr)
func activeTTBR0() mem.PAddr
func dataCacheCleanInvalidateRange(lo, hi mem.VAddr)
