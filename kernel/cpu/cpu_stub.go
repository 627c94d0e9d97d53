//go:build !arm64

package cpu

import "github.com/sophon-os/sophon/kernel/mem"

// Sophon's hard core targets AArch64 only; an x86_64 backend is stubbed
// in source only, never implemented. This file exists so the package
// still builds under `go vet ./...` on a development workstation; it is
// rejected at configure time rather than silently producing wrong
// behavior on a non-AArch64 target.
func init() {
	panic("kernel/cpu: no backend for GOARCH other than arm64")
}

func enableInterrupts()                              {}
func disableInterrupts() uint64                       { return 0 }
func restoreInterrupts(mask uint64)                   {}
func halt()                                           {}
func flushTLBEntry(virtAddr mem.VAddr)                {}
func flushTLBAll()                                    {}
func switchTTBR0(phys mem.PAddr)                      {}
func activeTTBR0() mem.PAddr                          { return 0 }
func dataCacheCleanInvalidateRange(lo, hi mem.VAddr)  {}
