// Package hal provides the thin hardware-abstraction seam the kernel logs
// through before and after the real UART is identity-mapped. It deliberately
// knows nothing about interrupt controllers, timers, or the full pl011
// register set - device drivers live outside this resource-management core;
// only the console's abstract Write surface lives here.
package hal

import "github.com/sophon-os/sophon/kernel/mem"

// Console is the minimal sink kernel/kfmt/early and kernel/klog write
// through. A real Console is backed by UART MMIO; tests and the pre-UART
// boot window back it with an in-memory buffer.
type Console interface {
	WriteByte(c byte) error
	Write(p []byte) (int, error)
}

// ActiveTerminal is the console currently receiving kernel log output. It
// starts out as a discarding sink so early.Printf calls made before the
// loader's UART mapping is known never fault on a nil interface.
var ActiveTerminal Console = discardConsole{}

// AttachUART switches the active console to a UART MMIO sink once BootInfo
// reports the UART's identity-mapped virtual base address. Passing a zero
// base detaches back to the discarding sink (no UART was reported).
func AttachUART(base mem.VAddr) {
	if base == 0 {
		ActiveTerminal = discardConsole{}
		return
	}
	ActiveTerminal = &pl011Console{base: base}
}

type discardConsole struct{}

func (discardConsole) WriteByte(byte) error        { return nil }
func (discardConsole) Write(p []byte) (int, error) { return len(p), nil }
