package hal

import (
	"unsafe"

	"github.com/sophon-os/sophon/kernel/mem"
)

// pl011 register offsets, relative to the UART's base MMIO address. Only
// the two registers the console sink needs are named; the rest of the
// pl011 programming model (baud rate, line control, interrupts) belongs to
// the out-of-scope UART driver.
const (
	pl011DataReg  = 0x00
	pl011FlagReg  = 0x18
	pl011FlagTXFF = 1 << 5 // transmit FIFO full
)

// pl011Console writes bytes to a pl011 UART identity-mapped at base. It
// busy-waits on the transmit-FIFO-full flag, matching the polling discipline
// every freestanding early-console driver in this style uses before
// interrupts are set up.
type pl011Console struct {
	base mem.VAddr
}

func (c *pl011Console) WriteByte(ch byte) error {
	flag := (*uint32)(unsafe.Pointer(uintptr(c.base) + pl011FlagReg))
	data := (*uint32)(unsafe.Pointer(uintptr(c.base) + pl011DataReg))
	for *flag&pl011FlagTXFF != 0 {
	}
	*data = uint32(ch)
	return nil
}

func (c *pl011Console) Write(p []byte) (int, error) {
	for _, b := range p {
		if err := c.WriteByte(b); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}
