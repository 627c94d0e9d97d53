// Package vmm manages the AArch64 4-level page tables: mapping and
// unmapping virtual pages to physical frames, and walking a table to
// translate an address.
package vmm

import "github.com/sophon-os/sophon/kernel/mem"

// Page identifies a virtual memory page. Like pmm.Frame, its size class is
// encoded in the 8 most-significant bits.
type Page uint64

// PageFromAddress returns the Page of the given size class containing
// vaddr.
func PageFromAddress(vaddr mem.VAddr, size mem.PageSize) Page {
	return Page(uint64(vaddr)>>size.Shift()) | Page(uint64(size)<<56)
}

// Size returns the page's size class.
func (p Page) Size() mem.PageSize {
	return mem.PageSize((p >> 56) & 0xFF)
}

// Index returns the page number within its size class, stripped of the
// size tag.
func (p Page) Index() uint64 {
	return uint64(p) &^ (uint64(0xFF) << 56)
}

// Address returns the virtual address of the start of this page.
func (p Page) Address() mem.VAddr {
	return mem.VAddr(p.Index() << p.Size().Shift())
}
