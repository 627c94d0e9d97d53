package vmm

import "github.com/sophon-os/sophon/kernel/mem"

// pageTableEntry is a raw AArch64 stage-1 translation table descriptor
// (VMSAv8-64, 4K granule). The same 64-bit layout serves as a table
// descriptor at L4/L3/L2 and a block descriptor at L3/L2, or a page
// descriptor at L1 - which one it is is determined by the level it is
// read at and the FlagTable bit.
type pageTableEntry uint64

// Descriptor bit positions, matching the ARM architecture reference
// manual's stage-1 descriptor format.
const (
	bitValid       = 0
	bitTable       = 1 // 1 == table/page descriptor, 0 == block descriptor
	bitAttrIndex0  = 2 // AttrIndx[0:2], 3 bits
	bitAP1         = 6 // AP[2:1], 2 bits
	bitSH0         = 8 // SH[1:0], 2 bits
	bitAF          = 10
	bitNG          = 11
	addrShift      = 12
	addrMask       = uint64(0x0000_ffff_ffff_f000)
	bitPXN         = 53
	bitUXN         = 54
)

// PageTableEntryFlag is a bitmask of the high-level flags Map/Unmap accept.
// It is translated into the matching AArch64 descriptor bits by
// applyFlags.
type PageTableEntryFlag uint64

const (
	// FlagRW grants write access (clear => read-only, AP[2]=1).
	FlagRW PageTableEntryFlag = 1 << iota
	// FlagUser grants EL0 access (set => AP[1]=1; clear => EL1-only).
	FlagUser
	// FlagNoExecute sets UXN and PXN.
	FlagNoExecute
	// FlagDevice selects the device-nGnRE memory attribute instead of
	// normal cacheable memory (MAIR index 1 instead of 0).
	FlagDevice
)

const (
	attrIdxNormal = 0
	attrIdxDevice = 1
)

func (pte *pageTableEntry) present() bool {
	return *pte&(1<<bitValid) != 0
}

func (pte *pageTableEntry) isTable() bool {
	return *pte&(1<<bitTable) != 0
}

// setLeaf installs a present, non-table (block/page) descriptor pointing
// at paddr, applying flags. At L1 the "block descriptor" bit layout is
// actually the page-descriptor layout, and bitTable must be set for L1
// entries to be valid; the caller passes leafBitTable=true for an L1 leaf
// (Map does so) and false for L3/L2 block descriptors.
func (pte *pageTableEntry) setLeaf(paddr mem.PAddr, flags PageTableEntryFlag, leafBitTable bool) {
	v := uint64(1 << bitValid)
	if leafBitTable {
		v |= 1 << bitTable
	}
	v |= uint64(attrIdxNormal) << bitAttrIndex0
	if flags&FlagDevice != 0 {
		v = (v &^ (uint64(0x7) << bitAttrIndex0)) | (uint64(attrIdxDevice) << bitAttrIndex0)
	}

	// AP[2:1]: 00 = RW EL1-only, 01 = RW any EL, 10 = RO EL1-only, 11 = RO any EL
	ap := uint64(0)
	if flags&FlagUser != 0 {
		ap |= 0x1
	}
	if flags&FlagRW == 0 {
		ap |= 0x2
	}
	v |= ap << bitAP1

	v |= uint64(0x3) << bitSH0 // inner shareable
	v |= 1 << bitAF
	v |= 1 << bitNG

	if flags&FlagNoExecute != 0 {
		v |= 1 << bitPXN
		v |= 1 << bitUXN
	}

	v |= uint64(paddr) & addrMask
	*pte = pageTableEntry(v)
}

// setTableDescriptor installs a present table descriptor pointing at the
// physical address of the next-level table.
func (pte *pageTableEntry) setTableDescriptor(paddr mem.PAddr) {
	*pte = pageTableEntry(uint64(1<<bitValid) | uint64(1<<bitTable) | (uint64(paddr) & addrMask))
}

// clear marks the entry not-present.
func (pte *pageTableEntry) clear() {
	*pte = 0
}

// outputAddress returns the physical address this descriptor points at,
// whether it is a table descriptor (next table) or a leaf.
func (pte pageTableEntry) outputAddress() mem.PAddr {
	return mem.PAddr(uint64(pte) & addrMask)
}

func (pte pageTableEntry) isNoExecute() bool {
	return uint64(pte)&(1<<bitUXN) != 0
}

func (pte pageTableEntry) isWritable() bool {
	return uint64(pte)&(0x2<<bitAP1) == 0
}
