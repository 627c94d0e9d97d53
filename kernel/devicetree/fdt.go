// Package devicetree parses the flattened device tree blob the loader
// hands the kernel in BootInfo.DeviceTree, far enough to answer the one
// question the rest of the kernel needs at boot: which MMIO node is the
// console UART, identified by its "compatible" string (e.g. "arm,pl011").
//
// New relative to gopher-os, which never booted under a device-tree
// loader (grub/multiboot has no FDT). Grounded on the node/property shape
// in tinyrange-cc's internal/fdt package (a DTB *builder*, not a parser,
// but the Node{Name, Properties, Children} structure it writes is the
// natural mirror to parse back into) - no third-party DTB-parsing module
// appears anywhere in the retrieved corpus, so the token-stream walk
// itself is a justified standard-library component (see DESIGN.md).
package devicetree

import (
	"encoding/binary"

	"github.com/sophon-os/sophon/kernel"
)

const (
	magic          = 0xd00dfeed
	tokenBeginNode = 0x00000001
	tokenEndNode   = 0x00000002
	tokenProp      = 0x00000003
	tokenNop       = 0x00000004
	tokenEnd       = 0x00000009
)

var (
	errBadMagic    = &kernel.Error{Module: "devicetree", Message: "bad FDT magic", Kind: kernel.KindInvalidArgument}
	errTruncated   = &kernel.Error{Module: "devicetree", Message: "FDT blob truncated", Kind: kernel.KindInvalidArgument}
	errUnknownTok  = &kernel.Error{Module: "devicetree", Message: "unknown FDT structure token", Kind: kernel.KindInvalidArgument}
)

// Property is a single device-tree property, exposed as its raw bytes -
// callers that know the expected encoding (a "reg" cell pair, a
// "compatible" string list) use the As* helpers below to decode it.
type Property struct {
	Name  string
	Bytes []byte
}

// AsStrings decodes a NUL-separated string-list property, per the
// "compatible" property's documented encoding.
func (p Property) AsStrings() []string {
	var out []string
	start := 0
	for i, b := range p.Bytes {
		if b == 0 {
			if i > start {
				out = append(out, string(p.Bytes[start:i]))
			}
			start = i + 1
		}
	}
	return out
}

// AsU64Pairs decodes a "reg"-style property as big-endian (address, size)
// uint64 pairs - the common case for a 64-bit AArch64 platform where
// #address-cells and #size-cells are both 2.
func (p Property) AsU64Pairs() []U64Pair {
	var out []U64Pair
	for i := 0; i+16 <= len(p.Bytes); i += 16 {
		out = append(out, U64Pair{
			Addr: binary.BigEndian.Uint64(p.Bytes[i : i+8]),
			Size: binary.BigEndian.Uint64(p.Bytes[i+8 : i+16]),
		})
	}
	return out
}

// U64Pair is a decoded (address, size) cell pair.
type U64Pair struct {
	Addr, Size uint64
}

// Node is one device-tree node: a name, its own properties, and child
// nodes in document order.
type Node struct {
	Name       string
	Properties map[string]Property
	Children   []Node
}

// Property looks up a property by name on this node only (not children).
func (n Node) Property(name string) (Property, bool) {
	p, ok := n.Properties[name]
	return p, ok
}

// Compatible reports whether this node's "compatible" property contains
// name.
func (n Node) Compatible(name string) bool {
	p, ok := n.Property("compatible")
	if !ok {
		return false
	}
	for _, s := range p.AsStrings() {
		if s == name {
			return true
		}
	}
	return false
}

// FindCompatible depth-first searches n and its descendants for the
// first node whose "compatible" property contains name.
func FindCompatible(n Node, name string) (Node, bool) {
	if n.Compatible(name) {
		return n, true
	}
	for _, child := range n.Children {
		if found, ok := FindCompatible(child, name); ok {
			return found, true
		}
	}
	return Node{}, false
}

type header struct {
	Magic            uint32
	TotalSize        uint32
	OffDtStruct      uint32
	OffDtStrings     uint32
	OffMemRsvmap     uint32
	Version          uint32
	LastCompVersion  uint32
	BootCpuidPhys    uint32
	SizeDtStrings    uint32
	SizeDtStruct     uint32
}

// Parse decodes blob as a flattened device tree and returns its root
// node. blob must begin with the standard big-endian FDT header (magic
// 0xd00dfeed).
func Parse(blob []byte) (Node, *kernel.Error) {
	if len(blob) < 40 {
		return Node{}, errTruncated
	}

	h := header{
		Magic:           binary.BigEndian.Uint32(blob[0:4]),
		TotalSize:       binary.BigEndian.Uint32(blob[4:8]),
		OffDtStruct:     binary.BigEndian.Uint32(blob[8:12]),
		OffDtStrings:    binary.BigEndian.Uint32(blob[12:16]),
		OffMemRsvmap:    binary.BigEndian.Uint32(blob[16:20]),
		Version:         binary.BigEndian.Uint32(blob[20:24]),
		LastCompVersion: binary.BigEndian.Uint32(blob[24:28]),
		BootCpuidPhys:   binary.BigEndian.Uint32(blob[28:32]),
		SizeDtStrings:   binary.BigEndian.Uint32(blob[32:36]),
		SizeDtStruct:    binary.BigEndian.Uint32(blob[36:40]),
	}
	if h.Magic != magic {
		return Node{}, errBadMagic
	}
	if int(h.OffDtStruct+h.SizeDtStruct) > len(blob) || int(h.OffDtStrings+h.SizeDtStrings) > len(blob) {
		return Node{}, errTruncated
	}

	strTab := blob[h.OffDtStrings : h.OffDtStrings+h.SizeDtStrings]
	structBuf := blob[h.OffDtStruct : h.OffDtStruct+h.SizeDtStruct]

	p := &parser{buf: structBuf, strTab: strTab}
	root, err := p.parseNode()
	if err != nil {
		return Node{}, err
	}
	return root, nil
}

type parser struct {
	buf    []byte
	strTab []byte
	pos    int
}

func (p *parser) u32() (uint32, *kernel.Error) {
	if p.pos+4 > len(p.buf) {
		return 0, errTruncated
	}
	v := binary.BigEndian.Uint32(p.buf[p.pos : p.pos+4])
	p.pos += 4
	return v, nil
}

func (p *parser) align4() {
	if rem := p.pos % 4; rem != 0 {
		p.pos += 4 - rem
	}
}

func (p *parser) cString() (string, *kernel.Error) {
	start := p.pos
	for p.pos < len(p.buf) && p.buf[p.pos] != 0 {
		p.pos++
	}
	if p.pos >= len(p.buf) {
		return "", errTruncated
	}
	s := string(p.buf[start:p.pos])
	p.pos++ // skip NUL
	p.align4()
	return s, nil
}

func (p *parser) stringFromTable(off uint32) (string, *kernel.Error) {
	if int(off) >= len(p.strTab) {
		return "", errTruncated
	}
	end := int(off)
	for end < len(p.strTab) && p.strTab[end] != 0 {
		end++
	}
	return string(p.strTab[off:end]), nil
}

// parseNode parses one FDT_BEGIN_NODE .. FDT_END_NODE span, expecting the
// cursor to sit at the FDT_BEGIN_NODE token.
func (p *parser) parseNode() (Node, *kernel.Error) {
	tok, err := p.u32()
	if err != nil {
		return Node{}, err
	}
	if tok != tokenBeginNode {
		return Node{}, errUnknownTok
	}

	name, err := p.cString()
	if err != nil {
		return Node{}, err
	}

	node := Node{Name: name, Properties: map[string]Property{}}

	for {
		tok, err := p.u32()
		if err != nil {
			return Node{}, err
		}

		switch tok {
		case tokenNop:
			continue
		case tokenProp:
			length, err := p.u32()
			if err != nil {
				return Node{}, err
			}
			nameOff, err := p.u32()
			if err != nil {
				return Node{}, err
			}
			if p.pos+int(length) > len(p.buf) {
				return Node{}, errTruncated
			}
			data := p.buf[p.pos : p.pos+int(length)]
			p.pos += int(length)
			p.align4()

			propName, err := p.stringFromTable(nameOff)
			if err != nil {
				return Node{}, err
			}
			node.Properties[propName] = Property{Name: propName, Bytes: data}
		case tokenBeginNode:
			p.pos -= 4 // un-read; parseNode expects to see FDT_BEGIN_NODE itself
			child, err := p.parseNode()
			if err != nil {
				return Node{}, err
			}
			node.Children = append(node.Children, child)
		case tokenEndNode:
			return node, nil
		case tokenEnd:
			return node, nil
		default:
			return Node{}, errUnknownTok
		}
	}
}
