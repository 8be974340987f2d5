package capn

import (
	"fmt"
	"strconv"
)

type pointerKind uint8

const (
	kindStruct pointerKind = 0
	kindList   pointerKind = 1
	kindFar    pointerKind = 2
	kindOther  pointerKind = 3
)

func (k pointerKind) String() string {
	switch k {
	case kindStruct:
		return "struct"
	case kindList:
		return "list"
	case kindFar:
		return "far"
	default:
		return "other"
	}
}

// ElementSize is the 3-bit element size tag of a list pointer.
type ElementSize uint8

const (
	SizeVoid ElementSize = iota
	SizeBit
	SizeByte
	SizeTwoBytes
	SizeFourBytes
	SizeEightBytes
	SizePointer
	SizeComposite
)

var elementSizeNames = [...]string{"void", "bit", "byte", "2 bytes", "4 bytes", "8 bytes", "pointer", "composite"}

func (sz ElementSize) String() string {
	if int(sz) < len(elementSizeNames) {
		return elementSizeNames[sz]
	}
	return "ElementSize(" + strconv.Itoa(int(sz)) + ")"
}

// bits returns the per-element stride of non-composite lists.
func (sz ElementSize) bits() int {
	switch sz {
	case SizeVoid:
		return 0
	case SizeBit:
		return 1
	case SizeByte:
		return 8
	case SizeTwoBytes:
		return 16
	case SizeFourBytes:
		return 32
	case SizeEightBytes, SizePointer:
		return 64
	default:
		panic(fmt.Errorf("no fixed stride for %v elements", sz))
	}
}

const (
	maxOffset = 1<<29 - 1
	minOffset = -(1 << 29)
	maxCount  = 1<<29 - 1
)

// pointer is a raw pointer word.
type pointer uint64

func (p pointer) isNull() bool      { return p == 0 }
func (p pointer) kind() pointerKind { return pointerKind(p & 3) }

// offset returns the signed 30-bit word offset of struct and list pointers.
func (p pointer) offset() int { return int(int32(uint32(p)) >> 2) }

func (p pointer) structDataWords() int { return int(uint16(p >> 32)) }
func (p pointer) structPtrCount() int  { return int(uint16(p >> 48)) }

func (p pointer) listElementSize() ElementSize { return ElementSize((p >> 32) & 7) }
func (p pointer) listCount() int               { return int(uint32(p >> 35)) }

func (p pointer) farDouble() bool    { return p&4 != 0 }
func (p pointer) farOffset() int     { return int(uint32(p) >> 3) }
func (p pointer) farSegment() uint32 { return uint32(p >> 32) }

func encodeOffset(off int) uint64 {
	if off < minOffset || off > maxOffset {
		panic(fmt.Errorf("pointer offset %d words does not fit into 30 bits", off))
	}
	return uint64(uint32(int32(off) << 2))
}

func structPointer(off, dataWords, ptrCount int) pointer {
	if dataWords < 0 || dataWords > 0xFFFF || ptrCount < 0 || ptrCount > 0xFFFF {
		panic(fmt.Errorf("invalid struct size d=%d p=%d", dataWords, ptrCount))
	}
	return pointer(encodeOffset(off) | uint64(kindStruct) | uint64(dataWords)<<32 | uint64(ptrCount)<<48)
}

func listPointer(off int, sz ElementSize, count int) pointer {
	if count < 0 || count > maxCount {
		panic(fmt.Errorf("list count %d does not fit into 29 bits", count))
	}
	return pointer(encodeOffset(off) | uint64(kindList) | uint64(sz&7)<<32 | uint64(count)<<35)
}

// compositeTag returns the tag word preceding the elements of a composite list.
func compositeTag(count, dataWords, ptrCount int) pointer {
	return structPointer(count, dataWords, ptrCount)
}

func farPointer(double bool, padWordOff int, seg uint32) pointer {
	if padWordOff < 0 || padWordOff > 1<<29-1 {
		panic(fmt.Errorf("far pointer landing pad offset %d does not fit into 29 bits", padWordOff))
	}
	p := uint64(kindFar) | uint64(padWordOff)<<3 | uint64(seg)<<32
	if double {
		p |= 4
	}
	return pointer(p)
}

func (p pointer) String() string {
	if p.isNull() {
		return "null"
	}
	switch p.kind() {
	case kindStruct:
		return fmt.Sprintf("struct%+d d=%d p=%d", p.offset(), p.structDataWords(), p.structPtrCount())
	case kindList:
		return fmt.Sprintf("list%+d %v x%d", p.offset(), p.listElementSize(), p.listCount())
	case kindFar:
		if p.farDouble() {
			return fmt.Sprintf("far2 seg=%d +%d", p.farSegment(), p.farOffset())
		}
		return fmt.Sprintf("far seg=%d +%d", p.farSegment(), p.farOffset())
	default:
		return fmt.Sprintf("other 0x%016x", uint64(p))
	}
}
