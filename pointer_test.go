package capn

import (
	"encoding/binary"
	"testing"
)

func word(b []byte) pointer {
	return pointer(binary.LittleEndian.Uint64(b))
}

func wordBytes(p pointer) []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(p))
}

func TestPointer_Struct(t *testing.T) {
	p := structPointer(1, 2, 3)
	deepEqual(t, wordBytes(p), x("04000000 02000300"))
	eq(t, p.kind(), kindStruct)
	eq(t, p.offset(), 1)
	eq(t, p.structDataWords(), 2)
	eq(t, p.structPtrCount(), 3)
	eq(t, p.String(), "struct+1 d=2 p=3")
}

func TestPointer_NegativeOffset(t *testing.T) {
	p := structPointer(-1, 0, 0)
	if p.isNull() {
		t.Fatalf("** empty struct pointer reads as null")
	}
	eq(t, p.offset(), -1)
	deepEqual(t, wordBytes(p), x("fcffffff 00000000"))

	eq(t, listPointer(minOffset, SizeByte, 5).offset(), minOffset)
	eq(t, listPointer(maxOffset, SizeByte, 5).offset(), maxOffset)
}

func TestPointer_List(t *testing.T) {
	p := word(x("05000000 32000000"))
	eq(t, p.kind(), kindList)
	eq(t, p.offset(), 1)
	eq(t, p.listElementSize(), SizeByte)
	eq(t, p.listCount(), 6)
	eq(t, listPointer(1, SizeByte, 6), p)

	p = word(x("01000000 19000000"))
	eq(t, p.offset(), 0)
	eq(t, p.listElementSize(), SizeBit)
	eq(t, p.listCount(), 3)
}

func TestPointer_Far(t *testing.T) {
	p := farPointer(false, 3, 7)
	eq(t, p.kind(), kindFar)
	eq(t, p.farDouble(), false)
	eq(t, p.farOffset(), 3)
	eq(t, p.farSegment(), uint32(7))

	p = farPointer(true, 0, 1)
	eq(t, p.farDouble(), true)
	eq(t, p.String(), "far2 seg=1 +0")
}

func TestPointer_Composite(t *testing.T) {
	tag := compositeTag(2, 1, 1)
	eq(t, tag.offset(), 2)
	eq(t, tag.structDataWords(), 1)
	eq(t, tag.structPtrCount(), 1)
}

func TestPointer_Overflow(t *testing.T) {
	assertPanics(t, func() { structPointer(maxOffset+1, 0, 0) })
	assertPanics(t, func() { structPointer(0, 0x10000, 0) })
	assertPanics(t, func() { listPointer(0, SizeByte, maxCount+1) })
	assertPanics(t, func() { farPointer(false, -1, 0) })
}

func TestElementSize_String(t *testing.T) {
	eq(t, SizeComposite.String(), "composite")
	eq(t, ElementSize(9).String(), "ElementSize(9)")
	assertPanics(t, func() { SizeComposite.bits() })
}
