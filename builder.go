package capn

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Builder writes a message into a single growable segment.
//
// Allocations are append-only and identified by their byte position, which
// stays valid for the builder's lifetime even when the backing slice grows.
// A Builder must not be used by several goroutines at once.
type Builder struct {
	buf []byte
}

// NewBuilder returns an empty builder with room for sizeHint bytes.
func NewBuilder(sizeHint int) *Builder {
	return &Builder{buf: make([]byte, 0, roundUpToWord(max(sizeHint, 64)))}
}

// Len returns the number of bytes allocated so far.
func (b *Builder) Len() int { return len(b.buf) }

// Allocate reserves n bytes, rounded up to whole words, at the end of the
// segment and returns their position. The new range is zero-filled.
func (b *Builder) Allocate(n int) int {
	if n < 0 {
		panic(fmt.Errorf("negative allocation %d", n))
	}
	var pos int
	pos, b.buf = grow(b.buf, roundUpToWord(n))
	return pos
}

func (b *Builder) check(pos, n int) {
	if pos < 0 || pos+n > len(b.buf) {
		panic(fmt.Errorf("write of %d bytes at %d is outside of %d allocated bytes", n, pos, len(b.buf)))
	}
}

func (b *Builder) WriteUint8(pos int, v uint8) {
	b.check(pos, 1)
	b.buf[pos] = v
}

func (b *Builder) WriteUint16(pos int, v uint16) {
	b.check(pos, 2)
	binary.LittleEndian.PutUint16(b.buf[pos:], v)
}

func (b *Builder) WriteUint32(pos int, v uint32) {
	b.check(pos, 4)
	binary.LittleEndian.PutUint32(b.buf[pos:], v)
}

func (b *Builder) WriteUint64(pos int, v uint64) {
	b.check(pos, 8)
	binary.LittleEndian.PutUint64(b.buf[pos:], v)
}

func (b *Builder) WriteFloat32(pos int, v float32) {
	b.WriteUint32(pos, math.Float32bits(v))
}

func (b *Builder) WriteFloat64(pos int, v float64) {
	b.WriteUint64(pos, math.Float64bits(v))
}

// WriteBool sets or clears bit number bit counted from byte position pos.
func (b *Builder) WriteBool(pos int, bit int, v bool) {
	p := pos + bit/8
	b.check(p, 1)
	mask := byte(1) << uint(bit%8)
	if v {
		b.buf[p] |= mask
	} else {
		b.buf[p] &^= mask
	}
}

func (b *Builder) WriteBytes(pos int, v []byte) {
	b.check(pos, len(v))
	copy(b.buf[pos:], v)
}

// writeBits stores the low width bits of v at off from base, where off is a
// bit offset for width 1 and a byte offset otherwise.
func (b *Builder) writeBits(base, off, width int, v uint64) {
	switch width {
	case 1:
		b.WriteBool(base, off, v != 0)
	case 8:
		b.WriteUint8(base+off, uint8(v))
	case 16:
		b.WriteUint16(base+off, uint16(v))
	case 32:
		b.WriteUint32(base+off, uint32(v))
	case 64:
		b.WriteUint64(base+off, v)
	}
}

func (b *Builder) writePointer(at int, p pointer) {
	b.WriteUint64(at, uint64(p))
}

func (b *Builder) pointerAt(at int) pointer {
	return pointer(binary.LittleEndian.Uint64(b.buf[at:]))
}

// wordOffset computes the offset stored in a pointer at position at that
// refers to target.
func wordOffset(at, target int) int {
	return (target - at - 8) / 8
}

// allocStruct allocates a struct and points the pointer at position at to it.
func (b *Builder) allocStruct(at int, dataWords, ptrCount int) int {
	if dataWords+ptrCount == 0 {
		// an offset of -1 keeps the pointer of an empty struct distinct from null
		b.writePointer(at, structPointer(-1, 0, 0))
		return at
	}
	pos := b.Allocate((dataWords + ptrCount) * 8)
	b.writePointer(at, structPointer(wordOffset(at, pos), dataWords, ptrCount))
	return pos
}

// allocList allocates n elements of type elem and points at to them.
func (b *Builder) allocList(at int, elem *Type, n int) ListBuilder {
	if n < 0 {
		panic(fmt.Errorf("negative list length %d", n))
	}
	lb := ListBuilder{b: b, count: n, elem: elem, size: elem.elementSize()}
	if lb.size == SizeComposite {
		st := elem.st
		words := n * (st.dataWords + st.ptrCount)
		pos := b.Allocate(8 + words*8)
		b.writePointer(pos, compositeTag(n, st.dataWords, st.ptrCount))
		b.writePointer(at, listPointer(wordOffset(at, pos), SizeComposite, words))
		lb.pos = pos + 8
		lb.dataSize = st.dataWords * 8
		lb.ptrCount = st.ptrCount
		lb.step = (st.dataWords + st.ptrCount) * 64
		return lb
	}
	lb.step = lb.size.bits()
	pos := b.Allocate((n*lb.step + 7) / 8)
	b.writePointer(at, listPointer(wordOffset(at, pos), lb.size, n))
	lb.pos = pos
	if lb.size == SizePointer {
		lb.ptrCount = 1
	} else if lb.step >= 8 {
		lb.dataSize = lb.step / 8
	}
	return lb
}

// writeBlob allocates a byte list holding v, plus a NUL terminator when
// text is set, and points at to it.
func (b *Builder) writeBlob(at int, v []byte, text bool) {
	n := len(v)
	if text {
		n++
	}
	pos := b.Allocate(n)
	copy(b.buf[pos:], v)
	b.writePointer(at, listPointer(wordOffset(at, pos), SizeByte, n))
}

func (b *Builder) writeString(at int, v string) {
	n := len(v) + 1
	pos := b.Allocate(n)
	copy(b.buf[pos:], v)
	b.writePointer(at, listPointer(wordOffset(at, pos), SizeByte, n))
}

// NewRoot allocates the root pointer and a struct of type st it points to.
// It must be the first allocation of the builder.
func (b *Builder) NewRoot(st *StructType) StructBuilder {
	if st.IsGroup() {
		panic(fmt.Errorf("%s is a group", st.name))
	}
	if len(b.buf) != 0 {
		panic("root must be the first allocation")
	}
	at := b.Allocate(8)
	pos := b.allocStruct(at, st.dataWords, st.ptrCount)
	return StructBuilder{b: b, pos: pos, typ: st}
}

// Root returns a builder for the root struct allocated by NewRoot.
func (b *Builder) Root(st *StructType) StructBuilder {
	if len(b.buf) < 8 {
		panic("no root allocated")
	}
	p := b.pointerAt(0)
	if p.kind() != kindStruct || p.isNull() {
		panic(fmt.Errorf("root is %v, not a struct", p))
	}
	if p.structDataWords() != st.dataWords || p.structPtrCount() != st.ptrCount {
		panic(fmt.Errorf("root struct d=%d p=%d does not match %s", p.structDataWords(), p.structPtrCount(), st.name))
	}
	return StructBuilder{b: b, pos: 8 + p.offset()*8, typ: st}
}

// Bytes returns the segment built so far without copying.
func (b *Builder) Bytes() []byte {
	return b.buf
}

// Message returns a view of the segment built so far. It aliases the
// builder's bytes, so it is meant for reading back a finished message.
func (b *Builder) Message() *Message {
	return NewMessage(ReadOptions{}, b.buf)
}

// Finalize returns the framed message: the segment table followed by the
// segment bytes.
func (b *Builder) Finalize() []byte {
	return Marshal(b.buf)
}
