package capn

import (
	"fmt"
	"math"
)

// StructBuilder writes the fields of a struct allocated in a Builder.
// Passing a field of another type or of the wrong kind panics.
type StructBuilder struct {
	b   *Builder
	pos int
	typ *StructType
}

func (sb StructBuilder) Type() *StructType { return sb.typ }
func (sb StructBuilder) Builder() *Builder { return sb.b }

// Pos returns the position of the struct's data section.
func (sb StructBuilder) Pos() int { return sb.pos }

func (sb StructBuilder) check(f *Field, kinds ...Kind) {
	if f.owner != sb.typ {
		panic(fmt.Errorf("%v does not belong to %s", f, sb.typ.name))
	}
	f.mustBe(kinds...)
}

// setDiscriminant makes f the active variant if it belongs to a union.
func (sb StructBuilder) setDiscriminant(f *Field) {
	if f.InUnion() {
		sb.b.WriteUint16(sb.pos+f.owner.union.discOffset, uint16(f.discriminant))
	}
}

func (sb StructBuilder) setBits(f *Field, v uint64) {
	sb.setDiscriminant(f)
	w := f.typ.kind.bitWidth()
	sb.b.writeBits(sb.pos, f.offset, w, ApplyDefaultMask(v, f.def)&widthMask(w))
}

func (sb StructBuilder) ptrPos(f *Field) int {
	return sb.pos + sb.typ.dataWords*8 + f.offset*8
}

func (sb StructBuilder) SetBool(f *Field, v bool) {
	sb.check(f, KindBool)
	var bit uint64
	if v {
		bit = 1
	}
	sb.setBits(f, bit)
}

func (sb StructBuilder) SetInt(f *Field, v int64) {
	sb.check(f, KindInt8, KindInt16, KindInt32, KindInt64)
	if !fitsInt(f.typ.kind, v) {
		panic(fmt.Errorf("%v: %d overflows %v", f, v, f.typ))
	}
	sb.setBits(f, uint64(v))
}

func (sb StructBuilder) SetUint(f *Field, v uint64) {
	sb.check(f, KindUint8, KindUint16, KindUint32, KindUint64, KindEnum)
	if !fitsUint(f.typ.kind, v) {
		panic(fmt.Errorf("%v: %d overflows %v", f, v, f.typ))
	}
	sb.setBits(f, v)
}

func (sb StructBuilder) SetFloat(f *Field, v float64) {
	sb.check(f, KindFloat32, KindFloat64)
	if f.typ.kind == KindFloat32 {
		sb.setBits(f, uint64(math.Float32bits(float32(v))))
	} else {
		sb.setBits(f, math.Float64bits(v))
	}
}

func (sb StructBuilder) SetEnum(f *Field, v uint16) {
	sb.check(f, KindEnum)
	sb.setBits(f, uint64(v))
}

// SetVoid selects a void union variant.
func (sb StructBuilder) SetVoid(f *Field) {
	sb.check(f, KindVoid)
	sb.setDiscriminant(f)
}

func (sb StructBuilder) SetText(f *Field, v string) {
	sb.check(f, KindText)
	sb.setDiscriminant(f)
	sb.b.writeString(sb.ptrPos(f), v)
}

func (sb StructBuilder) SetTextBytes(f *Field, v []byte) {
	sb.check(f, KindText)
	sb.setDiscriminant(f)
	sb.b.writeBlob(sb.ptrPos(f), v, true)
}

// SetData stores v; a nil slice leaves the pointer null.
func (sb StructBuilder) SetData(f *Field, v []byte) {
	sb.check(f, KindData)
	sb.setDiscriminant(f)
	if v == nil {
		sb.b.writePointer(sb.ptrPos(f), 0)
		return
	}
	sb.b.writeBlob(sb.ptrPos(f), v, false)
}

// SetNull clears a pointer field. Storage it referred to is not reclaimed.
func (sb StructBuilder) SetNull(f *Field) {
	sb.check(f, KindText, KindData, KindStruct, KindList)
	sb.setDiscriminant(f)
	sb.b.writePointer(sb.ptrPos(f), 0)
}

// NewStruct allocates a struct for f and returns its builder.
func (sb StructBuilder) NewStruct(f *Field) StructBuilder {
	sb.check(f, KindStruct)
	sb.setDiscriminant(f)
	st := f.typ.st
	pos := sb.b.allocStruct(sb.ptrPos(f), st.dataWords, st.ptrCount)
	return StructBuilder{b: sb.b, pos: pos, typ: st}
}

// NewList allocates an n-element list for f and returns its builder.
func (sb StructBuilder) NewList(f *Field, n int) ListBuilder {
	sb.check(f, KindList)
	sb.setDiscriminant(f)
	return sb.b.allocList(sb.ptrPos(f), f.typ.elem, n)
}

// SetStruct deep-copies src into this builder and points f to the copy.
func (sb StructBuilder) SetStruct(f *Field, src Struct) error {
	sb.check(f, KindStruct)
	sb.setDiscriminant(f)
	return sb.b.copyStruct(sb.ptrPos(f), src)
}

// SetList deep-copies src into this builder and points f to the copy.
func (sb StructBuilder) SetList(f *Field, src List) error {
	sb.check(f, KindList)
	sb.setDiscriminant(f)
	return sb.b.copyList(sb.ptrPos(f), src)
}

// Group returns a builder for group f. Selecting a group that is a union
// variant makes it the active variant.
func (sb StructBuilder) Group(f *Field) StructBuilder {
	sb.check(f, KindGroup)
	sb.setDiscriminant(f)
	return StructBuilder{b: sb.b, pos: sb.pos, typ: f.typ.st}
}

// AsStruct returns a read view of this struct over the bytes built so far.
func (sb StructBuilder) AsStruct() Struct {
	m := sb.b.Message()
	return Struct{
		msg:      m,
		seg:      &m.segs[0],
		off:      sb.pos,
		dataSize: sb.typ.dataWords * 8,
		ptrCount: sb.typ.ptrCount,
		nesting:  m.opt.nestingLimit(),
		typ:      sb.typ,
	}
}
