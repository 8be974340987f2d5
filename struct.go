package capn

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Struct is a read-only view of a struct's data and pointer sections. The
// zero Struct is a valid empty struct with every field at its default.
//
// A Struct does not own its bytes: it must not outlive the message it was
// obtained from.
type Struct struct {
	msg      *Message
	seg      *segment
	off      int // data section start
	dataSize int // bytes
	ptrCount int
	nesting  int
	typ      *StructType
}

func (s Struct) Type() *StructType { return s.typ }
func (s Struct) Message() *Message { return s.msg }

// DataSize returns the size of the data section in bytes.
func (s Struct) DataSize() int { return s.dataSize }
func (s Struct) PtrCount() int { return s.ptrCount }

// IsEmpty reports whether the struct has no data and no pointers, which is
// the case for structs read from null pointers.
func (s Struct) IsEmpty() bool { return s.dataSize == 0 && s.ptrCount == 0 }

// WithType returns the same struct viewed through another descriptor.
func (s Struct) WithType(st *StructType) Struct {
	s.typ = st
	return s
}

// DataBytes returns the data section without copying.
func (s Struct) DataBytes() []byte {
	if s.seg == nil {
		return nil
	}
	return s.seg.data[s.off : s.off+s.dataSize : s.off+s.dataSize]
}

func (s Struct) checkOwner(f *Field) {
	if s.typ != nil && f.owner != s.typ {
		panic(fmt.Errorf("%v does not belong to %s", f, s.typ.name))
	}
}

// Uint8At and friends read raw data bytes. Reads past the data section
// return zero.
func (s Struct) Uint8At(off int) uint8 {
	if off < 0 || off+1 > s.dataSize {
		return 0
	}
	return s.seg.data[s.off+off]
}

func (s Struct) Uint16At(off int) uint16 {
	if off < 0 || off+2 > s.dataSize {
		return 0
	}
	return binary.LittleEndian.Uint16(s.seg.data[s.off+off:])
}

func (s Struct) Uint32At(off int) uint32 {
	if off < 0 || off+4 > s.dataSize {
		return 0
	}
	return binary.LittleEndian.Uint32(s.seg.data[s.off+off:])
}

func (s Struct) Uint64At(off int) uint64 {
	if off < 0 || off+8 > s.dataSize {
		return 0
	}
	return binary.LittleEndian.Uint64(s.seg.data[s.off+off:])
}

func (s Struct) BitAt(bit int) bool {
	return s.Uint8At(bit/8)&(1<<uint(bit%8)) != 0
}

// raw returns the wire bits of a scalar field.
func (s Struct) raw(f *Field) uint64 {
	switch f.typ.kind.bitWidth() {
	case 1:
		if s.BitAt(f.offset) {
			return 1
		}
		return 0
	case 8:
		return uint64(s.Uint8At(f.offset))
	case 16:
		return uint64(s.Uint16At(f.offset))
	case 32:
		return uint64(s.Uint32At(f.offset))
	case 64:
		return s.Uint64At(f.offset)
	default:
		return 0
	}
}

// bits returns the value bits of a scalar field.
func (s Struct) bits(f *Field) uint64 {
	return ApplyDefaultMask(s.raw(f), f.def)
}

func (s Struct) Bool(f *Field) bool {
	f.mustBe(KindBool)
	s.checkOwner(f)
	return s.bits(f) != 0
}

func (s Struct) Int(f *Field) int64 {
	f.mustBe(KindInt8, KindInt16, KindInt32, KindInt64)
	s.checkOwner(f)
	return signExtend(s.bits(f), f.typ.kind.bitWidth())
}

func (s Struct) Uint(f *Field) uint64 {
	f.mustBe(KindUint8, KindUint16, KindUint32, KindUint64, KindEnum)
	s.checkOwner(f)
	return s.bits(f)
}

func (s Struct) Float(f *Field) float64 {
	f.mustBe(KindFloat32, KindFloat64)
	s.checkOwner(f)
	if f.typ.kind == KindFloat32 {
		return float64(math.Float32frombits(uint32(s.bits(f))))
	}
	return math.Float64frombits(s.bits(f))
}

func (s Struct) Enum(f *Field) uint16 {
	f.mustBe(KindEnum)
	s.checkOwner(f)
	return uint16(s.bits(f))
}

// pointerSite returns the location of pointer i, or false if i is beyond
// the pointer section.
func (s Struct) pointerSite(i int) (*segment, int, bool) {
	if i < 0 || i >= s.ptrCount {
		return nil, 0, false
	}
	return s.seg, s.off + s.dataSize + i*8, true
}

// HasPointer reports whether pointer field f is non-null.
func (s Struct) HasPointer(f *Field) bool {
	if !f.typ.kind.IsPointer() {
		panic(fmt.Errorf("%v is not a pointer field", f))
	}
	s.checkOwner(f)
	seg, off, ok := s.pointerSite(f.offset)
	return ok && !seg.word(off).isNull()
}

// TextBytes returns the text without its NUL terminator and without copying.
// A null pointer reads as empty text.
func (s Struct) TextBytes(f *Field) ([]byte, error) {
	f.mustBe(KindText)
	s.checkOwner(f)
	seg, off, ok := s.pointerSite(f.offset)
	if !ok {
		return nil, nil
	}
	return s.msg.readText(seg, off, s.nesting)
}

func (s Struct) Text(f *Field) (string, error) {
	b, err := s.TextBytes(f)
	return string(b), err
}

// Data returns the bytes of a data field without copying.
func (s Struct) Data(f *Field) ([]byte, error) {
	f.mustBe(KindData)
	s.checkOwner(f)
	seg, off, ok := s.pointerSite(f.offset)
	if !ok {
		return nil, nil
	}
	return s.msg.readBlob(seg, off, s.nesting)
}

// Struct returns the struct referenced by f. A null pointer reads as an
// empty struct whose fields are all at their defaults.
func (s Struct) Struct(f *Field) (Struct, error) {
	f.mustBe(KindStruct)
	s.checkOwner(f)
	seg, off, ok := s.pointerSite(f.offset)
	if !ok {
		return Struct{msg: s.msg, nesting: s.nesting - 1, typ: f.typ.st}, nil
	}
	return s.msg.readStruct(seg, off, s.nesting, f.typ.st)
}

// List returns the list referenced by f. A null pointer reads as an empty
// list.
func (s Struct) List(f *Field) (List, error) {
	f.mustBe(KindList)
	s.checkOwner(f)
	seg, off, ok := s.pointerSite(f.offset)
	if !ok {
		return List{msg: s.msg, nesting: s.nesting - 1, elem: f.typ.elem, size: f.typ.elem.elementSize()}, nil
	}
	return s.msg.readList(seg, off, s.nesting, f.typ.elem)
}

// Group returns a view of group f, sharing this struct's sections.
func (s Struct) Group(f *Field) Struct {
	f.mustBe(KindGroup)
	s.checkOwner(f)
	s.typ = f.typ.st
	return s
}

// PointerStruct returns pointer i as an untyped struct. It is meant for debugging
// and for walking messages without descriptors.
func (s Struct) PointerStruct(i int) (Struct, error) {
	seg, off, ok := s.pointerSite(i)
	if !ok {
		return Struct{msg: s.msg, nesting: s.nesting - 1}, nil
	}
	return s.msg.readStruct(seg, off, s.nesting, nil)
}

// IsDefault reports whether field f holds its default value. For scalars
// this is a zero test of the wire bits; pointers are default when null;
// groups when all of their fields are.
func (s Struct) IsDefault(f *Field) bool {
	s.checkOwner(f)
	k := f.typ.kind
	switch {
	case k == KindVoid:
		return true
	case k.IsScalar():
		return s.raw(f) == 0
	case k.IsPointer():
		seg, off, ok := s.pointerSite(f.offset)
		return !ok || seg.word(off).isNull()
	case k == KindGroup:
		g := s.Group(f)
		for _, gf := range f.typ.st.fields {
			if !g.IsDefault(gf) {
				return false
			}
		}
		if u := f.typ.st.union; u != nil {
			if g.discriminant(u) != 0 {
				return false
			}
			return g.IsDefault(u.variants[0])
		}
		return true
	default:
		panic(fmt.Errorf("unexpected kind %v", k))
	}
}
