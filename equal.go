package capn

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Equal compares two structs of the same type field by field: every
// non-union field and the union's discriminant plus its active variant.
// A null pointer equals the canonical empty value of its type, so a null
// text equals "" and a null struct equals one with all-default fields.
// Floats compare by bits.
func Equal(a, b Struct) (bool, error) {
	if a.typ == nil || b.typ == nil {
		panic("Equal requires typed structs")
	}
	if a.typ != b.typ {
		return false, nil
	}
	return equalStructs(a, b)
}

func equalStructs(a, b Struct) (bool, error) {
	for _, f := range a.typ.fields {
		if eq, err := equalFields(a, b, f); !eq || err != nil {
			return false, err
		}
	}
	if u := a.typ.union; u != nil {
		ta, fa := a.Which()
		tb, _ := b.Which()
		if ta != tb {
			return false, nil
		}
		if fa != nil {
			return equalFields(a, b, fa)
		}
	}
	return true, nil
}

func equalFields(a, b Struct, f *Field) (bool, error) {
	if f.typ.kind.IsScalar() {
		return a.raw(f) == b.raw(f), nil
	}
	va, err := a.get(f)
	if err != nil {
		return false, err
	}
	vb, err := b.get(f)
	if err != nil {
		return false, err
	}
	return equalValues(va, vb)
}

func equalValues(a, b Value) (bool, error) {
	switch k := a.typ.kind; {
	case k == KindVoid:
		return true, nil
	case k.IsScalar():
		return a.bits == b.bits, nil
	case k == KindText || k == KindData:
		return bytes.Equal(a.bytes, b.bytes), nil
	case k == KindStruct || k == KindGroup:
		return equalStructs(a.st, b.st)
	case k == KindList:
		return equalLists(a.list, b.list)
	default:
		panic(fmt.Errorf("unexpected kind %v", k))
	}
}

func equalLists(a, b List) (bool, error) {
	if a.Len() != b.Len() {
		return false, nil
	}
	for i := range a.Len() {
		va, err := a.Get(i)
		if err != nil {
			return false, err
		}
		vb, err := b.Get(i)
		if err != nil {
			return false, err
		}
		if eq, err := equalValues(va, vb); !eq || err != nil {
			return false, err
		}
	}
	return true, nil
}

// Fingerprint returns a 64-bit xxhash of the struct's logical content.
// Structs that are Equal have equal fingerprints regardless of how their
// bytes are laid out.
func Fingerprint(s Struct) (uint64, error) {
	if s.typ == nil {
		panic("Fingerprint requires a typed struct")
	}
	h := hasher{d: xxhash.New()}
	if err := h.structFields(s); err != nil {
		return 0, err
	}
	return h.d.Sum64(), nil
}

type hasher struct {
	d   *xxhash.Digest
	buf [8]byte
}

func (h *hasher) uint64(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	h.d.Write(h.buf[:])
}

func (h *hasher) structFields(s Struct) error {
	for _, f := range s.typ.fields {
		if err := h.field(s, f); err != nil {
			return err
		}
	}
	if s.typ.union != nil {
		tag, f := s.Which()
		h.uint64(uint64(tag))
		if f != nil {
			return h.field(s, f)
		}
	}
	return nil
}

func (h *hasher) field(s Struct, f *Field) error {
	if f.typ.kind.IsScalar() {
		h.uint64(s.raw(f))
		return nil
	}
	v, err := s.get(f)
	if err != nil {
		return err
	}
	return h.value(v)
}

func (h *hasher) value(v Value) error {
	switch k := v.typ.kind; {
	case k == KindVoid:
	case k.IsScalar():
		h.uint64(v.bits)
	case k == KindText || k == KindData:
		h.uint64(uint64(len(v.bytes)))
		h.d.Write(v.bytes)
	case k == KindStruct || k == KindGroup:
		return h.structFields(v.st)
	case k == KindList:
		l := v.list
		h.uint64(uint64(l.Len()))
		for i := range l.Len() {
			ev, err := l.Get(i)
			if err != nil {
				return err
			}
			if err := h.value(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
