package capn

import (
	"fmt"
	"math"
)

// Value is a dynamically typed field or list element value. Scalars are held
// as value bits (defaults already applied); pointer values alias the message.
type Value struct {
	typ   *Type
	bits  uint64
	bytes []byte
	st    Struct
	list  List
}

// ValueFromBits returns a scalar value of type t holding the given value bits.
func ValueFromBits(t *Type, bits uint64) Value {
	if !t.kind.IsScalar() {
		panic(fmt.Errorf("%v is not a scalar type", t))
	}
	return Value{typ: t, bits: bits & widthMask(t.kind.bitWidth())}
}

func (v Value) Type() *Type  { return v.typ }
func (v Value) Kind() Kind   { return v.typ.kind }
func (v Value) Bits() uint64 { return v.bits }

func (v Value) Bool() bool { return v.bits != 0 }

func (v Value) Int() int64 {
	return signExtend(v.bits, v.typ.kind.bitWidth())
}

func (v Value) Uint() uint64 { return v.bits }
func (v Value) Enum() uint16 { return uint16(v.bits) }

func (v Value) Float() float64 {
	if v.typ.kind == KindFloat32 {
		return float64(math.Float32frombits(uint32(v.bits)))
	}
	return math.Float64frombits(v.bits)
}

func (v Value) Text() string   { return string(v.bytes) }
func (v Value) Bytes() []byte  { return v.bytes }
func (v Value) Struct() Struct { return v.st }
func (v Value) List() List     { return v.list }

// Get returns the value of field f. For union variants it fails with
// ErrInactiveVariant unless the discriminant selects f.
func (s Struct) Get(f *Field) (Value, error) {
	if err := s.CheckVariant(f); err != nil {
		return Value{}, err
	}
	return s.get(f)
}

func (s Struct) get(f *Field) (Value, error) {
	s.checkOwner(f)
	v := Value{typ: f.typ}
	var err error
	switch k := f.typ.kind; {
	case k == KindVoid:
	case k.IsScalar():
		v.bits = s.bits(f)
	case k == KindText:
		v.bytes, err = s.TextBytes(f)
	case k == KindData:
		v.bytes, err = s.Data(f)
	case k == KindStruct:
		v.st, err = s.Struct(f)
	case k == KindList:
		v.list, err = s.List(f)
	case k == KindGroup:
		v.st = s.Group(f)
	}
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

func (s Struct) discriminant(u *Union) uint16 {
	return s.Uint16At(u.discOffset)
}

func (s Struct) mustUnion() *Union {
	if s.typ == nil || s.typ.union == nil {
		panic(fmt.Errorf("%v has no union", s.typ))
	}
	return s.typ.union
}

// Which returns the raw discriminant and the variant it selects. The field is
// nil when the tag is outside the known variants, e.g. a variant added by a
// newer schema.
func (s Struct) Which() (uint16, *Field) {
	u := s.mustUnion()
	tag := s.discriminant(u)
	return tag, u.Variant(tag)
}

// Is reports whether variant f is the active one. At most one variant of a
// union is active at any time.
func (s Struct) Is(f *Field) bool {
	s.checkOwner(f)
	if !f.InUnion() {
		panic(fmt.Errorf("%v is not a union variant", f))
	}
	return s.discriminant(s.typ.union) == uint16(f.discriminant)
}

// CheckVariant returns ErrInactiveVariant if f is a union variant that the
// discriminant does not select.
func (s Struct) CheckVariant(f *Field) error {
	if !f.InUnion() {
		return nil
	}
	s.checkOwner(f)
	tag := s.discriminant(f.owner.union)
	if tag != uint16(f.discriminant) {
		return fieldErrf(f.owner, f, ErrInactiveVariant, "discriminant is %d, not %d", tag, f.discriminant)
	}
	return nil
}

// UnionValue is the decoded state of a union: either an active known variant
// with its value, or an unrecognized raw tag.
type UnionValue struct {
	Tag   uint16
	Field *Field
	Value Value
}

func (u UnionValue) Known() bool { return u.Field != nil }

// Active returns the active variant, or ErrUnknownVariant for unrecognized tags.
func (u UnionValue) Active() (*Field, error) {
	if u.Field == nil {
		return nil, fmt.Errorf("discriminant %d: %w", u.Tag, ErrUnknownVariant)
	}
	return u.Field, nil
}

// Union decodes the struct's union. A known variant whose pointer is null
// yields that variant's empty value.
func (s Struct) Union() (UnionValue, error) {
	tag, f := s.Which()
	if f == nil {
		return UnionValue{Tag: tag}, nil
	}
	v, err := s.get(f)
	if err != nil {
		return UnionValue{}, err
	}
	return UnionValue{Tag: tag, Field: f, Value: v}, nil
}
