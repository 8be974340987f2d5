package capn

import (
	"fmt"
	"math"
	"reflect"
)

const noDiscriminant = -1

type Region uint8

const (
	RegionNone Region = iota
	RegionData
	RegionPointer
)

// Field describes a single field: where it lives, how wide it is and what
// its default is.
type Field struct {
	name         string
	typ          *Type
	offset       int
	def          uint64
	discriminant int
	owner        *StructType
}

func (f *Field) Name() string        { return f.name }
func (f *Field) Type() *Type         { return f.typ }
func (f *Field) Kind() Kind          { return f.typ.kind }
func (f *Field) Owner() *StructType  { return f.owner }
func (f *Field) String() string      { return f.owner.name + "." + f.name }
func (f *Field) DefaultBits() uint64 { return f.def }

// Offset is in bits for Bool fields, in bytes for other data fields, and is
// the pointer index for pointer fields.
func (f *Field) Offset() int { return f.offset }

// Width returns the field's size in bits; pointer fields are one word.
func (f *Field) Width() int {
	if f.typ.kind.IsPointer() {
		return 64
	}
	return f.typ.kind.bitWidth()
}

func (f *Field) Region() Region {
	switch k := f.typ.kind; {
	case k.IsScalar():
		return RegionData
	case k.IsPointer():
		return RegionPointer
	default:
		return RegionNone
	}
}

// Discriminant returns the union tag that selects this field, or false if
// the field is not a union variant.
func (f *Field) Discriminant() (uint16, bool) {
	if f.discriminant == noDiscriminant {
		return 0, false
	}
	return uint16(f.discriminant), true
}

func (f *Field) InUnion() bool {
	return f.discriminant != noDiscriminant
}

// Group returns the group layout of a group field, or nil.
func (f *Field) Group() *StructType {
	if f.typ.kind == KindGroup {
		return f.typ.st
	}
	return nil
}

func (f *Field) mustBe(kinds ...Kind) {
	for _, k := range kinds {
		if f.typ.kind == k {
			return
		}
	}
	panic(fmt.Errorf("%v is %v, wanted %v", f, f.typ, kinds))
}

// ApplyDefaultMask converts between a scalar's wire bits and its value bits.
// Scalars are stored XORed with their default, so the operation is its own
// inverse.
func ApplyDefaultMask(raw, def uint64) uint64 {
	return raw ^ def
}

type FieldOption func(f *Field)

// Default sets the default value of a scalar field. v may be any Go number
// or bool; enum defaults may also be given by name.
func Default(v any) FieldOption {
	return func(f *Field) {
		if !f.typ.kind.IsScalar() {
			panic(fmt.Errorf("%s: only scalar fields can have defaults", f.name))
		}
		bits, err := scalarBits(f.typ, v)
		if err != nil {
			panic(fmt.Errorf("%s: invalid default: %w", f.name, err))
		}
		f.def = bits
	}
}

// DefaultBits sets the raw wire bits of a scalar field's default.
func DefaultBits(bits uint64) FieldOption {
	return func(f *Field) {
		f.def = bits & widthMask(f.typ.kind.bitWidth())
	}
}

// scalarBits converts a Go value into the value bits of a scalar of type t.
func scalarBits(t *Type, v any) (uint64, error) {
	k := t.kind
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return 0, fmt.Errorf("%w: nil for %v", ErrValueMismatch, t)
	}
	w := k.bitWidth()
	switch {
	case k == KindBool:
		if rv.Kind() == reflect.Bool {
			if rv.Bool() {
				return 1, nil
			}
			return 0, nil
		}
	case k.isFloat():
		var f float64
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			f = rv.Float()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			f = float64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			f = float64(rv.Uint())
		default:
			return 0, fmt.Errorf("%w: cannot use %T as %v", ErrValueMismatch, v, t)
		}
		if k == KindFloat32 {
			return uint64(math.Float32bits(float32(f))), nil
		}
		return math.Float64bits(f), nil
	case k == KindEnum && rv.Kind() == reflect.String:
		if t.enum != nil {
			if n, ok := t.enum.Value(rv.String()); ok {
				return uint64(n), nil
			}
		}
		return 0, fmt.Errorf("%w: %q is not a value of %v", ErrValueMismatch, rv.String(), t)
	case k.isSigned() || k.isUnsigned():
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n := rv.Int()
			if !fitsInt(k, n) {
				return 0, fmt.Errorf("%w: %d overflows %v", ErrValueMismatch, n, t)
			}
			return uint64(n) & widthMask(w), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			n := rv.Uint()
			if !fitsUint(k, n) {
				return 0, fmt.Errorf("%w: %d overflows %v", ErrValueMismatch, n, t)
			}
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: cannot use %T as %v", ErrValueMismatch, v, t)
}

func fitsInt(k Kind, n int64) bool {
	w := k.bitWidth()
	if k.isSigned() {
		if w == 64 {
			return true
		}
		lim := int64(1) << (w - 1)
		return n >= -lim && n < lim
	}
	return n >= 0 && (w == 64 || n < int64(1)<<w)
}

func fitsUint(k Kind, n uint64) bool {
	w := k.bitWidth()
	if k.isSigned() {
		return n < uint64(1)<<(w-1)
	}
	return w == 64 || n < uint64(1)<<w
}
