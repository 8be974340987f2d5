package capn

import (
	"fmt"
	"strconv"
)

type Kind uint8

const (
	KindVoid Kind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindEnum
	KindText
	KindData
	KindStruct
	KindList
	KindGroup
)

var kindNames = [...]string{
	KindVoid:    "Void",
	KindBool:    "Bool",
	KindInt8:    "Int8",
	KindInt16:   "Int16",
	KindInt32:   "Int32",
	KindInt64:   "Int64",
	KindUint8:   "UInt8",
	KindUint16:  "UInt16",
	KindUint32:  "UInt32",
	KindUint64:  "UInt64",
	KindFloat32: "Float32",
	KindFloat64: "Float64",
	KindEnum:    "Enum",
	KindText:    "Text",
	KindData:    "Data",
	KindStruct:  "Struct",
	KindList:    "List",
	KindGroup:   "Group",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// IsPointer reports whether values of this kind live in the pointer section.
func (k Kind) IsPointer() bool {
	switch k {
	case KindText, KindData, KindStruct, KindList:
		return true
	default:
		return false
	}
}

// IsScalar reports whether values of this kind live in the data section.
func (k Kind) IsScalar() bool {
	return k >= KindBool && k <= KindEnum
}

func (k Kind) isSigned() bool {
	return k >= KindInt8 && k <= KindInt64
}

func (k Kind) isUnsigned() bool {
	return (k >= KindUint8 && k <= KindUint64) || k == KindEnum
}

func (k Kind) isFloat() bool {
	return k == KindFloat32 || k == KindFloat64
}

// bitWidth returns the number of data bits a value of this kind occupies.
func (k Kind) bitWidth() int {
	switch k {
	case KindBool:
		return 1
	case KindInt8, KindUint8:
		return 8
	case KindInt16, KindUint16, KindEnum:
		return 16
	case KindInt32, KindUint32, KindFloat32:
		return 32
	case KindInt64, KindUint64, KindFloat64:
		return 64
	default:
		return 0
	}
}

// Type describes the type of a field or a list element.
type Type struct {
	kind Kind
	elem *Type
	st   *StructType
	enum *EnumType
}

var (
	Void    = &Type{kind: KindVoid}
	Bool    = &Type{kind: KindBool}
	Int8    = &Type{kind: KindInt8}
	Int16   = &Type{kind: KindInt16}
	Int32   = &Type{kind: KindInt32}
	Int64   = &Type{kind: KindInt64}
	Uint8   = &Type{kind: KindUint8}
	Uint16  = &Type{kind: KindUint16}
	Uint32  = &Type{kind: KindUint32}
	Uint64  = &Type{kind: KindUint64}
	Float32 = &Type{kind: KindFloat32}
	Float64 = &Type{kind: KindFloat64}
	Text    = &Type{kind: KindText}
	Data    = &Type{kind: KindData}
)

var primitiveTypes = []*Type{Void, Bool, Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64, Float32, Float64, Text, Data}

// PrimitiveType returns the predeclared type with the given name, e.g. "Int64".
func PrimitiveType(name string) *Type {
	for _, t := range primitiveTypes {
		if t.kind.String() == name {
			return t
		}
	}
	return nil
}

// ListOf returns the type of lists of elem.
func ListOf(elem *Type) *Type {
	if elem == nil {
		panic("nil list element type")
	}
	if elem.kind == KindGroup {
		panic("groups cannot be list elements")
	}
	return &Type{kind: KindList, elem: elem}
}

func (t *Type) Kind() Kind              { return t.kind }
func (t *Type) Elem() *Type             { return t.elem }
func (t *Type) StructType() *StructType { return t.st }
func (t *Type) EnumType() *EnumType     { return t.enum }

func (t *Type) String() string {
	switch t.kind {
	case KindList:
		return "List(" + t.elem.String() + ")"
	case KindStruct, KindGroup:
		return t.st.name
	case KindEnum:
		return t.enum.name
	default:
		return t.kind.String()
	}
}

// elementSize returns the element size used when writing lists of t.
func (t *Type) elementSize() ElementSize {
	switch t.kind {
	case KindVoid:
		return SizeVoid
	case KindBool:
		return SizeBit
	case KindInt8, KindUint8:
		return SizeByte
	case KindInt16, KindUint16, KindEnum:
		return SizeTwoBytes
	case KindInt32, KindUint32, KindFloat32:
		return SizeFourBytes
	case KindInt64, KindUint64, KindFloat64:
		return SizeEightBytes
	case KindText, KindData, KindList:
		return SizePointer
	case KindStruct:
		return SizeComposite
	default:
		panic(fmt.Errorf("%v cannot be a list element", t))
	}
}

// EnumType names the values of an enum. Enums are stored as 16-bit unsigned
// integers.
type EnumType struct {
	name   string
	names  []string
	byName map[string]uint16
	typ    Type
}

func (e *EnumType) Name() string     { return e.name }
func (e *EnumType) Type() *Type      { return &e.typ }
func (e *EnumType) Values() []string { return e.names }

// ValueName returns the name of value v, or false for values outside the
// known range.
func (e *EnumType) ValueName(v uint16) (string, bool) {
	if int(v) < len(e.names) {
		return e.names[v], true
	}
	return "", false
}

func (e *EnumType) Value(name string) (uint16, bool) {
	v, ok := e.byName[name]
	return v, ok
}
