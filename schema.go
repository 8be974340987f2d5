package capn

import (
	"fmt"
)

// Schema is a set of struct and enum descriptors. It is an ordinary value:
// create one per schema and pass it around, there is no global registry.
type Schema struct {
	structs      []*StructType
	structByName map[string]*StructType
	enums        []*EnumType
	enumByName   map[string]*EnumType
}

func NewSchema() *Schema {
	return &Schema{
		structByName: make(map[string]*StructType),
		enumByName:   make(map[string]*EnumType),
	}
}

func (sch *Schema) Struct(name string) *StructType { return sch.structByName[name] }
func (sch *Schema) Enum(name string) *EnumType     { return sch.enumByName[name] }
func (sch *Schema) Structs() []*StructType         { return sch.structs }
func (sch *Schema) Enums() []*EnumType             { return sch.enums }

func (sch *Schema) MustStruct(name string) *StructType {
	st := sch.structByName[name]
	if st == nil {
		panic(fmt.Sprintf("struct %s not found", name))
	}
	return st
}

func (sch *Schema) checkName(name string) {
	if name == "" {
		panic("type name missing")
	}
	if sch.structByName[name] != nil || sch.enumByName[name] != nil {
		panic(fmt.Errorf("type %s already defined", name))
	}
}

// NewEnum declares an enum whose values are numbered in declaration order.
func (sch *Schema) NewEnum(name string, values ...string) *EnumType {
	sch.checkName(name)
	if len(values) > 0x10000 {
		panic(fmt.Errorf("enum %s has %d values, at most 65536 allowed", name, len(values)))
	}
	e := &EnumType{
		name:   name,
		names:  values,
		byName: make(map[string]uint16, len(values)),
	}
	e.typ = Type{kind: KindEnum, enum: e}
	for i, v := range values {
		if _, dup := e.byName[v]; dup {
			panic(fmt.Errorf("enum %s has duplicate value %s", name, v))
		}
		e.byName[v] = uint16(i)
	}
	sch.enums = append(sch.enums, e)
	sch.enumByName[name] = e
	return e
}

// NewStruct declares a struct type with the given section sizes. Fields are
// added later by Define, which allows recursive and mutually recursive types.
func (sch *Schema) NewStruct(name string, dataWords, ptrCount int) *StructType {
	sch.checkName(name)
	if dataWords < 0 || dataWords > 0xFFFF || ptrCount < 0 || ptrCount > 0xFFFF {
		panic(fmt.Errorf("struct %s has invalid size d=%d p=%d", name, dataWords, ptrCount))
	}
	st := newStructType(sch, name, dataWords, ptrCount, nil)
	sch.structs = append(sch.structs, st)
	sch.structByName[name] = st
	return st
}

// DefineStruct is NewStruct followed by Define.
func DefineStruct(sch *Schema, name string, dataWords, ptrCount int, build func(b *LayoutBuilder)) *StructType {
	return sch.NewStruct(name, dataWords, ptrCount).Define(build)
}

// StructType describes the layout of a struct or a group.
type StructType struct {
	schema    *Schema
	name      string
	dataWords int
	ptrCount  int
	parent    *StructType // non-nil for groups
	fields    []*Field    // non-union fields in declaration order
	union     *Union
	byName    map[string]*Field
	typ       Type
	defined   bool
}

func newStructType(sch *Schema, name string, dataWords, ptrCount int, parent *StructType) *StructType {
	st := &StructType{
		schema:    sch,
		name:      name,
		dataWords: dataWords,
		ptrCount:  ptrCount,
		parent:    parent,
		byName:    make(map[string]*Field),
	}
	kind := KindStruct
	if parent != nil {
		kind = KindGroup
	}
	st.typ = Type{kind: kind, st: st}
	return st
}

func (st *StructType) Name() string        { return st.name }
func (st *StructType) Schema() *Schema     { return st.schema }
func (st *StructType) DataWords() int      { return st.dataWords }
func (st *StructType) PtrCount() int       { return st.ptrCount }
func (st *StructType) Fields() []*Field    { return st.fields }
func (st *StructType) Union() *Union       { return st.union }
func (st *StructType) IsGroup() bool       { return st.parent != nil }
func (st *StructType) Parent() *StructType { return st.parent }
func (st *StructType) Type() *Type         { return &st.typ }
func (st *StructType) String() string      { return st.name }

// Field returns the field or union variant with the given name.
func (st *StructType) Field(name string) *Field {
	return st.byName[name]
}

func (st *StructType) MustField(name string) *Field {
	f := st.byName[name]
	if f == nil {
		panic(fmt.Errorf("%s does not have field %s", st.name, name))
	}
	return f
}

// AllFields returns the non-union fields followed by the union variants.
func (st *StructType) AllFields() []*Field {
	if st.union == nil {
		return st.fields
	}
	all := make([]*Field, 0, len(st.fields)+len(st.union.variants))
	all = append(all, st.fields...)
	return append(all, st.union.variants...)
}

// Define adds fields to a struct type declared with NewStruct.
func (st *StructType) Define(build func(b *LayoutBuilder)) *StructType {
	if st.defined {
		panic(fmt.Errorf("struct %s already defined", st.name))
	}
	st.defined = true
	if build != nil {
		build(&LayoutBuilder{st: st})
	}
	return st
}

// Union describes a struct's anonymous union: a 16-bit discriminant and the
// variants it selects, indexed by discriminant value.
type Union struct {
	owner      *StructType
	discOffset int
	variants   []*Field
}

// DiscriminantOffset returns the byte offset of the discriminant within the
// data section.
func (u *Union) DiscriminantOffset() int { return u.discOffset }
func (u *Union) Variants() []*Field      { return u.variants }

// Variant returns the variant selected by tag, or nil if tag is unknown.
func (u *Union) Variant(tag uint16) *Field {
	if int(tag) < len(u.variants) {
		return u.variants[tag]
	}
	return nil
}

// LayoutBuilder adds fields to a StructType.
type LayoutBuilder struct {
	st    *StructType
	union *Union
}

// Field adds a field of the given type. offset is in bits for Bool fields,
// in bytes for other data fields, and is the pointer index for Text, Data,
// Struct and List fields. Void fields ignore the offset.
func (b *LayoutBuilder) Field(name string, typ *Type, offset int, opts ...FieldOption) *Field {
	if typ == nil {
		panic(fmt.Errorf("%s.%s: nil type", b.st.name, name))
	}
	if typ.kind == KindGroup {
		panic(fmt.Errorf("%s.%s: use Group to add groups", b.st.name, name))
	}
	f := &Field{name: name, typ: typ, offset: offset, discriminant: noDiscriminant, owner: b.st}
	b.st.checkFieldLayout(f)
	for _, opt := range opts {
		opt(f)
	}
	b.add(f)
	return f
}

// Void adds a field that has no storage, typically a union variant.
func (b *LayoutBuilder) Void(name string) *Field {
	return b.Field(name, Void, 0)
}

// Group adds a group: a named set of fields stored in this struct's own
// sections. Offsets inside the group are relative to the enclosing struct.
func (b *LayoutBuilder) Group(name string, build func(b *LayoutBuilder)) *Field {
	root := b.st
	for root.parent != nil {
		root = root.parent
	}
	g := newStructType(b.st.schema, b.st.name+"."+name, root.dataWords, root.ptrCount, b.st)
	f := &Field{name: name, typ: &g.typ, discriminant: noDiscriminant, owner: b.st}
	b.add(f)
	g.Define(build)
	return f
}

// Union declares the struct's union with its discriminant at the given byte
// offset. Fields added inside build become variants numbered in declaration
// order.
func (b *LayoutBuilder) Union(discOffset int, build func(b *LayoutBuilder)) *Union {
	if b.union != nil {
		panic(fmt.Errorf("%s: nested unions must be wrapped in a group", b.st.name))
	}
	if b.st.union != nil {
		panic(fmt.Errorf("%s already has a union", b.st.name))
	}
	if discOffset < 0 || discOffset%2 != 0 || discOffset+2 > b.st.dataWords*8 {
		panic(fmt.Errorf("%s: invalid discriminant offset %d", b.st.name, discOffset))
	}
	u := &Union{owner: b.st, discOffset: discOffset}
	b.st.union = u
	build(&LayoutBuilder{st: b.st, union: u})
	if len(u.variants) < 2 {
		panic(fmt.Errorf("%s: union must have at least two variants", b.st.name))
	}
	return u
}

func (b *LayoutBuilder) add(f *Field) {
	st := b.st
	if f.name == "" {
		panic(fmt.Errorf("%s: field name missing", st.name))
	}
	if st.byName[f.name] != nil {
		panic(fmt.Errorf("%s already has field %s", st.name, f.name))
	}
	st.byName[f.name] = f
	if b.union != nil {
		f.discriminant = len(b.union.variants)
		b.union.variants = append(b.union.variants, f)
	} else {
		st.fields = append(st.fields, f)
	}
}

func (st *StructType) checkFieldLayout(f *Field) {
	k := f.typ.kind
	switch {
	case k == KindVoid:
		f.offset = 0
	case k.IsScalar():
		w := k.bitWidth()
		var bitOff int
		if k == KindBool {
			bitOff = f.offset
		} else {
			bitOff = f.offset * 8
		}
		if f.offset < 0 || bitOff%w != 0 || bitOff+w > st.dataWords*64 {
			panic(fmt.Errorf("%s.%s: %v at offset %d does not fit %d data words", st.name, f.name, f.typ, f.offset, st.dataWords))
		}
	case k.IsPointer():
		if f.offset < 0 || f.offset >= st.ptrCount {
			panic(fmt.Errorf("%s.%s: pointer index %d does not fit %d pointers", st.name, f.name, f.offset, st.ptrCount))
		}
	}
}
