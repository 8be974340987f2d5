// Package schemafile loads descriptor tables produced by a schema compiler
// into a *capn.Schema. Tables can be stored as msgpack or written by hand as
// YAML.
package schemafile

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/andreyvit/capn"
)

type File struct {
	Enums   []*Enum   `msgpack:"enums,omitempty" yaml:"enums,omitempty"`
	Structs []*Struct `msgpack:"structs" yaml:"structs"`
}

type Enum struct {
	Name   string   `msgpack:"name" yaml:"name"`
	Values []string `msgpack:"values" yaml:"values"`
}

type Struct struct {
	Name      string   `msgpack:"name" yaml:"name"`
	DataWords int      `msgpack:"data_words" yaml:"data_words"`
	PtrCount  int      `msgpack:"ptr_count" yaml:"ptr_count"`
	Fields    []*Field `msgpack:"fields,omitempty" yaml:"fields,omitempty"`
	Union     *Union   `msgpack:"union,omitempty" yaml:"union,omitempty"`
}

type Union struct {
	DiscriminantOffset int      `msgpack:"discriminant_offset" yaml:"discriminant_offset"`
	Variants           []*Field `msgpack:"variants" yaml:"variants"`
}

// Field describes a field. Type is a primitive type name such as "Int32" or
// "Text", the name of an enum or struct declared in the same file,
// "List(T)", or "group" for groups, which carry their own Fields and Union.
type Field struct {
	Name    string   `msgpack:"name" yaml:"name"`
	Type    string   `msgpack:"type" yaml:"type"`
	Offset  int      `msgpack:"offset,omitempty" yaml:"offset,omitempty"`
	Default any      `msgpack:"default,omitempty" yaml:"default,omitempty"`
	Fields  []*Field `msgpack:"fields,omitempty" yaml:"fields,omitempty"`
	Union   *Union   `msgpack:"union,omitempty" yaml:"union,omitempty"`
}

const groupType = "group"

func Encode(f *File) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode(f)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, fmt.Errorf("schemafile: %w", err)
	}
	return buf.Bytes(), nil
}

func Decode(data []byte) (*File, error) {
	f := new(File)
	dec := msgpack.GetDecoder()
	dec.Reset(bytes.NewReader(data))
	err := dec.Decode(f)
	msgpack.PutDecoder(dec)
	if err != nil {
		return nil, fmt.Errorf("schemafile: %w", err)
	}
	return f, nil
}

func DecodeYAML(data []byte) (*File, error) {
	f := new(File)
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("schemafile: %w", err)
	}
	return f, nil
}

// Load decodes a msgpack table and builds its schema.
func Load(data []byte) (*capn.Schema, error) {
	f, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return f.Build()
}

// LoadYAML decodes a YAML table and builds its schema.
func LoadYAML(data []byte) (*capn.Schema, error) {
	f, err := DecodeYAML(data)
	if err != nil {
		return nil, err
	}
	return f.Build()
}

// Build creates the schema described by f. All structs are declared before
// any is defined, so fields may refer to structs declared later in the file.
func (f *File) Build() (sch *capn.Schema, err error) {
	defer func() {
		if e := recover(); e != nil {
			sch = nil
			if pe, ok := e.(error); ok {
				err = fmt.Errorf("schemafile: %w", pe)
			} else {
				err = fmt.Errorf("schemafile: %v", e)
			}
		}
	}()
	sch = capn.NewSchema()
	for _, e := range f.Enums {
		sch.NewEnum(e.Name, e.Values...)
	}
	types := make([]*capn.StructType, len(f.Structs))
	for i, s := range f.Structs {
		types[i] = sch.NewStruct(s.Name, s.DataWords, s.PtrCount)
	}
	for i, s := range f.Structs {
		types[i].Define(func(b *capn.LayoutBuilder) {
			defineFields(sch, b, s.Fields, s.Union)
		})
	}
	return sch, nil
}

func defineFields(sch *capn.Schema, b *capn.LayoutBuilder, fields []*Field, u *Union) {
	for _, fd := range fields {
		defineField(sch, b, fd)
	}
	if u != nil {
		b.Union(u.DiscriminantOffset, func(b *capn.LayoutBuilder) {
			for _, fd := range u.Variants {
				defineField(sch, b, fd)
			}
		})
	}
}

func defineField(sch *capn.Schema, b *capn.LayoutBuilder, fd *Field) {
	if fd.Type == groupType {
		b.Group(fd.Name, func(b *capn.LayoutBuilder) {
			defineFields(sch, b, fd.Fields, fd.Union)
		})
		return
	}
	typ, err := ParseType(sch, fd.Type)
	if err != nil {
		panic(fmt.Errorf("field %s: %w", fd.Name, err))
	}
	var opts []capn.FieldOption
	if fd.Default != nil {
		opts = append(opts, capn.Default(fd.Default))
	}
	b.Field(fd.Name, typ, fd.Offset, opts...)
}

// ParseType resolves a type expression against sch.
func ParseType(sch *capn.Schema, expr string) (*capn.Type, error) {
	expr = strings.TrimSpace(expr)
	if inner, ok := strings.CutPrefix(expr, "List("); ok {
		inner, ok = strings.CutSuffix(inner, ")")
		if !ok {
			return nil, fmt.Errorf("unbalanced parentheses in %q", expr)
		}
		elem, err := ParseType(sch, inner)
		if err != nil {
			return nil, err
		}
		return capn.ListOf(elem), nil
	}
	if t := capn.PrimitiveType(expr); t != nil {
		return t, nil
	}
	if st := sch.Struct(expr); st != nil {
		return st.Type(), nil
	}
	if e := sch.Enum(expr); e != nil {
		return e.Type(), nil
	}
	return nil, fmt.Errorf("unknown type %q", expr)
}

// FromSchema produces the table describing sch, the inverse of Build.
func FromSchema(sch *capn.Schema) *File {
	f := new(File)
	for _, e := range sch.Enums() {
		f.Enums = append(f.Enums, &Enum{Name: e.Name(), Values: e.Values()})
	}
	for _, st := range sch.Structs() {
		s := &Struct{Name: st.Name(), DataWords: st.DataWords(), PtrCount: st.PtrCount()}
		s.Fields, s.Union = describeFields(st)
		f.Structs = append(f.Structs, s)
	}
	return f
}

func describeFields(st *capn.StructType) ([]*Field, *Union) {
	var fields []*Field
	for _, f := range st.Fields() {
		fields = append(fields, describeField(f))
	}
	var u *Union
	if su := st.Union(); su != nil {
		u = &Union{DiscriminantOffset: su.DiscriminantOffset()}
		for _, f := range su.Variants() {
			u.Variants = append(u.Variants, describeField(f))
		}
	}
	return fields, u
}

func describeField(f *capn.Field) *Field {
	if g := f.Group(); g != nil {
		fd := &Field{Name: f.Name(), Type: groupType}
		fd.Fields, fd.Union = describeFields(g)
		return fd
	}
	fd := &Field{Name: f.Name(), Type: f.Type().String()}
	if f.Kind() != capn.KindVoid {
		fd.Offset = f.Offset()
	}
	if f.DefaultBits() != 0 {
		fd.Default = defaultValue(f)
	}
	return fd
}

// defaultValue converts a field's default bits back into a plain value that
// capn.Default accepts.
func defaultValue(f *capn.Field) any {
	v := capn.ValueFromBits(f.Type(), f.DefaultBits())
	switch k := f.Kind(); k {
	case capn.KindBool:
		return v.Bool()
	case capn.KindFloat32, capn.KindFloat64:
		return v.Float()
	case capn.KindInt8, capn.KindInt16, capn.KindInt32, capn.KindInt64:
		return v.Int()
	case capn.KindEnum:
		if e := f.Type().EnumType(); e != nil {
			if name, ok := e.ValueName(v.Enum()); ok {
				return name
			}
		}
		return v.Uint()
	default:
		return v.Uint()
	}
}
