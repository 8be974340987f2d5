package capn

import (
	"fmt"
	"reflect"
	"sort"
)

// Values holds field values by field name, for building structs dynamically
// and for exporting them. Group fields take nested Values.
type Values map[string]any

// New builds a struct of type st from vals in a fresh builder.
func New(st *StructType, vals Values) (Struct, error) {
	b := NewBuilder(8 + (st.dataWords+st.ptrCount)*8)
	sb := b.NewRoot(st)
	if err := sb.SetValues(vals); err != nil {
		return Struct{}, err
	}
	return sb.AsStruct(), nil
}

type assignment struct {
	sb StructBuilder
	f  *Field
	v  any
}

// SetValues sets the fields named in vals. Pointer targets are allocated in
// pointer-index order, so the result lays out exactly as Compact would.
func (sb StructBuilder) SetValues(vals Values) error {
	var as []assignment
	if err := sb.collect(vals, &as); err != nil {
		return err
	}
	sort.SliceStable(as, func(i, j int) bool {
		return as[i].sortKey() < as[j].sortKey()
	})
	for _, a := range as {
		if err := a.sb.Set(a.f, a.v); err != nil {
			return err
		}
	}
	return nil
}

// sortKey puts data fields first, then pointer fields by index.
func (a assignment) sortKey() int {
	if a.f.typ.kind.IsPointer() {
		return a.f.offset
	}
	return -1
}

func (sb StructBuilder) collect(vals Values, as *[]assignment) error {
	var variant *Field
	for name := range vals {
		f := sb.typ.byName[name]
		if f == nil {
			return fieldErrf(sb.typ, nil, ErrValueMismatch, "unknown field %q", name)
		}
		if f.InUnion() {
			if variant != nil {
				return fieldErrf(sb.typ, f, ErrValueMismatch, "conflicts with %s, only one union variant can be set", variant.name)
			}
			variant = f
		}
	}
	for _, f := range sb.typ.AllFields() {
		v, ok := vals[f.name]
		if !ok {
			continue
		}
		if f.typ.kind == KindGroup {
			gv, ok := v.(Values)
			if !ok && v != nil {
				return fieldErrf(sb.typ, f, ErrValueMismatch, "cannot use %T as a group", v)
			}
			if err := sb.Group(f).collect(gv, as); err != nil {
				return err
			}
			continue
		}
		*as = append(*as, assignment{sb, f, v})
	}
	return nil
}

// Set stores a Go value into field f. Structs and lists read from other
// messages are deep-copied.
func (sb StructBuilder) Set(f *Field, v any) error {
	sb.check(f, f.typ.kind)
	k := f.typ.kind
	if v == nil {
		switch {
		case k == KindVoid:
			sb.SetVoid(f)
		case k.IsPointer():
			sb.SetNull(f)
		case k == KindGroup:
			sb.Group(f)
		default:
			return fieldErrf(sb.typ, f, ErrValueMismatch, "nil for %v", f.typ)
		}
		return nil
	}
	switch {
	case k == KindVoid:
		return fieldErrf(sb.typ, f, ErrValueMismatch, "cannot use %T as Void", v)
	case k.IsScalar():
		bits, err := scalarBits(f.typ, v)
		if err != nil {
			return fieldErrf(sb.typ, f, err, "")
		}
		sb.setBits(f, bits)
	case k == KindText || k == KindData:
		switch v := v.(type) {
		case string:
			if k == KindText {
				sb.SetText(f, v)
			} else {
				sb.SetData(f, []byte(v))
			}
		case []byte:
			if k == KindText {
				sb.SetTextBytes(f, v)
			} else {
				sb.SetData(f, v)
			}
		default:
			return fieldErrf(sb.typ, f, ErrValueMismatch, "cannot use %T as %v", v, f.typ)
		}
	case k == KindStruct:
		switch v := v.(type) {
		case Struct:
			if err := sb.SetStruct(f, v); err != nil {
				return fieldErrf(sb.typ, f, err, "")
			}
		case Values:
			return sb.NewStruct(f).SetValues(v)
		default:
			return fieldErrf(sb.typ, f, ErrValueMismatch, "cannot use %T as %v", v, f.typ)
		}
	case k == KindList:
		if l, ok := v.(List); ok {
			if err := sb.SetList(f, l); err != nil {
				return fieldErrf(sb.typ, f, err, "")
			}
			return nil
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return fieldErrf(sb.typ, f, ErrValueMismatch, "cannot use %T as %v", v, f.typ)
		}
		if err := sb.NewList(f, rv.Len()).setElems(rv); err != nil {
			return fieldErrf(sb.typ, f, err, "")
		}
	case k == KindGroup:
		gv, ok := v.(Values)
		if !ok {
			return fieldErrf(sb.typ, f, ErrValueMismatch, "cannot use %T as a group", v)
		}
		return sb.Group(f).SetValues(gv)
	}
	return nil
}

func (lb ListBuilder) setElems(rv reflect.Value) error {
	for i := range rv.Len() {
		if err := lb.Set(i, rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// Set stores a Go value into element i.
func (lb ListBuilder) Set(i int, v any) error {
	lb.check(i, lb.elem.kind)
	k := lb.elem.kind
	switch {
	case k == KindVoid:
		if v != nil {
			return fmt.Errorf("%w: cannot use %T as Void", ErrValueMismatch, v)
		}
	case k.IsScalar():
		bits, err := scalarBits(lb.elem, v)
		if err != nil {
			return err
		}
		lb.setBits(i, bits)
	case k == KindText || k == KindData:
		switch v := v.(type) {
		case nil:
			lb.b.writePointer(lb.ptrPos(i), 0)
		case string:
			if k == KindText {
				lb.SetText(i, v)
			} else {
				lb.SetData(i, []byte(v))
			}
		case []byte:
			if k == KindText {
				lb.b.writeBlob(lb.ptrPos(i), v, true)
			} else {
				lb.SetData(i, v)
			}
		default:
			return fmt.Errorf("%w: cannot use %T as %v", ErrValueMismatch, v, lb.elem)
		}
	case k == KindStruct:
		switch v := v.(type) {
		case nil:
		case Struct:
			return lb.SetStruct(i, v)
		case Values:
			return lb.Struct(i).SetValues(v)
		default:
			return fmt.Errorf("%w: cannot use %T as %v", ErrValueMismatch, v, lb.elem)
		}
	case k == KindList:
		if v == nil {
			lb.b.writePointer(lb.ptrPos(i), 0)
			return nil
		}
		if l, ok := v.(List); ok {
			return lb.SetList(i, l)
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return fmt.Errorf("%w: cannot use %T as %v", ErrValueMismatch, v, lb.elem)
		}
		return lb.NewList(i, rv.Len()).setElems(rv)
	}
	return nil
}

// ToValues exports a typed struct into Values: every non-union field and the
// active union variant. Null pointers become nil, enums their value names
// (or the raw number when unnamed), lists []any.
func ToValues(s Struct) (Values, error) {
	if s.typ == nil {
		panic("ToValues requires a typed struct")
	}
	vals := make(Values)
	for _, f := range s.typ.fields {
		v, err := s.exportField(f)
		if err != nil {
			return nil, err
		}
		vals[f.name] = v
	}
	if s.typ.union != nil {
		if _, f := s.Which(); f != nil {
			v, err := s.exportField(f)
			if err != nil {
				return nil, err
			}
			vals[f.name] = v
		}
	}
	return vals, nil
}

func (s Struct) exportField(f *Field) (any, error) {
	if f.typ.kind.IsPointer() && !s.HasPointer(f) {
		return nil, nil
	}
	v, err := s.get(f)
	if err != nil {
		return nil, err
	}
	return exportValue(v)
}

func exportValue(v Value) (any, error) {
	switch k := v.typ.kind; {
	case k == KindVoid:
		return nil, nil
	case k == KindBool:
		return v.Bool(), nil
	case k == KindEnum:
		if v.typ.enum != nil {
			if name, ok := v.typ.enum.ValueName(v.Enum()); ok {
				return name, nil
			}
		}
		return v.Enum(), nil
	case k.isSigned():
		return v.Int(), nil
	case k.isUnsigned():
		return v.Uint(), nil
	case k.isFloat():
		return v.Float(), nil
	case k == KindText:
		return v.Text(), nil
	case k == KindData:
		return v.Bytes(), nil
	case k == KindStruct || k == KindGroup:
		return ToValues(v.st)
	case k == KindList:
		return exportList(v.list)
	default:
		panic(fmt.Errorf("unexpected kind %v", k))
	}
}

func exportList(l List) ([]any, error) {
	out := make([]any, l.Len())
	for i := range out {
		if l.elem.kind.IsPointer() && l.elem.kind != KindStruct {
			if null, err := l.IsNull(i); err != nil {
				return nil, err
			} else if null {
				continue
			}
		}
		v, err := l.Get(i)
		if err != nil {
			return nil, err
		}
		out[i], err = exportValue(v)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
