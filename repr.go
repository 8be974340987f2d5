package capn

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type ReprOptions struct {
	// ShowDefaults renders the way `capnp decode --short` does: data and
	// void fields are shown even at their defaults, groups are always shown,
	// and pointer fields are shown when non-null.
	ShowDefaults bool
}

// ShortRepr renders s as `(name = value, ...)` in field declaration order,
// with the union's active variant last.
//
// By default fields at their defaults are omitted, but the active union
// variant is always shown, as its canonical empty value if its pointer is
// null. Variants with unknown discriminants are omitted.
func ShortRepr(s Struct, opt ReprOptions) (string, error) {
	if s.typ == nil {
		panic("ShortRepr requires a typed struct")
	}
	var buf strings.Builder
	r := reprWriter{buf: &buf, opt: opt}
	if err := r.structValue(s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// String renders s with ShortRepr. Decoding errors are rendered inline.
func (s Struct) String() string {
	if s.typ == nil {
		return fmt.Sprintf("<struct d=%d p=%d>", s.dataSize/8, s.ptrCount)
	}
	str, err := ShortRepr(s, ReprOptions{})
	if err != nil {
		return "<error: " + err.Error() + ">"
	}
	return str
}

type reprWriter struct {
	buf *strings.Builder
	opt ReprOptions
}

func (r *reprWriter) structValue(s Struct) error {
	r.buf.WriteByte('(')
	n := 0
	sep := func() {
		if n > 0 {
			r.buf.WriteString(", ")
		}
		n++
	}
	for _, f := range s.typ.fields {
		if !r.showField(s, f) {
			continue
		}
		sep()
		if err := r.field(s, f); err != nil {
			return err
		}
	}
	if s.typ.union != nil {
		if tag, f := s.Which(); f != nil && r.showVariant(s, tag, f) {
			sep()
			if err := r.field(s, f); err != nil {
				return err
			}
		}
	}
	r.buf.WriteByte(')')
	return nil
}

func (r *reprWriter) showField(s Struct, f *Field) bool {
	k := f.typ.kind
	if r.opt.ShowDefaults {
		if k.IsPointer() {
			return s.HasPointer(f)
		}
		return true
	}
	switch k {
	case KindGroup:
		if f.typ.st.union != nil {
			return true
		}
		g := s.Group(f)
		for _, gf := range f.typ.st.fields {
			if r.showField(g, gf) {
				return true
			}
		}
		return false
	case KindText, KindData, KindList:
		return !s.IsDefault(f) && !isEmptyPointer(s, f)
	}
	return !s.IsDefault(f)
}

// isEmptyPointer reports whether a non-null text, data or list field holds
// zero elements. Decoding errors report false so that rendering surfaces
// them.
func isEmptyPointer(s Struct, f *Field) bool {
	switch f.typ.kind {
	case KindText:
		b, err := s.TextBytes(f)
		return err == nil && len(b) == 0
	case KindData:
		b, err := s.Data(f)
		return err == nil && len(b) == 0
	case KindList:
		l, err := s.List(f)
		return err == nil && l.Len() == 0
	}
	return false
}

func (r *reprWriter) showVariant(s Struct, tag uint16, f *Field) bool {
	if r.opt.ShowDefaults {
		return tag != 0 || !s.IsDefault(f)
	}
	return true
}

func (r *reprWriter) field(s Struct, f *Field) error {
	r.buf.WriteString(f.name)
	r.buf.WriteString(" = ")
	v, err := s.get(f)
	if err != nil {
		return err
	}
	return r.value(v)
}

func (r *reprWriter) value(v Value) error {
	switch k := v.typ.kind; {
	case k == KindVoid:
		r.buf.WriteString("void")
	case k == KindBool:
		r.buf.WriteString(strconv.FormatBool(v.Bool()))
	case k == KindEnum:
		if v.typ.enum != nil {
			if name, ok := v.typ.enum.ValueName(v.Enum()); ok {
				r.buf.WriteString(name)
				break
			}
		}
		r.buf.WriteString(strconv.FormatUint(uint64(v.Enum()), 10))
	case k.isSigned():
		r.buf.WriteString(strconv.FormatInt(v.Int(), 10))
	case k.isUnsigned():
		r.buf.WriteString(strconv.FormatUint(v.Uint(), 10))
	case k.isFloat():
		r.buf.WriteString(formatFloat(v.Float(), k.bitWidth()))
	case k == KindText || k == KindData:
		writeQuoted(r.buf, v.bytes)
	case k == KindStruct || k == KindGroup:
		return r.structValue(v.st)
	case k == KindList:
		return r.list(v.list)
	default:
		panic(fmt.Errorf("unexpected kind %v", k))
	}
	return nil
}

func (r *reprWriter) list(l List) error {
	r.buf.WriteByte('[')
	for i := range l.Len() {
		if i > 0 {
			r.buf.WriteString(", ")
		}
		v, err := l.Get(i)
		if err != nil {
			return err
		}
		if err := r.value(v); err != nil {
			return err
		}
	}
	r.buf.WriteByte(']')
	return nil
}

func formatFloat(v float64, bitSize int) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return "nan"
	}
	// like capnp: the type's guaranteed digits, or enough to round-trip
	prec, full := 15, 17
	if bitSize == 32 {
		prec, full = 6, 9
	}
	s := strconv.FormatFloat(v, 'g', prec, bitSize)
	if back, err := strconv.ParseFloat(s, bitSize); err != nil || back != v {
		s = strconv.FormatFloat(v, 'g', full, bitSize)
	}
	return s
}

func writeQuoted(buf *strings.Builder, b []byte) {
	buf.WriteByte('"')
	for _, c := range b {
		switch c {
		case '"', '\'', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString(`\n`)
		case '\t':
			buf.WriteString(`\t`)
		case '\r':
			buf.WriteString(`\r`)
		case '\a':
			buf.WriteString(`\a`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\v':
			buf.WriteString(`\v`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(buf, `\x%02x`, c)
			} else {
				buf.WriteByte(c)
			}
		}
	}
	buf.WriteByte('"')
}
