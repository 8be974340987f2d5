package capn

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	reprSchema = NewSchema()

	BoolPair = DefineStruct(reprSchema, "BoolPair", 1, 0, func(b *LayoutBuilder) {
		b.Field("x", Bool, 0)
		b.Field("y", Bool, 1)
	})
	ColorPair = DefineStruct(reprSchema, "ColorPair", 1, 0, func(b *LayoutBuilder) {
		b.Field("x", Color.Type(), 0)
		b.Field("y", Color.Type(), 2)
	})
	VoidPoint = DefineStruct(reprSchema, "VoidPoint", 1, 0, func(b *LayoutBuilder) {
		b.Field("x", Int64, 0)
		b.Void("y")
	})
	TextHolder = DefineStruct(reprSchema, "TextHolder", 0, 1, func(b *LayoutBuilder) {
		b.Field("txt", Text, 0)
	})
	XYZ = DefineStruct(reprSchema, "XYZ", 2, 1, func(b *LayoutBuilder) {
		b.Union(0, func(b *LayoutBuilder) {
			b.Field("x", Int64, 8)
			b.Void("y")
			b.Field("z", Text, 0)
		})
	})
	Numbers = DefineStruct(reprSchema, "Numbers", 3, 0, func(b *LayoutBuilder) {
		b.Field("u8", Uint8, 0)
		b.Field("i16", Int16, 2)
		b.Field("f32", Float32, 4)
		b.Field("u64", Uint64, 8)
		b.Field("f64", Float64, 16)
	})
)

func TestShortRepr(t *testing.T) {
	full := ReprOptions{ShowDefaults: true}
	tests := []struct {
		name  string
		s     Struct
		short string
		full  string
	}{
		{"bools", must(ReadStruct(x("01000000 00000000"), 0, 1, 0, BoolPair)), "(x = true)", "(x = true, y = false)"},
		{"enums", newOf(t, ColorPair, Values{"x": "green"}), "(x = green)", "(x = green, y = red)"},
		{"unknown enum", newOf(t, ColorPair, Values{"y": 42}), "(y = 42)", "(x = red, y = 42)"},
		{"void", newOf(t, VoidPoint, Values{"x": 1}), "(x = 1)", "(x = 1, y = void)"},
		{"all defaults", newOf(t, Point, nil), "()", "(x = 0, y = 0)"},
		{"text", newOf(t, TextHolder, Values{"txt": "hello"}), `(txt = "hello")`, `(txt = "hello")`},
		{"null text", newOf(t, TextHolder, nil), "()", "()"},
		{"empty text", newOf(t, TextHolder, Values{"txt": ""}), "()", `(txt = "")`},
		{"double quotes", newOf(t, TextHolder, Values{"txt": `double "quotes"`}), `(txt = "double \"quotes\"")`, `(txt = "double \"quotes\"")`},
		{"single quotes", newOf(t, TextHolder, Values{"txt": `single 'quotes'`}), `(txt = "single \'quotes\'")`, `(txt = "single \'quotes\'")`},
		{"union int", newOf(t, XYZ, Values{"x": 1}), "(x = 1)", "(x = 1)"},
		{"union void", newOf(t, XYZ, Values{"y": nil}), "(y = void)", "(y = void)"},
		{"union text", newOf(t, XYZ, Values{"z": "hello"}), `(z = "hello")`, `(z = "hello")`},
		{"union default", newOf(t, XYZ, nil), "(x = 0)", "()"},
		{"group", newOf(t, Grouped, Values{"foo": Values{"x": 1, "y": 2}}), "(foo = (x = 1, y = 2))", "(foo = (x = 1, y = 2))"},
		{"default group", newOf(t, Grouped, nil), "()", "(foo = (x = 0, y = 0))"},
		{"struct list", newOf(t, PointItems, Values{"items": []Values{{"x": 1, "y": 2}, {"x": 3, "y": 4}}}), "(items = [(x = 1, y = 2), (x = 3, y = 4)])", "(items = [(x = 1, y = 2), (x = 3, y = 4)])"},
		{"text list", newOf(t, TextItems, Values{"items": []string{"foo", "bar"}}), `(items = ["foo", "bar"])`, `(items = ["foo", "bar"])`},
		{"empty data", newOf(t, Blob, Values{"data": []byte{}}), "()", `(data = "")`},
		{"empty list", newOf(t, IntItems, Values{"items": []int{}}), "()", "(items = [])"},
		{"null list", newOf(t, IntItems, nil), "()", "()"},
		{"defaults", newOf(t, Defaults, Values{"i8": 1}), "(i8 = 1)", "(flag = true, i8 = 1, u16 = 500, i32 = -70000, i64 = -1099511627776, f32 = 1.5, color = blue, f64 = 3.25)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.short, reprOf(t, tt.s, ReprOptions{}))
			require.Equal(t, tt.full, reprOf(t, tt.s, full))
		})
	}
}

func TestShortRepr_Numbers(t *testing.T) {
	s := newOf(t, Numbers, Values{"u8": 255, "i16": -300, "f32": 0.1, "u64": uint64(math.MaxUint64), "f64": 1e100})
	require.Equal(t, "(u8 = 255, i16 = -300, f32 = 0.1, u64 = 18446744073709551615, f64 = 1e+100)", s.String())
}

func TestShortRepr_UnionIsLast(t *testing.T) {
	s := newOf(t, Shape, Values{"area": 3, "circle": 2})
	require.Equal(t, "(area = 3, circle = 2)", s.String())
}

func TestShortRepr_Error(t *testing.T) {
	s := must(ReadStruct(x("01000000 0d000000 00000000 00000000"), 0, 0, 1, TextHolder))
	_, err := ShortRepr(s, ReprOptions{})
	require.ErrorIs(t, err, ErrMalformedPointer)
	require.True(t, strings.HasPrefix(s.String(), "<error: "), s.String())

	require.Equal(t, "<struct d=1 p=0>", must(ReadStruct(x("01000000 00000000"), 0, 1, 0, nil)).String())
	assertPanics(t, func() { ShortRepr(Struct{}, ReprOptions{}) })
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		v    float64
		bits int
		want string
	}{
		{0, 64, "0"},
		{1.23, 64, "1.23"},
		{100, 64, "100"},
		{123456789, 64, "123456789"},
		{1e14, 64, "100000000000000"},
		{1e15, 64, "1e+15"},
		{1e-7, 64, "1e-07"},
		{-2.5, 64, "-2.5"},
		{float64(float32(0.1)), 32, "0.1"},
		{1e10, 32, "1e+10"},
		{1234567, 32, "1234567"},
		{1e8, 32, "1e+08"},
		{float64(float32(3.3)), 32, "3.3"},
		{0.1 + 0.2, 64, "0.30000000000000004"},
		{1.0 / 3, 64, "0.33333333333333331"},
		{math.Inf(1), 64, "inf"},
		{math.Inf(-1), 32, "-inf"},
		{math.NaN(), 64, "nan"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, formatFloat(tt.v, tt.bits), "%v", tt.v)
	}
}

func TestWriteQuoted(t *testing.T) {
	var buf strings.Builder
	writeQuoted(&buf, []byte("a\"b'c\\\n\t\r\x00\x01\x7f é"))
	require.Equal(t, `"a\"b\'c\\\n\t\r\x00\x01\x7f é"`, buf.String())
}
