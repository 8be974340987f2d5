package schemafile

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andreyvit/capn"
)

func loadShapes(t testing.TB) *capn.Schema {
	t.Helper()
	data, err := os.ReadFile("testdata/shapes.yaml")
	require.NoError(t, err)
	sch, err := LoadYAML(data)
	require.NoError(t, err)
	return sch
}

func TestLoadYAML(t *testing.T) {
	sch := loadShapes(t)
	drawing := sch.MustStruct("Drawing")
	require.Equal(t, 1, drawing.DataWords())
	require.Equal(t, 2, drawing.PtrCount())
	require.Equal(t, "List(Shape)", drawing.MustField("shapes").Type().String())
	require.Equal(t, uint64(1), drawing.MustField("version").DefaultBits())

	bg := drawing.MustField("background").Group()
	require.NotNil(t, bg)
	require.Equal(t, uint64(2), bg.MustField("color").DefaultBits())

	shape := sch.MustStruct("Shape")
	require.Len(t, shape.Union().Variants(), 3)
	require.Equal(t, 2, shape.Union().DiscriminantOffset())
	require.Equal(t, capn.KindVoid, shape.MustField("empty").Kind())
}

func TestLoadYAML_BuildsUsableSchema(t *testing.T) {
	sch := loadShapes(t)
	s, err := capn.New(sch.MustStruct("Drawing"), capn.Values{
		"title": "sketch",
		"shapes": []capn.Values{
			{"color": "green", "circle": 2.5},
			{"polygon": []capn.Values{{"x": 1, "y": 2}}},
		},
		"background": capn.Values{"opaque": false},
	})
	require.NoError(t, err)
	require.Equal(t, `(title = "sketch", shapes = [(color = green, circle = 2.5), (polygon = [(x = 1, y = 2)])], background = (opaque = false))`, s.String())
	require.Equal(t, uint64(1), s.Uint(sch.MustStruct("Drawing").MustField("version")))
}

func TestMsgpackRoundTrip(t *testing.T) {
	sch := loadShapes(t)
	want := FromSchema(sch)

	data, err := Encode(want)
	require.NoError(t, err)
	loaded, err := Load(data)
	require.NoError(t, err)
	require.Equal(t, want, FromSchema(loaded))

	again, err := Encode(FromSchema(loaded))
	require.NoError(t, err)
	require.Equal(t, data, again)
}

func TestFromSchema(t *testing.T) {
	sch := capn.NewSchema()
	capn.DefineStruct(sch, "Opts", 1, 0, func(b *capn.LayoutBuilder) {
		b.Field("level", capn.Int8, 0, capn.Default(-2))
		b.Field("ratio", capn.Float32, 4, capn.Default(0.5))
		b.Field("on", capn.Bool, 8, capn.Default(true))
		b.Field("plain", capn.Uint16, 2)
	})
	f := FromSchema(sch)
	require.Len(t, f.Structs, 1)
	fields := f.Structs[0].Fields
	require.Equal(t, &Field{Name: "level", Type: "Int8", Offset: 0, Default: int64(-2)}, fields[0])
	require.Equal(t, &Field{Name: "ratio", Type: "Float32", Offset: 4, Default: 0.5}, fields[1])
	require.Equal(t, &Field{Name: "on", Type: "Bool", Offset: 8, Default: true}, fields[2])
	require.Equal(t, &Field{Name: "plain", Type: "UInt16", Offset: 2}, fields[3])
}

func TestParseType(t *testing.T) {
	sch := loadShapes(t)
	tests := []struct {
		expr string
		want string
	}{
		{"Int32", "Int32"},
		{" Text ", "Text"},
		{"Color", "Color"},
		{"List(Point)", "List(Point)"},
		{"List(List(UInt8))", "List(List(UInt8))"},
	}
	for _, tt := range tests {
		typ, err := ParseType(sch, tt.expr)
		require.NoError(t, err, tt.expr)
		require.Equal(t, tt.want, typ.String())
	}

	for _, expr := range []string{"Nope", "List(Point", "List(Nope)", "int32"} {
		_, err := ParseType(sch, expr)
		require.Error(t, err, expr)
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{"unknown type", `structs: [{name: A, data_words: 1, fields: [{name: x, type: Nope}]}]`, `unknown type "Nope"`},
		{"duplicate struct", `structs: [{name: A}, {name: A}]`, "already defined"},
		{"field past data", `structs: [{name: A, data_words: 1, fields: [{name: x, type: Int64, offset: 8}]}]`, "does not fit"},
		{"bad default", `structs: [{name: A, data_words: 1, fields: [{name: x, type: Int8, default: 1000}]}]`, "invalid default"},
		{"unknown enum default", `{enums: [{name: E, values: [a]}], structs: [{name: A, data_words: 1, fields: [{name: x, type: E, default: b}]}]}`, "invalid default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadYAML([]byte(tt.yaml))
			require.Error(t, err)
			require.True(t, strings.HasPrefix(err.Error(), "schemafile: "), err.Error())
			require.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Load([]byte{0xc1})
	require.Error(t, err)
	_, err = LoadYAML([]byte("structs: {"))
	require.Error(t, err)
}
