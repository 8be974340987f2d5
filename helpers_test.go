package capn

import (
	"encoding/hex"
	"errors"
	"reflect"
	"strings"
	"testing"
)

var testSchema = NewSchema()

var (
	Color = testSchema.NewEnum("Color", "red", "green", "blue")

	// struct Point { x @0 :Int64; y @1 :Float64; }
	Point = DefineStruct(testSchema, "Point", 2, 0, func(b *LayoutBuilder) {
		b.Field("x", Int64, 0)
		b.Field("y", Float64, 8)
	})

	// struct IntPoint { x @0 :Int64; y @1 :Int64; }
	IntPoint = DefineStruct(testSchema, "IntPoint", 2, 0, func(b *LayoutBuilder) {
		b.Field("x", Int64, 0)
		b.Field("y", Int64, 8)
	})

	// struct Person { name @0 :Text; surname @1 :Text; age @2 :UInt16; }
	Person = DefineStruct(testSchema, "Person", 1, 2, func(b *LayoutBuilder) {
		b.Field("name", Text, 0)
		b.Field("surname", Text, 1)
		b.Field("age", Uint16, 0)
	})

	// struct Named { name @0 :Text; }
	Named = DefineStruct(testSchema, "Named", 0, 1, func(b *LayoutBuilder) {
		b.Field("name", Text, 0)
	})

	// struct Holder { key @0 :Named; }
	Holder = DefineStruct(testSchema, "Holder", 0, 1, func(b *LayoutBuilder) {
		b.Field("key", Named.Type(), 0)
	})

	// struct Defaults with non-zero defaults for every scalar kind
	Defaults = DefineStruct(testSchema, "Defaults", 4, 0, func(b *LayoutBuilder) {
		b.Field("flag", Bool, 0, Default(true))
		b.Field("i8", Int8, 1, Default(-3))
		b.Field("u16", Uint16, 2, Default(500))
		b.Field("i32", Int32, 4, Default(-70000))
		b.Field("i64", Int64, 8, Default(int64(-1)<<40))
		b.Field("f32", Float32, 16, Default(1.5))
		b.Field("color", Color.Type(), 20, Default("blue"))
		b.Field("f64", Float64, 24, Default(3.25))
	})

	// struct Shape { area @0 :Int32; union { circle @1 :Int64; square @2 :Void; label @3 :Text; } }
	Shape = DefineStruct(testSchema, "Shape", 2, 1, func(b *LayoutBuilder) {
		b.Field("area", Int32, 0)
		b.Union(4, func(b *LayoutBuilder) {
			b.Field("circle", Int64, 8)
			b.Void("square")
			b.Field("label", Text, 0)
		})
	})

	// struct Rect { a @0 :IntPoint; b @1 :IntPoint; empty @2 :IntPoint; }
	Rect = DefineStruct(testSchema, "Rect", 0, 3, func(b *LayoutBuilder) {
		b.Field("a", IntPoint.Type(), 0)
		b.Field("b", IntPoint.Type(), 1)
		b.Field("empty", IntPoint.Type(), 2)
	})

	// struct Choice { union { a :IntPoint; b :IntPoint; c :Text; d :List(Int64); } }
	Choice = DefineStruct(testSchema, "Choice", 1, 1, func(b *LayoutBuilder) {
		b.Union(0, func(b *LayoutBuilder) {
			b.Field("a", IntPoint.Type(), 0)
			b.Field("b", IntPoint.Type(), 0)
			b.Field("c", Text, 0)
			b.Field("d", ListOf(Int64), 0)
		})
	})

	// struct Grouped { foo :group { x @0 :Int64; y @1 :Int64; } }
	Grouped = DefineStruct(testSchema, "Grouped", 2, 0, func(b *LayoutBuilder) {
		b.Group("foo", func(b *LayoutBuilder) {
			b.Field("x", Int64, 0)
			b.Field("y", Int64, 8)
		})
	})

	// struct Nullable { x :group { isNull @0 :Int8; value @1 :Int64; } }
	Nullable = DefineStruct(testSchema, "Nullable", 2, 0, func(b *LayoutBuilder) {
		b.Group("x", func(b *LayoutBuilder) {
			b.Field("isNull", Int8, 0)
			b.Field("value", Int64, 8)
		})
	})

	// struct Bar { x @0 :Int64; y @1 :Int64; name @2 :Text; }
	Bar = DefineStruct(testSchema, "Bar", 2, 1, func(b *LayoutBuilder) {
		b.Field("x", Int64, 0)
		b.Field("y", Int64, 8)
		b.Field("name", Text, 0)
	})

	// struct Lists { ints @0 :List(Int64); structs @1 :List(IntPoint); texts @2 :List(Text); bools @3 :List(Bool);
	//                colors @4 :List(Color); nested @5 :List(List(Int8)); bars @6 :List(Bar); blobs @7 :List(Data) }
	Lists = DefineStruct(testSchema, "Lists", 0, 8, func(b *LayoutBuilder) {
		b.Field("ints", ListOf(Int64), 0)
		b.Field("structs", ListOf(IntPoint.Type()), 1)
		b.Field("texts", ListOf(Text), 2)
		b.Field("bools", ListOf(Bool), 3)
		b.Field("colors", ListOf(Color.Type()), 4)
		b.Field("nested", ListOf(ListOf(Int8)), 5)
		b.Field("bars", ListOf(Bar.Type()), 6)
		b.Field("blobs", ListOf(Data), 7)
	})

	// struct Tree { value @0 :Int32; children @1 :List(Tree); }
	Tree = testSchema.NewStruct("Tree", 1, 1)
	_    = Tree.Define(func(b *LayoutBuilder) {
		b.Field("value", Int32, 0)
		b.Field("children", ListOf(Tree.Type()), 0)
	})

	// struct Blob { data @0 :Data; }
	Blob = DefineStruct(testSchema, "Blob", 0, 1, func(b *LayoutBuilder) {
		b.Field("data", Data, 0)
	})

	// struct Empty {}
	Empty = DefineStruct(testSchema, "Empty", 0, 0, nil)
)

func fld(st *StructType, path string) *Field {
	names := strings.Split(path, ".")
	var f *Field
	for i, name := range names {
		f = st.MustField(name)
		if i < len(names)-1 {
			st = f.Group()
		}
	}
	return f
}

// x decodes hex, ignoring spaces, dashes and underscores, the way tests
// write wire words.
func x(data string) []byte {
	data = strings.NewReplacer(" ", "", "-", "", "_", "", "\n", "", "\t", "").Replace(data)
	return must(hex.DecodeString(data))
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Fatalf("** got %v, wanted %v", a, e)
	}
}

func eq[T comparable](t testing.TB, a, e T) {
	if a != e {
		t.Helper()
		t.Fatalf("** got %v, wanted %v", a, e)
	}
}

func isErr(t testing.TB, err, target error) {
	if !errors.Is(err, target) {
		t.Helper()
		t.Fatalf("** got error %v, wanted %v", err, target)
	}
}

func ok(t testing.TB, err error) {
	if err != nil {
		t.Helper()
		t.Fatalf("** %v", err)
	}
}

func assertPanics(t testing.TB, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Helper()
			t.Fatalf("** did not panic")
		}
	}()
	f()
}

func reprOf(t testing.TB, s Struct, opt ReprOptions) string {
	t.Helper()
	str, err := ShortRepr(s, opt)
	if err != nil {
		t.Fatalf("ShortRepr: %v", err)
	}
	return str
}

func newOf(t testing.TB, st *StructType, vals Values) Struct {
	t.Helper()
	s, err := New(st, vals)
	if err != nil {
		t.Fatalf("New(%s): %v", st.Name(), err)
	}
	return s
}
