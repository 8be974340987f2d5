package capn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilder_Person(t *testing.T) {
	b := NewBuilder(0)
	sb := b.NewRoot(Person)
	sb.SetText(fld(Person, "name"), "Alice")
	sb.SetUint(fld(Person, "age"), 33)

	require.Equal(t, x(`
		00000000 01000200
		21000000 00000000
		05000000 32000000
		00000000 00000000
		416c6963 65000000
	`), b.Bytes())

	s, err := b.Message().Root(Person)
	require.NoError(t, err)
	require.Equal(t, "Alice", must(s.Text(fld(Person, "name"))))
	require.Equal(t, uint64(33), s.Uint(fld(Person, "age")))
	require.Equal(t, `(name = "Alice", age = 33)`, s.String())
}

func TestBuilder_Finalize(t *testing.T) {
	b := NewBuilder(0)
	b.NewRoot(IntPoint).SetInt(fld(IntPoint, "x"), 5)
	framed := b.Finalize()
	require.Equal(t, x("00000000 03000000"), framed[:8])

	m, err := ReadMessage(framed, ReadOptions{})
	require.NoError(t, err)
	s, err := m.Root(IntPoint)
	require.NoError(t, err)
	require.Equal(t, int64(5), s.Int(fld(IntPoint, "x")))
}

func TestBuilder_EmptyStruct(t *testing.T) {
	b := NewBuilder(0)
	b.NewRoot(Empty)
	require.Equal(t, x("fcffffff 00000000"), b.Bytes())
	s, err := b.Message().Root(Empty)
	require.NoError(t, err)
	require.True(t, s.IsEmpty())
}

func TestBuilder_NestedStructs(t *testing.T) {
	b := NewBuilder(0)
	r := b.NewRoot(Rect)
	a := r.NewStruct(fld(Rect, "a"))
	a.SetInt(fld(IntPoint, "x"), 1)
	a.SetInt(fld(IntPoint, "y"), 2)
	bb := r.NewStruct(fld(Rect, "b"))
	bb.SetInt(fld(IntPoint, "x"), 3)
	bb.SetInt(fld(IntPoint, "y"), 4)

	s := r.AsStruct()
	require.Equal(t, "(a = (x = 1, y = 2), b = (x = 3, y = 4))", s.String())
	require.Equal(t, "(a = (x = 1, y = 2), b = (x = 3, y = 4))", reprOf(t, s, ReprOptions{ShowDefaults: true}))
	require.False(t, s.HasPointer(fld(Rect, "empty")))
}

func TestBuilder_Data(t *testing.T) {
	b := NewBuilder(0)
	sb := b.NewRoot(Blob)
	sb.SetData(fld(Blob, "data"), []byte{1, 2, 3})
	s := sb.AsStruct()
	require.Equal(t, []byte{1, 2, 3}, must(s.Data(fld(Blob, "data"))))
	require.Equal(t, `(data = "\x01\x02\x03")`, s.String())

	sb.SetData(fld(Blob, "data"), nil)
	require.False(t, sb.AsStruct().HasPointer(fld(Blob, "data")))

	sb.SetData(fld(Blob, "data"), []byte{})
	s = sb.AsStruct()
	require.True(t, s.HasPointer(fld(Blob, "data")))
	require.Equal(t, []byte{}, must(s.Data(fld(Blob, "data"))))
}

func TestBuilder_Union(t *testing.T) {
	b := NewBuilder(0)
	sb := b.NewRoot(Shape)
	sb.SetInt(fld(Shape, "circle"), 3)
	require.True(t, sb.AsStruct().Is(fld(Shape, "circle")))
	sb.SetVoid(fld(Shape, "square"))
	s := sb.AsStruct()
	require.True(t, s.Is(fld(Shape, "square")))
	require.False(t, s.Is(fld(Shape, "circle")))
	require.Equal(t, "(square = void)", s.String())
}

func TestBuilder_ListOfStructs(t *testing.T) {
	b := NewBuilder(0)
	lb := b.NewRoot(Lists).NewList(fld(Lists, "bars"), 2)
	lb.Struct(0).SetInt(fld(Bar, "x"), 1)
	lb.Struct(0).SetText(fld(Bar, "name"), "one")
	lb.Struct(1).SetInt(fld(Bar, "y"), 2)

	s := b.Root(Lists).AsStruct()
	l := must(s.List(fld(Lists, "bars")))
	require.Equal(t, 2, l.Len())
	require.Equal(t, "one", must(must(l.Struct(0)).Text(fld(Bar, "name"))))
	require.Equal(t, `(bars = [(x = 1, name = "one"), (y = 2)])`, s.String())
}

func TestBuilder_Floats(t *testing.T) {
	s := newOf(t, Point, Values{"x": 1, "y": 1.23})
	require.Equal(t, 1.23, s.Float(fld(Point, "y")))
	require.Equal(t, "(x = 1, y = 1.23)", s.String())
	require.Equal(t, "(x = 1, y = 1.23)", reprOf(t, s, ReprOptions{ShowDefaults: true}))
}

func TestBuilder_Misuse(t *testing.T) {
	b := NewBuilder(0)
	sb := b.NewRoot(Person)
	assertPanics(t, func() { b.NewRoot(Person) })
	assertPanics(t, func() { b.Root(IntPoint) })
	assertPanics(t, func() { sb.SetInt(fld(IntPoint, "x"), 1) })
	assertPanics(t, func() { sb.SetInt(fld(Person, "age"), 1) })
	assertPanics(t, func() { sb.SetUint(fld(Person, "age"), 0x10000) })
	assertPanics(t, func() { sb.SetText(fld(Person, "age"), "x") })
	assertPanics(t, func() { b.WriteUint64(b.Len(), 0) })
	assertPanics(t, func() { b.Allocate(-1) })
	assertPanics(t, func() { NewBuilder(0).Root(Person) })
	assertPanics(t, func() { NewBuilder(0).NewRoot(Grouped.MustField("foo").Group()) })

	lb := NewBuilder(0).NewRoot(Lists).NewList(fld(Lists, "ints"), 2)
	assertPanics(t, func() { lb.SetInt(2, 0) })
	assertPanics(t, func() { lb.SetText(0, "x") })
}

func TestBuilder_RawWrites(t *testing.T) {
	b := NewBuilder(0)
	pos := b.Allocate(3)
	require.Equal(t, 0, pos)
	require.Equal(t, 8, b.Len())
	b.WriteUint16(pos, 0xbeef)
	b.WriteBool(pos, 17, true)
	b.WriteUint8(pos+3, 7)
	b.WriteFloat32(pos+4, 1.5)
	require.Equal(t, x("efbe0207 0000c03f"), b.Bytes())
	b.WriteBool(pos, 17, false)
	require.Equal(t, byte(0), b.Bytes()[2])
}
