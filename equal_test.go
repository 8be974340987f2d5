package capn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		st   *StructType
		a, b Values
		eq   bool
	}{
		{"same", Person, Values{"name": "a", "age": 1}, Values{"age": 1, "name": "a"}, true},
		{"scalar differs", Person, Values{"age": 1}, Values{"age": 2}, false},
		{"text differs", Person, Values{"name": "a"}, Values{"name": "b"}, false},
		{"null text equals empty", Person, Values{"name": ""}, Values{}, true},
		{"null struct equals default", Holder, Values{"key": Values{}}, Values{}, true},
		{"null list equals empty", Lists, Values{"ints": []int{}}, Values{}, true},
		{"list length", Lists, Values{"ints": []int{1}}, Values{"ints": []int{1, 0}}, false},
		{"nested list", Lists, Values{"nested": [][]int8{{1}}}, Values{"nested": [][]int8{{2}}}, false},
		{"variant", Shape, Values{"circle": 0}, Values{"square": nil}, false},
		{"variant value", Shape, Values{"label": "a"}, Values{"label": "b"}, false},
		{"pointer variant", Choice, Values{"c": "x"}, Values{"c": "x"}, true},
		{"group", Grouped, Values{"foo": Values{"x": 1}}, Values{"foo": Values{"x": 2}}, false},
		{"defaults", Defaults, Values{"color": "blue"}, Values{}, true},
		{"negative zero", Point, Values{"y": math.Copysign(0, -1)}, Values{"y": 0.0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := newOf(t, tt.st, tt.a), newOf(t, tt.st, tt.b)
			require.Equal(t, tt.eq, must(Equal(a, b)))
			require.Equal(t, tt.eq, must(Equal(b, a)))

			fa, fb := must(Fingerprint(a)), must(Fingerprint(b))
			if tt.eq {
				require.Equal(t, fa, fb)
			} else {
				require.NotEqual(t, fa, fb)
			}
		})
	}
}

func TestEqual_IgnoresInactiveVariant(t *testing.T) {
	b := NewBuilder(0)
	sb := b.NewRoot(Shape)
	sb.SetInt(fld(Shape, "circle"), 5)
	sb.SetVoid(fld(Shape, "square"))
	a := sb.AsStruct()
	require.Equal(t, uint64(5), a.Uint64At(8))

	sq := newOf(t, Shape, Values{"square": nil})
	require.True(t, must(Equal(a, sq)))
	require.Equal(t, must(Fingerprint(a)), must(Fingerprint(sq)))
}

func TestEqual_NaN(t *testing.T) {
	a := newOf(t, Point, Values{"y": math.NaN()})
	require.True(t, must(Equal(a, a)))
}

func TestEqual_DifferentTypes(t *testing.T) {
	a := newOf(t, Point, Values{"x": 1})
	b := newOf(t, IntPoint, Values{"x": 1})
	require.False(t, must(Equal(a, b)))
	assertPanics(t, func() { Equal(a, a.WithType(nil)) })
}

func TestEqual_SchemaEvolution(t *testing.T) {
	// an older Bar without y or name equals a newer one with them at defaults
	older := must(ReadStruct(x("07000000 00000000"), 0, 1, 0, Bar))
	newer := newOf(t, Bar, Values{"x": 7})
	require.True(t, must(Equal(older, newer)))
	require.Equal(t, must(Fingerprint(older)), must(Fingerprint(newer)))
}

func TestEqual_DecodeError(t *testing.T) {
	bad := must(ReadStruct(x("01000000 0d000000"), 0, 0, 1, Blob))
	good := newOf(t, Blob, nil)
	_, err := Equal(bad, good)
	require.ErrorIs(t, err, ErrTruncated)
	_, err = Fingerprint(bad)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestFingerprint_IgnoresLayout(t *testing.T) {
	s := newOf(t, Rect, Values{"a": Values{"x": 1}, "b": Values{"y": 2}})

	b := NewBuilder(0)
	sb := b.NewRoot(Rect)
	sb.NewStruct(fld(Rect, "b")).SetInt(fld(IntPoint, "y"), 2)
	sb.NewStruct(fld(Rect, "a")).SetInt(fld(IntPoint, "x"), 1)
	r := sb.AsStruct()

	require.NotEqual(t, s.Message().Segment(0), r.Message().Segment(0))
	require.Equal(t, must(Fingerprint(s)), must(Fingerprint(r)))
}
