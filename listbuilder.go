package capn

import (
	"fmt"
	"math"
)

// ListBuilder writes the elements of a list allocated in a Builder. Indexes
// outside the list panic.
type ListBuilder struct {
	b        *Builder
	pos      int
	count    int
	size     ElementSize
	step     int
	dataSize int
	ptrCount int
	elem     *Type
}

func (lb ListBuilder) Len() int    { return lb.count }
func (lb ListBuilder) Elem() *Type { return lb.elem }

func (lb ListBuilder) check(i int, kinds ...Kind) {
	if i < 0 || i >= lb.count {
		panic(fmt.Errorf("index %d of %d-element list", i, lb.count))
	}
	for _, k := range kinds {
		if lb.elem.kind == k {
			return
		}
	}
	panic(fmt.Errorf("%v elements are not %v", lb.elem, kinds))
}

func (lb ListBuilder) elemPos(i int) int {
	return lb.pos + i*lb.step/8
}

func (lb ListBuilder) ptrPos(i int) int {
	return lb.elemPos(i) + lb.dataSize
}

func (lb ListBuilder) setBits(i int, v uint64) {
	w := lb.elem.kind.bitWidth()
	if w == 1 {
		lb.b.WriteBool(lb.pos, i, v != 0)
		return
	}
	lb.b.writeBits(lb.elemPos(i), 0, w, v)
}

func (lb ListBuilder) SetBool(i int, v bool) {
	lb.check(i, KindBool)
	var bit uint64
	if v {
		bit = 1
	}
	lb.setBits(i, bit)
}

func (lb ListBuilder) SetInt(i int, v int64) {
	lb.check(i, KindInt8, KindInt16, KindInt32, KindInt64)
	if !fitsInt(lb.elem.kind, v) {
		panic(fmt.Errorf("%d overflows %v", v, lb.elem))
	}
	lb.setBits(i, uint64(v))
}

func (lb ListBuilder) SetUint(i int, v uint64) {
	lb.check(i, KindUint8, KindUint16, KindUint32, KindUint64, KindEnum)
	if !fitsUint(lb.elem.kind, v) {
		panic(fmt.Errorf("%d overflows %v", v, lb.elem))
	}
	lb.setBits(i, v)
}

func (lb ListBuilder) SetFloat(i int, v float64) {
	lb.check(i, KindFloat32, KindFloat64)
	if lb.elem.kind == KindFloat32 {
		lb.setBits(i, uint64(math.Float32bits(float32(v))))
	} else {
		lb.setBits(i, math.Float64bits(v))
	}
}

func (lb ListBuilder) SetEnum(i int, v uint16) {
	lb.check(i, KindEnum)
	lb.setBits(i, uint64(v))
}

func (lb ListBuilder) SetText(i int, v string) {
	lb.check(i, KindText)
	lb.b.writeString(lb.ptrPos(i), v)
}

// SetData stores v; a nil slice leaves the element null.
func (lb ListBuilder) SetData(i int, v []byte) {
	lb.check(i, KindData)
	if v == nil {
		lb.b.writePointer(lb.ptrPos(i), 0)
		return
	}
	lb.b.writeBlob(lb.ptrPos(i), v, false)
}

// Struct returns a builder for element i of a struct list. Elements are
// stored inline, so no allocation happens.
func (lb ListBuilder) Struct(i int) StructBuilder {
	lb.check(i, KindStruct)
	return StructBuilder{b: lb.b, pos: lb.elemPos(i), typ: lb.elem.st}
}

// NewList allocates an n-element list as element i of a list of lists.
func (lb ListBuilder) NewList(i int, n int) ListBuilder {
	lb.check(i, KindList)
	return lb.b.allocList(lb.ptrPos(i), lb.elem.elem, n)
}

// SetStruct deep-copies src into element i.
func (lb ListBuilder) SetStruct(i int, src Struct) error {
	lb.check(i, KindStruct)
	return lb.b.copyStructInto(lb.elemPos(i), lb.dataSize, lb.ptrCount, src)
}

// SetList deep-copies src into element i of a list of lists.
func (lb ListBuilder) SetList(i int, src List) error {
	lb.check(i, KindList)
	return lb.b.copyList(lb.ptrPos(i), src)
}

// AsList returns a read view of the list over the bytes built so far.
func (lb ListBuilder) AsList() List {
	m := lb.b.Message()
	return List{
		msg:      m,
		seg:      &m.segs[0],
		off:      lb.pos,
		count:    lb.count,
		size:     lb.size,
		step:     lb.step,
		dataSize: lb.dataSize,
		ptrCount: lb.ptrCount,
		nesting:  m.opt.nestingLimit(),
		elem:     lb.elem,
	}
}
