package capn

import (
	"encoding/binary"
	"fmt"
	"math"
)

// List is a read-only view of a list. The zero List is a valid empty list.
type List struct {
	msg      *Message
	seg      *segment
	off      int // first element
	count    int
	size     ElementSize
	step     int // bits per element
	dataSize int // data bytes per element
	ptrCount int // pointers per element
	nesting  int
	elem     *Type
}

func (l List) Len() int                 { return l.count }
func (l List) ElementSize() ElementSize { return l.size }
func (l List) Elem() *Type              { return l.elem }
func (l List) Message() *Message        { return l.msg }

// checkElementType verifies that the wire element size can be read as elem.
func (l List) checkElementType(data []byte, at int) error {
	k := l.elem.kind
	ok := true
	switch {
	case k == KindVoid:
	case k == KindBool:
		ok = l.size == SizeBit
	case k.IsScalar():
		ok = l.size != SizeBit && l.size != SizePointer
		// elements narrower than the value would read as zeros
		if ok && l.size != SizeVoid && l.count > 0 && l.dataSize*8 < k.bitWidth() {
			ok = false
		}
	case k == KindStruct:
		ok = l.size != SizeBit
	case k.IsPointer():
		ok = l.size == SizePointer || (l.size == SizeComposite && l.ptrCount > 0) || l.count == 0
	}
	if !ok {
		return dataErrf(data, at, ErrMalformedPointer, "list of %v elements cannot be read as %v", l.size, ListOf(l.elem))
	}
	return nil
}

func (l List) checkIndex(i int) error {
	if i < 0 || i >= l.count {
		var data []byte
		if l.seg != nil {
			data = l.seg.data
		}
		return dataErrf(data, l.off, ErrOutOfBounds, "index %d of %d-element list", i, l.count)
	}
	return nil
}

func (l List) elemOff(i int) int {
	return l.off + i*l.step/8
}

// width returns the number of value bits of a scalar element.
func (l List) width() int {
	if l.elem != nil && l.elem.kind.IsScalar() {
		return l.elem.kind.bitWidth()
	}
	if l.dataSize > 0 {
		return l.dataSize * 8
	}
	if l.size == SizeBit {
		return 1
	}
	return 0
}

// rawAt returns the low width bits of element i's data.
func (l List) rawAt(i, width int) uint64 {
	if l.size == SizeBit {
		if width == 1 && l.seg.data[l.off+i/8]&(1<<uint(i%8)) != 0 {
			return 1
		}
		return 0
	}
	nbytes := (width + 7) / 8
	if nbytes > l.dataSize {
		return 0
	}
	b := l.seg.data[l.elemOff(i):]
	switch width {
	case 1:
		return uint64(b[0] & 1)
	case 8:
		return uint64(b[0])
	case 16:
		return uint64(binary.LittleEndian.Uint16(b))
	case 32:
		return uint64(binary.LittleEndian.Uint32(b))
	case 64:
		return binary.LittleEndian.Uint64(b)
	default:
		return 0
	}
}

// Bool returns element i; bool lists store element i in bit i%8 of byte i/8.
func (l List) Bool(i int) (bool, error) {
	if err := l.checkIndex(i); err != nil {
		return false, err
	}
	return l.rawAt(i, 1) != 0, nil
}

func (l List) Int(i int) (int64, error) {
	if err := l.checkIndex(i); err != nil {
		return 0, err
	}
	w := l.width()
	return signExtend(l.rawAt(i, w), w), nil
}

func (l List) Uint(i int) (uint64, error) {
	if err := l.checkIndex(i); err != nil {
		return 0, err
	}
	return l.rawAt(i, l.width()), nil
}

func (l List) Enum(i int) (uint16, error) {
	if err := l.checkIndex(i); err != nil {
		return 0, err
	}
	return uint16(l.rawAt(i, 16)), nil
}

func (l List) Float(i int) (float64, error) {
	if err := l.checkIndex(i); err != nil {
		return 0, err
	}
	if l.width() == 32 {
		return float64(math.Float32frombits(uint32(l.rawAt(i, 32)))), nil
	}
	return math.Float64frombits(l.rawAt(i, 64)), nil
}

// Struct returns a view of element i of a struct list.
func (l List) Struct(i int) (Struct, error) {
	if err := l.checkIndex(i); err != nil {
		return Struct{}, err
	}
	if l.size == SizeBit {
		return Struct{}, dataErrf(l.seg.data, l.off, ErrMalformedPointer, "bit list elements cannot be read as structs")
	}
	var st *StructType
	if l.elem != nil {
		st = l.elem.st
	}
	return Struct{
		msg:      l.msg,
		seg:      l.seg,
		off:      l.elemOff(i),
		dataSize: l.dataSize,
		ptrCount: l.ptrCount,
		nesting:  l.nesting,
		typ:      st,
	}, nil
}

// pointerSite returns the location of the first pointer of element i.
func (l List) pointerSite(i int) (*segment, int, error) {
	if err := l.checkIndex(i); err != nil {
		return nil, 0, err
	}
	if l.ptrCount == 0 {
		return nil, 0, nil
	}
	return l.seg, l.elemOff(i) + l.dataSize, nil
}

// TextBytes returns element i of a text list without copying.
func (l List) TextBytes(i int) ([]byte, error) {
	seg, off, err := l.pointerSite(i)
	if err != nil || seg == nil {
		return nil, err
	}
	return l.msg.readText(seg, off, l.nesting)
}

func (l List) Text(i int) (string, error) {
	b, err := l.TextBytes(i)
	return string(b), err
}

func (l List) Data(i int) ([]byte, error) {
	seg, off, err := l.pointerSite(i)
	if err != nil || seg == nil {
		return nil, err
	}
	return l.msg.readBlob(seg, off, l.nesting)
}

// List returns element i of a list of lists.
func (l List) List(i int) (List, error) {
	var elem *Type
	if l.elem != nil {
		elem = l.elem.elem
	}
	seg, off, err := l.pointerSite(i)
	if err != nil {
		return List{}, err
	}
	if seg == nil {
		empty := List{msg: l.msg, nesting: l.nesting - 1, elem: elem}
		if elem != nil {
			empty.size = elem.elementSize()
		}
		return empty, nil
	}
	return l.msg.readList(seg, off, l.nesting, elem)
}

// IsNull reports whether the pointer of element i is null.
func (l List) IsNull(i int) (bool, error) {
	seg, off, err := l.pointerSite(i)
	if err != nil {
		return false, err
	}
	return seg == nil || seg.word(off).isNull(), nil
}

// Get returns element i as a Value. The list must have an element type.
func (l List) Get(i int) (Value, error) {
	if l.elem == nil {
		panic("Get requires a typed list")
	}
	if err := l.checkIndex(i); err != nil {
		return Value{}, err
	}
	v := Value{typ: l.elem}
	var err error
	switch k := l.elem.kind; {
	case k == KindVoid:
	case k.IsScalar():
		v.bits = l.rawAt(i, k.bitWidth())
	case k == KindText:
		v.bytes, err = l.TextBytes(i)
	case k == KindData:
		v.bytes, err = l.Data(i)
	case k == KindStruct:
		v.st, err = l.Struct(i)
	case k == KindList:
		v.list, err = l.List(i)
	default:
		panic(fmt.Errorf("unexpected list element %v", l.elem))
	}
	if err != nil {
		return Value{}, err
	}
	return v, nil
}
