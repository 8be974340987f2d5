package capn

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

const (
	DefaultNestingLimit = 64
	DefaultMaxSegments  = 512
)

type ReadOptions struct {
	// NestingLimit bounds the depth of pointer chains followed from the root.
	// Exceeding it is reported as ErrMalformedPointer, which is how cyclic
	// pointer graphs are rejected. Zero means DefaultNestingLimit.
	NestingLimit int

	// MaxSegments bounds the segment table of framed messages. Zero means
	// DefaultMaxSegments.
	MaxSegments int

	// StrictText makes text reads fail with ErrInvalidText on invalid UTF-8.
	StrictText bool
}

func (opt ReadOptions) nestingLimit() int {
	if opt.NestingLimit <= 0 {
		return DefaultNestingLimit
	}
	return opt.NestingLimit
}

func (opt ReadOptions) maxSegments() int {
	if opt.MaxSegments <= 0 {
		return DefaultMaxSegments
	}
	return opt.MaxSegments
}

type segment struct {
	id   uint32
	data []byte
}

func (seg *segment) word(off int) pointer {
	return pointer(binary.LittleEndian.Uint64(seg.data[off:]))
}

// Message is a read-only sequence of segments. It borrows the underlying
// bytes, so views obtained from it must not outlive them.
type Message struct {
	segs []segment
	opt  ReadOptions
}

// NewMessage wraps already split segments without copying them.
func NewMessage(opt ReadOptions, segs ...[]byte) *Message {
	m := &Message{opt: opt, segs: make([]segment, len(segs))}
	for i, data := range segs {
		m.segs[i] = segment{uint32(i), data}
	}
	return m
}

// ReadMessage parses a framed message. Segments alias data.
func ReadMessage(data []byte, opt ReadOptions) (*Message, error) {
	d := makeByteDecoder(data)
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	count := int64(n) + 1
	if count > int64(opt.maxSegments()) {
		return nil, dataErrf(data, 0, ErrOutOfBounds, "segment table declares %d segments, limit is %d", count, opt.maxSegments())
	}
	sizes := make([]int, count)
	for i := range sizes {
		words, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		sizes[i] = int(words)
	}
	if count%2 == 0 {
		if err := d.Skip(4); err != nil {
			return nil, err
		}
	}
	segs := make([][]byte, count)
	for i, words := range sizes {
		if int64(words)*8 > int64(len(d.Buf)) {
			return nil, dataErrf(data, d.Off(), ErrTruncated, "segment %d declares %d words, only %d bytes remain", i, words, len(d.Buf))
		}
		segs[i], err = d.Raw(words * 8)
		if err != nil {
			return nil, err
		}
	}
	return NewMessage(opt, segs...), nil
}

// Marshal frames the given segments into a single byte slice.
func Marshal(segs ...[]byte) []byte {
	if len(segs) == 0 {
		panic("message must have at least one segment")
	}
	hdr := roundUpToWord(4 * (len(segs) + 1))
	total := hdr
	for _, seg := range segs {
		if len(seg)%8 != 0 {
			panic(fmt.Errorf("segment length %d is not a multiple of the word size", len(seg)))
		}
		total += len(seg)
	}
	buf := make([]byte, total)
	binary.LittleEndian.PutUint32(buf, uint32(len(segs)-1))
	for i, seg := range segs {
		binary.LittleEndian.PutUint32(buf[4+4*i:], uint32(len(seg)/8))
	}
	off := hdr
	for _, seg := range segs {
		off += copy(buf[off:], seg)
	}
	return buf
}

func (m *Message) SegmentCount() int {
	return len(m.segs)
}

// Segment returns the raw bytes of segment i.
func (m *Message) Segment(i int) []byte {
	return m.segs[i].data
}

func (m *Message) Options() ReadOptions {
	return m.opt
}

// Marshal frames the message's segments.
func (m *Message) Marshal() []byte {
	segs := make([][]byte, len(m.segs))
	for i, seg := range m.segs {
		segs[i] = seg.data[:len(seg.data)&^7]
	}
	return Marshal(segs...)
}

// Root reads the root struct pointer stored in the first word of the first
// segment.
func (m *Message) Root(st *StructType) (Struct, error) {
	if len(m.segs) == 0 || len(m.segs[0].data) < 8 {
		var data []byte
		if len(m.segs) > 0 {
			data = m.segs[0].data
		}
		return Struct{}, dataErrf(data, 0, ErrTruncated, "message has no root pointer")
	}
	return m.readStruct(&m.segs[0], 0, m.opt.nestingLimit(), st)
}

// RootList reads a root pointer that refers to a list.
func (m *Message) RootList(elem *Type) (List, error) {
	if len(m.segs) == 0 || len(m.segs[0].data) < 8 {
		return List{}, dataErrf(nil, 0, ErrTruncated, "message has no root pointer")
	}
	return m.readList(&m.segs[0], 0, m.opt.nestingLimit(), elem)
}

// ReadStruct returns a view of a struct stored at byte offset off of buf with
// the given section sizes, with buf treated as a single-segment message.
func ReadStruct(buf []byte, off int, dataWords, ptrCount int, st *StructType) (Struct, error) {
	m := NewMessage(ReadOptions{}, buf)
	seg := &m.segs[0]
	if err := checkRegion(seg, off, off, (dataWords+ptrCount)*8); err != nil {
		return Struct{}, err
	}
	return Struct{
		msg:      m,
		seg:      seg,
		off:      off,
		dataSize: dataWords * 8,
		ptrCount: ptrCount,
		nesting:  m.opt.nestingLimit(),
		typ:      st,
	}, nil
}

func (m *Message) segment(id uint32, from *segment, at int) (*segment, error) {
	if int64(id) >= int64(len(m.segs)) {
		return nil, dataErrf(from.data, at, ErrOutOfBounds, "far pointer to segment %d of %d", id, len(m.segs))
	}
	return &m.segs[id], nil
}

// checkRegion verifies that [pos, pos+size) lies within seg. at is the
// position of the pointer being decoded, used for error reporting.
func checkRegion(seg *segment, at, pos, size int) error {
	if pos < 0 || pos > len(seg.data) {
		return dataErrf(seg.data, at, ErrOutOfBounds, "target at %d is outside of %d-byte segment %d", pos, len(seg.data), seg.id)
	}
	if size < 0 || size > len(seg.data)-pos {
		return dataErrf(seg.data, at, ErrTruncated, "%d-byte region at %d extends past %d-byte segment %d", size, pos, len(seg.data), seg.id)
	}
	return nil
}

// resolve reads the pointer word at (seg, off), follows far pointers, and
// returns the effective pointer together with the segment and byte position
// of its target.
func (m *Message) resolve(seg *segment, off int) (pointer, *segment, int, error) {
	p := seg.word(off)
	if p.kind() != kindFar {
		return p, seg, off + 8 + p.offset()*8, nil
	}
	padSeg, err := m.segment(p.farSegment(), seg, off)
	if err != nil {
		return 0, nil, 0, err
	}
	padOff := p.farOffset() * 8
	padSize := 8
	if p.farDouble() {
		padSize = 16
	}
	if padOff+padSize > len(padSeg.data) {
		return 0, nil, 0, dataErrf(seg.data, off, ErrOutOfBounds, "landing pad at %d is outside of %d-byte segment %d", padOff, len(padSeg.data), padSeg.id)
	}
	pad := padSeg.word(padOff)
	if !p.farDouble() {
		if pad.kind() == kindFar {
			return 0, nil, 0, dataErrf(padSeg.data, padOff, ErrMalformedPointer, "landing pad of a single far pointer is another far pointer")
		}
		return pad, padSeg, padOff + 8 + pad.offset()*8, nil
	}
	if pad.kind() != kindFar || pad.farDouble() {
		return 0, nil, 0, dataErrf(padSeg.data, padOff, ErrMalformedPointer, "double far landing pad must start with a single far pointer, got %v", pad)
	}
	tag := padSeg.word(padOff + 8)
	if k := tag.kind(); k != kindStruct && k != kindList {
		return 0, nil, 0, dataErrf(padSeg.data, padOff+8, ErrMalformedPointer, "double far tag must be a struct or list pointer, got %v", tag)
	}
	objSeg, err := m.segment(pad.farSegment(), padSeg, padOff)
	if err != nil {
		return 0, nil, 0, err
	}
	return tag, objSeg, pad.farOffset() * 8, nil
}

func nestingErr(seg *segment, off int) error {
	var data []byte
	if seg != nil {
		data = seg.data
	}
	return dataErrf(data, off, ErrMalformedPointer, "nesting limit exceeded")
}

// readStruct decodes the struct pointer at (seg, off). A null pointer yields
// an empty struct.
func (m *Message) readStruct(seg *segment, off int, nesting int, st *StructType) (Struct, error) {
	if nesting <= 0 {
		return Struct{}, nestingErr(seg, off)
	}
	empty := Struct{msg: m, nesting: nesting - 1, typ: st}
	if seg.word(off).isNull() {
		return empty, nil
	}
	p, tseg, pos, err := m.resolve(seg, off)
	if err != nil {
		return Struct{}, err
	}
	if p.isNull() {
		return empty, nil
	}
	if p.kind() != kindStruct {
		return Struct{}, dataErrf(seg.data, off, ErrMalformedPointer, "expected struct pointer, got %v", p)
	}
	d, n := p.structDataWords(), p.structPtrCount()
	if err := checkRegion(tseg, off, pos, (d+n)*8); err != nil {
		return Struct{}, err
	}
	return Struct{
		msg:      m,
		seg:      tseg,
		off:      pos,
		dataSize: d * 8,
		ptrCount: n,
		nesting:  nesting - 1,
		typ:      st,
	}, nil
}

// readList decodes the list pointer at (seg, off). A null pointer yields an
// empty list. When elem is non-nil, the wire element size must be compatible
// with it.
func (m *Message) readList(seg *segment, off int, nesting int, elem *Type) (List, error) {
	if nesting <= 0 {
		return List{}, nestingErr(seg, off)
	}
	l := List{msg: m, nesting: nesting - 1, elem: elem}
	if elem != nil {
		l.size = elem.elementSize()
	}
	if seg.word(off).isNull() {
		return l, nil
	}
	p, tseg, pos, err := m.resolve(seg, off)
	if err != nil {
		return List{}, err
	}
	if p.isNull() {
		return l, nil
	}
	if p.kind() != kindList {
		return List{}, dataErrf(seg.data, off, ErrMalformedPointer, "expected list pointer, got %v", p)
	}
	l.seg = tseg
	l.size = p.listElementSize()
	if l.size == SizeComposite {
		words := p.listCount()
		if err := checkRegion(tseg, off, pos, 8); err != nil {
			return List{}, err
		}
		tag := tseg.word(pos)
		if tag.kind() != kindStruct {
			return List{}, dataErrf(tseg.data, pos, ErrMalformedPointer, "composite list tag must be a struct pointer, got %v", tag)
		}
		count := tag.offset()
		if count < 0 {
			return List{}, dataErrf(tseg.data, pos, ErrMalformedPointer, "composite list tag has negative element count %d", count)
		}
		d, n := tag.structDataWords(), tag.structPtrCount()
		if int64(count)*int64(d+n) > int64(words) {
			return List{}, dataErrf(tseg.data, pos, ErrMalformedPointer, "composite list of %d elements of %d words overruns its %d words", count, d+n, words)
		}
		if err := checkRegion(tseg, off, pos+8, words*8); err != nil {
			return List{}, err
		}
		l.off = pos + 8
		l.count = count
		l.dataSize = d * 8
		l.ptrCount = n
		l.step = (d + n) * 64
	} else {
		bits := l.size.bits()
		count := p.listCount()
		size := int((int64(count)*int64(bits) + 63) / 64 * 8)
		if err := checkRegion(tseg, off, pos, size); err != nil {
			return List{}, err
		}
		l.off = pos
		l.count = count
		l.step = bits
		switch l.size {
		case SizeByte, SizeTwoBytes, SizeFourBytes, SizeEightBytes:
			l.dataSize = bits / 8
		case SizePointer:
			l.ptrCount = 1
		}
	}
	if elem != nil {
		if err := l.checkElementType(seg.data, off); err != nil {
			return List{}, err
		}
	}
	return l, nil
}

// readBlob decodes a byte list pointer used by text and data.
func (m *Message) readBlob(seg *segment, off int, nesting int) ([]byte, error) {
	if seg.word(off).isNull() {
		return nil, nil
	}
	l, err := m.readList(seg, off, nesting, nil)
	if err != nil {
		return nil, err
	}
	if l.seg == nil {
		return nil, nil
	}
	if l.count == 0 {
		return []byte{}, nil
	}
	if l.size != SizeByte {
		return nil, dataErrf(seg.data, off, ErrMalformedPointer, "expected byte list, got %v elements", l.size)
	}
	return l.seg.data[l.off : l.off+l.count : l.off+l.count], nil
}

func (m *Message) readText(seg *segment, off int, nesting int) ([]byte, error) {
	b, err := m.readBlob(seg, off, nesting)
	if err != nil || b == nil {
		return b, err
	}
	n := len(b)
	if n == 0 || b[n-1] != 0 {
		return nil, dataErrf(seg.data, off, ErrInvalidText, "text is not NUL-terminated")
	}
	b = b[:n-1]
	if m.opt.StrictText && !utf8.Valid(b) {
		return nil, dataErrf(seg.data, off, ErrInvalidText, "text is not valid UTF-8")
	}
	return b, nil
}
