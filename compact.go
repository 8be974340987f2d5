package capn

// Compaction copies values read from any message into a builder. The copy
// walks the pointer graph in preorder: an object's own region is allocated
// first, then the targets of its pointers in order. That is the order in
// which constructing the same value in place allocates, so a copy is byte
// for byte identical to a value built from scratch.

// copyStruct deep-copies src and points the pointer at position at to the
// copy. A struct read from a null pointer is copied as null.
func (b *Builder) copyStruct(at int, src Struct) error {
	if src.seg == nil {
		b.writePointer(at, 0)
		return nil
	}
	dataWords := wordsFor(src.dataSize)
	pos := b.allocStruct(at, dataWords, src.ptrCount)
	return b.copyStructInto(pos, dataWords*8, src.ptrCount, src)
}

// copyStructInto copies src into an already allocated struct region at pos.
// Sections of different sizes are truncated or zero-extended.
func (b *Builder) copyStructInto(pos int, dataSize, ptrCount int, src Struct) error {
	if n := min(dataSize, src.dataSize); n > 0 {
		copy(b.buf[pos:pos+n], src.seg.data[src.off:src.off+n])
	}
	for i := range min(ptrCount, src.ptrCount) {
		seg, off, _ := src.pointerSite(i)
		if err := b.copyPointer(pos+dataSize+i*8, src.msg, seg, off, src.nesting); err != nil {
			return err
		}
	}
	return nil
}

// copyPointer deep-copies whatever the pointer at (seg, off) of m refers to.
func (b *Builder) copyPointer(at int, m *Message, seg *segment, off int, nesting int) error {
	if seg.word(off).isNull() {
		return nil
	}
	p, _, _, err := m.resolve(seg, off)
	if err != nil {
		return err
	}
	switch {
	case p.isNull():
		return nil
	case p.kind() == kindStruct:
		s, err := m.readStruct(seg, off, nesting, nil)
		if err != nil {
			return err
		}
		return b.copyStruct(at, s)
	case p.kind() == kindList:
		l, err := m.readList(seg, off, nesting, nil)
		if err != nil {
			return err
		}
		return b.copyList(at, l)
	default:
		return dataErrf(seg.data, off, ErrMalformedPointer, "cannot copy %v pointer", p)
	}
}

// copyList deep-copies src, keeping its wire element size, and points the
// pointer at position at to the copy.
func (b *Builder) copyList(at int, src List) error {
	if src.seg == nil {
		b.writePointer(at, 0)
		return nil
	}
	switch src.size {
	case SizeComposite:
		dataWords := src.dataSize / 8
		stride := (dataWords + src.ptrCount) * 8
		words := src.count * (dataWords + src.ptrCount)
		pos := b.Allocate(8 + words*8)
		b.writePointer(pos, compositeTag(src.count, dataWords, src.ptrCount))
		b.writePointer(at, listPointer(wordOffset(at, pos), SizeComposite, words))
		for i := range src.count {
			el := Struct{
				msg:      src.msg,
				seg:      src.seg,
				off:      src.elemOff(i),
				dataSize: src.dataSize,
				ptrCount: src.ptrCount,
				nesting:  src.nesting,
			}
			if err := b.copyStructInto(pos+8+i*stride, src.dataSize, src.ptrCount, el); err != nil {
				return err
			}
		}
	case SizePointer:
		pos := b.Allocate(src.count * 8)
		b.writePointer(at, listPointer(wordOffset(at, pos), SizePointer, src.count))
		for i := range src.count {
			if err := b.copyPointer(pos+i*8, src.msg, src.seg, src.elemOff(i), src.nesting); err != nil {
				return err
			}
		}
	default:
		n := (src.count*src.step + 7) / 8
		pos := b.Allocate(n)
		copy(b.buf[pos:pos+n], src.seg.data[src.off:src.off+n])
		if src.size == SizeBit && src.count%8 != 0 {
			b.buf[pos+n-1] &= byte(1)<<uint(src.count%8) - 1
		}
		b.writePointer(at, listPointer(wordOffset(at, pos), src.size, src.count))
	}
	return nil
}

// Compact returns a copy of s in a fresh single-segment message that
// contains s and everything reachable from it, and nothing else.
func Compact(s Struct) (Struct, error) {
	b := NewBuilder(8 + s.dataSize + s.ptrCount*8)
	at := b.Allocate(8)
	if err := b.copyStruct(at, s); err != nil {
		return Struct{}, err
	}
	return b.Message().Root(s.typ)
}
