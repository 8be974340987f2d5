package capn

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

type DumpFlags uint64

const (
	DumpSegmentHeaders = DumpFlags(1 << iota)
	DumpPointers
	DumpZeroWords

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var dumpSep = strings.Repeat("-", 60)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders every word of every segment in hex, one per line. With
// DumpPointers, words that decode as valid pointers are annotated with their
// target; since data words may look like pointers, annotations are only
// hints.
func (m *Message) Dump(f DumpFlags) string {
	var buf strings.Builder
	for i := range m.segs {
		seg := &m.segs[i]
		n := len(seg.data) / 8
		if f.Contains(DumpSegmentHeaders) {
			fmt.Fprintln(&buf, dumpSep)
			fmt.Fprintf(&buf, "segment %d (%d words)\n", seg.id, n)
		}
		for w := 0; w < n; w++ {
			p := seg.word(w * 8)
			if p.isNull() && !f.Contains(DumpZeroWords) {
				continue
			}
			fmt.Fprintf(&buf, "%4d: %016x", w, uint64(p))
			if f.Contains(DumpPointers) && !p.isNull() {
				if note := pointerNote(seg, w, p); note != "" {
					buf.WriteString("  ")
					buf.WriteString(note)
				}
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

func pointerNote(seg *segment, w int, p pointer) string {
	n := len(seg.data) / 8
	switch p.kind() {
	case kindStruct, kindList:
		target := w + 1 + p.offset()
		if target < 0 || target > n {
			return ""
		}
		return p.String() + " -> " + strconv.Itoa(target)
	case kindFar:
		return p.String()
	default:
		return ""
	}
}

// HexString formats words as space-separated hex, splitting words that do
// not fit 32 bits into high:low halves.
func HexString(data []byte) string {
	var buf strings.Builder
	for i := 0; i+8 <= len(data); i += 8 {
		if i > 0 {
			buf.WriteByte(' ')
		}
		w := binary.LittleEndian.Uint64(data[i:])
		if w <= 0xFFFF_FFFF {
			writeHex(&buf, w)
		} else {
			writeHex(&buf, w>>32)
			buf.WriteByte(':')
			writeHex(&buf, uint64(uint32(w)))
		}
	}
	return buf.String()
}

func writeHex(buf *strings.Builder, v uint64) {
	s := strconv.FormatUint(v, 16)
	if len(s)%2 == 1 {
		buf.WriteByte('0')
	}
	buf.WriteString(s)
}
