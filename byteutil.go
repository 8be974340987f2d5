package capn

import (
	"encoding/binary"
	"math"
)

func ensureCapacity(buf []byte, minCap int) []byte {
	c := cap(buf)
	if minCap > c {
		if c < 64 {
			c = 64
		}
		for minCap > c {
			c <<= 1
		}
		old := buf
		buf = make([]byte, len(old), c)
		copy(buf, old)
	}
	return buf
}

// grow extends buf by n zero bytes and returns the offset of the new range.
func grow(buf []byte, n int) (int, []byte) {
	off := len(buf)
	newLen := off + n
	buf = ensureCapacity(buf, newLen)
	buf = buf[:newLen]
	clear(buf[off:])
	return off, buf
}

func wordsFor(nbytes int) int {
	return (nbytes + 7) / 8
}

func roundUpToWord(nbytes int) int {
	return (nbytes + 7) &^ 7
}

type byteDecoder struct {
	Orig []byte
	Buf  []byte
}

func makeByteDecoder(buf []byte) byteDecoder {
	return byteDecoder{buf, buf}
}

func (d *byteDecoder) Off() int {
	return len(d.Orig) - len(d.Buf)
}

func (d *byteDecoder) Uint32() (uint32, error) {
	if len(d.Buf) < 4 {
		return 0, dataErrf(d.Orig, d.Off(), ErrTruncated, "not enough data: %d bytes remaining, 4 wanted", len(d.Buf))
	}
	v := binary.LittleEndian.Uint32(d.Buf)
	d.Buf = d.Buf[4:]
	return v, nil
}

func (d *byteDecoder) Raw(n int) ([]byte, error) {
	if n < 0 || len(d.Buf) < n {
		return nil, dataErrf(d.Orig, d.Off(), ErrTruncated, "not enough data: %d bytes remaining, %d wanted", len(d.Buf), n)
	}
	v := d.Buf[:n:n]
	d.Buf = d.Buf[n:]
	return v, nil
}

func (d *byteDecoder) Skip(n int) error {
	_, err := d.Raw(n)
	return err
}

// signExtend interprets the low width bits of v as a two's complement number.
func signExtend(v uint64, width int) int64 {
	switch width {
	case 8:
		return int64(int8(v))
	case 16:
		return int64(int16(v))
	case 32:
		return int64(int32(v))
	default:
		return int64(v)
	}
}

func widthMask(width int) uint64 {
	if width >= 64 {
		return math.MaxUint64
	}
	return 1<<uint(width) - 1
}
