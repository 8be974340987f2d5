package capstore

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// A record is the stored form of a message:
//
//	uvarint flags
//	uint64  xxhash64 of the framed message, little-endian
//	framed message

type recordFlags uint64

const (
	rfVerBit0 = recordFlags(1 << iota)
	rfVerBit1
	rfVerBit2
	rfVerBit3

	rfVerMask       = rfVerBit0 | rfVerBit1 | rfVerBit2 | rfVerBit3
	rfVer1          = rfVerBit0
	rfSupportedMask = rfVer1
	rfDefault       = rfVer1

	checksumSize        = 8
	maxRecordHeaderSize = binary.MaxVarintLen64 + checksumSize
)

func (rf recordFlags) ver() recordFlags {
	return rf & rfVerMask
}

func appendRecord(buf []byte, msg []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(rfDefault))
	buf = binary.LittleEndian.AppendUint64(buf, xxhash.Sum64(msg))
	return append(buf, msg...)
}

// decodeRecord returns the framed message stored in buf, aliasing it.
func decodeRecord(buf []byte) ([]byte, error) {
	flags, n := binary.Uvarint(buf)
	if n <= 0 {
		return nil, fmt.Errorf("%w: invalid record header", ErrCorrupted)
	}
	rf := recordFlags(flags)
	if rf&^rfSupportedMask != 0 || rf.ver() != rfVer1 {
		return nil, fmt.Errorf("%w: unsupported record flags %x", ErrCorrupted, flags)
	}
	if len(buf)-n < checksumSize {
		return nil, fmt.Errorf("%w: record too short", ErrCorrupted)
	}
	sum := binary.LittleEndian.Uint64(buf[n:])
	msg := buf[n+checksumSize:]
	if actual := xxhash.Sum64(msg); actual != sum {
		return nil, fmt.Errorf("%w: checksum %016x, wanted %016x", ErrCorrupted, actual, sum)
	}
	return msg, nil
}
