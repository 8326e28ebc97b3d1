package rbtree

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// uint32ByteSize is the number of bytes in a uint32.
const uint32ByteSize = 4

// Block flags prefixed to every compressed blob.
const (
	blockRaw byte = 0
	blockLZ4 byte = 1
)

// An LZ4 block never expands a byte sequence more than this.
const (
	maxBlockRatio = 255
	maxBlockSlack = 16
)

// ErrCorruptBlock is returned when a compressed blob cannot be decoded.
var ErrCorruptBlock = errors.New("corrupt compressed block")

// CompressBytes compresses data with LZ4. The raw length is stored in the
// header; data that LZ4 cannot shrink is stored uncompressed.
func CompressBytes(data []byte) []byte {
	header := binary.AppendUvarint(nil, uint64(len(data)))

	compressed := make([]byte, 1+len(header)+lz4.CompressBlockBound(len(data)))
	compressed[0] = blockLZ4
	copy(compressed[1:], header)
	offset := 1 + len(header)

	written, err := lz4.CompressBlock(data, compressed[offset:], nil)
	if err != nil || written == 0 {
		raw := make([]byte, 0, 1+len(header)+len(data))
		raw = append(raw, blockRaw)
		raw = append(raw, header...)

		return append(raw, data...)
	}

	return compressed[:offset+written]
}

// DecompressBytes restores a blob produced by CompressBytes.
func DecompressBytes(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrCorruptBlock)
	}

	flag := data[0]

	rawLen, size := binary.Uvarint(data[1:])
	if size <= 0 {
		return nil, fmt.Errorf("%w: bad length header", ErrCorruptBlock)
	}

	payload := data[1+size:]

	return decodeBlock(flag, payload, rawLen)
}

func decodeBlock(flag byte, payload []byte, rawLen uint64) ([]byte, error) {
	switch flag {
	case blockRaw:
		if uint64(len(payload)) != rawLen {
			return nil, fmt.Errorf("%w: raw block of %d bytes, expected %d", ErrCorruptBlock, len(payload), rawLen)
		}

		out := make([]byte, len(payload))
		copy(out, payload)

		return out, nil
	case blockLZ4:
		if rawLen > uint64(len(payload))*maxBlockRatio+maxBlockSlack {
			return nil, fmt.Errorf("%w: implausible length %d", ErrCorruptBlock, rawLen)
		}

		out := make([]byte, rawLen)

		read, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptBlock, err)
		}

		if uint64(read) != rawLen {
			return nil, fmt.Errorf("%w: got %d bytes, expected %d", ErrCorruptBlock, read, rawLen)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown flag %d", ErrCorruptBlock, flag)
	}
}

// CompressUInt32Slice compresses a slice of uint32-s with LZ4.
func CompressUInt32Slice(data []uint32) []byte {
	buf := make([]byte, 0, len(data)*uint32ByteSize)

	for _, value := range data {
		buf = binary.LittleEndian.AppendUint32(buf, value)
	}

	compressed := make([]byte, 1+lz4.CompressBlockBound(len(buf)))
	compressed[0] = blockLZ4

	written, err := lz4.CompressBlock(buf, compressed[1:], nil)
	if err != nil || written == 0 {
		return append([]byte{blockRaw}, buf...)
	}

	return compressed[:1+written]
}

// DecompressUInt32Slice decompresses a slice of uint32-s previously compressed with LZ4.
// `result` must be preallocated.
func DecompressUInt32Slice(data []byte, result []uint32) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty", ErrCorruptBlock)
	}

	decompressed, err := decodeBlock(data[0], data[1:], uint64(len(result)*uint32ByteSize))
	if err != nil {
		return err
	}

	for idx := range result {
		result[idx] = binary.LittleEndian.Uint32(decompressed[idx*uint32ByteSize:])
	}

	return nil
}

// DeltaEncodeUInt32Slice replaces each element with the difference from its
// predecessor, in place. The first element is left unchanged. This transforms
// sorted sequences into small, repetitive values that compress better with LZ4.
func DeltaEncodeUInt32Slice(data []uint32) {
	for i := len(data) - 1; i > 0; i-- {
		data[i] -= data[i-1]
	}
}

// DeltaDecodeUInt32Slice performs a prefix-sum to restore original values from
// deltas produced by DeltaEncodeUInt32Slice. The operation is performed in place.
func DeltaDecodeUInt32Slice(data []uint32) {
	for i := 1; i < len(data); i++ {
		data[i] += data[i-1]
	}
}
