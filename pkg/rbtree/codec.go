package rbtree

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrCorruptKeys is returned when an encoded key column cannot be decoded.
var ErrCorruptKeys = errors.New("corrupt key column")

// KeyCodec converts the key column of an allocator to bytes and back.
// DecodeKeys receives the number of keys that EncodeKeys was given.
type KeyCodec[K any] interface {
	EncodeKeys(keys []K) ([]byte, error)
	DecodeKeys(data []byte, count int) ([]K, error)
}

// Int64Keys encodes int64 keys as zig-zag varints.
type Int64Keys struct{}

// EncodeKeys implements KeyCodec.
func (Int64Keys) EncodeKeys(keys []int64) ([]byte, error) {
	buf := make([]byte, 0, len(keys)*2)

	for _, key := range keys {
		buf = binary.AppendVarint(buf, key)
	}

	return buf, nil
}

// DecodeKeys implements KeyCodec.
func (Int64Keys) DecodeKeys(data []byte, count int) ([]int64, error) {
	keys := make([]int64, count)

	for idx := range keys {
		key, size := binary.Varint(data)
		if size <= 0 {
			return nil, fmt.Errorf("%w: int64 key %d", ErrCorruptKeys, idx)
		}

		keys[idx] = key
		data = data[size:]
	}

	if len(data) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptKeys, len(data))
	}

	return keys, nil
}

// Uint32Keys encodes uint32 keys as fixed-width little-endian deltas from the
// previous slot. Ascending inserts leave the column sorted, which turns it into
// runs of small words. Deltas wrap, so any order round-trips.
type Uint32Keys struct{}

// EncodeKeys implements KeyCodec.
func (Uint32Keys) EncodeKeys(keys []uint32) ([]byte, error) {
	deltas := make([]uint32, len(keys))
	copy(deltas, keys)
	DeltaEncodeUInt32Slice(deltas)

	buf := make([]byte, 0, len(deltas)*uint32ByteSize)

	for _, delta := range deltas {
		buf = binary.LittleEndian.AppendUint32(buf, delta)
	}

	return buf, nil
}

// DecodeKeys implements KeyCodec.
func (Uint32Keys) DecodeKeys(data []byte, count int) ([]uint32, error) {
	if len(data) != count*uint32ByteSize {
		return nil, fmt.Errorf("%w: %d bytes for %d uint32 keys", ErrCorruptKeys, len(data), count)
	}

	keys := make([]uint32, count)

	for idx := range keys {
		keys[idx] = binary.LittleEndian.Uint32(data[idx*uint32ByteSize:])
	}

	DeltaDecodeUInt32Slice(keys)

	return keys, nil
}

// StringKeys encodes string keys as length-prefixed byte runs.
type StringKeys struct{}

// EncodeKeys implements KeyCodec.
func (StringKeys) EncodeKeys(keys []string) ([]byte, error) {
	size := 0
	for _, key := range keys {
		size += len(key) + 1
	}

	buf := make([]byte, 0, size)

	for _, key := range keys {
		buf = binary.AppendUvarint(buf, uint64(len(key)))
		buf = append(buf, key...)
	}

	return buf, nil
}

// DecodeKeys implements KeyCodec.
func (StringKeys) DecodeKeys(data []byte, count int) ([]string, error) {
	keys := make([]string, count)

	for idx := range keys {
		keyLen, size := binary.Uvarint(data)
		if size <= 0 || keyLen > uint64(len(data)-size) {
			return nil, fmt.Errorf("%w: string key %d", ErrCorruptKeys, idx)
		}

		data = data[size:]
		keys[idx] = string(data[:keyLen])
		data = data[keyLen:]
	}

	if len(data) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptKeys, len(data))
	}

	return keys, nil
}
