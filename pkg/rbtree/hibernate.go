package rbtree

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Sumatoshi-tech/ordtree/pkg/safeconv"
)

// Hibernation errors.
var (
	ErrAlreadyHibernated = errors.New("allocator is already hibernated")
	ErrNotHibernated     = errors.New("allocator is not hibernated")
	ErrNoKeyCodec        = errors.New("allocator has no key codec")
	ErrAllocatorInUse    = errors.New("allocator holds live nodes")
	ErrIncompleteRead    = errors.New("incomplete read")
)

// Column order inside a hibernated arena and its file.
const (
	columnKeys = iota
	columnLeft
	columnParent
	columnRight
	columnColor
	columnReleased
	columnCount
)

// growCapacityNumerator/Denominator leave headroom after Boot so the next
// inserts do not immediately reallocate the storage.
const (
	growCapacityNumerator   = 3
	growCapacityDenominator = 2
)

type hibernatedArena struct {
	active      bool
	storageLen  int
	releasedLen int
	columns     [columnCount][]byte
}

// Hibernate compresses the allocated memory. Trees over the allocator cannot
// be used until Boot is called. Storage smaller than HibernationThreshold is
// left as is.
func (allocator *Allocator[K]) Hibernate() error {
	if allocator.hibernated.active {
		return ErrAlreadyHibernated
	}

	if len(allocator.storage) < allocator.HibernationThreshold {
		return nil
	}

	if allocator.KeyCodec == nil {
		return ErrNoKeyCodec
	}

	keys := make([]K, len(allocator.storage))
	buffers := [columnCount][]uint32{}

	for idx := columnLeft; idx < columnReleased; idx++ {
		buffers[idx] = make([]uint32, len(allocator.storage))
	}

	// We deinterleave to achieve a better compression ratio.
	for idx, nd := range allocator.storage {
		keys[idx] = nd.key
		buffers[columnLeft][idx] = nd.left
		buffers[columnParent][idx] = nd.parent
		buffers[columnRight][idx] = nd.right

		if nd.color == Black {
			buffers[columnColor][idx] = 1
		}
	}

	buffers[columnReleased] = allocator.released

	encodedKeys, err := allocator.KeyCodec.EncodeKeys(keys)
	if err != nil {
		return fmt.Errorf("encode keys: %w", err)
	}

	arena := hibernatedArena{
		active:      true,
		storageLen:  len(allocator.storage),
		releasedLen: len(allocator.released),
	}

	wg := &sync.WaitGroup{}
	wg.Add(columnCount)

	go func() {
		defer wg.Done()

		arena.columns[columnKeys] = CompressBytes(encodedKeys)
	}()

	for idx := columnLeft; idx < columnCount; idx++ {
		go func(colIdx int) {
			defer wg.Done()

			arena.columns[colIdx] = CompressUInt32Slice(buffers[colIdx])
		}(idx)
	}

	wg.Wait()

	allocator.hibernated = arena
	allocator.storage = nil
	allocator.released = nil

	return nil
}

// Boot performs the opposite of Hibernate() - decompresses and restores the allocated memory.
// Booting an awake allocator does nothing.
func (allocator *Allocator[K]) Boot() error {
	if !allocator.hibernated.active {
		return nil
	}

	if allocator.KeyCodec == nil {
		return ErrNoKeyCodec
	}

	arena := &allocator.hibernated
	buffers := [columnCount][]uint32{}
	errs := [columnCount]error{}

	var keys []K

	wg := &sync.WaitGroup{}
	wg.Add(columnCount)

	go func() {
		defer wg.Done()

		raw, err := DecompressBytes(arena.columns[columnKeys])
		if err != nil {
			errs[columnKeys] = fmt.Errorf("key column: %w", err)

			return
		}

		keys, errs[columnKeys] = allocator.KeyCodec.DecodeKeys(raw, arena.storageLen)
	}()

	for idx := columnLeft; idx < columnCount; idx++ {
		go func(colIdx int) {
			defer wg.Done()

			size := arena.storageLen
			if colIdx == columnReleased {
				size = arena.releasedLen
			}

			buffers[colIdx] = make([]uint32, size)

			err := DecompressUInt32Slice(arena.columns[colIdx], buffers[colIdx])
			if err != nil {
				errs[colIdx] = fmt.Errorf("column %d: %w", colIdx, err)
			}
		}(idx)
	}

	wg.Wait()

	err := errors.Join(errs[:]...)
	if err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	for idx := columnLeft; idx < columnCount; idx++ {
		for _, link := range buffers[idx] {
			if idx != columnColor && int(link) >= arena.storageLen {
				return fmt.Errorf("boot: %w: link %d beyond %d slots", ErrCorruptBlock, link, arena.storageLen)
			}
		}
	}

	err = checkReleased(buffers, arena.storageLen)
	if err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	capSize := (arena.storageLen * growCapacityNumerator) / growCapacityDenominator
	storage := make([]node[K], arena.storageLen, capSize)

	for idx := range storage {
		nd := &storage[idx]
		nd.key = keys[idx]
		nd.left = buffers[columnLeft][idx]
		nd.parent = buffers[columnParent][idx]
		nd.right = buffers[columnRight][idx]
		nd.color = buffers[columnColor][idx] > 0
	}

	allocator.storage = storage
	allocator.released = buffers[columnReleased]
	allocator.hibernated = hibernatedArena{}

	return nil
}

// checkReleased makes sure every released slot can be handed out by malloc:
// it is not the reserved slot, listed once, and linked to nothing.
func checkReleased(buffers [columnCount][]uint32, storageLen int) error {
	released := make([]bool, storageLen)

	for _, slot := range buffers[columnReleased] {
		switch {
		case slot == 0:
			return fmt.Errorf("%w: reserved slot 0 is released", ErrCorruptBlock)
		case released[slot]:
			return fmt.Errorf("%w: slot %d is released twice", ErrCorruptBlock, slot)
		case buffers[columnLeft][slot] != 0 || buffers[columnRight][slot] != 0 || buffers[columnParent][slot] != 0:
			return fmt.Errorf("%w: released slot %d is linked", ErrCorruptBlock, slot)
		}

		released[slot] = true
	}

	for idx := range storageLen {
		for _, child := range [2]uint32{buffers[columnLeft][idx], buffers[columnRight][idx]} {
			if child != 0 && released[child] {
				return fmt.Errorf("%w: node %d points to released slot %d", ErrCorruptBlock, idx, child)
			}
		}
	}

	return nil
}

// Serialize writes the hibernated allocator on disk.
func (allocator *Allocator[K]) Serialize(path string) error {
	if !allocator.hibernated.active {
		return ErrNotHibernated
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	writer := bufio.NewWriter(file)

	err = allocator.hibernated.writeTo(writer)
	if err == nil {
		err = writer.Flush()
	}

	closeErr := file.Close()
	if err != nil {
		return err
	}

	if closeErr != nil {
		return fmt.Errorf("close file: %w", closeErr)
	}

	return nil
}

// Deserialize reads a hibernated allocator from disk. The allocator stays
// hibernated; call Boot to use it. It must not hold any node.
func (allocator *Allocator[K]) Deserialize(path string) error {
	if allocator.hibernated.active || len(allocator.storage) > 1 {
		return ErrAllocatorInUse
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}

	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}

	arena, err := readArena(bufio.NewReader(file), info.Size())
	if err != nil {
		return err
	}

	allocator.hibernated = arena
	allocator.storage = nil
	allocator.released = nil

	return nil
}

func (arena *hibernatedArena) writeTo(writer io.Writer) error {
	header := binary.AppendUvarint(nil, safeconv.IntToUint64(arena.storageLen))
	header = binary.AppendUvarint(header, safeconv.IntToUint64(arena.releasedLen))

	_, err := writer.Write(header)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for idx, column := range arena.columns {
		_, err = writer.Write(binary.AppendUvarint(nil, safeconv.IntToUint64(len(column))))
		if err != nil {
			return fmt.Errorf("write data len %d: %w", idx, err)
		}

		_, err = writer.Write(column)
		if err != nil {
			return fmt.Errorf("write data %d: %w", idx, err)
		}
	}

	return nil
}

// readArena parses what writeTo produced. Lengths larger than fileSize are
// rejected before anything is allocated.
func readArena(reader *bufio.Reader, fileSize int64) (hibernatedArena, error) {
	arena := hibernatedArena{active: true}

	readLen := func(what string) (int, error) {
		value, err := binary.ReadUvarint(reader)
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", what, err)
		}

		length, fits := safeconv.Uint64ToInt(value)
		if !fits || value > uint64(fileSize)*maxBlockRatio+maxBlockSlack {
			return 0, fmt.Errorf("read %s: %w: value %d", what, ErrCorruptBlock, value)
		}

		return length, nil
	}

	var err error

	arena.storageLen, err = readLen("storage len")
	if err != nil {
		return arena, err
	}

	arena.releasedLen, err = readLen("released len")
	if err != nil {
		return arena, err
	}

	for idx := range arena.columns {
		dataLen, lenErr := readLen(fmt.Sprintf("data len %d", idx))
		if lenErr != nil {
			return arena, lenErr
		}

		if int64(dataLen) > fileSize {
			return arena, fmt.Errorf("%w %d: %d bytes declared, file has %d", ErrIncompleteRead, idx, dataLen, fileSize)
		}

		arena.columns[idx] = make([]byte, dataLen)

		bytesRead, readErr := io.ReadFull(reader, arena.columns[idx])
		if readErr != nil {
			return arena, fmt.Errorf("%w %d: %d instead of %d: %w", ErrIncompleteRead, idx, bytesRead, dataLen, readErr)
		}
	}

	return arena, nil
}
