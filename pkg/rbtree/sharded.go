package rbtree

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
)

// ErrSerializeShards is returned when shard serialization fails.
var ErrSerializeShards = errors.New("failed to serialize shards")

// ErrDeserializeShards is returned when shard deserialization fails.
var ErrDeserializeShards = errors.New("failed to deserialize shards")

// minHibernationThreshold is the minimal reasonable default if division results in 0.
const minHibernationThreshold = 1000

// ShardedAllocator manages multiple Allocators to allow parallel access.
type ShardedAllocator[K any] struct {
	shards []*Allocator[K]
}

// NewShardedAllocator creates a new ShardedAllocator with n shards sharing one key codec.
func NewShardedAllocator[K any](shardCount, hibernationThreshold int, codec KeyCodec[K]) *ShardedAllocator[K] {
	if shardCount <= 0 {
		shardCount = 1
	}

	shards := make([]*Allocator[K], shardCount)

	for idx := range shardCount {
		shards[idx] = NewAllocator[K]()
		shards[idx].KeyCodec = codec

		if hibernationThreshold > 0 {
			shards[idx].HibernationThreshold = hibernationThreshold / shardCount
			if shards[idx].HibernationThreshold == 0 {
				shards[idx].HibernationThreshold = minHibernationThreshold
			}
		}
	}

	return &ShardedAllocator[K]{shards: shards}
}

// ShardIndex returns the index of the shard that owns name.
func (sa *ShardedAllocator[K]) ShardIndex(name string) int {
	hasher := fnv.New32a()
	hasher.Write([]byte(name))

	return int(hasher.Sum32() % uint32(len(sa.shards))) //nolint:gosec // shard count fits in uint32.
}

// GetShard returns the allocator shard for the given name.
func (sa *ShardedAllocator[K]) GetShard(name string) *Allocator[K] {
	return sa.shards[sa.ShardIndex(name)]
}

// Shards returns all underlying allocators.
func (sa *ShardedAllocator[K]) Shards() []*Allocator[K] {
	return sa.shards
}

// ShardPath returns the file a shard is serialized to.
func ShardPath(basePath string, shardIdx int) string {
	return fmt.Sprintf("%s.shard.%d", basePath, shardIdx)
}

// Hibernate hibernates all shards in parallel, regardless of their thresholds.
func (sa *ShardedAllocator[K]) Hibernate() error {
	return sa.parallel(func(_ int, alloc *Allocator[K]) error {
		if alloc.Hibernated() {
			return nil
		}

		// Force hibernation even if below threshold by temporarily setting threshold to 0.
		originalThreshold := alloc.HibernationThreshold
		alloc.HibernationThreshold = 0
		err := alloc.Hibernate()
		alloc.HibernationThreshold = originalThreshold

		return err
	})
}

// Boot boots all shards in parallel.
func (sa *ShardedAllocator[K]) Boot() error {
	return sa.parallel(func(_ int, alloc *Allocator[K]) error {
		return alloc.Boot()
	})
}

// Serialize writes every shard to disk. The shards must be hibernated.
// It uses basePath as a prefix and appends ".shard.N".
func (sa *ShardedAllocator[K]) Serialize(basePath string) error {
	err := sa.parallel(func(shardIdx int, alloc *Allocator[K]) error {
		return alloc.Serialize(ShardPath(basePath, shardIdx))
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSerializeShards, err)
	}

	return nil
}

// Deserialize reads all shards from disk. The shards stay hibernated.
func (sa *ShardedAllocator[K]) Deserialize(basePath string) error {
	err := sa.parallel(func(shardIdx int, alloc *Allocator[K]) error {
		return alloc.Deserialize(ShardPath(basePath, shardIdx))
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeserializeShards, err)
	}

	return nil
}

func (sa *ShardedAllocator[K]) parallel(fn func(shardIdx int, alloc *Allocator[K]) error) error {
	errs := make([]error, len(sa.shards))

	wg := sync.WaitGroup{}
	wg.Add(len(sa.shards))

	for idx, shard := range sa.shards {
		go func(shardIdx int, alloc *Allocator[K]) {
			defer wg.Done()

			err := fn(shardIdx, alloc)
			if err != nil {
				errs[shardIdx] = fmt.Errorf("shard %d: %w", shardIdx, err)
			}
		}(idx, shard)
	}

	wg.Wait()

	return errors.Join(errs...)
}
