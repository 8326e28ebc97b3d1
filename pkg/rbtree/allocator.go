package rbtree

import (
	"math"

	"github.com/Sumatoshi-tech/ordtree/pkg/safeconv"
)

// negativeLimitNode marks the position before the minimum element. It is
// never handed out by the allocator, so math.MaxUint32 nodes is the ceiling.
const negativeLimitNode = math.MaxUint32

// node is one arena slot. Index 0 is reserved and means "no node".
// left and right are the owning links; parent is only walked upwards.
type node[K any] struct {
	key                 K
	parent, left, right uint32
	color               Color
}

// Allocator is the arena holding the nodes of one or more trees.
//
// Nodes are addressed by uint32 indices, so releasing a whole forest of trees
// is a matter of dropping the allocator. Released slots are recycled LIFO.
type Allocator[K any] struct {
	storage  []node[K]
	released []uint32

	// KeyCodec encodes the key column during Hibernate and Boot.
	KeyCodec KeyCodec[K]

	// HibernationThreshold is the minimal storage size that Hibernate compresses.
	HibernationThreshold int

	hibernated hibernatedArena
}

// NewAllocator creates a new allocator for tree nodes.
func NewAllocator[K any]() *Allocator[K] {
	return &Allocator[K]{
		storage:  []node[K]{},
		released: []uint32{},
	}
}

// Size returns the number of allocated slots, including released and reserved ones.
func (allocator *Allocator[K]) Size() int {
	if allocator.hibernated.active {
		return allocator.hibernated.storageLen
	}

	return len(allocator.storage)
}

// Used returns the number of live nodes in the allocator.
func (allocator *Allocator[K]) Used() int {
	allocator.mustBeAwake()

	if len(allocator.storage) == 0 {
		return 0
	}

	return len(allocator.storage) - len(allocator.released) - 1
}

// Hibernated reports whether the allocator is in the compressed state.
func (allocator *Allocator[K]) Hibernated() bool {
	return allocator.hibernated.active
}

// Clone copies an existing allocator. Trees over the original can be moved
// onto the clone with Tree.CloneShallow.
func (allocator *Allocator[K]) Clone() *Allocator[K] {
	allocator.mustBeAwake()

	clone := &Allocator[K]{
		KeyCodec:             allocator.KeyCodec,
		HibernationThreshold: allocator.HibernationThreshold,
		storage:              make([]node[K], len(allocator.storage), cap(allocator.storage)),
		released:             make([]uint32, len(allocator.released)),
	}
	copy(clone.storage, allocator.storage)
	copy(clone.released, allocator.released)

	return clone
}

func (allocator *Allocator[K]) mustBeAwake() {
	if allocator.hibernated.active {
		panic("hibernated allocators cannot be used")
	}
}

// malloc returns a zeroed slot: red, no links. It panics when the index space
// is exhausted; callers have not linked anything at that point.
func (allocator *Allocator[K]) malloc() uint32 {
	allocator.mustBeAwake()

	if last := len(allocator.released) - 1; last >= 0 {
		nodeIdx := allocator.released[last]
		allocator.released = allocator.released[:last]

		return nodeIdx
	}

	nodeLen := len(allocator.storage)
	if nodeLen == 0 {
		// Zero is reserved.
		allocator.storage = append(allocator.storage, node[K]{})
		nodeLen = 1
	}

	if nodeLen >= negativeLimitNode {
		panic("rbtree: allocator reached the maximum number of uint32-indexed nodes")
	}

	allocator.storage = append(allocator.storage, node[K]{})

	return safeconv.MustIntToUint32(nodeLen)
}

func (allocator *Allocator[K]) free(nodeIdx uint32) {
	allocator.mustBeAwake()

	if nodeIdx == 0 {
		panic("node #0 is special and cannot be deallocated")
	}

	doAssert(int(nodeIdx) < len(allocator.storage))

	allocator.storage[nodeIdx] = node[K]{}
	allocator.released = append(allocator.released, nodeIdx)
}
