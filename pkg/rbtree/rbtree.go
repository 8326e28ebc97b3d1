// Package rbtree provides an arena-backed red-black tree over arbitrary keys,
// with LZ4 hibernation of the arena, on-disk serialization and sharded allocators.
//
// Keys are ordered by a caller-supplied comparison function that must be a
// strict weak order; an inconsistent comparator leaves the tree invariants
// undefined and is not detected. Equal keys are kept: Insert routes ties to
// the right, so equal keys iterate in insertion order.
//
// A Tree is not safe for concurrent use.
package rbtree

import (
	"cmp"
)

// Color is the color tag of a tree node.
type Color bool

// Node colors. The zero value is Red so that a fresh arena slot is a valid new leaf.
const (
	Red   Color = false
	Black Color = true
)

// String returns "red" or "black".
func (c Color) String() string {
	if c == Black {
		return "black"
	}

	return "red"
}

// Stats counts the structural work done by a tree since its creation.
type Stats struct {
	Inserts    int64 `json:"inserts"     yaml:"inserts"`
	Deletes    int64 `json:"deletes"     yaml:"deletes"`
	Rotations  int64 `json:"rotations"   yaml:"rotations"`
	// Recolors counts fixup cases that repaint nodes, in both insert and delete.
	Recolors   int64 `json:"recolors"    yaml:"recolors"`
	FixupSteps int64 `json:"fixup_steps" yaml:"fixup_steps"`
}

// Sub returns the element-wise difference s - other.
func (s Stats) Sub(other Stats) Stats {
	return Stats{
		Inserts:    s.Inserts - other.Inserts,
		Deletes:    s.Deletes - other.Deletes,
		Rotations:  s.Rotations - other.Rotations,
		Recolors:   s.Recolors - other.Recolors,
		FixupSteps: s.FixupSteps - other.FixupSteps,
	}
}

// Tree is a red-black binary search tree with an API similar to C++ STL's multiset.
//
// Nodes live in an Allocator, which may be shared between several trees.
// The minimum and maximum nodes are cached so that Min and Max are O(1).
type Tree[K any] struct {
	// Nodes allocator.
	allocator *Allocator[K]

	compare func(a, b K) int

	// Root of the tree.
	root uint32

	// The minimum and maximum nodes under the tree.
	minNode, maxNode uint32

	// Number of nodes under root, including the root.
	count int

	stats Stats
}

// New creates an empty tree of naturally ordered keys with its own allocator.
func New[K cmp.Ordered]() *Tree[K] {
	return NewWithAllocator(NewAllocator[K](), cmp.Compare[K])
}

// NewWithAllocator creates an empty tree ordered by compare whose nodes are
// placed in allocator. compare returns a negative number when a < b, zero when
// a == b and a positive number when a > b.
func NewWithAllocator[K any](allocator *Allocator[K], compare func(a, b K) int) *Tree[K] {
	return &Tree[K]{allocator: allocator, compare: compare}
}

func (tree *Tree[K]) storage() []node[K] {
	tree.allocator.mustBeAwake()

	return tree.allocator.storage
}

// Allocator returns the bound nodes allocator.
func (tree *Tree[K]) Allocator() *Allocator[K] {
	return tree.allocator
}

// Len returns the number of elements in the tree.
func (tree *Tree[K]) Len() int {
	return tree.count
}

// Stats returns the counters accumulated by this tree.
func (tree *Tree[K]) Stats() Stats {
	return tree.stats
}

// Root returns a read-only handle on the root node. The handle is invalid
// when the tree is empty.
func (tree *Tree[K]) Root() Handle[K] {
	return Handle[K]{tree: tree, node: tree.root}
}

// CloneShallow performs a shallow copy of the tree - the nodes are assumed to already exist in the allocator.
func (tree *Tree[K]) CloneShallow(allocator *Allocator[K]) *Tree[K] {
	clone := *tree
	clone.allocator = allocator

	return &clone
}

// CloneDeep performs a deep copy of the tree - the nodes are created from scratch.
func (tree *Tree[K]) CloneDeep(allocator *Allocator[K]) *Tree[K] {
	clone := &Tree[K]{
		allocator: allocator,
		compare:   tree.compare,
		count:     tree.count,
	}

	nodeMap := map[uint32]uint32{0: 0}

	for iter := tree.Min(); !iter.Limit(); iter = iter.Next() {
		newNode := allocator.malloc()
		originNode := tree.storage()[iter.node]
		cloneNode := &allocator.storage[newNode]
		cloneNode.key = originNode.key
		cloneNode.color = originNode.color
		nodeMap[iter.node] = newNode
	}

	cloneStorage := allocator.storage
	originStorage := tree.storage()

	for iter := tree.Min(); !iter.Limit(); iter = iter.Next() {
		cloneNode := &cloneStorage[nodeMap[iter.node]]
		originNode := originStorage[iter.node]
		cloneNode.left = nodeMap[originNode.left]
		cloneNode.right = nodeMap[originNode.right]
		cloneNode.parent = nodeMap[originNode.parent]
	}

	clone.root = nodeMap[tree.root]
	clone.minNode = nodeMap[tree.minNode]
	clone.maxNode = nodeMap[tree.maxNode]

	return clone
}

// Erase removes all the nodes from the tree and returns their slots to the allocator.
func (tree *Tree[K]) Erase() {
	nodes := make([]uint32, 0, tree.count)

	for iter := tree.Min(); !iter.Limit(); iter = iter.Next() {
		nodes = append(nodes, iter.node)
	}

	for _, nd := range nodes {
		tree.allocator.free(nd)
	}

	tree.root = 0
	tree.minNode = 0
	tree.maxNode = 0
	tree.count = 0
}

// Insert adds key to the tree and rebalances it. Equal keys are retained and
// placed after the existing ones. Returns an iterator pointing at the new element.
//
// A panicking comparator aborts the descent before any link is written.
func (tree *Tree[K]) Insert(key K) Iterator[K] {
	parent, goLeft := tree.locate(key)
	nodeIdx := tree.link(key, parent, goLeft)
	tree.insertFixup(nodeIdx)

	return Iterator[K]{tree, nodeIdx}
}

// InsertUnique adds key unless an equal key is already present. If it is, the
// tree is unchanged and the result is false plus an iterator on the existing element.
func (tree *Tree[K]) InsertUnique(key K) (bool, Iterator[K]) {
	alloc := tree.storage()

	var (
		parent uint32
		goLeft bool
	)

	for cursor := tree.root; cursor != 0; {
		parent = cursor
		comp := tree.compare(key, alloc[cursor].key)

		switch {
		case comp == 0:
			return false, Iterator[K]{tree, cursor}
		case comp < 0:
			goLeft = true
			cursor = alloc[cursor].left
		default:
			goLeft = false
			cursor = alloc[cursor].right
		}
	}

	nodeIdx := tree.link(key, parent, goLeft)
	tree.insertFixup(nodeIdx)

	return true, Iterator[K]{tree, nodeIdx}
}

// Find returns an iterator on an element equal to key. The second result is
// false, and the iterator is Limit(), when there is none.
func (tree *Tree[K]) Find(key K) (Iterator[K], bool) {
	nodeIdx := tree.find(key)

	return Iterator[K]{tree, nodeIdx}, nodeIdx != 0
}

// Contains reports whether an element equal to key is present.
func (tree *Tree[K]) Contains(key K) bool {
	return tree.find(key) != 0
}

// Min creates an iterator that points to the minimum item in the tree.
// If the tree is empty, returns Limit().
func (tree *Tree[K]) Min() Iterator[K] {
	return Iterator[K]{tree, tree.minNode}
}

// Max creates an iterator that points at the maximum item in the tree.
//
// If the tree is empty, returns NegativeLimit().
func (tree *Tree[K]) Max() Iterator[K] {
	if tree.maxNode == 0 {
		return Iterator[K]{tree, negativeLimitNode}
	}

	return Iterator[K]{tree, tree.maxNode}
}

// Limit creates an iterator that points beyond the maximum item in the tree.
func (tree *Tree[K]) Limit() Iterator[K] {
	return Iterator[K]{tree, 0}
}

// NegativeLimit creates an iterator that points before the minimum item in the tree.
func (tree *Tree[K]) NegativeLimit() Iterator[K] {
	return Iterator[K]{tree, negativeLimitNode}
}

// FindGE finds the first element N such that N >= key, and returns the
// iterator pointing to the element. If no such element is found,
// returns tree.Limit().
func (tree *Tree[K]) FindGE(key K) Iterator[K] {
	alloc := tree.storage()

	var found uint32

	for cursor := tree.root; cursor != 0; {
		if tree.compare(key, alloc[cursor].key) <= 0 {
			found = cursor
			cursor = alloc[cursor].left
		} else {
			cursor = alloc[cursor].right
		}
	}

	return Iterator[K]{tree, found}
}

// FindLE finds the last element N such that N <= key, and returns the
// iterator pointing to the element. If no such element is found,
// returns tree.NegativeLimit().
func (tree *Tree[K]) FindLE(key K) Iterator[K] {
	alloc := tree.storage()

	found := uint32(negativeLimitNode)

	for cursor := tree.root; cursor != 0; {
		if tree.compare(key, alloc[cursor].key) >= 0 {
			found = cursor
			cursor = alloc[cursor].right
		} else {
			cursor = alloc[cursor].left
		}
	}

	return Iterator[K]{tree, found}
}

// Delete removes one element equal to key. Returns true iff one was found.
//
// Iterators pointing at the removed element, or at its in-order predecessor,
// are invalidated.
func (tree *Tree[K]) Delete(key K) bool {
	nodeIdx := tree.find(key)
	if nodeIdx == 0 {
		return false
	}

	tree.doDelete(nodeIdx)

	return true
}

// DeleteWithIterator deletes the current item.
//
// REQUIRES: !iter.Limit() && !iter.NegativeLimit().
func (tree *Tree[K]) DeleteWithIterator(iter Iterator[K]) {
	doAssert(!iter.Limit() && !iter.NegativeLimit())
	tree.doDelete(iter.node)
}

func doAssert(condition bool) {
	if !condition {
		panic("rbtree internal assertion failed")
	}
}

// Internal node attribute accessors.
func getColor[K any](nodeIdx uint32, alloc []node[K]) Color {
	if nodeIdx == 0 {
		return Black
	}

	return alloc[nodeIdx].color
}

func isLeftChild[K any](nodeIdx uint32, alloc []node[K]) bool {
	return nodeIdx == alloc[alloc[nodeIdx].parent].left
}

// Return the minimum node that's larger than N. Return 0 if no such
// node is found.
func doNext[K any](nodeIdx uint32, alloc []node[K]) uint32 {
	if alloc[nodeIdx].right != 0 {
		cursor := alloc[nodeIdx].right

		for alloc[cursor].left != 0 {
			cursor = alloc[cursor].left
		}

		return cursor
	}

	for {
		parentIdx := alloc[nodeIdx].parent
		if parentIdx == 0 {
			return 0
		}

		if isLeftChild(nodeIdx, alloc) {
			return parentIdx
		}

		nodeIdx = parentIdx
	}
}

// Return the maximum node that's smaller than N. Return negativeLimitNode
// if no such node is found.
func doPrev[K any](nodeIdx uint32, alloc []node[K]) uint32 {
	if alloc[nodeIdx].left != 0 {
		return maxPredecessor(nodeIdx, alloc)
	}

	for {
		parentIdx := alloc[nodeIdx].parent
		if parentIdx == 0 {
			return negativeLimitNode
		}

		if !isLeftChild(nodeIdx, alloc) {
			return parentIdx
		}

		nodeIdx = parentIdx
	}
}

// Return the predecessor of "n" within its left subtree.
func maxPredecessor[K any](nodeIdx uint32, alloc []node[K]) uint32 {
	doAssert(alloc[nodeIdx].left != 0)

	cursor := alloc[nodeIdx].left

	for alloc[cursor].right != 0 {
		cursor = alloc[cursor].right
	}

	return cursor
}

func (tree *Tree[K]) find(key K) uint32 {
	alloc := tree.storage()
	cursor := tree.root

	for cursor != 0 {
		comp := tree.compare(key, alloc[cursor].key)

		switch {
		case comp == 0:
			return cursor
		case comp < 0:
			cursor = alloc[cursor].left
		default:
			cursor = alloc[cursor].right
		}
	}

	return 0
}

// locate descends from the root like a plain BST insert: left when key is
// less than the node key, right otherwise. It returns the future parent.
func (tree *Tree[K]) locate(key K) (parent uint32, goLeft bool) {
	alloc := tree.storage()

	for cursor := tree.root; cursor != 0; {
		parent = cursor
		goLeft = tree.compare(key, alloc[cursor].key) < 0

		if goLeft {
			cursor = alloc[cursor].left
		} else {
			cursor = alloc[cursor].right
		}
	}

	return parent, goLeft
}

// link allocates a red leaf holding key and attaches it under parent in one step.
func (tree *Tree[K]) link(key K, parent uint32, goLeft bool) uint32 {
	nodeIdx := tree.allocator.malloc()

	// malloc may have grown the storage.
	alloc := tree.storage()
	newNode := &alloc[nodeIdx]
	newNode.key = key
	newNode.parent = parent
	newNode.color = Red

	switch {
	case parent == 0:
		tree.root = nodeIdx
		tree.minNode = nodeIdx
		tree.maxNode = nodeIdx
	case goLeft:
		alloc[parent].left = nodeIdx

		if parent == tree.minNode {
			tree.minNode = nodeIdx
		}
	default:
		alloc[parent].right = nodeIdx

		if parent == tree.maxNode {
			tree.maxNode = nodeIdx
		}
	}

	tree.count++
	tree.stats.Inserts++

	return nodeIdx
}

// insertFixup restores the coloring after a red leaf was linked in.
//
// The loop runs while the node under repair has a parent and a grandparent
// and its parent is red. A red uncle is pushed up by recoloring; otherwise
// at most two rotations finish the job.
func (tree *Tree[K]) insertFixup(nodeIdx uint32) {
	alloc := tree.storage()

	for {
		parent := alloc[nodeIdx].parent
		if parent == 0 || alloc[parent].color == Black {
			break
		}

		grandparent := alloc[parent].parent
		if grandparent == 0 {
			break
		}

		tree.stats.FixupSteps++

		parentIsLeft := alloc[grandparent].left == parent

		uncle := alloc[grandparent].left
		if parentIsLeft {
			uncle = alloc[grandparent].right
		}

		// Red uncle: recolor and continue from the grandparent.
		if getColor(uncle, alloc) == Red {
			alloc[parent].color = Black
			alloc[uncle].color = Black
			alloc[grandparent].color = Red
			tree.stats.Recolors++
			nodeIdx = grandparent

			continue
		}

		// Inner child: straighten the path first.
		if parentIsLeft && nodeIdx == alloc[parent].right {
			tree.rotateLeft(parent)
			nodeIdx, parent = parent, nodeIdx
		} else if !parentIsLeft && nodeIdx == alloc[parent].left {
			tree.rotateRight(parent)
			nodeIdx, parent = parent, nodeIdx
		}

		// Outer child.
		alloc[parent].color = Black
		alloc[grandparent].color = Red
		tree.stats.Recolors++

		if parentIsLeft {
			tree.rotateRight(grandparent)
		} else {
			tree.rotateLeft(grandparent)
		}

		break
	}

	alloc[tree.root].color = Black
}

// Delete N from the tree.
func (tree *Tree[K]) doDelete(nodeIdx uint32) {
	alloc := tree.storage()

	if alloc[nodeIdx].left != 0 && alloc[nodeIdx].right != 0 {
		// The predecessor's key takes N's place; its slot is the one removed.
		pred := maxPredecessor(nodeIdx, alloc)
		alloc[nodeIdx].key = alloc[pred].key
		nodeIdx = pred
	}

	child := alloc[nodeIdx].left
	if child == 0 {
		child = alloc[nodeIdx].right
	}

	if alloc[nodeIdx].color == Black {
		if getColor(child, alloc) == Red {
			alloc[child].color = Black
		} else {
			// N is a black leaf: repair while it still occupies its slot.
			tree.deleteFixup(nodeIdx)
		}
	}

	tree.replaceNode(nodeIdx, child)
	tree.allocator.free(nodeIdx)
	tree.count--
	tree.stats.Deletes++

	if tree.count == 0 {
		tree.root = 0
		tree.minNode = 0
		tree.maxNode = 0

		return
	}

	if tree.minNode == nodeIdx {
		tree.recomputeMinNode()
	}

	if tree.maxNode == nodeIdx {
		tree.recomputeMaxNode()
	}
}

func (tree *Tree[K]) deleteFixup(nodeIdx uint32) {
	alloc := tree.storage()

	for nodeIdx != tree.root && alloc[nodeIdx].color == Black {
		parent := alloc[nodeIdx].parent
		isLeft := nodeIdx == alloc[parent].left

		sib := siblingOf(parent, isLeft, alloc)
		if alloc[sib].color == Red {
			alloc[sib].color = Black
			alloc[parent].color = Red
			tree.stats.Recolors++
			tree.rotateDirection(parent, isLeft)
			sib = siblingOf(parent, isLeft, alloc)
		}

		near, far := alloc[sib].left, alloc[sib].right
		if !isLeft {
			near, far = far, near
		}

		if getColor(near, alloc) == Black && getColor(far, alloc) == Black {
			alloc[sib].color = Red
			tree.stats.Recolors++
			nodeIdx = parent

			continue
		}

		if getColor(far, alloc) == Black {
			alloc[near].color = Black
			alloc[sib].color = Red
			tree.stats.Recolors++
			tree.rotateDirection(sib, !isLeft)
			sib = siblingOf(parent, isLeft, alloc)
			far = alloc[sib].right

			if !isLeft {
				far = alloc[sib].left
			}
		}

		alloc[sib].color = alloc[parent].color
		alloc[parent].color = Black
		alloc[far].color = Black
		tree.stats.Recolors++
		tree.rotateDirection(parent, isLeft)
		nodeIdx = tree.root
	}

	alloc[nodeIdx].color = Black
}

// siblingOf returns the child of parent on the side opposite to isLeft.
func siblingOf[K any](parent uint32, isLeft bool, alloc []node[K]) uint32 {
	if isLeft {
		return alloc[parent].right
	}

	return alloc[parent].left
}

func (tree *Tree[K]) recomputeMinNode() {
	alloc := tree.storage()
	tree.minNode = tree.root

	if tree.minNode != 0 {
		for alloc[tree.minNode].left != 0 {
			tree.minNode = alloc[tree.minNode].left
		}
	}
}

func (tree *Tree[K]) recomputeMaxNode() {
	alloc := tree.storage()
	tree.maxNode = tree.root

	if tree.maxNode != 0 {
		for alloc[tree.maxNode].right != 0 {
			tree.maxNode = alloc[tree.maxNode].right
		}
	}
}

func (tree *Tree[K]) replaceNode(oldn, newn uint32) {
	alloc := tree.storage()

	switch {
	case alloc[oldn].parent == 0:
		tree.root = newn
	case oldn == alloc[alloc[oldn].parent].left:
		alloc[alloc[oldn].parent].left = newn
	default:
		alloc[alloc[oldn].parent].right = newn
	}

	if newn != 0 {
		alloc[newn].parent = alloc[oldn].parent
	}
}

// rotateDirection performs a tree rotation in the specified direction.
// isLeft=true performs left rotation, isLeft=false performs right rotation.
//
// Left rotation:
//
//	  X              Y
//	A   Y    =>    X   C
//	  B C        A B
//
// Right rotation:
//
//	    Y            X
//	  X   C  =>    A   Y
//	A B              B C
//
// In-order sequence is unchanged. Three parent links move: the promoted
// child's, the inner subtree's (B) and the pivot's.
//
//nolint:dupword // ASCII art diagrams contain intentional repeated letters.
func (tree *Tree[K]) rotateDirection(pivot uint32, isLeft bool) {
	alloc := tree.storage()

	// Get the child in the opposite direction of rotation.
	child := alloc[pivot].left
	if isLeft {
		child = alloc[pivot].right
	}

	doAssert(child != 0)

	// Move the inner subtree.
	var innerSubtree uint32
	if isLeft {
		innerSubtree = alloc[child].left
		alloc[pivot].right = innerSubtree
	} else {
		innerSubtree = alloc[child].right
		alloc[pivot].left = innerSubtree
	}

	if innerSubtree != 0 {
		alloc[innerSubtree].parent = pivot
	}

	// Update parent links.
	alloc[child].parent = alloc[pivot].parent

	switch {
	case alloc[pivot].parent == 0:
		tree.root = child
	case isLeftChild(pivot, alloc):
		alloc[alloc[pivot].parent].left = child
	default:
		alloc[alloc[pivot].parent].right = child
	}

	// Complete the rotation.
	if isLeft {
		alloc[child].left = pivot
	} else {
		alloc[child].right = pivot
	}

	alloc[pivot].parent = child
	tree.stats.Rotations++
}

func (tree *Tree[K]) rotateLeft(nodeIdx uint32) {
	tree.rotateDirection(nodeIdx, true)
}

func (tree *Tree[K]) rotateRight(nodeIdx uint32) {
	tree.rotateDirection(nodeIdx, false)
}
