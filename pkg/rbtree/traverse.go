package rbtree

import (
	"iter"
	"math"
)

// All returns an ascending iterator over the keys. Equal keys are yielded in
// insertion order. The tree must not be mutated while the sequence is consumed.
func (tree *Tree[K]) All() iter.Seq[K] {
	return func(yield func(K) bool) {
		if tree.count == 0 {
			return
		}

		alloc := tree.storage()

		for nodeIdx := tree.minNode; nodeIdx != 0; nodeIdx = doNext(nodeIdx, alloc) {
			if !yield(alloc[nodeIdx].key) {
				return
			}
		}
	}
}

// Backward returns a descending iterator over the keys.
func (tree *Tree[K]) Backward() iter.Seq[K] {
	return func(yield func(K) bool) {
		if tree.count == 0 {
			return
		}

		alloc := tree.storage()

		for nodeIdx := tree.maxNode; nodeIdx != negativeLimitNode; nodeIdx = doPrev(nodeIdx, alloc) {
			if !yield(alloc[nodeIdx].key) {
				return
			}
		}
	}
}

// PostOrder yields the keys children first: left subtree, right subtree, node.
// The root comes last.
func (tree *Tree[K]) PostOrder() iter.Seq[K] {
	return func(yield func(K) bool) {
		if tree.root == 0 {
			return
		}

		alloc := tree.storage()

		for nodeIdx := firstPost(tree.root, alloc); nodeIdx != 0; nodeIdx = nextPost(nodeIdx, alloc) {
			if !yield(alloc[nodeIdx].key) {
				return
			}
		}
	}
}

// firstPost returns the first node in post-order of the subtree at nodeIdx.
func firstPost[K any](nodeIdx uint32, alloc []node[K]) uint32 {
	for {
		switch {
		case alloc[nodeIdx].left != 0:
			nodeIdx = alloc[nodeIdx].left
		case alloc[nodeIdx].right != 0:
			nodeIdx = alloc[nodeIdx].right
		default:
			return nodeIdx
		}
	}
}

func nextPost[K any](nodeIdx uint32, alloc []node[K]) uint32 {
	parent := alloc[nodeIdx].parent
	if parent == 0 {
		return 0
	}

	if alloc[parent].left == nodeIdx && alloc[parent].right != 0 {
		return firstPost(alloc[parent].right, alloc)
	}

	return parent
}

// Keys returns all the keys in ascending order.
func (tree *Tree[K]) Keys() []K {
	keys := make([]K, 0, tree.count)

	for key := range tree.All() {
		keys = append(keys, key)
	}

	return keys
}

// Height returns the number of nodes on the longest root-to-leaf path.
// An empty tree has height 0.
func (tree *Tree[K]) Height() int {
	if tree.root == 0 {
		return 0
	}

	alloc := tree.storage()
	level := []uint32{tree.root}
	height := 0

	for len(level) > 0 {
		height++

		next := level[:0:0]

		for _, nodeIdx := range level {
			if left := alloc[nodeIdx].left; left != 0 {
				next = append(next, left)
			}

			if right := alloc[nodeIdx].right; right != 0 {
				next = append(next, right)
			}
		}

		level = next
	}

	return height
}

// BlackHeight returns the number of black nodes on the leftmost root-to-leaf
// path. On a valid tree every such path has the same count.
func (tree *Tree[K]) BlackHeight() int {
	if tree.root == 0 {
		return 0
	}

	alloc := tree.storage()
	blackHeight := 0

	for nodeIdx := tree.root; nodeIdx != 0; nodeIdx = alloc[nodeIdx].left {
		if alloc[nodeIdx].color == Black {
			blackHeight++
		}
	}

	return blackHeight
}

// HeightBound returns floor(2*log2(n+1)), the maximum height of a red-black
// tree holding n keys.
func HeightBound(n int) int {
	if n <= 0 {
		return 0
	}

	return int(math.Floor(2 * math.Log2(float64(n)+1)))
}
