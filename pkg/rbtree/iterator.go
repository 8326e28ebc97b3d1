package rbtree

// Iterator allows scanning tree elements in sort order.
//
// Iterator invalidation rule is the same as C++ std::map<>'s. That
// is, if you delete the element that an iterator points to, the
// iterator becomes invalid. For other operation types, the iterator
// remains valid.
type Iterator[K any] struct {
	tree *Tree[K]
	node uint32
}

// Equal checks for the underlying nodes equality.
func (iter Iterator[K]) Equal(other Iterator[K]) bool {
	return iter.node == other.node
}

// Limit checks if the iterator points beyond the max element in the tree.
func (iter Iterator[K]) Limit() bool {
	return iter.node == 0
}

// Min checks if the iterator points to the minimum element in the tree.
func (iter Iterator[K]) Min() bool {
	return iter.node == iter.tree.minNode
}

// Max checks if the iterator points to the maximum element in the tree.
func (iter Iterator[K]) Max() bool {
	return iter.node == iter.tree.maxNode
}

// NegativeLimit checks if the iterator points before the minimum element in the tree.
func (iter Iterator[K]) NegativeLimit() bool {
	return iter.node == negativeLimitNode
}

// Valid reports whether the iterator points at an element.
func (iter Iterator[K]) Valid() bool {
	return !iter.Limit() && !iter.NegativeLimit()
}

// Key returns the current element.
//
// REQUIRES: iter.Valid().
func (iter Iterator[K]) Key() K {
	doAssert(iter.Valid())

	return iter.tree.storage()[iter.node].key
}

// Next creates a new iterator that points to the successor of the current element.
//
// REQUIRES: !iter.Limit().
func (iter Iterator[K]) Next() Iterator[K] {
	doAssert(!iter.Limit())

	if iter.NegativeLimit() {
		return Iterator[K]{iter.tree, iter.tree.minNode}
	}

	return Iterator[K]{iter.tree, doNext(iter.node, iter.tree.storage())}
}

// Prev creates a new iterator that points to the predecessor of the current
// node.
//
// REQUIRES: !iter.NegativeLimit().
func (iter Iterator[K]) Prev() Iterator[K] {
	doAssert(!iter.NegativeLimit())

	if !iter.Limit() {
		return Iterator[K]{iter.tree, doPrev(iter.node, iter.tree.storage())}
	}

	if iter.tree.maxNode == 0 {
		return Iterator[K]{iter.tree, negativeLimitNode}
	}

	return Iterator[K]{iter.tree, iter.tree.maxNode}
}

// Handle is a read-only view of a single node, used to inspect the shape of a tree.
type Handle[K any] struct {
	tree *Tree[K]
	node uint32
}

// Valid reports whether the handle refers to a node. Children of leaves
// and the root of an empty tree are invalid handles.
func (h Handle[K]) Valid() bool {
	return h.tree != nil && h.node != 0
}

// Key returns the node key.
//
// REQUIRES: h.Valid().
func (h Handle[K]) Key() K {
	doAssert(h.Valid())

	return h.tree.storage()[h.node].key
}

// Color returns the node color. Invalid handles are black, like absent leaves.
func (h Handle[K]) Color() Color {
	if !h.Valid() {
		return Black
	}

	return h.tree.storage()[h.node].color
}

// Left returns the left child.
func (h Handle[K]) Left() Handle[K] {
	return h.link(func(nd *node[K]) uint32 { return nd.left })
}

// Right returns the right child.
func (h Handle[K]) Right() Handle[K] {
	return h.link(func(nd *node[K]) uint32 { return nd.right })
}

// Parent returns the parent node. The root has an invalid parent.
func (h Handle[K]) Parent() Handle[K] {
	return h.link(func(nd *node[K]) uint32 { return nd.parent })
}

func (h Handle[K]) link(pick func(nd *node[K]) uint32) Handle[K] {
	if !h.Valid() {
		return Handle[K]{tree: h.tree}
	}

	return Handle[K]{tree: h.tree, node: pick(&h.tree.storage()[h.node])}
}
