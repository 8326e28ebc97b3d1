package rbtree

import (
	"errors"
	"fmt"
)

// Sentinel errors reported by Tree.Verify.
var (
	ErrOrderViolation = errors.New("keys are out of order")
	ErrRootNotBlack   = errors.New("root is not black")
	ErrRedViolation   = errors.New("red node has a red child")
	ErrBlackHeight    = errors.New("black height differs between paths")
	ErrParentLink     = errors.New("parent link does not match child link")
	ErrCountMismatch  = errors.New("cached tree metadata is stale")
)

type verifier[K any] struct {
	tree    *Tree[K]
	alloc   []node[K]
	visited int
	prev    uint32
	first   uint32
}

// Verify walks the whole tree and checks the red-black invariants together
// with the cached count, minimum and maximum. The in-order key sequence must
// be non-decreasing. It returns nil on a valid tree.
func (tree *Tree[K]) Verify() error {
	if tree.root == 0 {
		if tree.count != 0 || tree.minNode != 0 || tree.maxNode != 0 {
			return fmt.Errorf("%w: empty root with count %d", ErrCountMismatch, tree.count)
		}

		return nil
	}

	v := &verifier[K]{tree: tree, alloc: tree.storage()}

	if v.alloc[tree.root].parent != 0 {
		return fmt.Errorf("%w: root %d has parent %d", ErrParentLink, tree.root, v.alloc[tree.root].parent)
	}

	if v.alloc[tree.root].color != Black {
		return ErrRootNotBlack
	}

	_, err := v.walk(tree.root)
	if err != nil {
		return err
	}

	if v.visited != tree.count {
		return fmt.Errorf("%w: counted %d nodes, cached %d", ErrCountMismatch, v.visited, tree.count)
	}

	if v.first != tree.minNode || v.prev != tree.maxNode {
		return fmt.Errorf("%w: min/max cache points at %d/%d, expected %d/%d",
			ErrCountMismatch, tree.minNode, tree.maxNode, v.first, v.prev)
	}

	return nil
}

// walk visits the subtree in order and returns its black height.
func (v *verifier[K]) walk(nodeIdx uint32) (int, error) {
	if nodeIdx == 0 {
		return 1, nil
	}

	v.visited++
	if v.visited > len(v.alloc) {
		return 0, fmt.Errorf("%w: cycle through node %d", ErrParentLink, nodeIdx)
	}

	nd := v.alloc[nodeIdx]

	for _, child := range [2]uint32{nd.left, nd.right} {
		if child == 0 {
			continue
		}

		if v.alloc[child].parent != nodeIdx {
			return 0, fmt.Errorf("%w: node %d lists parent %d, expected %d",
				ErrParentLink, child, v.alloc[child].parent, nodeIdx)
		}

		if nd.color == Red && v.alloc[child].color == Red {
			return 0, fmt.Errorf("%w: nodes %d and %d", ErrRedViolation, nodeIdx, child)
		}
	}

	leftHeight, err := v.walk(nd.left)
	if err != nil {
		return 0, err
	}

	if v.prev == 0 {
		v.first = nodeIdx
	} else if v.tree.compare(v.alloc[v.prev].key, nd.key) > 0 {
		return 0, fmt.Errorf("%w: node %d precedes node %d", ErrOrderViolation, v.prev, nodeIdx)
	}

	v.prev = nodeIdx

	rightHeight, err := v.walk(nd.right)
	if err != nil {
		return 0, err
	}

	if leftHeight != rightHeight {
		return 0, fmt.Errorf("%w: node %d has %d on the left and %d on the right",
			ErrBlackHeight, nodeIdx, leftHeight, rightHeight)
	}

	if nd.color == Black {
		leftHeight++
	}

	return leftHeight, nil
}
