package rbtree

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned when a TreeState does not describe a valid tree in the allocator.
var ErrInvalidState = errors.New("invalid tree state")

// TreeState is the part of a Tree that lives outside its allocator. Saved
// together with a serialized allocator it is enough to restore the tree.
type TreeState struct {
	Root  uint32 `json:"root"  yaml:"root"`
	Min   uint32 `json:"min"   yaml:"min"`
	Max   uint32 `json:"max"   yaml:"max"`
	Count int    `json:"count" yaml:"count"`
}

// State returns the tree root, cached extremes and element count.
func (tree *Tree[K]) State() TreeState {
	return TreeState{
		Root:  tree.root,
		Min:   tree.minNode,
		Max:   tree.maxNode,
		Count: tree.count,
	}
}

// RestoreTree re-attaches a tree to an awake allocator, typically one that
// went through Deserialize and Boot. The restored tree is verified.
func RestoreTree[K any](allocator *Allocator[K], compare func(a, b K) int, state TreeState) (*Tree[K], error) {
	if allocator.Hibernated() {
		return nil, fmt.Errorf("%w: allocator is hibernated", ErrInvalidState)
	}

	size := len(allocator.storage)
	for _, idx := range [3]uint32{state.Root, state.Min, state.Max} {
		if int(idx) >= size && idx != 0 {
			return nil, fmt.Errorf("%w: node %d beyond %d slots", ErrInvalidState, idx, size)
		}
	}

	tree := &Tree[K]{
		allocator: allocator,
		compare:   compare,
		root:      state.Root,
		minNode:   state.Min,
		maxNode:   state.Max,
		count:     state.Count,
	}

	err := tree.Verify()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	return tree, nil
}
