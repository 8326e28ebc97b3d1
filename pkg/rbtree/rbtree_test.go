package rbtree //nolint:testpackage // tests require access to unexported fields (storage, released, minNode, etc.)

import (
	"cmp"
	"math/rand"
	"slices"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Create a tree storing a multiset of integers.
func testNewIntSet() *Tree[int64] {
	return New[int64]()
}

func testInsertAll(tree *Tree[int64], keys ...int64) {
	for _, key := range keys {
		tree.Insert(key)
	}
}

func iterToString(iter Iterator[int64]) string {
	result := ""

	for ; !iter.Limit(); iter = iter.Next() {
		if result != "" {
			result += ","
		}

		result += strconv.FormatInt(iter.Key(), 10)
	}

	return result
}

func reverseIterToString(iter Iterator[int64]) string {
	result := ""

	for ; !iter.NegativeLimit(); iter = iter.Prev() {
		if result != "" {
			result += ","
		}

		result += strconv.FormatInt(iter.Key(), 10)
	}

	return result
}

func TestEmpty(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	assert.Equal(t, 0, tree.Len())
	assert.True(t, tree.Max().NegativeLimit())
	assert.True(t, tree.Min().Limit())
	assert.True(t, tree.FindGE(10).Limit())
	assert.True(t, tree.FindLE(10).NegativeLimit())
	assert.False(t, tree.Contains(10))
	assert.True(t, tree.Limit().Equal(tree.Min()))
	assert.Empty(t, tree.Keys())
	assert.False(t, tree.Root().Valid())
	assert.Equal(t, 0, tree.Height())
	assert.Equal(t, 0, tree.BlackHeight())
	require.NoError(t, tree.Verify())
}

func TestInsertScenario(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	testInsertAll(tree, 10, 20, 15, 200, -1, 40)

	assert.Equal(t, []int64{-1, 10, 15, 20, 40, 200}, tree.Keys())
	assert.Equal(t, 6, tree.Len())
	require.NoError(t, tree.Verify())

	root := tree.Root()
	require.True(t, root.Valid())
	assert.Equal(t, int64(15), root.Key())
	assert.Equal(t, Black, root.Color())
	assert.False(t, root.Parent().Valid())

	assert.Equal(t, int64(10), root.Left().Key())
	assert.Equal(t, Black, root.Left().Color())
	assert.Equal(t, int64(-1), root.Left().Left().Key())
	assert.Equal(t, Red, root.Left().Left().Color())
	assert.Equal(t, int64(40), root.Right().Key())
	assert.Equal(t, Black, root.Right().Color())
	assert.Equal(t, int64(20), root.Right().Left().Key())
	assert.Equal(t, int64(200), root.Right().Right().Key())
	assert.Equal(t, int64(40), root.Right().Right().Parent().Key())

	assert.Equal(t, 3, tree.Height())
	assert.Equal(t, 2, tree.BlackHeight())
	assert.Equal(t, []int64{-1, 10, 20, 200, 40, 15}, slices.Collect(tree.PostOrder()))
	assert.Equal(t, []int64{200, 40, 20, 15, 10, -1}, slices.Collect(tree.Backward()))
}

func TestInsertSingle(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	tree.Insert(42)

	assert.Equal(t, []int64{42}, tree.Keys())
	assert.Equal(t, Black, tree.Root().Color())
	assert.False(t, tree.Root().Left().Valid())
	assert.False(t, tree.Root().Right().Valid())
}

func TestAscendingHeightBound(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for key := int64(1); key <= 1000; key++ {
		tree.Insert(key)
	}

	require.NoError(t, tree.Verify())
	assert.Equal(t, 1000, tree.Len())
	assert.Equal(t, 19, HeightBound(1000))
	assert.LessOrEqual(t, tree.Height(), HeightBound(1000))

	expected := make([]int64, 0, 1000)
	for key := int64(1); key <= 1000; key++ {
		expected = append(expected, key)
	}

	assert.Equal(t, expected, tree.Keys())
}

func TestDescendingHeightBound(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for key := int64(1000); key > 0; key-- {
		tree.Insert(key)
	}

	require.NoError(t, tree.Verify())
	assert.LessOrEqual(t, tree.Height(), HeightBound(1000))
	assert.Equal(t, int64(1), tree.Min().Key())
	assert.Equal(t, int64(1000), tree.Max().Key())
}

func TestHeightBound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 2},
		{2, 3},
		{3, 4},
		{7, 6},
		{1000, 19},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HeightBound(tt.n), "n=%d", tt.n)
	}
}

func TestDuplicatesAreRetained(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	testInsertAll(tree, 5, 5, 5)

	assert.Equal(t, []int64{5, 5, 5}, tree.Keys())
	assert.Equal(t, 3, tree.Len())
	require.NoError(t, tree.Verify())
}

type stampedKey struct {
	key   int
	stamp int
}

func TestDuplicatesKeepInsertionOrder(t *testing.T) {
	t.Parallel()

	tree := NewWithAllocator(NewAllocator[stampedKey](), func(a, b stampedKey) int {
		return cmp.Compare(a.key, b.key)
	})

	rng := rand.New(rand.NewSource(7))

	for stamp := range 2000 {
		tree.Insert(stampedKey{key: rng.Intn(20), stamp: stamp})
	}

	require.NoError(t, tree.Verify())

	var prev *stampedKey

	for key := range tree.All() {
		if prev != nil && prev.key == key.key {
			assert.Less(t, prev.stamp, key.stamp, "equal keys out of insertion order")
		}

		current := key
		prev = &current
	}
}

func TestInsertUnique(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	inserted, iter := tree.InsertUnique(10)
	assert.True(t, inserted)
	assert.Equal(t, int64(10), iter.Key())

	tree.Insert(20)

	inserted, iter = tree.InsertUnique(10)
	assert.False(t, inserted)
	assert.Equal(t, int64(10), iter.Key())
	assert.Equal(t, 2, tree.Len())
	assert.Equal(t, []int64{10, 20}, tree.Keys())
	require.NoError(t, tree.Verify())
}

func TestFindGE(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	tree.Insert(10)
	assert.Equal(t, int64(10), tree.FindGE(10).Key())
	assert.True(t, tree.FindGE(11).Limit())
	assert.Equal(t, int64(10), tree.FindGE(9).Key())
}

func TestFindLE(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	tree.Insert(10)
	assert.Equal(t, int64(10), tree.FindLE(10).Key())
	assert.Equal(t, int64(10), tree.FindLE(11).Key())
	assert.True(t, tree.FindLE(9).NegativeLimit())
}

func TestFindBoundsWithDuplicates(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	testInsertAll(tree, 1, 3, 3, 3, 5)

	assert.Equal(t, "3,3,3,5", iterToString(tree.FindGE(3)))
	assert.Equal(t, "3,3,3,1", reverseIterToString(tree.FindLE(3)))
	assert.Equal(t, "3,3,3,1", reverseIterToString(tree.FindLE(4)))
}

func TestFind(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	tree.Insert(10)

	iter, found := tree.Find(10)
	assert.True(t, found)
	assert.Equal(t, int64(10), iter.Key())

	iter, found = tree.Find(9)
	assert.False(t, found)
	assert.True(t, iter.Limit())
	assert.True(t, tree.Contains(10))
	assert.False(t, tree.Contains(11))
}

func TestDelete(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	assert.False(t, tree.Delete(10))
	assert.Equal(t, 0, tree.Len())
	tree.Insert(10)
	assert.True(t, tree.Delete(10))
	assert.Equal(t, 0, tree.Len())

	// Deleting a missing key must not remove its neighbor.
	tree.Insert(10)
	assert.False(t, tree.Delete(9))
	assert.Equal(t, 1, tree.Len())
}

func TestDeleteDuplicate(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	testInsertAll(tree, 7, 7, 3, 7)

	assert.True(t, tree.Delete(7))
	assert.Equal(t, []int64{3, 7, 7}, tree.Keys())
	require.NoError(t, tree.Verify())
}

func TestDeleteWithIterator(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	testInsertAll(tree, 1, 2, 3, 4, 5)

	tree.DeleteWithIterator(tree.FindGE(3))
	assert.Equal(t, []int64{1, 2, 4, 5}, tree.Keys())
	require.NoError(t, tree.Verify())

	assert.Panics(t, func() { tree.DeleteWithIterator(tree.Limit()) })
}

func TestDeleteKeepsInvariants(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	rng := rand.New(rand.NewSource(3))
	keys := make([]int64, 500)

	for idx := range keys {
		keys[idx] = int64(idx)
	}

	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	testInsertAll(tree, keys...)

	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	for idx, key := range keys {
		require.True(t, tree.Delete(key), "delete %d", key)
		require.NoError(t, tree.Verify(), "after deleting %d", key)
		require.Equal(t, len(keys)-idx-1, tree.Len())
	}

	assert.True(t, tree.Min().Limit())
	assert.Equal(t, 0, tree.Allocator().Used())
}

func TestIterator(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for idx := int64(0); idx < 10; idx += 2 {
		tree.Insert(idx)
	}

	assert.Equal(t, "4,6,8", iterToString(tree.FindGE(3)))
	assert.Equal(t, "4,6,8", iterToString(tree.FindGE(4)))
	assert.Equal(t, "8", iterToString(tree.FindGE(8)))
	assert.Empty(t, iterToString(tree.FindGE(9)))
	assert.Equal(t, "2,0", reverseIterToString(tree.FindLE(3)))
	assert.Equal(t, "2,0", reverseIterToString(tree.FindLE(2)))
	assert.Equal(t, "0", reverseIterToString(tree.FindLE(0)))
	assert.Equal(t, "0,2,4,6,8", iterToString(tree.NegativeLimit().Next()))
	assert.Equal(t, "8,6,4,2,0", reverseIterToString(tree.Limit().Prev()))
	assert.True(t, tree.Min().Min())
	assert.True(t, tree.Max().Max())
}

func TestAllStopsEarly(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	testInsertAll(tree, 5, 1, 4, 2, 3)

	var seen []int64

	for key := range tree.All() {
		seen = append(seen, key)
		if key == 3 {
			break
		}
	}

	assert.Equal(t, []int64{1, 2, 3}, seen)

	// The sequence is restartable.
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, slices.Collect(tree.All()))
}

func TestRotationsAreInvertible(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for key := int64(1); key <= 31; key++ {
		tree.Insert(key)
	}

	alloc := tree.Allocator()
	for nodeIdx := uint32(1); nodeIdx < uint32(len(alloc.storage)); nodeIdx++ {
		if alloc.storage[nodeIdx].right == 0 {
			continue
		}

		storage := slices.Clone(alloc.storage)
		root := tree.root

		tree.rotateLeft(nodeIdx)
		assert.Equal(t, tree.Keys(), slices.Sorted(slices.Values(tree.Keys())))

		promoted := alloc.storage[nodeIdx].parent
		assert.Equal(t, nodeIdx, alloc.storage[promoted].left)

		tree.rotateRight(promoted)
		require.Equal(t, storage, alloc.storage, "rotating node %d", nodeIdx)
		require.Equal(t, root, tree.root)
	}

	require.NoError(t, tree.Verify())
}

func TestRotateRootUpdatesRoot(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	testInsertAll(tree, 2, 1, 3)

	oldRoot := tree.root
	promoted := tree.storage()[oldRoot].right

	tree.rotateLeft(oldRoot)
	assert.Equal(t, promoted, tree.root)
	assert.Equal(t, uint32(0), tree.storage()[promoted].parent)
	assert.Equal(t, []int64{1, 2, 3}, tree.Keys())
}

func TestComparatorPanicLeavesTreeIntact(t *testing.T) {
	t.Parallel()

	tree := NewWithAllocator(NewAllocator[int](), func(a, b int) int {
		if a == 13 || b == 13 {
			panic("unlucky")
		}

		return cmp.Compare(a, b)
	})

	for key := range 10 {
		tree.Insert(key)
	}

	assert.Panics(t, func() { tree.Insert(13) })
	assert.Equal(t, 10, tree.Len())
	assert.Equal(t, 10, tree.Allocator().Used())
	require.NoError(t, tree.Verify())
}

func TestVerifyDetectsCorruption(t *testing.T) {
	t.Parallel()

	build := func() *Tree[int64] {
		tree := testNewIntSet()
		testInsertAll(tree, 10, 5, 15, 20)

		return tree
	}

	tests := []struct {
		name    string
		corrupt func(tree *Tree[int64])
		want    error
	}{
		{"root color", func(tree *Tree[int64]) { tree.storage()[tree.root].color = Red }, ErrRootNotBlack},
		{"red red", func(tree *Tree[int64]) { tree.storage()[tree.find(15)].color = Red }, ErrRedViolation},
		{"black height", func(tree *Tree[int64]) { tree.storage()[tree.find(20)].color = Black }, ErrBlackHeight},
		{"parent link", func(tree *Tree[int64]) { tree.storage()[tree.find(20)].parent = tree.root }, ErrParentLink},
		{"order", func(tree *Tree[int64]) { tree.storage()[tree.find(5)].key = 12 }, ErrOrderViolation},
		{"count", func(tree *Tree[int64]) { tree.count++ }, ErrCountMismatch},
		{"min cache", func(tree *Tree[int64]) { tree.minNode = tree.root }, ErrCountMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tree := build()
			require.NoError(t, tree.Verify())

			tt.corrupt(tree)
			require.ErrorIs(t, tree.Verify(), tt.want)
		})
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	testInsertAll(tree, 1, 2, 3)

	stats := tree.Stats()
	assert.Equal(t, int64(3), stats.Inserts)
	assert.Equal(t, int64(1), stats.Rotations)
	assert.Equal(t, int64(1), stats.Recolors)

	tree.Delete(2)

	delta := tree.Stats().Sub(stats)
	assert.Equal(t, int64(1), delta.Deletes)
	assert.Equal(t, int64(0), delta.Inserts)
}

func TestStatsRecolors(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	testInsertAll(tree, 2, 1, 3)
	base := tree.Stats()

	// Red uncle: recolor only.
	testInsertAll(tree, 4)
	delta := tree.Stats().Sub(base)
	assert.Equal(t, int64(1), delta.Recolors)
	assert.Equal(t, int64(0), delta.Rotations)

	// Black uncle: recolor and rotate.
	testInsertAll(tree, 5)
	delta = tree.Stats().Sub(base)
	assert.Equal(t, int64(2), delta.Recolors)
	assert.Equal(t, int64(1), delta.Rotations)
	require.NoError(t, tree.Verify())
}

func TestColorString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "red", Red.String())
	assert.Equal(t, "black", Black.String())
}

// Randomized tests.

// oracle stores a multiset in a sorted slice.
type oracle struct {
	data []int64
}

func (o *oracle) Insert(key int64) {
	idx, _ := slices.BinarySearch(o.data, key)
	for idx < len(o.data) && o.data[idx] == key {
		idx++
	}

	o.data = slices.Insert(o.data, idx, key)
}

func (o *oracle) Delete(key int64) bool {
	idx, found := slices.BinarySearch(o.data, key)
	if !found {
		return false
	}

	o.data = slices.Delete(o.data, idx, idx+1)

	return true
}

func (o *oracle) FindGE(key int64) []int64 {
	idx, _ := slices.BinarySearch(o.data, key)

	return o.data[idx:]
}

func (o *oracle) FindLE(key int64) []int64 {
	idx, _ := slices.BinarySearch(o.data, key+1)
	result := slices.Clone(o.data[:idx])
	slices.Reverse(result)

	return result
}

func orNil(keys []int64) []int64 {
	if len(keys) == 0 {
		return nil
	}

	return keys
}

func forwardKeys(iter Iterator[int64]) []int64 {
	var keys []int64

	for ; !iter.Limit(); iter = iter.Next() {
		keys = append(keys, iter.Key())
	}

	return keys
}

func backwardKeys(iter Iterator[int64]) []int64 {
	var keys []int64

	for ; !iter.NegativeLimit(); iter = iter.Prev() {
		keys = append(keys, iter.Key())
	}

	return keys
}

func TestRandomized(t *testing.T) {
	t.Parallel()

	const numKeys = 300

	orc := &oracle{}
	tree := testNewIntSet()
	rng := rand.New(rand.NewSource(0))

	for range 10000 {
		op := rng.Int31n(100)

		switch {
		case op < 50:
			key := rng.Int63n(numKeys)
			orc.Insert(key)
			tree.Insert(key)
		case op < 85 && len(orc.data) > 0:
			key := orc.data[rng.Intn(len(orc.data))]
			orc.Delete(key)
			require.True(t, tree.Delete(key), "delete existing %d", key)
		case op < 90:
			key := rng.Int63n(numKeys)
			assert.Equal(t, orc.Delete(key), tree.Delete(key))
		case op < 95:
			key := rng.Int63n(numKeys)
			assert.Equal(t, orNil(orc.FindGE(key)), orNil(forwardKeys(tree.FindGE(key))))
		default:
			key := rng.Int63n(numKeys)
			assert.Equal(t, orNil(orc.FindLE(key)), orNil(backwardKeys(tree.FindLE(key))))
		}

		require.Equal(t, len(orc.data), tree.Len())
	}

	require.NoError(t, tree.Verify())
	assert.Equal(t, orNil(orc.data), orNil(tree.Keys()))
}

func TestAllocatorFreeZero(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator[int64]()
	alloc.malloc()
	assert.Panics(t, func() { alloc.free(0) })
}

func TestAllocatorReusesReleasedSlots(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator[int64]()
	first := alloc.malloc()
	second := alloc.malloc()
	assert.Equal(t, uint32(1), first)
	assert.Equal(t, uint32(2), second)
	assert.Equal(t, 3, alloc.Size())
	assert.Equal(t, 2, alloc.Used())

	alloc.free(first)
	alloc.free(second)
	assert.Equal(t, 0, alloc.Used())

	// LIFO.
	assert.Equal(t, second, alloc.malloc())
	assert.Equal(t, first, alloc.malloc())
	assert.Equal(t, 3, alloc.Size())
}

func TestSharedAllocator(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator[int64]()
	tree1 := NewWithAllocator(alloc, cmp.Compare[int64])
	tree2 := NewWithAllocator(alloc, cmp.Compare[int64])

	testInsertAll(tree1, 1, 2, 3)
	testInsertAll(tree2, 30, 20, 10)

	assert.Equal(t, []int64{1, 2, 3}, tree1.Keys())
	assert.Equal(t, []int64{10, 20, 30}, tree2.Keys())
	assert.Equal(t, 6, alloc.Used())

	tree1.Erase()
	assert.Equal(t, 3, alloc.Used())
	assert.Equal(t, []int64{10, 20, 30}, tree2.Keys())
	require.NoError(t, tree2.Verify())
}

func TestErase(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for key := range int64(100) {
		tree.Insert(key)
	}

	tree.Erase()
	assert.Equal(t, 0, tree.Len())
	assert.True(t, tree.Min().Limit())
	assert.Equal(t, 0, tree.Allocator().Used())
	require.NoError(t, tree.Verify())

	tree.Insert(5)
	assert.Equal(t, []int64{5}, tree.Keys())
}

func TestCloneShallow(t *testing.T) {
	t.Parallel()

	alloc1 := NewAllocator[int64]()
	alloc1.malloc()

	tree := NewWithAllocator(alloc1, cmp.Compare[int64])
	tree.Insert(7)
	tree.Insert(8)
	tree.Delete(8)

	assert.Equal(t, []node[int64]{{}, {}, {color: Black, key: 7}, {}}, alloc1.storage)
	assert.Equal(t, uint32(2), tree.minNode)
	assert.Equal(t, uint32(2), tree.maxNode)

	alloc2 := alloc1.Clone()
	clone := tree.CloneShallow(alloc2)

	assert.Equal(t, []node[int64]{{}, {}, {color: Black, key: 7}, {}}, alloc2.storage)
	assert.Equal(t, uint32(2), clone.minNode)
	assert.Equal(t, uint32(2), clone.maxNode)
	assert.Equal(t, 4, alloc2.Size())

	tree.Insert(10)
	assert.Equal(t, []int64{7}, clone.Keys())
	assert.Equal(t, []int64{7, 10}, tree.Keys())
}

func TestCloneDeep(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for key := int64(50); key > 0; key-- {
		tree.Insert(key % 17)
	}

	alloc := NewAllocator[int64]()
	clone := tree.CloneDeep(alloc)

	require.NoError(t, clone.Verify())
	assert.Equal(t, tree.Keys(), clone.Keys())
	assert.Equal(t, tree.Height(), clone.Height())
	assert.Equal(t, tree.Len(), alloc.Used())

	tree.Erase()
	assert.Len(t, clone.Keys(), 50)
}

func FuzzInsertKeepsBalance(f *testing.F) {
	f.Add([]byte{10, 20, 15, 200, 255, 40})
	f.Add([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	f.Add([]byte{9, 9, 9, 9})

	f.Fuzz(func(t *testing.T, data []byte) {
		tree := testNewIntSet()

		for idx, value := range data {
			if idx%5 == 4 {
				tree.Delete(int64(value))

				continue
			}

			tree.Insert(int64(value))
		}

		require.NoError(t, tree.Verify())
		require.LessOrEqual(t, tree.Height(), HeightBound(tree.Len()))
		require.True(t, slices.IsSorted(tree.Keys()))
	})
}
