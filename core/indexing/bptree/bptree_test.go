package bptree

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sushant-115/kurodb/core/kv"
)

// --- Test Helpers ---

// setupTree creates an empty tree of the given order with a development logger.
func setupTree(t *testing.T, order int) *Bptree[kv.Int, kv.Int] {
	t.Helper()
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	tree, err := New[kv.Int, kv.Int](order, logger)
	require.NoError(t, err)

	return tree
}

// treeHeight counts the levels from the root down to the leaf layer,
// following the first non-empty child at every inner node.
func treeHeight(tree *Bptree[kv.Int, kv.Int]) int {
	r := tree.root
	h := 0
	for r.kind == kindInner {
		h++
		next := nodeRef[kv.Int, kv.Int]{}
		for _, c := range r.inner.children {
			if !c.isEmpty() {
				next = c
				break
			}
		}
		r = next
	}
	if r.kind == kindLeaf {
		h++
	}
	return h
}

// collectChain walks the leaf chain from the leftmost leaf and returns
// every stored key in chain order.
func collectChain(t *testing.T, tree *Bptree[kv.Int, kv.Int]) []int {
	t.Helper()
	r := tree.root
	for r.kind == kindInner {
		found := false
		for _, c := range r.inner.children {
			if !c.isEmpty() {
				r = c
				found = true
				break
			}
		}
		require.True(t, found, "inner node with no non-empty children")
	}
	if r.kind != kindLeaf {
		return nil
	}
	var keys []int
	for l := r.leaf; l != nil; l = l.next {
		for _, k := range l.keys {
			keys = append(keys, int(k))
		}
	}
	return keys
}

// verifyInvariants walks the whole tree and checks the structural rules:
// sorted unique keys, key/child counts, occupancy bounds for non-root
// nodes, separator partitioning, placeholder slots only at index 0,
// uniform leaf depth, and a leaf chain that visits every leaf in
// left-to-right order.
func verifyInvariants(t *testing.T, tree *Bptree[kv.Int, kv.Int], model map[int]int) {
	t.Helper()

	maxKeys := tree.order - 1
	minKeys := maxKeys/2 + maxKeys%2

	if tree.root.isEmpty() {
		require.Empty(t, model, "tree is empty but the model is not")
		require.Zero(t, tree.Len())
		return
	}

	var leafDepths []int
	var leavesInOrder []*leafNode[kv.Int, kv.Int]

	var walk func(r nodeRef[kv.Int, kv.Int], isRoot bool, lo, hi *kv.Int, depth int)
	walk = func(r nodeRef[kv.Int, kv.Int], isRoot bool, lo, hi *kv.Int, depth int) {
		switch r.kind {
		case kindLeaf:
			l := r.leaf
			require.LessOrEqual(t, len(l.keys), maxKeys, "leaf over capacity")
			if !isRoot {
				require.GreaterOrEqual(t, len(l.keys), minKeys, "non-root leaf under minimum occupancy")
			}
			require.Equal(t, len(l.keys), len(l.values), "keys and values out of step")
			for i, k := range l.keys {
				if i > 0 {
					require.Negative(t, l.keys[i-1].Compare(k), "leaf keys not strictly ascending")
				}
				if lo != nil {
					require.GreaterOrEqual(t, k.Compare(*lo), 0, "leaf key below its lower bound")
				}
				if hi != nil {
					require.Negative(t, k.Compare(*hi), "leaf key at or above its upper bound")
				}
			}
			leafDepths = append(leafDepths, depth)
			leavesInOrder = append(leavesInOrder, l)
		case kindInner:
			n := r.inner
			require.LessOrEqual(t, len(n.keys), maxKeys, "inner node over capacity")
			if !isRoot {
				require.GreaterOrEqual(t, len(n.keys), minKeys, "non-root inner node under minimum occupancy")
			}
			if len(n.keys) == 0 {
				require.True(t, isRoot, "non-root inner node with no separators")
				require.Len(t, n.children, 1, "zero-separator root must route through one child")
			} else {
				require.Len(t, n.children, len(n.keys)+1, "child count must be key count plus one")
			}
			for i, k := range n.keys {
				if i > 0 {
					require.Negative(t, n.keys[i-1].Compare(k), "separators not strictly ascending")
				}
				if lo != nil {
					require.GreaterOrEqual(t, k.Compare(*lo), 0, "separator below the subtree lower bound")
				}
				if hi != nil {
					require.Negative(t, k.Compare(*hi), "separator at or above the subtree upper bound")
				}
			}
			for i, c := range n.children {
				if c.isEmpty() {
					require.Zero(t, i, "placeholder slot outside index 0")
					continue
				}
				childLo, childHi := lo, hi
				if i > 0 {
					childLo = &n.keys[i-1]
				}
				if i < len(n.keys) {
					childHi = &n.keys[i]
				}
				walk(c, false, childLo, childHi, depth+1)
			}
		default:
			t.Fatalf("unexpected node kind %d inside the tree", r.kind)
		}
	}
	walk(tree.root, true, nil, nil, 0)

	for _, d := range leafDepths {
		require.Equal(t, leafDepths[0], d, "leaves at differing depths")
	}

	// The next pointers must thread the exact left-to-right leaf sequence.
	require.NotEmpty(t, leavesInOrder)
	for i := 0; i < len(leavesInOrder)-1; i++ {
		require.Same(t, leavesInOrder[i+1], leavesInOrder[i].next, "leaf chain does not match tree order")
	}
	require.Nil(t, leavesInOrder[len(leavesInOrder)-1].next, "last leaf must terminate the chain")

	chainKeys := make([]int, 0, len(model))
	for _, l := range leavesInOrder {
		for _, k := range l.keys {
			chainKeys = append(chainKeys, int(k))
		}
	}
	modelKeys := make([]int, 0, len(model))
	for k := range model {
		modelKeys = append(modelKeys, k)
	}
	sort.Ints(modelKeys)
	require.Equal(t, modelKeys, chainKeys, "leaf chain content diverged from the reference map")
	require.Equal(t, len(model), tree.Len())

	for k, v := range model {
		got, found := tree.Search(kv.Int(k))
		require.True(t, found, "key %d missing", k)
		require.Equal(t, kv.Int(v), got, "wrong value for key %d", k)
	}
}

// --- Test Cases ---

// TestNew_RejectsInvalidOrder verifies the fan-out floor: orders below 3
// cannot host a split and are refused up front.
func TestNew_RejectsInvalidOrder(t *testing.T) {
	for _, order := range []int{-1, 0, 1, 2} {
		_, err := New[kv.Int, kv.Int](order, nil)
		require.ErrorIs(t, err, ErrInvalidOrder, "order %d", order)
	}

	tree, err := New[kv.Int, kv.Int](3, nil)
	require.NoError(t, err)
	require.Equal(t, 3, tree.Order())
	require.Zero(t, tree.Len())
}

// TestInsertSearch_RoundTrip inserts a shuffled key range and reads every
// key back, plus a probe for a key that was never inserted.
func TestInsertSearch_RoundTrip(t *testing.T) {
	tree := setupTree(t, 9)

	keys := rand.New(rand.NewSource(1)).Perm(1000)
	model := make(map[int]int, len(keys))
	for _, k := range keys {
		tree.Insert(kv.Int(k), kv.Int(k*10))
		model[k] = k * 10
	}
	require.Equal(t, len(keys), tree.Len())

	verifyInvariants(t, tree, model)

	_, found := tree.Search(kv.Int(5000))
	require.False(t, found, "absent key reported as present")
}

// TestInsert_OverwritesExistingKey confirms upsert semantics: a repeated
// key replaces the value without growing the tree.
func TestInsert_OverwritesExistingKey(t *testing.T) {
	tree := setupTree(t, 4)

	tree.Insert(7, 70)
	tree.Insert(7, 700)
	require.Equal(t, 1, tree.Len())

	got, found := tree.Search(7)
	require.True(t, found)
	require.Equal(t, kv.Int(700), got)
}

// TestDelete_Basics covers the deletion contract: the stored value comes
// back exactly once, misses report not-found, and the empty tree is safe
// to delete from.
func TestDelete_Basics(t *testing.T) {
	tree := setupTree(t, 4)

	_, found := tree.Delete(1)
	require.False(t, found, "delete on an empty tree must miss")

	tree.Insert(1, 11)
	tree.Insert(2, 22)

	got, found := tree.Delete(1)
	require.True(t, found)
	require.Equal(t, kv.Int(11), got)
	require.Equal(t, 1, tree.Len())

	_, found = tree.Search(1)
	require.False(t, found, "deleted key still visible")

	_, found = tree.Delete(1)
	require.False(t, found, "second delete of the same key must miss")
	require.Equal(t, 1, tree.Len())
}

// TestMinimumOrder_Scenario drives an order-3 tree (one or two keys per
// node) through a full grow-and-shrink cycle and pins down the root shape
// and height after every step.
func TestMinimumOrder_Scenario(t *testing.T) {
	tree := setupTree(t, 3)
	model := make(map[int]int)

	steps := []struct {
		key      int
		rootKind nodeKind
		rootKeys int
		height   int
	}{
		{1, kindLeaf, 1, 1},
		{2, kindLeaf, 2, 1},
		{3, kindInner, 1, 2},
		{4, kindInner, 2, 2},
		{5, kindInner, 1, 3},
	}
	for _, s := range steps {
		tree.Insert(kv.Int(s.key), kv.Int(s.key*100))
		model[s.key] = s.key * 100
		require.Equal(t, s.rootKind, tree.root.kind, "root kind after inserting %d", s.key)
		require.Equal(t, s.rootKeys, tree.root.keyCount(), "root key count after inserting %d", s.key)
		require.Equal(t, s.height, treeHeight(tree), "height after inserting %d", s.key)
		verifyInvariants(t, tree, model)
	}

	got, found := tree.Search(3)
	require.True(t, found)
	require.Equal(t, kv.Int(300), got)

	for _, k := range []int{1, 2} {
		v, found := tree.Delete(kv.Int(k))
		require.True(t, found)
		require.Equal(t, kv.Int(k*100), v)
		delete(model, k)
		verifyInvariants(t, tree, model)
	}
	require.Equal(t, []int{3, 4, 5}, collectChain(t, tree))

	drains := []struct {
		key      int
		rootKind nodeKind
		rootKeys int
		height   int
	}{
		{3, kindInner, 1, 2},
		{4, kindInner, 0, 2},
		{5, kindLeaf, 0, 1},
	}
	for _, s := range drains {
		_, found := tree.Delete(kv.Int(s.key))
		require.True(t, found)
		delete(model, s.key)
		require.Equal(t, s.rootKind, tree.root.kind, "root kind after deleting %d", s.key)
		require.Equal(t, s.rootKeys, tree.root.keyCount(), "root key count after deleting %d", s.key)
		require.Equal(t, s.height, treeHeight(tree), "height after deleting %d", s.key)
	}
	require.Zero(t, tree.Len())

	_, found = tree.Delete(42)
	require.False(t, found, "delete on a drained tree must miss")
}

// TestDelete_ShrinksHeight removes keys from the high end of an order-3
// tree and watches the redundant root levels collapse one by one.
func TestDelete_ShrinksHeight(t *testing.T) {
	tree := setupTree(t, 3)
	for k := 1; k <= 5; k++ {
		tree.Insert(kv.Int(k), kv.Int(k))
	}
	require.Equal(t, 3, treeHeight(tree))

	steps := []struct {
		key      int
		rootKind nodeKind
		rootKeys int
		height   int
	}{
		{5, kindInner, 1, 3},
		{4, kindInner, 1, 3},
		{3, kindInner, 0, 3},
		{2, kindInner, 0, 2},
	}
	for _, s := range steps {
		_, found := tree.Delete(kv.Int(s.key))
		require.True(t, found)
		require.Equal(t, s.rootKind, tree.root.kind, "root kind after deleting %d", s.key)
		require.Equal(t, s.rootKeys, tree.root.keyCount(), "root key count after deleting %d", s.key)
		require.Equal(t, s.height, treeHeight(tree), "height after deleting %d", s.key)
	}

	got, found := tree.Search(1)
	require.True(t, found)
	require.Equal(t, kv.Int(1), got)

	_, found = tree.Delete(1)
	require.True(t, found)
	require.Zero(t, tree.Len())
}

// TestDelete_SplicesDrainedLeafFromChain replays a deletion order that
// drains a leaf whose only neighbor slot is the placeholder, leaving it
// with no sibling to borrow from or merge into. The unlinked leaf must
// also leave the leaf chain: its predecessor has to advance past it.
func TestDelete_SplicesDrainedLeafFromChain(t *testing.T) {
	tree := setupTree(t, 3)
	model := make(map[int]int)

	for _, k := range []int{1, 3, 4, 6, 5, 0} {
		tree.Insert(kv.Int(k), kv.Int(k*10))
		model[k] = k * 10
	}
	for _, k := range []int{5, 6, 4} {
		got, found := tree.Delete(kv.Int(k))
		require.True(t, found)
		require.Equal(t, kv.Int(k*10), got)
		delete(model, k)
		verifyInvariants(t, tree, model)
	}
	require.Equal(t, []int{0, 1, 3}, collectChain(t, tree))
}

// TestLeafChain_StaysSorted checks that the leaf chain always yields the
// full ascending key sequence, across shuffled inserts and a wave of
// scattered deletions.
func TestLeafChain_StaysSorted(t *testing.T) {
	tree := setupTree(t, 4)
	model := make(map[int]int)

	for _, k := range rand.New(rand.NewSource(2)).Perm(100) {
		tree.Insert(kv.Int(k), kv.Int(k))
		model[k] = k
	}
	verifyInvariants(t, tree, model)

	want := make([]int, 0, 100)
	for k := 0; k < 100; k++ {
		want = append(want, k)
	}
	require.Equal(t, want, collectChain(t, tree))

	for k := 0; k < 100; k += 3 {
		_, found := tree.Delete(kv.Int(k))
		require.True(t, found)
		delete(model, k)
	}
	verifyInvariants(t, tree, model)

	want = want[:0]
	for k := 0; k < 100; k++ {
		if k%3 != 0 {
			want = append(want, k)
		}
	}
	require.Equal(t, want, collectChain(t, tree))
}

// TestRandomizedWorkload cross-checks the tree against a plain map under
// a seeded mix of inserts, overwrites and deletes at several orders,
// verifying the full structural invariants periodically and after a
// complete drain.
func TestRandomizedWorkload(t *testing.T) {
	for _, order := range []int{3, 4, 5, 8} {
		for seed := int64(0); seed < 3; seed++ {
			t.Run(fmt.Sprintf("order=%d/seed=%d", order, seed), func(t *testing.T) {
				rng := rand.New(rand.NewSource(seed))
				tree := setupTree(t, order)
				model := make(map[int]int)

				for op := 0; op < 2000; op++ {
					k := rng.Intn(500)
					if rng.Intn(10) < 6 {
						v := rng.Intn(100000)
						tree.Insert(kv.Int(k), kv.Int(v))
						model[k] = v
					} else {
						got, found := tree.Delete(kv.Int(k))
						want, ok := model[k]
						require.Equal(t, ok, found, "delete presence mismatch for key %d", k)
						if ok {
							require.Equal(t, kv.Int(want), got, "delete value mismatch for key %d", k)
							delete(model, k)
						}
					}
					if op%100 == 99 {
						verifyInvariants(t, tree, model)
					}
				}
				verifyInvariants(t, tree, model)

				remaining := make([]int, 0, len(model))
				for k := range model {
					remaining = append(remaining, k)
				}
				sort.Ints(remaining)
				for _, k := range remaining {
					got, found := tree.Delete(kv.Int(k))
					require.True(t, found, "drain missed key %d", k)
					require.Equal(t, kv.Int(model[k]), got)
					delete(model, k)
				}
				require.Zero(t, tree.Len())
				verifyInvariants(t, tree, model)
			})
		}
	}
}

// TestSequentialBulk pushes 100k ascending keys through one tree and
// drains them in the same order, the pattern an index behind a log
// replay sees, ending on an empty root leaf.
func TestSequentialBulk(t *testing.T) {
	const n = 100000
	tree := setupTree(t, 9)

	for k := 0; k < n; k++ {
		tree.Insert(kv.Int(k), kv.Int(k*2))
	}
	require.Equal(t, n, tree.Len())

	model := make(map[int]int, n)
	for k := 0; k < n; k++ {
		model[k] = k * 2
	}
	verifyInvariants(t, tree, model)

	for k := 0; k < n; k++ {
		got, found := tree.Delete(kv.Int(k))
		require.True(t, found, "key %d", k)
		require.Equal(t, kv.Int(k*2), got)
	}
	require.Zero(t, tree.Len())
	require.Equal(t, kindLeaf, tree.root.kind, "drained tree must settle on a bare leaf root")
	require.Zero(t, tree.root.keyCount())

	_, found := tree.Search(0)
	require.False(t, found)
}

// TestConcurrent_SearchSeesKeysAcrossRootSplits keeps a single key under
// constant lookup while a writer grows the tree from one full leaf
// through repeated root splits. The key is present the whole time, so a
// lookup that observes a half-applied split and misses is a consistency
// violation.
func TestConcurrent_SearchSeesKeysAcrossRootSplits(t *testing.T) {
	tree := setupTree(t, 3)
	tree.Insert(2, 20)

	done := make(chan struct{})
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				got, found := tree.Search(2)
				if !found {
					t.Error("key 2 reported absent while continuously present")
					return
				}
				if got != kv.Int(20) {
					t.Errorf("key 2 returned %v", got)
					return
				}
			}
		}()
	}

	for k := 3; k < 2000; k++ {
		tree.Insert(kv.Int(k), kv.Int(k))
	}
	close(done)
	wg.Wait()

	require.Equal(t, 1998, tree.Len())
}

// TestConcurrent_SearchDuringMutation runs readers against a key range
// the writers never touch while inserts and deletes reshape the rest of
// the tree. Every read must hit, and the final size must reflect exactly
// the writers' work.
func TestConcurrent_SearchDuringMutation(t *testing.T) {
	tree := setupTree(t, 16)
	for k := 0; k < 1000; k++ {
		tree.Insert(kv.Int(k), kv.Int(k))
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for k := 1000; k < 2000; k++ {
			tree.Insert(kv.Int(k), kv.Int(k))
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for k := 0; k < 500; k++ {
			tree.Delete(kv.Int(k))
		}
	}()

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 2000; i++ {
				k := 500 + rng.Intn(500)
				got, found := tree.Search(kv.Int(k))
				if !found {
					t.Errorf("stable key %d missing during mutation", k)
					return
				}
				if got != kv.Int(k) {
					t.Errorf("stable key %d returned %v", k, got)
					return
				}
			}
		}(int64(r))
	}

	wg.Wait()
	require.Equal(t, 1500, tree.Len())

	model := make(map[int]int, 1500)
	for k := 500; k < 2000; k++ {
		model[k] = k
	}
	verifyInvariants(t, tree, model)
}
