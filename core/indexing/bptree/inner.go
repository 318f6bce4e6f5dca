package bptree

import (
	"slices"
	"sync"

	"github.com/sushant-115/kurodb/core/kv"
)

// innerNode is a routing node: sorted separator keys and one more child
// reference than keys. Everything under children[i] is < keys[i] and
// >= keys[i-1]. Inner nodes created by a split keep the promoted
// separator as their first key and carry the unreachable Empty
// placeholder in children[0]; a node created by a root grow has a real
// leftmost child instead.
type innerNode[K kv.Type[K], V kv.Type[V]] struct {
	mu       sync.Mutex
	keys     []K
	children []nodeRef[K, V]
	maxKeys  int
}

func newInnerNode[K kv.Type[K], V kv.Type[V]](maxKeys int) *innerNode[K, V] {
	return &innerNode[K, V]{
		keys:     make([]K, 0, maxKeys),
		children: make([]nodeRef[K, V], 0, maxKeys+1),
		maxKeys:  maxKeys,
	}
}

func (n *innerNode[K, V]) splitPoint() int { return n.maxKeys/2 + n.maxKeys%2 }

func (n *innerNode[K, V]) overfull() bool  { return len(n.keys) > n.maxKeys }
func (n *innerNode[K, V]) underfull() bool { return len(n.keys) < n.splitPoint() }
func (n *innerNode[K, V]) canSpare() bool  { return len(n.keys) > n.splitPoint() }

// childIndex locates the child to descend into: on an exact separator
// match the key lives in the subtree to the right of the separator,
// otherwise at the insertion point.
func (n *innerNode[K, V]) childIndex(key K) int {
	i, ok := slices.BinarySearchFunc(n.keys, key, kv.Compare[K])
	if ok {
		return i + 1
	}
	return i
}

func (n *innerNode[K, V]) search(key K) (V, bool) {
	return n.children[n.childIndex(key)].search(key)
}

// insert descends into exactly one child and absorbs any split the child
// reports: the promoted separator goes into our key sequence and the new
// sibling immediately to its right. If that overfills this node it
// splits itself in turn.
func (n *innerNode[K, V]) insert(key K, value V) (*splitResult[K, V], bool) {
	res, replaced := n.children[n.childIndex(key)].insert(key, value)
	if res == nil {
		return nil, replaced
	}
	i, ok := slices.BinarySearchFunc(n.keys, res.key, kv.Compare[K])
	if ok {
		panic("bptree: structural violation: promoted separator already present")
	}
	n.keys = slices.Insert(n.keys, i, res.key)
	n.children = slices.Insert(n.children, i+1, res.node)
	if !n.overfull() {
		return nil, replaced
	}
	return n.split(), replaced
}

// split promotes the separator at the split point and moves it, every
// key after it, and the children to their right into a new inner node.
// The new node keeps the promoted separator as its first key and gets
// the Empty placeholder as its leftmost child slot, which no search can
// reach.
func (n *innerNode[K, V]) split() *splitResult[K, V] {
	at := n.splitPoint()
	right := newInnerNode[K, V](n.maxKeys)
	right.keys = append(right.keys, n.keys[at:]...)
	right.children = append(right.children, nodeRef[K, V]{})
	right.children = append(right.children, n.children[at+1:]...)
	promoted := n.keys[at].Clone()
	n.keys = n.keys[:at]
	n.children = n.children[:at+1]
	return &splitResult[K, V]{key: promoted, node: innerRef(right)}
}

// remove descends into the owning child, handing it its adjacent
// siblings for borrowing, applies the child's boundary-key report to our
// own keys/children, and then rebalances this node the same way if it
// dropped below minimum occupancy.
func (n *innerNode[K, V]) remove(key K, left, right *nodeRef[K, V]) removeResult[K, V] {
	if len(n.keys) == 0 {
		// Zero-separator node (a pre-collapse root, or a link the
		// coordinator has not promoted yet): route transparently
		// through the sole child. It has no siblings to offer.
		res := n.children[0].remove(key, nil, nil)
		return removeResult[K, V]{value: res.value, orphan: res.orphan, orphanKey: res.orphanKey}
	}
	oldMin := n.keys[0].Clone()
	idx := n.childIndex(key)
	var childLeft, childRight *nodeRef[K, V]
	if idx > 0 {
		childLeft = &n.children[idx-1]
	}
	if idx < len(n.children)-1 {
		childRight = &n.children[idx+1]
	}

	res := n.children[idx].remove(key, childLeft, childRight)
	survived := true
	switch {
	case res.oldKey != nil && res.newKey != nil && res.value != nil:
		// The reported minimum changed; refresh the matching separator
		// (it may belong to the child or to the sibling it borrowed from).
		if j, ok := slices.BinarySearchFunc(n.keys, *res.oldKey, kv.Compare[K]); ok {
			n.keys[j] = (*res.newKey).Clone()
		}
	case res.oldKey != nil && res.newKey == nil && res.value != nil:
		// A node was merged or drained away; drop its separator and
		// reference. j+1 == idx means the child itself folded into its
		// left sibling.
		j, ok := slices.BinarySearchFunc(n.keys, *res.oldKey, kv.Compare[K])
		if !ok {
			panic("bptree: structural violation: separator missing for merged child")
		}
		n.keys = slices.Delete(n.keys, j, j+1)
		n.children = slices.Delete(n.children, j+1, j+2)
		if j+1 == idx {
			survived = false
		}
	case res.value != nil:
		return removeResult[K, V]{value: res.value, orphan: res.orphan, orphanKey: res.orphanKey}
	default:
		return removeResult[K, V]{}
	}
	removed := res.value
	orphan, orphanKey := res.orphan, res.orphanKey

	// A rebalance resolved through the right sibling can move the
	// child's own minimum without room to report it; re-derive the
	// child's separator so it never goes stale.
	if survived && idx > 0 && idx < len(n.children) {
		if m, ok := n.children[idx].minKey(); ok {
			n.keys[idx-1] = m
		}
	}

	if !n.underfull() {
		if n.keys[0].Compare(oldMin) != 0 {
			newMin := n.keys[0].Clone()
			return removeResult[K, V]{oldKey: &oldMin, newKey: &newMin, value: removed, orphan: orphan, orphanKey: orphanKey}
		}
		return removeResult[K, V]{value: removed, orphan: orphan, orphanKey: orphanKey}
	}

	if left != nil && !left.isEmpty() {
		ls := left.asInner()
		ls.mu.Lock()
		if ls.canSpare() {
			bk := ls.keys[len(ls.keys)-1]
			bc := ls.children[len(ls.children)-1]
			ls.keys = ls.keys[:len(ls.keys)-1]
			ls.children = ls.children[:len(ls.children)-1]
			ls.mu.Unlock()
			n.keys = slices.Insert(n.keys, 0, bk)
			// The borrowed child goes behind the placeholder slot.
			n.children = slices.Insert(n.children, 1, bc)
			newMin := bk.Clone()
			return removeResult[K, V]{oldKey: &oldMin, newKey: &newMin, value: removed, orphan: orphan, orphanKey: orphanKey}
		}
		// Fold this node into the left sibling, dropping the artificial
		// placeholder slot before splicing.
		n.children = slices.Delete(n.children, 0, 1)
		ls.keys = append(ls.keys, n.keys...)
		ls.children = append(ls.children, n.children...)
		n.keys, n.children = nil, nil
		ls.mu.Unlock()
		return removeResult[K, V]{oldKey: &oldMin, value: removed, orphan: orphan, orphanKey: orphanKey}
	}

	if right != nil && !right.isEmpty() {
		rs := right.asInner()
		rs.mu.Lock()
		if rs.canSpare() {
			bk := rs.keys[0]
			bc := rs.children[1]
			rs.keys = slices.Delete(rs.keys, 0, 1)
			rs.children = slices.Delete(rs.children, 1, 2)
			newMin := rs.keys[0].Clone()
			rs.mu.Unlock()
			oldKey := bk.Clone()
			n.keys = append(n.keys, bk)
			n.children = append(n.children, bc)
			return removeResult[K, V]{oldKey: &oldKey, newKey: &newMin, value: removed, orphan: orphan, orphanKey: orphanKey}
		}
		// Absorb the right sibling; its leading slot is the placeholder.
		oldKey := rs.keys[0].Clone()
		rs.children = slices.Delete(rs.children, 0, 1)
		n.keys = append(n.keys, rs.keys...)
		n.children = append(n.children, rs.children...)
		rs.keys, rs.children = nil, nil
		rs.mu.Unlock()
		return removeResult[K, V]{oldKey: &oldKey, value: removed, orphan: orphan, orphanKey: orphanKey}
	}

	// Underfull with no sibling to lean on. A node reduced to just the
	// placeholder slot routes nothing anymore and reports itself for
	// unlinking; the root path stays put until the coordinator collapses
	// it on the next remove.
	if len(n.keys) == 0 && (len(n.children) == 0 || n.children[0].isEmpty()) &&
		(left != nil || right != nil) {
		return removeResult[K, V]{oldKey: &oldMin, value: removed, orphan: orphan, orphanKey: orphanKey}
	}
	return removeResult[K, V]{value: removed, orphan: orphan, orphanKey: orphanKey}
}
