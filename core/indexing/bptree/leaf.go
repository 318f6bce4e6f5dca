package bptree

import (
	"slices"
	"sync"

	"github.com/sushant-115/kurodb/core/kv"
)

// leafNode is a terminal node: sorted unique keys, the parallel values
// slice (values[i] belongs to keys[i]), and the next pointer of the leaf
// chain. The chain yields the complete ascending key sequence across all
// leaves regardless of the routing structure above.
type leafNode[K kv.Type[K], V kv.Type[V]] struct {
	mu      sync.Mutex
	keys    []K
	values  []V
	next    *leafNode[K, V]
	maxKeys int
}

func newLeafNode[K kv.Type[K], V kv.Type[V]](maxKeys int) *leafNode[K, V] {
	return &leafNode[K, V]{
		keys:    make([]K, 0, maxKeys),
		values:  make([]V, 0, maxKeys),
		maxKeys: maxKeys,
	}
}

// splitPoint is ceil(maxKeys/2): the index at which an overfull leaf
// divides, and the minimum key count a non-root leaf must keep.
func (l *leafNode[K, V]) splitPoint() int { return l.maxKeys/2 + l.maxKeys%2 }

func (l *leafNode[K, V]) overfull() bool  { return len(l.keys) > l.maxKeys }
func (l *leafNode[K, V]) underfull() bool { return len(l.keys) < l.splitPoint() }

// canSpare reports whether a sibling may give up one entry without going
// below minimum occupancy itself.
func (l *leafNode[K, V]) canSpare() bool { return len(l.keys) > l.splitPoint() }

func (l *leafNode[K, V]) search(key K) (V, bool) {
	i, ok := slices.BinarySearchFunc(l.keys, key, kv.Compare[K])
	if !ok {
		var zero V
		return zero, false
	}
	return l.values[i].Clone(), true
}

// insert upserts the pair at its sorted position. An exact match only
// overwrites the value; otherwise the pair is spliced in and the leaf
// splits if it now exceeds maxKeys.
func (l *leafNode[K, V]) insert(key K, value V) (*splitResult[K, V], bool) {
	i, ok := slices.BinarySearchFunc(l.keys, key, kv.Compare[K])
	if ok {
		l.values[i] = value
		return nil, true
	}
	l.keys = slices.Insert(l.keys, i, key)
	l.values = slices.Insert(l.values, i, value)
	if !l.overfull() {
		return nil, false
	}
	return l.split(), false
}

// split moves everything from the split point onward into a new right
// leaf. The new leaf inherits this leaf's next pointer and becomes the
// new next, keeping the chain sorted; its first key is promoted as the
// separator.
func (l *leafNode[K, V]) split() *splitResult[K, V] {
	at := l.splitPoint()
	right := newLeafNode[K, V](l.maxKeys)
	right.keys = append(right.keys, l.keys[at:]...)
	right.values = append(right.values, l.values[at:]...)
	right.next = l.next
	l.next = right
	l.keys = l.keys[:at]
	l.values = l.values[:at]
	return &splitResult[K, V]{key: right.keys[0].Clone(), node: leafRef(right)}
}

// remove deletes the pair for key if present and rebalances when the
// leaf drops below minimum occupancy: borrow the last entry of the left
// sibling, else the first entry of the right sibling, else fold into
// whichever sibling exists. An Empty sibling slot (the placeholder of a
// freshly split inner parent) is treated as absent.
func (l *leafNode[K, V]) remove(key K, left, right *nodeRef[K, V]) removeResult[K, V] {
	if len(l.keys) == 0 {
		// Drained root leaf.
		return removeResult[K, V]{}
	}
	oldMin := l.keys[0].Clone()
	i, ok := slices.BinarySearchFunc(l.keys, key, kv.Compare[K])
	if !ok {
		return removeResult[K, V]{}
	}
	removed := l.values[i]
	l.keys = slices.Delete(l.keys, i, i+1)
	l.values = slices.Delete(l.values, i, i+1)

	if !l.underfull() {
		if i == 0 {
			newMin := l.keys[0].Clone()
			return removeResult[K, V]{oldKey: &oldMin, newKey: &newMin, value: &removed}
		}
		return removeResult[K, V]{value: &removed}
	}

	// The boundary key the parent currently routes this leaf by: the old
	// minimum if the minimum itself was removed, the surviving minimum
	// otherwise.
	boundary := oldMin
	if i > 0 {
		boundary = l.keys[0].Clone()
	}

	if left != nil && !left.isEmpty() {
		ls := left.asLeaf()
		ls.mu.Lock()
		if ls.canSpare() {
			last := len(ls.keys) - 1
			bk, bv := ls.keys[last], ls.values[last]
			ls.keys = ls.keys[:last]
			ls.values = ls.values[:last]
			ls.mu.Unlock()
			l.keys = slices.Insert(l.keys, 0, bk)
			l.values = slices.Insert(l.values, 0, bv)
			newMin := bk.Clone()
			return removeResult[K, V]{oldKey: &boundary, newKey: &newMin, value: &removed}
		}
		// Fold this leaf into the left sibling and splice it out of the
		// chain. The parent drops our separator and child reference.
		ls.keys = append(ls.keys, l.keys...)
		ls.values = append(ls.values, l.values...)
		ls.next = l.next
		l.keys, l.values, l.next = nil, nil, nil
		ls.mu.Unlock()
		return removeResult[K, V]{oldKey: &boundary, value: &removed}
	}

	if right != nil && !right.isEmpty() {
		rs := right.asLeaf()
		rs.mu.Lock()
		if rs.canSpare() {
			bk, bv := rs.keys[0], rs.values[0]
			rs.keys = slices.Delete(rs.keys, 0, 1)
			rs.values = slices.Delete(rs.values, 0, 1)
			newMin := rs.keys[0].Clone()
			rs.mu.Unlock()
			oldKey := bk.Clone()
			l.keys = append(l.keys, bk)
			l.values = append(l.values, bv)
			return removeResult[K, V]{oldKey: &oldKey, newKey: &newMin, value: &removed}
		}
		// Absorb the right sibling; the parent drops its separator and
		// child reference.
		oldKey := rs.keys[0].Clone()
		l.keys = append(l.keys, rs.keys...)
		l.values = append(l.values, rs.values...)
		l.next = rs.next
		rs.keys, rs.values, rs.next = nil, nil, nil
		rs.mu.Unlock()
		return removeResult[K, V]{oldKey: &oldKey, value: &removed}
	}

	// No sibling can help. A drained non-root leaf (possible when its
	// only neighbor slot is the placeholder) reports itself for
	// unlinking, keeping its next pointer so the coordinator can splice
	// it out of the chain; the root leaf simply stays empty.
	if len(l.keys) == 0 && (left != nil || right != nil) {
		return removeResult[K, V]{oldKey: &boundary, value: &removed, orphan: l, orphanKey: &boundary}
	}
	return removeResult[K, V]{value: &removed}
}
