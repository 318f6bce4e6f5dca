package bptree

import (
	"github.com/sushant-115/kurodb/core/kv"
)

// --- Node Variant ---

// nodeKind tags the three possible shapes of a tree position. The set is
// closed: every dispatch switches exhaustively over it and anything else
// is a fatal structural violation.
type nodeKind uint8

const (
	// kindEmpty marks "no node yet": the root of a brand-new tree, and
	// the leading child slot of an inner node freshly produced by a
	// split. The slot is unreachable by search because the split
	// duplicates the promoted separator into the new node.
	kindEmpty nodeKind = iota
	kindLeaf
	kindInner
)

// nodeRef is the tagged union over {empty, leaf, inner}. It is a small
// value; the leaf/inner pointers are the shared, lock-guarded handles. A
// handle may be reachable both through a parent's children slice and
// through a sibling reference handed down during a rebalance, so all
// content access goes through the node's own mutex.
//
// Locking discipline: a node's lock is held for the full span of the
// recursive call into it, so the whole root-to-leaf path is pinned while
// a frame runs (the coarse variant of the descent protocol). Sibling
// locks are only ever taken while the common parent is still held, which
// serializes them against any other path that could reach the sibling.
type nodeRef[K kv.Type[K], V kv.Type[V]] struct {
	kind  nodeKind
	leaf  *leafNode[K, V]
	inner *innerNode[K, V]
}

func leafRef[K kv.Type[K], V kv.Type[V]](l *leafNode[K, V]) nodeRef[K, V] {
	return nodeRef[K, V]{kind: kindLeaf, leaf: l}
}

func innerRef[K kv.Type[K], V kv.Type[V]](n *innerNode[K, V]) nodeRef[K, V] {
	return nodeRef[K, V]{kind: kindInner, inner: n}
}

func (r nodeRef[K, V]) isEmpty() bool { return r.kind == kindEmpty }

// asLeaf returns the leaf handle. A rebalance that reaches a non-leaf
// through a leaf's sibling slot has already corrupted the tree, so this
// aborts rather than continuing.
func (r nodeRef[K, V]) asLeaf() *leafNode[K, V] {
	if r.kind != kindLeaf {
		panic("bptree: structural violation: leaf sibling is not a leaf")
	}
	return r.leaf
}

// asInner is the inner-node counterpart of asLeaf.
func (r nodeRef[K, V]) asInner() *innerNode[K, V] {
	if r.kind != kindInner {
		panic("bptree: structural violation: inner sibling is not an inner node")
	}
	return r.inner
}

// --- Upward propagation results ---

// splitResult reports an overflow to the parent frame: the separator key
// to promote and the freshly created right sibling. A nil *splitResult
// means the insert was absorbed without splitting.
type splitResult[K kv.Type[K], V kv.Type[V]] struct {
	key  K
	node nodeRef[K, V]
}

// removeResult is the triple a remove call hands back to its parent.
//
//	oldKey+newKey+value: the child survives but its minimum key changed;
//	                     replace the separator equal to oldKey.
//	oldKey+value:        the node owning oldKey was merged away; delete
//	                     that separator and its child reference.
//	value:               removed with no structural change upward.
//	none:                key not found.
//
// orphan rides alongside the triple: a leaf that drained to zero keys
// and was unlinked from the routing structure but is still threaded in
// the leaf chain. Its chain predecessor may sit in a subtree none of the
// unwinding frames can see, so every frame passes the orphan up
// untouched and the coordinator splices it out after the descent
// finishes, locating the predecessor by orphanKey (the boundary the
// dead leaf was routed by).
type removeResult[K kv.Type[K], V kv.Type[V]] struct {
	oldKey *K
	newKey *K
	value  *V

	orphan    *leafNode[K, V]
	orphanKey *K
}

// --- Dispatch ---

// search forwards the lookup under the node's lock. The lock is held
// across the recursive descent below this node.
func (r nodeRef[K, V]) search(key K) (V, bool) {
	switch r.kind {
	case kindLeaf:
		r.leaf.mu.Lock()
		defer r.leaf.mu.Unlock()
		return r.leaf.search(key)
	case kindInner:
		r.inner.mu.Lock()
		defer r.inner.mu.Unlock()
		return r.inner.search(key)
	case kindEmpty:
		var zero V
		return zero, false
	}
	panic("bptree: structural violation: unknown node kind")
}

// insert forwards the upsert under the node's lock. replaced reports
// whether an existing value was overwritten rather than a new key added.
func (r nodeRef[K, V]) insert(key K, value V) (res *splitResult[K, V], replaced bool) {
	switch r.kind {
	case kindLeaf:
		r.leaf.mu.Lock()
		defer r.leaf.mu.Unlock()
		return r.leaf.insert(key, value)
	case kindInner:
		r.inner.mu.Lock()
		defer r.inner.mu.Unlock()
		return r.inner.insert(key, value)
	case kindEmpty:
		return nil, false
	}
	panic("bptree: structural violation: unknown node kind")
}

// remove forwards the deletion under the node's lock. left and right are
// borrowed references to the adjacent entries in the parent's children
// slice (nil when absent); ownership stays with the parent, and only the
// frame performing a merge ever empties a sibling.
func (r nodeRef[K, V]) remove(key K, left, right *nodeRef[K, V]) removeResult[K, V] {
	switch r.kind {
	case kindLeaf:
		r.leaf.mu.Lock()
		defer r.leaf.mu.Unlock()
		return r.leaf.remove(key, left, right)
	case kindInner:
		r.inner.mu.Lock()
		defer r.inner.mu.Unlock()
		return r.inner.remove(key, left, right)
	case kindEmpty:
		return removeResult[K, V]{}
	}
	panic("bptree: structural violation: unknown node kind")
}

// minKey reports the smallest key bounding the subtree, used by a parent
// to refresh a child's separator after a removal reshuffled its entries.
func (r nodeRef[K, V]) minKey() (K, bool) {
	switch r.kind {
	case kindLeaf:
		r.leaf.mu.Lock()
		defer r.leaf.mu.Unlock()
		if len(r.leaf.keys) == 0 {
			var zero K
			return zero, false
		}
		return r.leaf.keys[0].Clone(), true
	case kindInner:
		r.inner.mu.Lock()
		n := r.inner
		if len(n.keys) > 0 {
			k := n.keys[0].Clone()
			n.mu.Unlock()
			return k, true
		}
		if len(n.children) == 0 {
			n.mu.Unlock()
			var zero K
			return zero, false
		}
		child := n.children[0]
		n.mu.Unlock()
		return child.minKey()
	case kindEmpty:
		var zero K
		return zero, false
	}
	panic("bptree: structural violation: unknown node kind")
}

// keyCount reports the node's current key count, zero for the sentinel.
func (r nodeRef[K, V]) keyCount() int {
	switch r.kind {
	case kindLeaf:
		r.leaf.mu.Lock()
		defer r.leaf.mu.Unlock()
		return len(r.leaf.keys)
	case kindInner:
		r.inner.mu.Lock()
		defer r.inner.mu.Unlock()
		return len(r.inner.keys)
	case kindEmpty:
		return 0
	}
	panic("bptree: structural violation: unknown node kind")
}
