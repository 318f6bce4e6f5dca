// Package bptree implements the in-memory B+ tree that forms the
// indexing core of KuroDB: point lookup, upsert and deletion with
// automatic node splitting, sibling borrowing and merging, plus the
// sorted leaf chain. Persistence, range iteration and transactions are
// the embedding engine's concern, not this package's.
package bptree

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sushant-115/kurodb/core/kv"
)

// --- Error Definitions ---

var (
	ErrInvalidOrder = errors.New("bptree order must be at least 3")
)

// Bptree is the tree coordinator. It owns the root variant and the
// fan-out parameter m: every node holds at most m-1 keys, so an inner
// node has at most m children. The root is the only node allowed to
// fall below minimum occupancy.
//
// Concurrency: mu is a reader/writer guard held for the entire call.
// Insert and Delete take it exclusively, since intermediate states
// (mid-split, mid-merge) are not safe to observe; Search takes the read
// side, so lookups run concurrently with each other and always see a
// fully applied tree. The per-node locks order the recursive descent
// underneath (always top-down, parent held while the child is taken).
type Bptree[K kv.Type[K], V kv.Type[V]] struct {
	mu     sync.RWMutex
	root   nodeRef[K, V]
	order  int
	size   int
	id     string
	logger *zap.Logger
}

// New creates an empty tree of the given order (fan-out). The root
// starts as the Empty sentinel and becomes a leaf on first insertion.
func New[K kv.Type[K], V kv.Type[V]](order int, logger *zap.Logger) (*Bptree[K, V], error) {
	if order < 3 {
		return nil, ErrInvalidOrder
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Bptree[K, V]{
		order: order,
		id:    uuid.NewString(),
	}
	t.logger = logger.With(zap.String("tree_id", t.id), zap.Int("order", order))
	t.logger.Debug("bptree created")
	return t, nil
}

// Order returns the fan-out parameter m.
func (t *Bptree[K, V]) Order() int { return t.order }

// Len returns the number of keys currently stored.
func (t *Bptree[K, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Search returns the value stored for key, or (zero, false) when the
// tree is empty or the key is absent. It never mutates the tree.
func (t *Bptree[K, V]) Search(key K) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root.search(key)
}

// Insert upserts the pair. If the root reports an upward split, the old
// root and the new sibling are wrapped under a fresh inner root with the
// promoted key as its single separator; this is the only way tree
// height grows.
func (t *Bptree[K, V]) Insert(key K, value V) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.root.isEmpty() {
		leaf := newLeafNode[K, V](t.order - 1)
		leaf.keys = append(leaf.keys, key)
		leaf.values = append(leaf.values, value)
		t.root = leafRef(leaf)
		t.size = 1
		return
	}

	res, replaced := t.root.insert(key, value)
	if !replaced {
		t.size++
	}
	if res != nil {
		newRoot := newInnerNode[K, V](t.order - 1)
		newRoot.keys = append(newRoot.keys, res.key)
		newRoot.children = append(newRoot.children, t.root, res.node)
		t.root = innerRef(newRoot)
		t.logger.Debug("root split", zap.String("separator", res.key.String()), zap.Int("size", t.size))
	}
}

// Delete removes key and returns its value, or (zero, false) when the
// key was not present. An inner root left with zero separators is
// structurally redundant: its sole child becomes the new root before
// the descent, shrinking tree height by one.
func (t *Bptree[K, V]) Delete(key K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.root.kind == kindInner && t.root.keyCount() == 0 {
		n := t.root.inner
		n.mu.Lock()
		child := n.children[0]
		n.mu.Unlock()
		t.root = child
		t.logger.Debug("root collapsed", zap.Int("size", t.size))
	}

	res := t.root.remove(key, nil, nil)
	if res.value == nil {
		var zero V
		return zero, false
	}
	// Any boundary-key report is discarded here: there is no parent
	// above the root to consume it.
	if res.orphan != nil {
		t.spliceOut(res.orphan, *res.orphanKey)
	}
	t.size--
	return *res.value, true
}

// spliceOut unthreads a drained leaf from the leaf chain after the
// removal descent has finished. The routing structure no longer reaches
// the dead leaf, but its chain predecessor still does. Rebalancing above
// a drained leaf only moves whole subtrees, so descending for the dead
// leaf's old boundary key lands exactly on that predecessor; when the
// dead leaf was the head of the chain the descent lands elsewhere and
// nothing points at it, so there is nothing to splice.
func (t *Bptree[K, V]) spliceOut(dead *leafNode[K, V], boundary K) {
	r := t.root
	for r.kind == kindInner {
		n := r.inner
		n.mu.Lock()
		if len(n.keys) == 0 {
			r = n.children[0]
		} else {
			r = n.children[n.childIndex(boundary)]
		}
		n.mu.Unlock()
	}
	if r.kind != kindLeaf {
		return
	}
	pred := r.leaf
	pred.mu.Lock()
	if pred.next == dead {
		pred.next = dead.next
	}
	pred.mu.Unlock()
	dead.next = nil
}
