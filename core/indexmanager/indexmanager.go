package indexmanager

import (
	"context"
)

// IndexManager defines the common operations every KuroDB index family
// exposes to an embedding engine. Managers for other index families plug
// in behind the same surface.
type IndexManager interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool)
	// Delete reports whether the key was present.
	Delete(ctx context.Context, key string) bool
	// Len returns the number of keys currently indexed.
	Len() int
	// Name returns the name/type of this index manager (e.g., "bptree").
	Name() string
}

var _ IndexManager = (*OrderedIndexManager)(nil)
