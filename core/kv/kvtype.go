// Package kv defines the capability contract every key and value type
// stored in a KuroDB index must satisfy: total ordering, independent
// copying, and a human-readable representation. Nothing else is assumed
// by the indexing core.
package kv

import (
	"cmp"
	"slices"
	"strconv"
)

// Type is the constraint attached to the generic index types. Compare
// must implement a total order (negative, zero, positive for <, ==, >).
// Clone must return a copy that shares no mutable state with the
// receiver, so the index can duplicate separator keys without aliasing.
// String is used only for diagnostics and logging.
type Type[T any] interface {
	Compare(other T) int
	Clone() T
	String() string
}

// Compare is a ready-made comparison function for any kv.Type, in the
// shape expected by slices.BinarySearchFunc.
func Compare[T Type[T]](a, b T) int {
	return a.Compare(b)
}

// Int is an ordered integer key/value.
type Int int

func (i Int) Compare(other Int) int { return cmp.Compare(i, other) }
func (i Int) Clone() Int            { return i }
func (i Int) String() string        { return strconv.Itoa(int(i)) }

// String is an ordered string key/value. Go strings are immutable, so
// Clone can return the receiver as-is.
type String string

func (s String) Compare(other String) int { return cmp.Compare(s, other) }
func (s String) Clone() String            { return s }
func (s String) String() string           { return string(s) }

// Bytes is an ordered byte-slice key/value. Unlike Int and String it is
// mutable, so Clone copies the backing array.
type Bytes []byte

func (b Bytes) Compare(other Bytes) int { return slices.Compare(b, other) }
func (b Bytes) Clone() Bytes            { return slices.Clone(b) }
func (b Bytes) String() string          { return string(b) }
