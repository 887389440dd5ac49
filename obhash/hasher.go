// Package obhash defines the hashing rule shared by the outboard tree builder
// and every verifier of that tree.
//
// Builder and verifier must use the same [Hasher];
// a tree built with one Hasher never verifies under another.
package obhash

import "encoding/binary"

// Hasher is the user-defined interface for hashing leaves and nodes.
// The builder passes raw chunk data to the Leaf method to create a leaf node,
// and it passes the output of earlier Leaf or Node calls to the Node method.
//
// To be allocation-efficient, the Hasher implementation
// must append its hash output to dst, instead of creating a new byte slice.
// Hasher must not retain references to the dst slice.
//
// Leaf and Node outputs must be domain-separated from each other,
// so that a leaf hash can never be presented as a parent or vice versa.
//
// Furthermore, Hasher methods must be safe to call concurrently.
type Hasher interface {
	Leaf(in []byte, c LeafContext, dst []byte) []byte
	Node(left, right []byte, c NodeContext, dst []byte) []byte

	// Size is the number of bytes that Leaf and Node append.
	Size() int
}

// LeafContext is additional context for [Hasher.Leaf].
type LeafContext struct {
	// The index of the chunk within the entire content.
	// Encoded as a big-endian uint64.
	Index [8]byte

	// Whether this leaf is the root of the tree,
	// which is only the case when the content has a single chunk.
	Root bool
}

// NewLeafContext returns a LeafContext for the chunk at idx.
func NewLeafContext(idx uint64, root bool) LeafContext {
	var c LeafContext
	binary.BigEndian.PutUint64(c.Index[:], idx)
	c.Root = root
	return c
}

// NodeContext is additional context for [Hasher.Node].
type NodeContext struct {
	// Whether this node is the root of the tree.
	Root bool
}

// RootFlag is the single byte that hashers write for a context's root flag.
func RootFlag(root bool) byte {
	if root {
		return 1
	}
	return 0
}
