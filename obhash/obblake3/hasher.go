// Package obblake3 contains the default [obhash.Hasher], backed by BLAKE3.
package obblake3

import (
	"github.com/gordian-engine/obtree/obhash"
	"github.com/zeebo/blake3"
)

const HashSize = 32

// Hasher is a [obhash.Hasher] backed by BLAKE3 hashes.
type Hasher struct{}

func (Hasher) Leaf(in []byte, c obhash.LeafContext, dst []byte) []byte {
	h := blake3.New()
	_, _ = h.Write([]byte("L."))
	_, _ = h.Write(c.Index[:])
	_, _ = h.Write([]byte{obhash.RootFlag(c.Root)})
	_, _ = h.Write(in)
	return h.Sum(dst)
}

func (Hasher) Node(left, right []byte, c obhash.NodeContext, dst []byte) []byte {
	h := blake3.New()
	_, _ = h.Write([]byte("N."))
	_, _ = h.Write([]byte{obhash.RootFlag(c.Root)})
	_, _ = h.Write(left)
	_, _ = h.Write(right)
	return h.Sum(dst)
}

func (Hasher) Size() int { return HashSize }
