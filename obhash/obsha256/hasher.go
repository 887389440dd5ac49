package obsha256

import (
	"crypto/sha256"

	"github.com/gordian-engine/obtree/obhash"
)

const HashSize = sha256.Size

// Hasher is a [obhash.Hasher] backed by SHA256 hashes.
type Hasher struct{}

func (Hasher) Leaf(in []byte, c obhash.LeafContext, dst []byte) []byte {
	h := sha256.New()
	_, _ = h.Write([]byte{0x00})
	_, _ = h.Write(c.Index[:])
	_, _ = h.Write([]byte{obhash.RootFlag(c.Root)})
	_, _ = h.Write(in)
	return h.Sum(dst)
}

func (Hasher) Node(left, right []byte, c obhash.NodeContext, dst []byte) []byte {
	h := sha256.New()
	_, _ = h.Write([]byte{0x01})
	_, _ = h.Write([]byte{obhash.RootFlag(c.Root)})
	_, _ = h.Write(left)
	_, _ = h.Write(right)
	return h.Sum(dst)
}

func (Hasher) Size() int { return HashSize }
