package obtree

import (
	"bytes"
	"fmt"

	"github.com/gordian-engine/obtree/internal/obshape"
	"github.com/gordian-engine/obtree/obhash"
)

// VerifyChunk reports whether chunk is the genuine chunk at offset
// in the content whose trusted root hash is root,
// using only the chunk and the content's outboard.
//
// The returned error wraps exactly one of
// [ErrMalformedOutboard], [ErrMisalignedOffset], [ErrOffsetOutOfRange],
// [ErrChunkLength], or [ErrVerificationMismatch].
// Use [Refetchable] to decide whether to fetch the chunk again.
//
// VerifyChunk does not modify any of its arguments
// and is safe to call concurrently.
func VerifyChunk(chunk []byte, offset uint64, outboard []byte, root Hash, cfg Config) error {
	cfg.mustValidate()

	ob, err := parseOutboard(outboard, uint64(cfg.ChunkSize))
	if err != nil {
		return err
	}

	idx, err := ob.chunkIndex(offset)
	if err != nil {
		return err
	}

	if want := ob.expectedChunkLen(idx); uint64(len(chunk)) != want {
		return fmt.Errorf(
			"%w: chunk %d must be %d bytes, got %d",
			ErrChunkLength, idx, want, len(chunk),
		)
	}

	h := cfg.Hasher

	// Alternate between two buffers while walking up the tree,
	// as the hasher must not write into its own input.
	var bufA, bufB [HashSize]byte

	cur := h.Leaf(chunk, obhash.NewLeafContext(idx, ob.nChunks == 1), bufA[:0])
	next := bufB[:0]

	// Walk from the chunk's parent up to the root.
	// The sibling hashes come from the outboard only.
	steps := obshape.Path(ob.nChunks, idx)
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]
		left, right := ob.pair(s.Parent)
		nc := obhash.NodeContext{Root: i == 0}

		var out []byte
		if s.Left {
			out = h.Node(cur, right, nc, next)
		} else {
			out = h.Node(left, cur, nc, next)
		}

		next = cur[:0]
		cur = out
	}

	if !bytes.Equal(cur, root[:]) {
		return fmt.Errorf(
			"%w: chunk %d: calculated root %x, expected %x",
			ErrVerificationMismatch, idx, cur, root[:],
		)
	}

	return nil
}
