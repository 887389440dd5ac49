package obshape

import (
	"fmt"
	"math"
	"math/bits"
)

// HeaderSize is the size of the big-endian content length
// at the start of every outboard and slice.
const HeaderSize = 8

// ChunkCount returns the number of chunks for content of the given length.
// Empty content still has one (empty) chunk.
func ChunkCount(length, chunkSize uint64) uint64 {
	if chunkSize == 0 {
		panic(fmt.Errorf("BUG: chunkSize must be positive"))
	}

	if length == 0 {
		return 1
	}

	n := length / chunkSize
	if length%chunkSize > 0 {
		n++
	}
	return n
}

// LeftCount returns the number of chunks in the left subtree
// of a node covering n chunks.
// It is the largest power of two strictly less than n.
func LeftCount(n uint64) uint64 {
	if n < 2 {
		panic(fmt.Errorf(
			"BUG: node must cover at least 2 chunks to have children (got %d)", n,
		))
	}

	return 1 << (bits.Len64(n-1) - 1)
}

// Depth returns the number of parents between chunk idx and the root,
// in a tree of n chunks.
func Depth(n, idx uint64) int {
	var d int
	for n > 1 {
		d++
		l := LeftCount(n)
		if idx < l {
			n = l
		} else {
			idx -= l
			n -= l
		}
	}
	return d
}

// OutboardSize returns the exact outboard size for n chunks
// with hashes of hashSize bytes.
//
// The second return value is false if the size does not fit in an int,
// which can only happen for a forged or corrupt length header.
func OutboardSize(n uint64, hashSize int) (int, bool) {
	if n == 0 || hashSize <= 0 {
		panic(fmt.Errorf(
			"BUG: need positive chunk count and hash size (got %d, %d)", n, hashSize,
		))
	}

	pairSize := uint64(2 * hashSize)
	parents := n - 1
	if parents > (math.MaxInt-HeaderSize)/pairSize {
		return 0, false
	}

	return HeaderSize + int(parents*pairSize), true
}

// Step is one parent on the path from the root to a chunk.
type Step struct {
	// Pre-order index of the parent.
	Parent uint64

	// Whether the chunk is under the parent's left child.
	// If so, the proof sibling is the parent's right hash.
	Left bool
}

// Path returns the parents from the root down to chunk idx,
// in a tree of n chunks.
// The path is empty when n is 1.
func Path(n, idx uint64) []Step {
	if idx >= n {
		panic(fmt.Errorf(
			"BUG: chunk index %d out of range for %d chunks", idx, n,
		))
	}

	steps := make([]Step, 0, Depth(n, idx))

	var pos uint64
	for n > 1 {
		l := LeftCount(n)
		if idx < l {
			steps = append(steps, Step{Parent: pos, Left: true})
			pos++
			n = l
		} else {
			steps = append(steps, Step{Parent: pos, Left: false})

			// Skip this parent and every parent of the left subtree.
			pos += l
			idx -= l
			n -= l
		}
	}

	return steps
}

// ChunkBounds returns the byte range [start, end) of chunk idx
// within content of the given length.
func ChunkBounds(idx, length, chunkSize uint64) (start, end uint64) {
	start = idx * chunkSize
	end = min(start+chunkSize, length)
	return start, end
}
