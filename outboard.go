package obtree

import (
	"encoding/binary"
	"fmt"

	"github.com/gordian-engine/obtree/internal/obshape"
)

// pairSize is the size of one parent's entry in the outboard:
// its left child's hash followed by its right child's hash.
const pairSize = 2 * HashSize

// outboardView is a validated, read-only view of an outboard.
type outboardView struct {
	length    uint64
	nChunks   uint64
	chunkSize uint64

	// The parent pairs, in pre-order.
	pairs []byte
}

func parseOutboard(b []byte, chunkSize uint64) (outboardView, error) {
	if len(b) < obshape.HeaderSize {
		return outboardView{}, fmt.Errorf(
			"%w: %d bytes is shorter than the %d-byte length header",
			ErrMalformedOutboard, len(b), obshape.HeaderSize,
		)
	}

	length := binary.BigEndian.Uint64(b)
	n := obshape.ChunkCount(length, chunkSize)

	want, ok := obshape.OutboardSize(n, HashSize)
	if !ok {
		return outboardView{}, fmt.Errorf(
			"%w: declared content length %d is too large for an outboard",
			ErrMalformedOutboard, length,
		)
	}
	if len(b) != want {
		return outboardView{}, fmt.Errorf(
			"%w: declared content length %d requires %d outboard bytes, got %d",
			ErrMalformedOutboard, length, want, len(b),
		)
	}

	return outboardView{
		length:    length,
		nChunks:   n,
		chunkSize: chunkSize,

		pairs: b[obshape.HeaderSize:],
	}, nil
}

// pair returns the child hashes stored for the parent at pre-order index pos.
func (v outboardView) pair(pos uint64) (left, right []byte) {
	start := pos * pairSize
	p := v.pairs[start : start+pairSize]
	return p[:HashSize], p[HashSize:]
}

// chunkIndex converts a byte offset to a chunk index,
// rejecting offsets that do not start a chunk of the content.
func (v outboardView) chunkIndex(offset uint64) (uint64, error) {
	return chunkIndex(offset, v.chunkSize, v.nChunks)
}

// expectedChunkLen is the exact length of chunk idx.
func (v outboardView) expectedChunkLen(idx uint64) uint64 {
	start, end := obshape.ChunkBounds(idx, v.length, v.chunkSize)
	return end - start
}

func chunkIndex(offset, chunkSize, nChunks uint64) (uint64, error) {
	if offset%chunkSize != 0 {
		return 0, fmt.Errorf(
			"%w: offset %d is not a multiple of chunk size %d",
			ErrMisalignedOffset, offset, chunkSize,
		)
	}

	idx := offset / chunkSize
	if idx >= nChunks {
		return 0, fmt.Errorf(
			"%w: offset %d is chunk %d but content only has %d chunks",
			ErrOffsetOutOfRange, offset, idx, nChunks,
		)
	}

	return idx, nil
}
