package obtree

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/gordian-engine/obtree/internal/obshape"
	"github.com/gordian-engine/obtree/obhash"
)

// PartialTree tracks the verified chunks of one content blob
// while they arrive, in any order, from untrusted sources.
//
// The whole outboard is checked against the root hash once,
// in [NewPartialTree].
// After that, every parent hash is trusted,
// so [*PartialTree.AddChunk] only needs to hash the chunk itself
// and compare it against its trusted leaf hash.
//
// This type does not hold references to any chunk data.
// Use AddChunk to confirm the chunk,
// and store the chunk data externally.
//
// A PartialTree is safe for concurrent use.
type PartialTree struct {
	log *slog.Logger

	h  obhash.Hasher
	ob outboardView

	root Hash

	mu sync.Mutex

	// Which chunks have been verified through AddChunk.
	haveChunks *bitset.BitSet
}

// NewPartialTree validates outboard against the trusted root hash
// and returns a PartialTree with no chunks yet.
//
// If the outboard is malformed or does not hash to root,
// the returned error wraps [ErrMalformedOutboard];
// no chunk could ever be verified against it.
func NewPartialTree(
	log *slog.Logger,
	outboard []byte,
	root Hash,
	cfg Config,
) (*PartialTree, error) {
	cfg.mustValidate()

	ob, err := parseOutboard(outboard, uint64(cfg.ChunkSize))
	if err != nil {
		return nil, err
	}

	// Hold our own copy, since the trusted hashes must not change under us.
	ob.pairs = bytes.Clone(ob.pairs)

	t := &PartialTree{
		log: log,

		h:  cfg.Hasher,
		ob: ob,

		root: root,

		haveChunks: bitset.MustNew(uint(ob.nChunks)),
	}

	if ob.nChunks > 1 {
		if err := t.checkParents(0, ob.nChunks, root[:], true); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedOutboard, err)
		}
	}

	return t, nil
}

// checkParents confirms that the parent at pre-order index pos,
// covering n > 1 chunks, and every parent beneath it,
// hash to their trusted values.
func (t *PartialTree) checkParents(pos, n uint64, want []byte, root bool) error {
	left, right := t.ob.pair(pos)

	var got [HashSize]byte
	t.h.Node(left, right, obhash.NodeContext{Root: root}, got[:0])
	if !bytes.Equal(got[:], want) {
		return fmt.Errorf(
			"%w: parent %d: calculated %x, expected %x",
			ErrVerificationMismatch, pos, got[:], want,
		)
	}

	l := obshape.LeftCount(n)
	if l > 1 {
		if err := t.checkParents(pos+1, l, left, false); err != nil {
			return err
		}
	}
	if n-l > 1 {
		if err := t.checkParents(pos+l, n-l, right, false); err != nil {
			return err
		}
	}
	return nil
}

// AddChunk confirms that chunk is the genuine chunk at offset.
//
// If the chunk was already added,
// AddChunk returns [ErrAlreadyHadChunk].
// Otherwise the error, if any, is the same as from [VerifyChunk].
func (t *PartialTree) AddChunk(offset uint64, chunk []byte) error {
	idx, err := t.ob.chunkIndex(offset)
	if err != nil {
		return err
	}

	if want := t.ob.expectedChunkLen(idx); uint64(len(chunk)) != want {
		err := fmt.Errorf(
			"%w: chunk %d must be %d bytes, got %d",
			ErrChunkLength, idx, want, len(chunk),
		)
		t.log.Debug("Rejected chunk", "idx", idx, "err", err)
		return err
	}

	// Hashing happens outside the lock;
	// the trusted hashes are never modified after construction.
	var got [HashSize]byte
	t.h.Leaf(chunk, obhash.NewLeafContext(idx, t.ob.nChunks == 1), got[:0])

	if want := t.leafHash(idx); !bytes.Equal(got[:], want) {
		err := fmt.Errorf(
			"%w: chunk %d: calculated %x, expected %x",
			ErrVerificationMismatch, idx, got[:], want,
		)
		t.log.Debug("Rejected chunk", "idx", idx, "err", err)
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.haveChunks.Test(uint(idx)) {
		return ErrAlreadyHadChunk
	}
	t.haveChunks.Set(uint(idx))

	return nil
}

// leafHash returns the trusted hash of chunk idx.
func (t *PartialTree) leafHash(idx uint64) []byte {
	if t.ob.nChunks == 1 {
		return t.root[:]
	}

	steps := obshape.Path(t.ob.nChunks, idx)
	last := steps[len(steps)-1]
	left, right := t.ob.pair(last.Parent)
	if last.Left {
		return left
	}
	return right
}

// HasChunk reports whether the chunk at index idx
// has been added via [*PartialTree.AddChunk].
//
// HasChunk reports false if idx is out of bounds.
func (t *PartialTree) HasChunk(idx uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.haveChunks.Test(uint(idx))
}

// Missing returns the indices of chunks not yet added, in ascending order.
func (t *PartialTree) Missing() []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]uint64, 0, t.ob.nChunks-uint64(t.haveChunks.Count()))
	for u, ok := t.haveChunks.NextClear(0); ok && uint64(u) < t.ob.nChunks; u, ok = t.haveChunks.NextClear(u + 1) {
		out = append(out, uint64(u))
	}
	return out
}

// Complete reports whether every chunk has been added.
func (t *PartialTree) Complete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return uint64(t.haveChunks.Count()) == t.ob.nChunks
}

// NumChunks returns the number of chunks in the content.
func (t *PartialTree) NumChunks() uint64 {
	return t.ob.nChunks
}

// ContentLength returns the content length declared by the outboard.
func (t *PartialTree) ContentLength() uint64 {
	return t.ob.length
}

// ChunkBounds returns the byte range [start, end) of chunk idx.
func (t *PartialTree) ChunkBounds(idx uint64) (start, end uint64) {
	if idx >= t.ob.nChunks {
		panic(fmt.Errorf(
			"BUG: chunk index %d out of range for %d chunks", idx, t.ob.nChunks,
		))
	}
	return obshape.ChunkBounds(idx, t.ob.length, t.ob.chunkSize)
}
