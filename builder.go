package obtree

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/gordian-engine/obtree/internal/obshape"
	"github.com/gordian-engine/obtree/obhash"
)

// Result is the value returned by [Build].
type Result struct {
	// The root fingerprint of the content.
	// It must reach consumers through a trusted channel.
	Root Hash

	// The detached tree: the big-endian content length,
	// followed by every parent's pair of child hashes in pre-order.
	// It contains no content bytes.
	Outboard []byte

	// Total content length in bytes.
	Length uint64
}

// Build reads r to exhaustion and returns the root hash and outboard of its content.
//
// Content is read through a buffer of cfg.ReadBufferSize bytes,
// which has no effect on the result.
// If r returns an error other than [io.EOF],
// Build returns a [*SourceReadError] and no result.
func Build(r io.Reader, cfg Config) (Result, error) {
	cfg.mustValidate()

	b := newBuilder(cfg)
	buf := make([]byte, cfg.readBufferSize())
	for {
		n, err := r.Read(buf)
		if n > 0 {
			b.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, &SourceReadError{Err: err}
		}
	}

	return b.Finish(), nil
}

// BuildFile is [Build] over the file at path.
// Failure to open the file is also reported as a [*SourceReadError].
func BuildFile(path string, cfg Config) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, &SourceReadError{Err: err}
	}
	defer f.Close()

	return Build(f, cfg)
}

// BuildBytes is [Build] over content already in memory.
func BuildBytes(data []byte, cfg Config) Result {
	cfg.mustValidate()

	b := newBuilder(cfg)
	b.Write(data)
	return b.Finish()
}

// builder hashes chunks as content arrives,
// then assembles the parents once the content length is known.
type builder struct {
	h         obhash.Hasher
	chunkSize int

	// Bytes of the chunk currently being filled.
	// A full chunk stays here until more content arrives,
	// because only then do we know it is not the sole chunk,
	// which would have to be hashed as the root.
	chunk []byte

	// Concatenated leaf hashes of every chunk hashed so far.
	leaves []byte

	nHashed uint64
	length  uint64
}

func newBuilder(cfg Config) *builder {
	return &builder{
		h:         cfg.Hasher,
		chunkSize: cfg.ChunkSize,

		chunk: make([]byte, 0, cfg.ChunkSize),
	}
}

func (b *builder) Write(p []byte) {
	b.length += uint64(len(p))

	for len(p) > 0 {
		if len(b.chunk) == b.chunkSize {
			b.leaves = b.h.Leaf(b.chunk, obhash.NewLeafContext(b.nHashed, false), b.leaves)
			b.nHashed++
			b.chunk = b.chunk[:0]
		}

		n := min(len(p), b.chunkSize-len(b.chunk))
		b.chunk = append(b.chunk, p[:n]...)
		p = p[n:]
	}
}

func (b *builder) Finish() Result {
	n := b.nHashed + 1
	b.leaves = b.h.Leaf(b.chunk, obhash.NewLeafContext(b.nHashed, n == 1), b.leaves)

	size, ok := obshape.OutboardSize(n, HashSize)
	if !ok {
		// Every chunk had its leaf hash held in memory,
		// so this would have failed long before now.
		panic(fmt.Errorf("BUG: outboard size overflow for %d chunks", n))
	}

	res := Result{
		Outboard: make([]byte, size),
		Length:   b.length,
	}
	binary.BigEndian.PutUint64(res.Outboard, b.length)

	b.subtree(res.Outboard[obshape.HeaderSize:], 0, n, true, res.Root[:0])
	return res
}

// subtree appends to dst the hash of the node covering n chunks starting at chunk lo.
// The node's parents are written in pre-order into pairs,
// which must begin at the node's own position.
func (b *builder) subtree(pairs []byte, lo, n uint64, root bool, dst []byte) []byte {
	if n == 1 {
		start := lo * HashSize
		return append(dst, b.leaves[start:start+HashSize]...)
	}

	l := obshape.LeftCount(n)

	// Limit capacity so that the children append in place.
	left := b.subtree(pairs[pairSize:], lo, l, false, pairs[0:0:HashSize])
	right := b.subtree(pairs[l*pairSize:], lo+l, n-l, false, pairs[HashSize:HashSize:pairSize])

	return b.h.Node(left, right, obhash.NodeContext{Root: root}, dst)
}
