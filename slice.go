package obtree

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/gordian-engine/obtree/internal/obshape"
	"github.com/gordian-engine/obtree/obhash"
)

// ExtractSlice writes to w a self-contained proof for the content window
// [offset, offset+length).
//
// The slice is the 8-byte content length,
// then a pre-order walk of every node whose subtree intersects the window:
// each parent contributes its pair of child hashes,
// and each chunk in the window contributes its raw bytes.
// A zero-length window, or one starting past the end of the content,
// still carries the chunk at offset (or the final chunk).
//
// The length at the head of the slice is only proven
// when the window includes the final chunk;
// see [*SliceReader.ContentLength].
//
// The content reader is only ever read forward, never seeked.
// It must be positioned at the first byte of the first chunk in the window,
// i.e. at offset rounded down to a multiple of the chunk size
// (or the start of the final chunk, for windows past the end).
// Exactly the bytes of the window's chunks are read from it.
// A caller holding exactly one chunk can pass a [bytes.Reader] over that chunk.
func ExtractSlice(
	w io.Writer,
	outboard []byte,
	content io.Reader,
	offset, length uint64,
	cfg Config,
) error {
	cfg.mustValidate()

	ob, err := parseOutboard(outboard, uint64(cfg.ChunkSize))
	if err != nil {
		return err
	}

	first, last := sliceWindow(offset, length, ob.chunkSize, ob.nChunks)

	if _, err := w.Write(outboard[:obshape.HeaderSize]); err != nil {
		return fmt.Errorf("failed to write slice header: %w", err)
	}

	e := sliceExtractor{
		w:       w,
		content: content,
		ob:      ob,

		first: first,
		last:  last,

		buf: make([]byte, min(uint64(cfg.ChunkSize), ob.length)),
	}
	return e.walk(0, 0, ob.nChunks)
}

// SliceStart returns the content position
// at which [ExtractSlice] expects its content reader to be positioned,
// for a window starting at offset.
func SliceStart(outboard []byte, offset uint64, cfg Config) (uint64, error) {
	cfg.mustValidate()

	ob, err := parseOutboard(outboard, uint64(cfg.ChunkSize))
	if err != nil {
		return 0, err
	}

	first, _ := sliceWindow(offset, 0, ob.chunkSize, ob.nChunks)
	start, _ := obshape.ChunkBounds(first, ob.length, ob.chunkSize)
	return start, nil
}

type sliceExtractor struct {
	w       io.Writer
	content io.Reader
	ob      outboardView

	first, last uint64

	buf []byte
}

// walk writes the node covering n chunks starting at chunk lo,
// whose parents begin at pre-order index pos.
// The node must intersect the window.
func (e *sliceExtractor) walk(pos, lo, n uint64) error {
	if n == 1 {
		chunk := e.buf[:e.ob.expectedChunkLen(lo)]
		if _, err := io.ReadFull(e.content, chunk); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return &SourceReadError{
				Err: fmt.Errorf("chunk %d: %w", lo, err),
			}
		}
		if _, err := e.w.Write(chunk); err != nil {
			return fmt.Errorf("failed to write chunk %d to slice: %w", lo, err)
		}
		return nil
	}

	left, right := e.ob.pair(pos)
	if _, err := e.w.Write(left); err != nil {
		return fmt.Errorf("failed to write parent %d to slice: %w", pos, err)
	}
	if _, err := e.w.Write(right); err != nil {
		return fmt.Errorf("failed to write parent %d to slice: %w", pos, err)
	}

	l := obshape.LeftCount(n)
	if e.first < lo+l {
		if err := e.walk(pos+1, lo, l); err != nil {
			return err
		}
	}
	if e.last >= lo+l {
		if err := e.walk(pos+l, lo+l, n-l); err != nil {
			return err
		}
	}
	return nil
}

// sliceWindow returns the inclusive range of chunks
// covered by a slice of [offset, offset+length).
func sliceWindow(offset, length, chunkSize, nChunks uint64) (first, last uint64) {
	first = min(offset/chunkSize, nChunks-1)
	if length == 0 {
		return first, first
	}

	end := saturatingAdd(offset, length)
	last = min((end-1)/chunkSize, nChunks-1)
	return first, max(first, last)
}

func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// SliceReader verifies a slice produced by [ExtractSlice]
// and yields the content bytes of the requested window.
//
// The slice is consumed strictly forward from the underlying reader.
// Every parent pair is checked against its already trusted parent hash
// before anything beneath it is read,
// and every chunk is checked in full before any of its bytes are returned;
// so bytes returned by Read are always authentic,
// even if a later Read reports an error.
//
// Errors are sticky and wrap [ErrVerificationMismatch], [ErrMalformedSlice],
// or [*SourceReadError] for failures of the underlying reader.
type SliceReader struct {
	r    io.Reader
	h    obhash.Hasher
	root Hash

	chunkSize      uint64
	offset, length uint64

	started       bool
	contentLength uint64

	// Set once the final chunk has been verified,
	// which is the only thing that binds contentLength to the root.
	lengthVerified bool

	nChunks     uint64
	first, last uint64

	// Nodes still to be read from the slice, next on top.
	pending []pendingNode

	chunkBuf []byte

	// Verified window bytes not yet returned.
	out []byte

	err error
}

type pendingNode struct {
	lo, n uint64
	hash  Hash
	root  bool
}

// NewSliceReader returns a SliceReader over the slice in r,
// for the window [offset, offset+length) of the content with the given root hash.
// The offset and length must match those given to [ExtractSlice].
func NewSliceReader(r io.Reader, root Hash, offset, length uint64, cfg Config) *SliceReader {
	cfg.mustValidate()

	return &SliceReader{
		r:    r,
		h:    cfg.Hasher,
		root: root,

		chunkSize: uint64(cfg.ChunkSize),
		offset:    offset,
		length:    length,
	}
}

// ContentLength returns the content length declared by the slice,
// and whether that length has been verified against the root hash.
//
// The length is verified only once the final chunk of the content
// has been read and verified, so the second result is always false
// for a window that does not include the final chunk.
// An unverified length may be forged, as long as it keeps the same
// tree shape along the path to the window.
func (s *SliceReader) ContentLength() (uint64, bool) {
	return s.contentLength, s.lengthVerified
}

func (s *SliceReader) Read(p []byte) (int, error) {
	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.err = s.advance()
	}

	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

// advance reads and verifies the next header, parent, or chunk.
// It returns io.EOF once the slice is exhausted.
func (s *SliceReader) advance() error {
	if !s.started {
		return s.readHeader()
	}

	if len(s.pending) == 0 {
		return io.EOF
	}

	node := s.pending[len(s.pending)-1]
	s.pending = s.pending[:len(s.pending)-1]

	if node.n == 1 {
		return s.readChunk(node)
	}
	return s.readParent(node)
}

func (s *SliceReader) readHeader() error {
	var hdr [obshape.HeaderSize]byte
	if err := s.readFull(hdr[:], "length header"); err != nil {
		return err
	}

	s.started = true
	s.contentLength = binary.BigEndian.Uint64(hdr[:])
	s.nChunks = obshape.ChunkCount(s.contentLength, s.chunkSize)
	s.first, s.last = sliceWindow(s.offset, s.length, s.chunkSize, s.nChunks)

	s.pending = append(s.pending, pendingNode{
		lo:   0,
		n:    s.nChunks,
		hash: s.root,
		root: true,
	})
	return nil
}

func (s *SliceReader) readParent(node pendingNode) error {
	var pair [pairSize]byte
	if err := s.readFull(pair[:], "parent"); err != nil {
		return err
	}

	var got [HashSize]byte
	s.h.Node(pair[:HashSize], pair[HashSize:], obhash.NodeContext{Root: node.root}, got[:0])
	if got != node.hash {
		return fmt.Errorf(
			"%w: parent over chunks [%d, %d): calculated %x, expected %x",
			ErrVerificationMismatch, node.lo, node.lo+node.n, got[:], node.hash[:],
		)
	}

	l := obshape.LeftCount(node.n)

	// Push the right child first so that the left child is read first.
	if s.last >= node.lo+l {
		right := pendingNode{lo: node.lo + l, n: node.n - l}
		copy(right.hash[:], pair[HashSize:])
		s.pending = append(s.pending, right)
	}
	if s.first < node.lo+l {
		left := pendingNode{lo: node.lo, n: l}
		copy(left.hash[:], pair[:HashSize])
		s.pending = append(s.pending, left)
	}
	return nil
}

func (s *SliceReader) readChunk(node pendingNode) error {
	start, end := obshape.ChunkBounds(node.lo, s.contentLength, s.chunkSize)

	sz := end - start
	if uint64(cap(s.chunkBuf)) < sz {
		s.chunkBuf = make([]byte, sz)
	}
	chunk := s.chunkBuf[:sz]

	if err := s.readFull(chunk, fmt.Sprintf("chunk %d", node.lo)); err != nil {
		return err
	}

	var got [HashSize]byte
	s.h.Leaf(chunk, obhash.NewLeafContext(node.lo, node.root), got[:0])
	if got != node.hash {
		return fmt.Errorf(
			"%w: chunk %d: calculated %x, expected %x",
			ErrVerificationMismatch, node.lo, got[:], node.hash[:],
		)
	}

	if node.lo == s.nChunks-1 {
		s.lengthVerified = true
	}

	// Only the part of the chunk inside the window is returned.
	winStart := max(s.offset, start)
	winEnd := min(saturatingAdd(s.offset, s.length), end)
	if winStart < winEnd {
		s.out = chunk[winStart-start : winEnd-start]
	}
	return nil
}

func (s *SliceReader) readFull(buf []byte, what string) error {
	_, err := io.ReadFull(s.r, buf)
	if err == nil {
		return nil
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated before %s", ErrMalformedSlice, what)
	}
	return &SourceReadError{Err: err}
}

// VerifySlice verifies a complete in-memory slice
// and returns the content bytes of the window [offset, offset+length).
func VerifySlice(slice []byte, root Hash, offset, length uint64, cfg Config) ([]byte, error) {
	return io.ReadAll(NewSliceReader(bytes.NewReader(slice), root, offset, length, cfg))
}
