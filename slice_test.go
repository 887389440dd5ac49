package obtree_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"testing"
	"testing/iotest"

	"github.com/gordian-engine/obtree"
	"github.com/gordian-engine/obtree/internal/obtest"
	"github.com/stretchr/testify/require"
)

// extractSlice builds a slice for the window,
// reading content from the start of the window's first chunk.
func extractSlice(
	t *testing.T,
	data []byte,
	res obtree.Result,
	offset, length uint64,
	cfg obtree.Config,
) []byte {
	t.Helper()

	c := uint64(cfg.ChunkSize)
	nChunks := max(1, (uint64(len(data))+c-1)/c)
	first := min(offset/c, nChunks-1)

	var buf bytes.Buffer
	require.NoError(t, obtree.ExtractSlice(
		&buf, res.Outboard, bytes.NewReader(data[first*c:]), offset, length, cfg,
	))
	return buf.Bytes()
}

func windowOf(data []byte, offset, length uint64) []byte {
	l := uint64(len(data))
	start := min(offset, l)
	end := min(offset+length, l)
	return data[start:end]
}

// coversFinalChunk reports whether a slice window
// includes the final chunk of content of the given length.
func coversFinalChunk(contentLength, offset, length, chunkSize uint64) bool {
	nChunks := max(1, (contentLength+chunkSize-1)/chunkSize)
	last := min(offset/chunkSize, nChunks-1)
	if length > 0 {
		last = min((offset+length-1)/chunkSize, nChunks-1)
	}
	return last == nChunks-1
}

func TestSlice_roundTrip(t *testing.T) {
	t.Parallel()

	const c = 64
	cfg := smallConfig(c)

	for _, sz := range []int{0, 1, c - 1, c, c + 1, 10 * c, 13*c + 7} {
		data := obtest.RandomDataForTest(t, sz)
		res := obtree.BuildBytes(data, cfg)

		for _, w := range []struct{ offset, length uint64 }{
			{0, 0},
			{0, 1},
			{0, uint64(sz)},
			{0, uint64(sz) + 100},
			{1, c},
			{c - 1, 2},
			{c, c},
			{3*c + 5, 4 * c},
			{uint64(sz), 10},
			{uint64(sz) + 3*c, 10},
		} {
			t.Run(fmt.Sprintf("size=%d/offset=%d/length=%d", sz, w.offset, w.length), func(t *testing.T) {
				slice := extractSlice(t, data, res, w.offset, w.length, cfg)

				got, err := obtree.VerifySlice(slice, res.Root, w.offset, w.length, cfg)
				require.NoError(t, err)
				require.Equal(t, windowOf(data, w.offset, w.length), got, "returned bytes")

				// The streaming reader gives the same bytes through short reads.
				sr := obtree.NewSliceReader(
					iotest.OneByteReader(bytes.NewReader(slice)), res.Root, w.offset, w.length, cfg,
				)
				got2, err := io.ReadAll(iotest.OneByteReader(sr))
				require.NoError(t, err)
				require.Equal(t, got, got2)

				n, verified := sr.ContentLength()
				require.Equal(t, uint64(sz), n)
				require.Equal(t, coversFinalChunk(uint64(sz), w.offset, w.length, c), verified)
			})
		}
	}
}

// A single chunk held in memory is enough to extract its slice.
func TestSlice_fromChunkOnly(t *testing.T) {
	t.Parallel()

	const c = 128
	cfg := smallConfig(c)

	data := obtest.RandomDataForTest(t, 9*c+11)
	res := obtree.BuildBytes(data, cfg)

	for i, chunk := range chunks(data, c) {
		off := uint64(i * c)

		var buf bytes.Buffer
		require.NoError(t, obtree.ExtractSlice(
			&buf, res.Outboard, bytes.NewReader(chunk), off, uint64(len(chunk)), cfg,
		))

		got, err := obtree.VerifySlice(buf.Bytes(), res.Root, off, uint64(len(chunk)), cfg)
		require.NoError(t, err)
		require.Equal(t, chunk, got)

		// And the slice is rejected for a different root.
		_, err = obtree.VerifySlice(buf.Bytes(), obtree.Hash{}, off, uint64(len(chunk)), cfg)
		require.ErrorIs(t, err, obtree.ErrVerificationMismatch)
	}
}

func TestSlice_tampered(t *testing.T) {
	t.Parallel()

	const c = 32
	cfg := smallConfig(c)

	data := obtest.RandomDataForTest(t, 6*c+9)
	res := obtree.BuildBytes(data, cfg)

	// The window includes the final chunk,
	// so that the length header is covered too.
	const offset, length = 2 * c, 5 * c
	slice := extractSlice(t, data, res, offset, length, cfg)

	for i := range slice {
		bad := append([]byte(nil), slice...)
		bad[i] ^= 0x10

		got, err := obtree.VerifySlice(bad, res.Root, offset, length, cfg)
		require.Error(t, err, "flipped byte %d", i)
		require.True(
			t,
			errors.Is(err, obtree.ErrVerificationMismatch) || errors.Is(err, obtree.ErrMalformedSlice),
			"flipped byte %d: %v", i, err,
		)

		// Whatever was returned before the error is still authentic.
		want := windowOf(data, offset, length)
		require.Equal(t, want[:len(got)], got)
	}
}

// A slice whose window stops short of the final chunk
// does not authenticate the length in its header.
func TestSlice_forgedLengthHeader(t *testing.T) {
	t.Parallel()

	const c = 64
	cfg := smallConfig(c)

	// Three chunks; a declared length of four chunks
	// keeps the same left subtree under the root.
	data := obtest.RandomDataForTest(t, 2*c+54)
	res := obtree.BuildBytes(data, cfg)

	t.Run("window before final chunk", func(t *testing.T) {
		t.Parallel()

		slice := extractSlice(t, data, res, 0, 10, cfg)
		binary.BigEndian.PutUint64(slice, 4*c)

		sr := obtree.NewSliceReader(bytes.NewReader(slice), res.Root, 0, 10, cfg)
		got, err := io.ReadAll(sr)
		require.NoError(t, err)
		require.Equal(t, data[:10], got)

		n, verified := sr.ContentLength()
		require.Equal(t, uint64(4*c), n)
		require.False(t, verified)
	})

	t.Run("window with final chunk", func(t *testing.T) {
		t.Parallel()

		slice := extractSlice(t, data, res, 2*c, 10, cfg)

		sr := obtree.NewSliceReader(bytes.NewReader(slice), res.Root, 2*c, 10, cfg)
		_, err := io.ReadAll(sr)
		require.NoError(t, err)
		n, verified := sr.ContentLength()
		require.Equal(t, uint64(len(data)), n)
		require.True(t, verified)

		binary.BigEndian.PutUint64(slice, 4*c)
		_, err = obtree.VerifySlice(slice, res.Root, 2*c, 10, cfg)
		require.Error(t, err)
	})
}

func TestSlice_truncated(t *testing.T) {
	t.Parallel()

	const c = 32
	cfg := smallConfig(c)

	data := obtest.RandomDataForTest(t, 4*c)
	res := obtree.BuildBytes(data, cfg)
	slice := extractSlice(t, data, res, 0, 4*c, cfg)

	for _, n := range []int{0, 7, 8, 9, len(slice) - 1} {
		_, err := obtree.VerifySlice(slice[:n], res.Root, 0, 4*c, cfg)
		require.ErrorIs(t, err, obtree.ErrMalformedSlice, "truncated to %d", n)
		require.True(t, obtree.Refetchable(err))
	}
}

func TestSlice_readError(t *testing.T) {
	t.Parallel()

	const c = 32
	cfg := smallConfig(c)

	data := obtest.RandomDataForTest(t, 4*c)
	res := obtree.BuildBytes(data, cfg)
	slice := extractSlice(t, data, res, 0, 4*c, cfg)

	errBoom := errors.New("boom")
	r := io.MultiReader(bytes.NewReader(slice[:50]), iotest.ErrReader(errBoom))

	_, err := io.ReadAll(obtree.NewSliceReader(r, res.Root, 0, 4*c, cfg))
	require.ErrorIs(t, err, errBoom)

	var sre *obtree.SourceReadError
	require.ErrorAs(t, err, &sre)
}

func TestExtractSlice_shortContent(t *testing.T) {
	t.Parallel()

	const c = 32
	cfg := smallConfig(c)

	data := obtest.RandomDataForTest(t, 4*c)
	res := obtree.BuildBytes(data, cfg)

	var buf bytes.Buffer
	err := obtree.ExtractSlice(&buf, res.Outboard, bytes.NewReader(data[:c+3]), 0, 4*c, cfg)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	var sre *obtree.SourceReadError
	require.ErrorAs(t, err, &sre)
}

func TestExtractSlice_malformedOutboard(t *testing.T) {
	t.Parallel()

	const c = 32
	cfg := smallConfig(c)

	data := obtest.RandomDataForTest(t, 4*c)
	res := obtree.BuildBytes(data, cfg)

	var buf bytes.Buffer
	err := obtree.ExtractSlice(&buf, res.Outboard[:len(res.Outboard)-1], bytes.NewReader(data), 0, c, cfg)
	require.ErrorIs(t, err, obtree.ErrMalformedOutboard)
	require.Zero(t, buf.Len())
}

// A slice for one chunk only carries the parents on that chunk's path.
func TestExtractSlice_size(t *testing.T) {
	t.Parallel()

	const c = 32
	cfg := smallConfig(c)

	data := obtest.RandomDataForTest(t, 8*c)
	res := obtree.BuildBytes(data, cfg)

	slice := extractSlice(t, data, res, 5*c, c, cfg)

	// Eight chunks is a perfect tree of depth three.
	require.Len(t, slice, 8+3*2*obtree.HashSize+c)
}
