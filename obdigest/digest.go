// Package obdigest computes flat BLAKE3 digests of whole buffers and files,
// with no tree structure.
//
// These digests identify content, but unlike an obtree root hash
// they cannot be used to verify part of the content.
package obdigest

import (
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

const Size = 32

// readBufferSize is the size of the buffer used by [Reader].
const readBufferSize = 1024 * 1024

// Sum returns the BLAKE3 digest of b.
func Sum(b []byte) [Size]byte {
	return blake3.Sum256(b)
}

// Reader returns the BLAKE3 digest of everything read from r.
func Reader(r io.Reader) ([Size]byte, error) {
	h := blake3.New()

	var out [Size]byte
	if _, err := io.CopyBuffer(h, r, make([]byte, readBufferSize)); err != nil {
		return out, fmt.Errorf("failed to read content: %w", err)
	}

	h.Sum(out[:0])
	return out, nil
}

// File returns the BLAKE3 digest of the file at path.
func File(path string) ([Size]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [Size]byte{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return Reader(f)
}
