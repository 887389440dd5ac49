package obtree

import (
	"errors"
	"fmt"

	"github.com/gordian-engine/obtree/obhash"
	"github.com/gordian-engine/obtree/obhash/obblake3"
)

const (
	// DefaultChunkSize is the chunk size used by [DefaultConfig].
	DefaultChunkSize = 256 * 1024

	// DefaultReadBufferSize is the read buffer size used by [DefaultConfig].
	DefaultReadBufferSize = 256 * 1024
)

// Config is the configuration shared by the builder and every verifier.
//
// ChunkSize and Hasher define the outboard format.
// A tree built with one value of either
// will not verify with a different value.
type Config struct {
	// The number of content bytes in each leaf of the tree.
	// The final chunk may be shorter.
	ChunkSize int

	// How many bytes [Build] requests from its source per read.
	// This only affects I/O patterns, never the resulting tree.
	// Zero means [DefaultReadBufferSize].
	ReadBufferSize int

	// How leaves and parents are hashed.
	// Hasher.Size must equal [HashSize].
	Hasher obhash.Hasher
}

// DefaultConfig returns a Config with 256 KiB chunks
// and BLAKE3 hashing.
func DefaultConfig() Config {
	return Config{
		ChunkSize:      DefaultChunkSize,
		ReadBufferSize: DefaultReadBufferSize,
		Hasher:         obblake3.Hasher{},
	}
}

// Validate reports whether c is usable.
// Functions accepting a Config panic if it is invalid,
// so values originating outside the program should be checked here first.
func (c Config) Validate() error {
	var errs []error
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("ChunkSize must be positive (got %d)", c.ChunkSize))
	}
	if c.ReadBufferSize < 0 {
		errs = append(errs, fmt.Errorf("ReadBufferSize must not be negative (got %d)", c.ReadBufferSize))
	}
	if c.Hasher == nil {
		errs = append(errs, errors.New("Hasher must be set"))
	} else if sz := c.Hasher.Size(); sz != HashSize {
		errs = append(errs, fmt.Errorf("Hasher must produce %d-byte hashes (got %d)", HashSize, sz))
	}
	return errors.Join(errs...)
}

func (c Config) mustValidate() {
	if err := c.Validate(); err != nil {
		panic(fmt.Errorf("BUG: invalid config: %w", err))
	}
}

func (c Config) readBufferSize() int {
	if c.ReadBufferSize == 0 {
		return DefaultReadBufferSize
	}
	return c.ReadBufferSize
}
