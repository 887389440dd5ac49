package obtree

import (
	"encoding/hex"
	"fmt"
)

// HashSize is the size in bytes of every node hash, including the root.
const HashSize = 32

// Hash is a root fingerprint or node hash.
type Hash [HashSize]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashFromBytes converts b to a Hash,
// returning an error if b is not exactly [HashSize] bytes.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("hash must be %d bytes (got %d)", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ParseHash parses the hex encoding of a Hash.
func ParseHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("failed to decode hash: %w", err)
	}
	return HashFromBytes(b)
}
