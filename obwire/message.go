package obwire

import (
	"errors"
	"fmt"

	"github.com/gordian-engine/obtree"
	"github.com/gordian-engine/obtree/obseal"
)

// Op identifies the operation requested in a [Request].
type Op uint8

const (
	// Build the tree over Data; respond with Hash and Outboard.
	OpBuild Op = iota + 1

	// Build the tree over the file at Path; respond with Hash and Outboard.
	OpBuildFile

	// Verify chunk Data at Offset against Outboard and Root.
	OpVerifyChunk

	// Extract the slice for [Offset, Offset+Length) from Outboard and chunk Data;
	// respond with the slice in Data.
	OpExtractSlice

	// Verify slice Data for [Offset, Offset+Length) against Root;
	// respond with the window's content in Data.
	OpVerifySlice

	// Flat BLAKE3 digest of Data; respond with Hash.
	OpDigest

	// Flat BLAKE3 digest of the file at Path; respond with Hash.
	OpDigestFile

	// Seal Data with Key and Nonce; respond with ciphertext in Data.
	OpSeal

	// Open Data with Key and Nonce; respond with plaintext in Data.
	OpOpen
)

func (o Op) String() string {
	switch o {
	case OpBuild:
		return "Build"
	case OpBuildFile:
		return "BuildFile"
	case OpVerifyChunk:
		return "VerifyChunk"
	case OpExtractSlice:
		return "ExtractSlice"
	case OpVerifySlice:
		return "VerifySlice"
	case OpDigest:
		return "Digest"
	case OpDigestFile:
		return "DigestFile"
	case OpSeal:
		return "Seal"
	case OpOpen:
		return "Open"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// Request is one call from the host.
// Which fields are meaningful depends on Op.
type Request struct {
	ID uint64 `cbor:"1,keyasint"`
	Op Op     `cbor:"2,keyasint"`

	Path string `cbor:"3,keyasint,omitempty"`
	Data []byte `cbor:"4,keyasint,omitempty"`

	Offset uint64 `cbor:"5,keyasint,omitempty"`
	Length uint64 `cbor:"6,keyasint,omitempty"`

	Outboard []byte `cbor:"7,keyasint,omitempty"`
	Root     []byte `cbor:"8,keyasint,omitempty"`

	Key   []byte `cbor:"9,keyasint,omitempty"`
	Nonce []byte `cbor:"10,keyasint,omitempty"`
}

// Response is the result of one [Request], with the same ID.
// Code is [CodeOK] on success; otherwise Message describes the failure.
type Response struct {
	ID   uint64 `cbor:"1,keyasint"`
	Code Code   `cbor:"2,keyasint"`

	Message string `cbor:"3,keyasint,omitempty"`

	Hash     []byte `cbor:"4,keyasint,omitempty"`
	Outboard []byte `cbor:"5,keyasint,omitempty"`
	Data     []byte `cbor:"6,keyasint,omitempty"`
}

// Code classifies the outcome of a [Request].
// Values are stable across releases.
type Code uint8

const (
	CodeOK Code = iota
	CodeBadRequest
	CodeSourceRead
	CodeMalformedOutboard
	CodeVerificationMismatch
	CodeMisalignedOffset
	CodeOffsetOutOfRange
	CodeChunkLength
	CodeMalformedSlice
	CodeOpenFailed
	CodeInternal
)

// CodeOf returns the Code for an error returned by the core.
func CodeOf(err error) Code {
	var sre *obtree.SourceReadError
	var bre badRequestError

	switch {
	case err == nil:
		return CodeOK
	case errors.As(err, &bre):
		return CodeBadRequest

	// Malformed outboard is checked first, as it may also wrap a mismatch.
	case errors.Is(err, obtree.ErrMalformedOutboard):
		return CodeMalformedOutboard
	case errors.Is(err, obtree.ErrVerificationMismatch):
		return CodeVerificationMismatch
	case errors.Is(err, obtree.ErrMisalignedOffset):
		return CodeMisalignedOffset
	case errors.Is(err, obtree.ErrOffsetOutOfRange):
		return CodeOffsetOutOfRange
	case errors.Is(err, obtree.ErrChunkLength):
		return CodeChunkLength
	case errors.Is(err, obtree.ErrMalformedSlice):
		return CodeMalformedSlice
	case errors.As(err, &sre):
		return CodeSourceRead
	case errors.Is(err, obseal.ErrOpen):
		return CodeOpenFailed
	default:
		return CodeInternal
	}
}

// badRequestError marks errors in the request itself,
// as opposed to errors from the core.
type badRequestError struct {
	msg string
}

func (e badRequestError) Error() string {
	return "bad request: " + e.msg
}
