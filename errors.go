package obtree

import "errors"

// ErrMalformedOutboard indicates that the outboard is truncated,
// mis-sized, or internally inconsistent with the content length it declares.
// The outboard cannot be used for any chunk;
// the caller should abandon the transfer or obtain a new outboard.
var ErrMalformedOutboard = errors.New("malformed outboard")

// ErrVerificationMismatch indicates that the recomputed root
// did not equal the trusted root hash.
// This is the expected outcome for a corrupt or tampered chunk.
var ErrVerificationMismatch = errors.New("verification mismatch")

// ErrMisalignedOffset indicates that an offset
// does not fall on a chunk boundary.
var ErrMisalignedOffset = errors.New("offset not aligned to chunk boundary")

// ErrOffsetOutOfRange indicates that an offset
// is past the final chunk of the content.
var ErrOffsetOutOfRange = errors.New("offset out of range")

// ErrChunkLength indicates that a chunk's length
// does not match the expected length of the chunk at its offset.
var ErrChunkLength = errors.New("chunk length inconsistent with offset")

// ErrMalformedSlice indicates that a slice stream ended early.
var ErrMalformedSlice = errors.New("malformed slice")

// ErrAlreadyHadChunk is returned from [*PartialTree.AddChunk]
// when the same chunk was already verified.
var ErrAlreadyHadChunk = errors.New("already had chunk")

// SourceReadError is returned when the content source
// fails during a build or a slice extraction.
// Nothing is retried internally.
type SourceReadError struct {
	Err error
}

func (e *SourceReadError) Error() string {
	return "failed to read content source: " + e.Err.Error()
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}

// Refetchable reports whether err means that the particular chunk or slice
// was bad, such that obtaining it again from another source may succeed.
//
// Refetchable reports false for errors that mean the outboard,
// the offset arithmetic, or the caller's own source is broken,
// in which case fetching the same chunk again cannot help.
func Refetchable(err error) bool {
	if err == nil || errors.Is(err, ErrMalformedOutboard) {
		return false
	}

	return errors.Is(err, ErrVerificationMismatch) ||
		errors.Is(err, ErrChunkLength) ||
		errors.Is(err, ErrMalformedSlice)
}
