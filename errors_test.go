package obtree_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gordian-engine/obtree"
	"github.com/stretchr/testify/require"
)

func TestRefetchable(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("other"), false},
		{fmt.Errorf("x: %w", obtree.ErrVerificationMismatch), true},
		{fmt.Errorf("x: %w", obtree.ErrChunkLength), true},
		{fmt.Errorf("x: %w", obtree.ErrMalformedSlice), true},
		{fmt.Errorf("x: %w", obtree.ErrMalformedOutboard), false},
		{fmt.Errorf("%w: %w", obtree.ErrMalformedOutboard, obtree.ErrVerificationMismatch), false},
		{fmt.Errorf("x: %w", obtree.ErrMisalignedOffset), false},
		{fmt.Errorf("x: %w", obtree.ErrOffsetOutOfRange), false},
		{&obtree.SourceReadError{Err: errors.New("disk")}, false},
	} {
		require.Equal(t, tc.want, obtree.Refetchable(tc.err), "%v", tc.err)
	}
}

func TestSourceReadError(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk on fire")
	var err error = &obtree.SourceReadError{Err: cause}

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "disk on fire")
}
