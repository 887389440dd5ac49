package obseal_test

import (
	"testing"

	"github.com/gordian-engine/obtree/internal/obtest"
	"github.com/gordian-engine/obtree/obseal"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	t.Parallel()

	key := obtest.RandomDataForTest(t, obseal.KeySize)
	nonce := make([]byte, obseal.NonceSize)
	plaintext := []byte("attack at dawn")

	ct, err := obseal.Seal(key, nonce, plaintext)
	require.NoError(t, err)
	require.Len(t, ct, len(plaintext)+obseal.Overhead)

	pt, err := obseal.Open(key, nonce, ct)
	require.NoError(t, err)
	require.Equal(t, plaintext, pt)
}

func TestOpen_tampered(t *testing.T) {
	t.Parallel()

	key := obtest.RandomDataForTest(t, obseal.KeySize)
	nonce := make([]byte, obseal.NonceSize)

	ct, err := obseal.Seal(key, nonce, []byte("hello"))
	require.NoError(t, err)

	_, err = obseal.Open(key, nonce, obtest.FlipBit(ct, 0))
	require.ErrorIs(t, err, obseal.ErrOpen)

	otherNonce := make([]byte, obseal.NonceSize)
	otherNonce[0] = 1
	_, err = obseal.Open(key, otherNonce, ct)
	require.ErrorIs(t, err, obseal.ErrOpen)
}

func TestSeal_badInputs(t *testing.T) {
	t.Parallel()

	_, err := obseal.Seal(make([]byte, 5), make([]byte, obseal.NonceSize), nil)
	require.Error(t, err)

	_, err = obseal.Seal(make([]byte, obseal.KeySize), make([]byte, 12), nil)
	require.Error(t, err)

	_, err = obseal.Open(make([]byte, obseal.KeySize), make([]byte, 3), nil)
	require.Error(t, err)
}
