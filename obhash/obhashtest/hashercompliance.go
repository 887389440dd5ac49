package obhashtest

import (
	"testing"

	"github.com/gordian-engine/obtree/obhash"
	"github.com/stretchr/testify/require"
)

type HasherFactory func() obhash.Hasher

func TestHasherCompliance(t *testing.T, f HasherFactory) {
	t.Run("leaf is deterministic", func(t *testing.T) {
		t.Parallel()

		h := f()
		lc := obhash.NewLeafContext(258, false)

		dst01 := h.Leaf([]byte("deterministic_data"), lc, nil)
		dst02 := h.Leaf([]byte("deterministic_data"), lc, nil)

		require.Equal(t, dst01, dst02)
		require.Len(t, dst01, h.Size())
	})

	t.Run("leaf appends to dst", func(t *testing.T) {
		t.Parallel()

		h := f()
		lc := obhash.NewLeafContext(0, false)

		want := h.Leaf([]byte("data"), lc, nil)

		prefix := []byte("prefix")
		got := h.Leaf([]byte("data"), lc, append([]byte(nil), prefix...))
		require.Equal(t, prefix, got[:len(prefix)])
		require.Equal(t, want, got[len(prefix):])
	})

	t.Run("leaf respects position", func(t *testing.T) {
		t.Parallel()

		h := f()

		dst01 := h.Leaf([]byte("hello"), obhash.NewLeafContext(1, false), nil)
		dst02 := h.Leaf([]byte("hello"), obhash.NewLeafContext(256, false), nil)

		require.NotEqual(t, dst01, dst02)
	})

	t.Run("leaf respects root flag", func(t *testing.T) {
		t.Parallel()

		h := f()

		dst01 := h.Leaf([]byte("hello"), obhash.NewLeafContext(0, false), nil)
		dst02 := h.Leaf([]byte("hello"), obhash.NewLeafContext(0, true), nil)

		require.NotEqual(t, dst01, dst02)
	})

	t.Run("node respects order and root flag", func(t *testing.T) {
		t.Parallel()

		h := f()

		a := h.Leaf([]byte("a"), obhash.NewLeafContext(0, false), nil)
		b := h.Leaf([]byte("b"), obhash.NewLeafContext(1, false), nil)

		ab := h.Node(a, b, obhash.NodeContext{}, nil)
		ba := h.Node(b, a, obhash.NodeContext{}, nil)
		abRoot := h.Node(a, b, obhash.NodeContext{Root: true}, nil)

		require.Len(t, ab, h.Size())
		require.NotEqual(t, ab, ba)
		require.NotEqual(t, ab, abRoot)
		require.Equal(t, ab, h.Node(a, b, obhash.NodeContext{}, nil))
	})

	t.Run("leaf and node are domain separated", func(t *testing.T) {
		t.Parallel()

		h := f()

		a := h.Leaf([]byte("a"), obhash.NewLeafContext(0, false), nil)
		b := h.Leaf([]byte("b"), obhash.NewLeafContext(1, false), nil)
		node := h.Node(a, b, obhash.NodeContext{}, nil)

		// Hash the concatenation as if it were chunk data.
		concat := append(append([]byte(nil), a...), b...)
		for idx := uint64(0); idx < 4; idx++ {
			require.NotEqual(t, node, h.Leaf(concat, obhash.NewLeafContext(idx, false), nil))
		}
	})
}
