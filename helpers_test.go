package obtree_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gordian-engine/obtree"
	"github.com/stretchr/testify/require"
)

// smallConfig returns the default config with a small chunk size,
// so that tests can cover many chunks with little data.
func smallConfig(chunkSize int) obtree.Config {
	cfg := obtree.DefaultConfig()
	cfg.ChunkSize = chunkSize
	return cfg
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "content")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
