package obsha256_test

import (
	"testing"

	"github.com/gordian-engine/obtree/obhash"
	"github.com/gordian-engine/obtree/obhash/obhashtest"
	"github.com/gordian-engine/obtree/obhash/obsha256"
)

func TestCompliance(t *testing.T) {
	t.Parallel()

	obhashtest.TestHasherCompliance(t, func() obhash.Hasher {
		return obsha256.Hasher{}
	})
}
