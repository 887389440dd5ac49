package obblake3_test

import (
	"testing"

	"github.com/gordian-engine/obtree/obhash"
	"github.com/gordian-engine/obtree/obhash/obblake3"
	"github.com/gordian-engine/obtree/obhash/obhashtest"
)

func TestCompliance(t *testing.T) {
	t.Parallel()

	obhashtest.TestHasherCompliance(t, func() obhash.Hasher {
		return obblake3.Hasher{}
	})
}
